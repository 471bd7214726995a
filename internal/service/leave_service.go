package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/prabandh/portal-api/internal/dto"
	"github.com/prabandh/portal-api/internal/models"
	appErrors "github.com/prabandh/portal-api/pkg/errors"
	"github.com/prabandh/portal-api/pkg/export"
)

const dateLayout = "2006-01-02"

type leaveApplicationRepository interface {
	Create(ctx context.Context, app *models.LeaveApplication) error
	FindByID(ctx context.Context, id string) (*models.LeaveApplication, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error)
}

// balanceLedger is the atomic per-(employee, leave type) balance store.
type balanceLedger interface {
	Provision(ctx context.Context, employeeID string) error
	Remaining(ctx context.Context, employeeID, leaveType string) (float64, error)
	Snapshot(ctx context.Context, employeeID string) ([]models.LeaveBalance, error)
	CheckAndDebit(ctx context.Context, employeeID, leaveType string, amount float64) error
	Credit(ctx context.Context, employeeID, leaveType string, amount float64) error
}

type forwardResolver interface {
	Resolve(ctx context.Context, role models.UserRole, personID string) error
}

// LeaveService owns the submission pipeline and the read side of the leave
// workflow.
type LeaveService struct {
	apps      leaveApplicationRepository
	ledger    balanceLedger
	routing   forwardResolver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLeaveService constructs a LeaveService.
func NewLeaveService(apps leaveApplicationRepository, ledger balanceLedger, routing forwardResolver,
	cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *LeaveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LeaveService{
		apps:      apps,
		ledger:    ledger,
		routing:   routing,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Catalog returns the static leave-type table.
func (s *LeaveService) Catalog() []models.LeaveTypeEntry {
	catalog := make([]models.LeaveTypeEntry, len(models.LeaveTypeCatalog))
	copy(catalog, models.LeaveTypeCatalog)
	return catalog
}

// Submit runs the full submission pipeline: selection rules, day count,
// routing target, then a debit per selected type. Debits compensate on
// partial failure so a submission is all-or-nothing.
func (s *LeaveService) Submit(ctx context.Context, employeeID string, req dto.SubmitLeaveRequest) (*models.LeaveApplication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid leave application payload")
	}
	if err := ValidateSelectedTypes(req.SelectedTypes); err != nil {
		return nil, err
	}

	fromDate, err := time.Parse(dateLayout, req.FromDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from_date must be YYYY-MM-DD")
	}
	toDate, err := time.Parse(dateLayout, req.ToDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to_date must be YYYY-MM-DD")
	}

	forwardRole := models.UserRole(req.ForwardToRole)
	if err := s.routing.Resolve(ctx, forwardRole, req.ForwardToPersonID); err != nil {
		return nil, err
	}

	days, err := ComputeDays(fromDate, toDate, req.IsHalfDay)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidDayCount,
			fmt.Sprintf("computed day count %.1f is not positive", days))
	}

	if err := s.ledger.Provision(ctx, employeeID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision leave balances")
	}

	// The full day count is charged against every selected type, not split
	// between them.
	for _, leaveType := range req.SelectedTypes {
		remaining, err := s.ledger.Remaining(ctx, employeeID, leaveType)
		if err != nil {
			return nil, err
		}
		if remaining < days {
			return nil, appErrors.Clone(appErrors.ErrInsufficientBalance,
				fmt.Sprintf("%s balance %.1f is below %.1f day(s)", leaveType, remaining, days))
		}
	}

	debited := make([]string, 0, len(req.SelectedTypes))
	for _, leaveType := range req.SelectedTypes {
		if err := s.ledger.CheckAndDebit(ctx, employeeID, leaveType, days); err != nil {
			s.metrics.RecordLedgerOperation("debit", "rejected")
			s.compensate(ctx, employeeID, debited, days)
			return nil, err
		}
		s.metrics.RecordLedgerOperation("debit", "applied")
		debited = append(debited, leaveType)
	}

	app := &models.LeaveApplication{
		EmployeeID:         employeeID,
		SelectedTypes:      pq.StringArray(req.SelectedTypes),
		FromDate:           fromDate,
		ToDate:             toDate,
		IsHalfDay:          req.IsHalfDay,
		Days:               days,
		Reason:             req.Reason,
		ContactDuringLeave: req.ContactDuringLeave,
		AddressDuringLeave: req.AddressDuringLeave,
		ForwardToRole:      forwardRole,
		ForwardToPersonID:  req.ForwardToPersonID,
		Status:             models.StatusPending,
	}
	for _, adj := range req.ClassAdjustments {
		app.ClassAdjustments = append(app.ClassAdjustments, models.ClassAdjustment{
			Course:           adj.Course,
			Branch:           adj.Branch,
			Semester:         adj.Semester,
			Subject:          adj.Subject,
			ClassTiming:      adj.ClassTiming,
			ConcernedTeacher: adj.ConcernedTeacher,
		})
	}

	if err := s.apps.Create(ctx, app); err != nil {
		s.compensate(ctx, employeeID, debited, days)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create leave application")
	}

	s.cache.Invalidate(ctx, balanceCacheKey(employeeID))
	s.logger.Info("leave application submitted",
		zap.String("application_id", app.ID),
		zap.String("employee_id", employeeID),
		zap.Float64("days", days),
		zap.Strings("selected_types", req.SelectedTypes))
	return app, nil
}

// compensate credits back debits already applied within a failed submission.
func (s *LeaveService) compensate(ctx context.Context, employeeID string, debited []string, days float64) {
	for _, leaveType := range debited {
		if err := s.ledger.Credit(ctx, employeeID, leaveType, days); err != nil {
			s.metrics.RecordLedgerOperation("credit", "failed")
			s.logger.Error("failed to compensate debit",
				zap.String("employee_id", employeeID),
				zap.String("leave_type", leaveType),
				zap.Float64("days", days),
				zap.Error(err))
			continue
		}
		s.metrics.RecordLedgerOperation("credit", "applied")
	}
}

// ListOptions captures caller-facing list filters before role scoping.
type ListOptions struct {
	EmployeeID string
	Statuses   []string
	Queue      bool
	Page       int
	PageSize   int
}

// List returns applications visible to the actor. Faculty see their own
// submissions; queue mode returns the actor's pending-decision queue; HR and
// admin may browse everything.
func (s *LeaveService) List(ctx context.Context, actor *models.JWTClaims, opts ListOptions) ([]models.LeaveApplication, models.Pagination, error) {
	filter := models.ApplicationFilter{Page: opts.Page, PageSize: opts.PageSize}

	for _, raw := range opts.Statuses {
		filter.Statuses = append(filter.Statuses, models.ApplicationStatus(raw))
	}

	switch {
	case opts.Queue:
		if !models.IsApproverRole(actor.Role) {
			return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrForbidden, "only approvers have a decision queue")
		}
		filter.HolderPersonID = actor.UserID
		filter.HolderRole = actor.Role
	case actor.Role == models.RoleHR || actor.Role == models.RoleAdmin:
		filter.EmployeeID = opts.EmployeeID
	default:
		filter.EmployeeID = actor.UserID
	}

	apps, total, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list leave applications")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return apps, models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get loads one application. Owners, the current holder, HR and admin may
// read it.
func (s *LeaveService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.LeaveApplication, error) {
	app, err := s.findApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(app, actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not permitted to view this application")
	}
	return app, nil
}

// BalanceSnapshot returns all balances for an employee, provisioning default
// allocations on first read.
func (s *LeaveService) BalanceSnapshot(ctx context.Context, employeeID string) (models.BalanceSnapshot, error) {
	key := balanceCacheKey(employeeID)
	var cached models.BalanceSnapshot
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	if err := s.ledger.Provision(ctx, employeeID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to provision leave balances")
	}
	balances, err := s.ledger.Snapshot(ctx, employeeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave balances")
	}

	snapshot := make(models.BalanceSnapshot, len(balances))
	for _, b := range balances {
		snapshot[b.LeaveType] = models.BalanceEntry{Total: b.Total, Used: b.Used, Remaining: b.Remaining()}
	}
	s.cache.Set(ctx, key, snapshot)
	return snapshot, nil
}

// BalanceForApplication returns the applicant's balance snapshot for a given
// application, subject to the same read permissions as Get.
func (s *LeaveService) BalanceForApplication(ctx context.Context, applicationID string, actor *models.JWTClaims) (models.BalanceSnapshot, error) {
	app, err := s.Get(ctx, applicationID, actor)
	if err != nil {
		return nil, err
	}
	return s.BalanceSnapshot(ctx, app.EmployeeID)
}

// ExportDataset flattens every application into a tabular dataset for CSV or
// PDF export.
func (s *LeaveService) ExportDataset(ctx context.Context) (export.Dataset, error) {
	filter := models.ApplicationFilter{Page: 1, PageSize: 100}
	headers := []string{"ID", "Employee", "Types", "From", "To", "Days", "Status", "Holder Role", "Applied On"}
	dataset := export.Dataset{Headers: headers}

	for {
		apps, total, err := s.apps.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export applications")
		}
		for _, app := range apps {
			dataset.Rows = append(dataset.Rows, map[string]string{
				"ID":          app.ID,
				"Employee":    app.EmployeeID,
				"Types":       joinTypes(app.SelectedTypes),
				"From":        app.FromDate.Format(dateLayout),
				"To":          app.ToDate.Format(dateLayout),
				"Days":        strconv.FormatFloat(app.Days, 'f', -1, 64),
				"Status":      string(app.Status),
				"Holder Role": string(app.ForwardToRole),
				"Applied On":  app.AppliedOn.Format(time.RFC3339),
			})
		}
		if len(dataset.Rows) >= total || len(apps) == 0 {
			break
		}
		filter.Page++
	}
	return dataset, nil
}

func (s *LeaveService) findApplication(ctx context.Context, id string) (*models.LeaveApplication, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, normalizeFindError(err)
	}
	return app, nil
}

func normalizeFindError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "leave application not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leave application")
}

func canRead(app *models.LeaveApplication, actor *models.JWTClaims) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.RoleHR || actor.Role == models.RoleAdmin {
		return true
	}
	if app.EmployeeID == actor.UserID {
		return true
	}
	return app.HolderMatches(actor.UserID, actor.Role)
}

func balanceCacheKey(employeeID string) string {
	return "leave:balance:" + employeeID
}

func joinTypes(types pq.StringArray) string {
	return strings.Join([]string(types), ", ")
}
