package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/prabandh/portal-api/internal/models"
	appErrors "github.com/prabandh/portal-api/pkg/errors"
)

type workflowApplicationRepository interface {
	FindByID(ctx context.Context, id string) (*models.LeaveApplication, error)
	UpdateStatus(ctx context.Context, id string, expected, next models.ApplicationStatus,
		forwardRole models.UserRole, forwardPersonID string, remarks *string) (bool, error)
}

// WorkflowConfig holds workflow policy knobs.
type WorkflowConfig struct {
	// RefundOnReject credits back the submission debits when an application
	// reaches a rejecting terminal state.
	RefundOnReject bool
}

// LeaveWorkflowService is the approval state machine. Every transition is a
// status-guarded update; the guard losing means the application moved
// concurrently and the caller gets AlreadyFinalized or StaleState.
type LeaveWorkflowService struct {
	apps    workflowApplicationRepository
	ledger  balanceLedger
	routing forwardResolver
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	config  WorkflowConfig
}

// NewLeaveWorkflowService constructs the workflow engine.
func NewLeaveWorkflowService(apps workflowApplicationRepository, ledger balanceLedger, routing forwardResolver,
	cache *CacheService, metrics *MetricsService, logger *zap.Logger, config WorkflowConfig) *LeaveWorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaveWorkflowService{
		apps:    apps,
		ledger:  ledger,
		routing: routing,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		config:  config,
	}
}

// Approve applies the approve transition for the current holder.
func (s *LeaveWorkflowService) Approve(ctx context.Context, id string, actor *models.JWTClaims, remarks string) (*models.LeaveApplication, error) {
	app, err := s.loadActionable(ctx, id, actor)
	if err != nil {
		s.metrics.RecordTransition("approve", "rejected")
		return nil, err
	}

	next, nextRole, nextPerson := approveOutcome(app)

	updated, err := s.transition(ctx, app, next, nextRole, nextPerson, remarks)
	if err != nil {
		s.metrics.RecordTransition("approve", "conflict")
		return nil, err
	}
	s.metrics.RecordTransition("approve", "applied")
	s.logger.Info("leave application approved",
		zap.String("application_id", id),
		zap.String("actor_id", actor.UserID),
		zap.String("status", string(updated.Status)))
	return updated, nil
}

// Reject applies the reject transition for the current holder. Rejection is
// terminal from every intermediate state.
func (s *LeaveWorkflowService) Reject(ctx context.Context, id string, actor *models.JWTClaims, remarks string) (*models.LeaveApplication, error) {
	app, err := s.loadActionable(ctx, id, actor)
	if err != nil {
		s.metrics.RecordTransition("reject", "rejected")
		return nil, err
	}

	next := models.StatusRejected
	if app.Status == models.StatusForwardedToHR {
		next = models.StatusRejectedByHR
	}

	updated, err := s.transition(ctx, app, next, "", "", remarks)
	if err != nil {
		s.metrics.RecordTransition("reject", "conflict")
		return nil, err
	}
	s.metrics.RecordTransition("reject", "applied")

	if s.config.RefundOnReject && updated.Status.IsRejected() {
		s.refund(ctx, updated)
	}
	s.logger.Info("leave application rejected",
		zap.String("application_id", id),
		zap.String("actor_id", actor.UserID),
		zap.String("status", string(updated.Status)),
		zap.Bool("refunded", s.config.RefundOnReject))
	return updated, nil
}

// Forward escalates an application to a new holder. Explicit forwards must
// name a roster member of the target role; role-only addressing is reserved
// for the internal HOD approval auto-advance.
func (s *LeaveWorkflowService) Forward(ctx context.Context, id string, actor *models.JWTClaims,
	role models.UserRole, personID string) (*models.LeaveApplication, error) {
	app, err := s.loadActionable(ctx, id, actor)
	if err != nil {
		s.metrics.RecordTransition("forward", "rejected")
		return nil, err
	}

	if personID == "" {
		s.metrics.RecordTransition("forward", "rejected")
		return nil, appErrors.Clone(appErrors.ErrUnknownRoutingTarget,
			fmt.Sprintf("forwarding to %s requires a person in that role", role))
	}
	if err := s.routing.Resolve(ctx, role, personID); err != nil {
		s.metrics.RecordTransition("forward", "rejected")
		return nil, err
	}
	next, ok := models.ForwardedStatusForRole(role)
	if !ok {
		s.metrics.RecordTransition("forward", "rejected")
		return nil, appErrors.Clone(appErrors.ErrUnknownRoutingTarget, fmt.Sprintf("%q is not an approver role", role))
	}

	updated, err := s.transition(ctx, app, next, role, personID, "")
	if err != nil {
		s.metrics.RecordTransition("forward", "conflict")
		return nil, err
	}
	s.metrics.RecordTransition("forward", "applied")
	s.logger.Info("leave application forwarded",
		zap.String("application_id", id),
		zap.String("actor_id", actor.UserID),
		zap.String("to_role", string(role)),
		zap.String("to_person", personID))
	return updated, nil
}

// loadActionable loads the application and enforces the holder guard and
// terminal-state rules.
func (s *LeaveWorkflowService) loadActionable(ctx context.Context, id string, actor *models.JWTClaims) (*models.LeaveApplication, error) {
	if actor == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	app, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrAlreadyFinalized,
			fmt.Sprintf("application is already %s", app.Status))
	}
	if !app.HolderMatches(actor.UserID, actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "actor is not the current holder of this application")
	}
	return app, nil
}

// approveOutcome maps the current state to the approve target. HOD approval
// auto-advances to HR rather than finalizing; HR approval carries its own
// terminal status.
func approveOutcome(app *models.LeaveApplication) (models.ApplicationStatus, models.UserRole, string) {
	switch app.Status {
	case models.StatusForwardedToHOD:
		return models.StatusForwardedToHR, models.RoleHR, ""
	case models.StatusForwardedToHR:
		return models.StatusApprovedByHR, "", ""
	default:
		// pending, forwarded_to_dean, forwarded_to_vc
		return models.StatusApproved, "", ""
	}
}

// transition applies the guarded update and reloads on conflict to classify
// the failure.
func (s *LeaveWorkflowService) transition(ctx context.Context, app *models.LeaveApplication,
	next models.ApplicationStatus, forwardRole models.UserRole, forwardPersonID string, remarks string) (*models.LeaveApplication, error) {
	var remarksPtr *string
	if remarks != "" {
		remarksPtr = &remarks
	}

	ok, err := s.apps.UpdateStatus(ctx, app.ID, app.Status, next, forwardRole, forwardPersonID, remarksPtr)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply workflow transition")
	}
	if !ok {
		current, reloadErr := s.find(ctx, app.ID)
		if reloadErr != nil {
			return nil, reloadErr
		}
		if current.Status.IsTerminal() {
			return nil, appErrors.Clone(appErrors.ErrAlreadyFinalized,
				fmt.Sprintf("application is already %s", current.Status))
		}
		return nil, appErrors.Clone(appErrors.ErrStaleState, "")
	}
	return s.find(ctx, app.ID)
}

// refund credits back the submission debits after a rejection. Refund
// failures are logged, not surfaced: the rejection itself has committed.
func (s *LeaveWorkflowService) refund(ctx context.Context, app *models.LeaveApplication) {
	for _, leaveType := range app.SelectedTypes {
		if err := s.ledger.Credit(ctx, app.EmployeeID, leaveType, app.Days); err != nil {
			s.metrics.RecordLedgerOperation("credit", "failed")
			s.logger.Error("failed to refund rejected application",
				zap.String("application_id", app.ID),
				zap.String("leave_type", leaveType),
				zap.Float64("days", app.Days),
				zap.Error(err))
			continue
		}
		s.metrics.RecordLedgerOperation("credit", "applied")
	}
	s.cache.Invalidate(ctx, balanceCacheKey(app.EmployeeID))
}

func (s *LeaveWorkflowService) find(ctx context.Context, id string) (*models.LeaveApplication, error) {
	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		return nil, normalizeFindError(err)
	}
	return app, nil
}
