package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prabandh/portal-api/internal/dto"
	"github.com/prabandh/portal-api/internal/models"
	appErrors "github.com/prabandh/portal-api/pkg/errors"
)

// memLedger is a mutex-guarded in-memory balance ledger mirroring the
// conditional-update semantics of the SQL implementation.
type memLedger struct {
	mu       sync.Mutex
	balances map[string]*models.LeaveBalance
	// failDebitFor forces CheckAndDebit to fail for a leave type even when
	// the balance is sufficient, simulating a lost race.
	failDebitFor map[string]bool
}

func newMemLedger() *memLedger {
	return &memLedger{balances: make(map[string]*models.LeaveBalance)}
}

func ledgerKey(employeeID, leaveType string) string {
	return employeeID + "|" + leaveType
}

func (l *memLedger) set(employeeID, leaveType string, total, used float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[ledgerKey(employeeID, leaveType)] = &models.LeaveBalance{
		EmployeeID: employeeID, LeaveType: leaveType, Total: total, Used: used,
	}
}

func (l *memLedger) Provision(ctx context.Context, employeeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range models.LeaveTypeCatalog {
		key := ledgerKey(employeeID, entry.ID)
		if _, ok := l.balances[key]; !ok {
			l.balances[key] = &models.LeaveBalance{
				EmployeeID: employeeID, LeaveType: entry.ID, Total: entry.DefaultAllocation,
			}
		}
	}
	return nil
}

func (l *memLedger) Remaining(ctx context.Context, employeeID, leaveType string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[ledgerKey(employeeID, leaveType)]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "leave balance not provisioned")
	}
	return b.Remaining(), nil
}

func (l *memLedger) Snapshot(ctx context.Context, employeeID string) ([]models.LeaveBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.LeaveBalance
	for _, b := range l.balances {
		if b.EmployeeID == employeeID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (l *memLedger) CheckAndDebit(ctx context.Context, employeeID, leaveType string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failDebitFor[leaveType] {
		return appErrors.Clone(appErrors.ErrInsufficientBalance, "")
	}
	b, ok := l.balances[ledgerKey(employeeID, leaveType)]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "leave balance not provisioned")
	}
	if b.Remaining() < amount {
		return appErrors.Clone(appErrors.ErrInsufficientBalance,
			fmt.Sprintf("insufficient %s balance for %.1f day(s)", leaveType, amount))
	}
	b.Used += amount
	return nil
}

func (l *memLedger) Credit(ctx context.Context, employeeID, leaveType string, amount float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.balances[ledgerKey(employeeID, leaveType)]
	if !ok {
		return nil
	}
	b.Used -= amount
	if b.Used < 0 {
		b.Used = 0
	}
	return nil
}

// memAppRepo is an in-memory application store shared by service tests.
type memAppRepo struct {
	mu        sync.Mutex
	apps      map[string]*models.LeaveApplication
	createErr error
}

func newMemAppRepo() *memAppRepo {
	return &memAppRepo{apps: make(map[string]*models.LeaveApplication)}
}

func (r *memAppRepo) Create(ctx context.Context, app *models.LeaveApplication) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	stored := *app
	r.apps[app.ID] = &stored
	return nil
}

func (r *memAppRepo) FindByID(ctx context.Context, id string) (*models.LeaveApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (r *memAppRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LeaveApplication
	for _, app := range r.apps {
		if filter.EmployeeID != "" && app.EmployeeID != filter.EmployeeID {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, s := range filter.Statuses {
				if app.Status == s {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if filter.HolderPersonID != "" {
			if app.ForwardToPersonID != filter.HolderPersonID &&
				!(app.ForwardToPersonID == "" && app.ForwardToRole == filter.HolderRole) {
				continue
			}
		}
		out = append(out, *app)
	}
	return out, len(out), nil
}

func (r *memAppRepo) UpdateStatus(ctx context.Context, id string, expected, next models.ApplicationStatus,
	forwardRole models.UserRole, forwardPersonID string, remarks *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok || app.Status != expected {
		return false, nil
	}
	app.Status = next
	app.ForwardToRole = forwardRole
	app.ForwardToPersonID = forwardPersonID
	if remarks != nil {
		app.Remarks = remarks
	}
	return true, nil
}

type stubResolver struct {
	err error
}

func (s *stubResolver) Resolve(ctx context.Context, role models.UserRole, personID string) error {
	return s.err
}

func newTestLeaveService(apps *memAppRepo, ledger *memLedger, resolveErr error) *LeaveService {
	return NewLeaveService(apps, ledger, &stubResolver{err: resolveErr}, nil, nil, validator.New(), zap.NewNop())
}

func submitRequest() dto.SubmitLeaveRequest {
	return dto.SubmitLeaveRequest{
		SelectedTypes:      []string{models.LeaveTypeCasual},
		FromDate:           "2025-01-10",
		ToDate:             "2025-01-10",
		Reason:             "personal work",
		ContactDuringLeave: "9876543210",
		ForwardToRole:      string(models.RoleHOD),
		ForwardToPersonID:  "hod-1",
	}
}

func TestSubmitHalfDayPairDebitsBothTypes(t *testing.T) {
	ledger := newMemLedger()
	ledger.set("emp-1", models.LeaveTypeCasual, 2, 0)
	ledger.set("emp-1", models.LeaveTypeCompensatory, 8, 0)
	svc := newTestLeaveService(newMemAppRepo(), ledger, nil)

	req := submitRequest()
	req.SelectedTypes = []string{models.LeaveTypeCasual, models.LeaveTypeCompensatory}
	req.IsHalfDay = true

	app, err := svc.Submit(context.Background(), "emp-1", req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, app.Status)
	assert.Equal(t, 0.5, app.Days)

	remaining, err := ledger.Remaining(context.Background(), "emp-1", models.LeaveTypeCasual)
	require.NoError(t, err)
	assert.Equal(t, 1.5, remaining)
	remaining, err = ledger.Remaining(context.Background(), "emp-1", models.LeaveTypeCompensatory)
	require.NoError(t, err)
	assert.Equal(t, 7.5, remaining)
}

func TestSubmitIncompatiblePair(t *testing.T) {
	svc := newTestLeaveService(newMemAppRepo(), newMemLedger(), nil)

	req := submitRequest()
	req.SelectedTypes = []string{models.LeaveTypeCasual, models.LeaveTypeEarned}

	_, err := svc.Submit(context.Background(), "emp-1", req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrIncompatibleCombination.Code, appErr.Code)
}

func TestSubmitInsufficientBalance(t *testing.T) {
	ledger := newMemLedger()
	ledger.set("emp-1", models.LeaveTypeMedical, 12, 12)
	svc := newTestLeaveService(newMemAppRepo(), ledger, nil)

	req := submitRequest()
	req.SelectedTypes = []string{models.LeaveTypeMedical}

	_, err := svc.Submit(context.Background(), "emp-1", req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInsufficientBalance.Code, appErr.Code)
}

func TestSubmitInvalidRange(t *testing.T) {
	svc := newTestLeaveService(newMemAppRepo(), newMemLedger(), nil)

	req := submitRequest()
	req.FromDate = "2025-01-14"
	req.ToDate = "2025-01-10"

	_, err := svc.Submit(context.Background(), "emp-1", req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidRange.Code, appErr.Code)
}

func TestSubmitUnknownRoutingTarget(t *testing.T) {
	svc := newTestLeaveService(newMemAppRepo(), newMemLedger(), appErrors.Clone(appErrors.ErrUnknownRoutingTarget, ""))

	_, err := svc.Submit(context.Background(), "emp-1", submitRequest())
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrUnknownRoutingTarget.Code, appErr.Code)
}

func TestSubmitCompensatesPartialDebit(t *testing.T) {
	ledger := newMemLedger()
	ledger.set("emp-1", models.LeaveTypeCasual, 15, 0)
	ledger.set("emp-1", models.LeaveTypeCompensatory, 8, 0)
	ledger.failDebitFor = map[string]bool{models.LeaveTypeCompensatory: true}
	svc := newTestLeaveService(newMemAppRepo(), ledger, nil)

	req := submitRequest()
	req.SelectedTypes = []string{models.LeaveTypeCasual, models.LeaveTypeCompensatory}

	_, err := svc.Submit(context.Background(), "emp-1", req)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInsufficientBalance.Code, appErr.Code)

	// The first debit must have been credited back.
	remaining, err := ledger.Remaining(context.Background(), "emp-1", models.LeaveTypeCasual)
	require.NoError(t, err)
	assert.Equal(t, 15.0, remaining)
}

func TestSubmitCompensatesOnCreateFailure(t *testing.T) {
	ledger := newMemLedger()
	ledger.set("emp-1", models.LeaveTypeCasual, 15, 0)
	apps := newMemAppRepo()
	apps.createErr = errors.New("db down")
	svc := newTestLeaveService(apps, ledger, nil)

	_, err := svc.Submit(context.Background(), "emp-1", submitRequest())
	require.Error(t, err)

	remaining, err := ledger.Remaining(context.Background(), "emp-1", models.LeaveTypeCasual)
	require.NoError(t, err)
	assert.Equal(t, 15.0, remaining)
}

func TestSubmitConcurrentNoOvercommit(t *testing.T) {
	ledger := newMemLedger()
	ledger.set("emp-1", models.LeaveTypeCasual, 5, 0)
	svc := newTestLeaveService(newMemAppRepo(), ledger, nil)

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Submit(context.Background(), "emp-1", submitRequest())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		}
	}
	// remaining = 5, amount = 1 per submission: exactly 5 may succeed.
	assert.Equal(t, 5, succeeded)

	remaining, err := ledger.Remaining(context.Background(), "emp-1", models.LeaveTypeCasual)
	require.NoError(t, err)
	assert.Equal(t, 0.0, remaining)
}

func TestListScopesFacultyToOwn(t *testing.T) {
	apps := newMemAppRepo()
	require.NoError(t, apps.Create(context.Background(), &models.LeaveApplication{EmployeeID: "emp-1", Status: models.StatusPending}))
	require.NoError(t, apps.Create(context.Background(), &models.LeaveApplication{EmployeeID: "emp-2", Status: models.StatusPending}))
	svc := newTestLeaveService(apps, newMemLedger(), nil)

	claims := &models.JWTClaims{UserID: "emp-1", Role: models.RoleFaculty}
	list, _, err := svc.List(context.Background(), claims, ListOptions{EmployeeID: "emp-2"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "emp-1", list[0].EmployeeID)
}

func TestListQueueRequiresApproverRole(t *testing.T) {
	svc := newTestLeaveService(newMemAppRepo(), newMemLedger(), nil)

	claims := &models.JWTClaims{UserID: "emp-1", Role: models.RoleFaculty}
	_, _, err := svc.List(context.Background(), claims, ListOptions{Queue: true})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestListQueueReturnsHolderApplications(t *testing.T) {
	apps := newMemAppRepo()
	require.NoError(t, apps.Create(context.Background(), &models.LeaveApplication{
		EmployeeID: "emp-1", Status: models.StatusForwardedToHOD,
		ForwardToRole: models.RoleHOD, ForwardToPersonID: "hod-1",
	}))
	require.NoError(t, apps.Create(context.Background(), &models.LeaveApplication{
		EmployeeID: "emp-2", Status: models.StatusForwardedToHR,
		ForwardToRole: models.RoleHR,
	}))
	svc := newTestLeaveService(apps, newMemLedger(), nil)

	hod := &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD}
	list, _, err := svc.List(context.Background(), hod, ListOptions{Queue: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "emp-1", list[0].EmployeeID)

	// Role-addressed applications are visible to any member of the role.
	hr := &models.JWTClaims{UserID: "hr-9", Role: models.RoleHR}
	list, _, err = svc.List(context.Background(), hr, ListOptions{Queue: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "emp-2", list[0].EmployeeID)
}

func TestBalanceSnapshotProvisionsDefaults(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestLeaveService(newMemAppRepo(), ledger, nil)

	snapshot, err := svc.BalanceSnapshot(context.Background(), "emp-1")
	require.NoError(t, err)
	require.Len(t, snapshot, len(models.LeaveTypeCatalog))
	assert.Equal(t, models.BalanceEntry{Total: 15, Used: 0, Remaining: 15}, snapshot[models.LeaveTypeCasual])
	assert.Equal(t, models.BalanceEntry{Total: 12, Used: 0, Remaining: 12}, snapshot[models.LeaveTypeMedical])
}

func TestGetForbiddenForUnrelatedFaculty(t *testing.T) {
	apps := newMemAppRepo()
	app := &models.LeaveApplication{EmployeeID: "emp-1", Status: models.StatusPending, ForwardToRole: models.RoleHOD, ForwardToPersonID: "hod-1"}
	require.NoError(t, apps.Create(context.Background(), app))
	svc := newTestLeaveService(apps, newMemLedger(), nil)

	_, err := svc.Get(context.Background(), app.ID, &models.JWTClaims{UserID: "emp-2", Role: models.RoleFaculty})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Owner, holder, and HR can all read it.
	_, err = svc.Get(context.Background(), app.ID, &models.JWTClaims{UserID: "emp-1", Role: models.RoleFaculty})
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), app.ID, &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD})
	assert.NoError(t, err)
	_, err = svc.Get(context.Background(), app.ID, &models.JWTClaims{UserID: "hr-1", Role: models.RoleHR})
	assert.NoError(t, err)
}
