package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prabandh/portal-api/internal/dto"
	"github.com/prabandh/portal-api/internal/middleware"
	"github.com/prabandh/portal-api/internal/models"
	"github.com/prabandh/portal-api/internal/service"
	"github.com/prabandh/portal-api/pkg/export"
)

// fakeAppRepo is a minimal in-memory application store.
type fakeAppRepo struct {
	mu   sync.Mutex
	apps map[string]*models.LeaveApplication
}

func newFakeAppRepo() *fakeAppRepo {
	return &fakeAppRepo{apps: make(map[string]*models.LeaveApplication)}
}

func (r *fakeAppRepo) Create(ctx context.Context, app *models.LeaveApplication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	stored := *app
	r.apps[app.ID] = &stored
	return nil
}

func (r *fakeAppRepo) FindByID(ctx context.Context, id string) (*models.LeaveApplication, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *app
	return &copied, nil
}

func (r *fakeAppRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.LeaveApplication
	for _, app := range r.apps {
		if filter.EmployeeID != "" && app.EmployeeID != filter.EmployeeID {
			continue
		}
		out = append(out, *app)
	}
	return out, len(out), nil
}

func (r *fakeAppRepo) UpdateStatus(ctx context.Context, id string, expected, next models.ApplicationStatus,
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

// fakeLedger always has a generous balance.
type fakeLedger struct{}

func (fakeLedger) Provision(ctx context.Context, employeeID string) error { return nil }
func (fakeLedger) Remaining(ctx context.Context, employeeID, leaveType string) (float64, error) {
	return 15, nil
}
func (fakeLedger) Snapshot(ctx context.Context, employeeID string) ([]models.LeaveBalance, error) {
	return []models.LeaveBalance{{EmployeeID: employeeID, LeaveType: models.LeaveTypeCasual, Total: 15, Used: 0}}, nil
}
func (fakeLedger) CheckAndDebit(ctx context.Context, employeeID, leaveType string, amount float64) error {
	return nil
}
func (fakeLedger) Credit(ctx context.Context, employeeID, leaveType string, amount float64) error {
	return nil
}

type fakeResolver struct{}

func (fakeResolver) Resolve(ctx context.Context, role models.UserRole, personID string) error {
	return nil
}

func newTestLeaveHandler(apps *fakeAppRepo) *LeaveHandler {
	leaves := service.NewLeaveService(apps, fakeLedger{}, fakeResolver{}, nil, nil, nil, zap.NewNop())
	workflow := service.NewLeaveWorkflowService(apps, fakeLedger{}, fakeResolver{}, nil, nil, zap.NewNop(),
		service.WorkflowConfig{RefundOnReject: true})
	return NewLeaveHandler(leaves, workflow, export.NewCSVExporter(), export.NewPDFExporter())
}

func jsonRequest(method, target string, payload interface{}) *http.Request {
	var body bytes.Buffer
	if payload != nil {
		_ = json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLeaveHandlerCreateReturns201(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestLeaveHandler(newFakeAppRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/leave/applications", dto.SubmitLeaveRequest{
		SelectedTypes:      []string{models.LeaveTypeCasual},
		FromDate:           "2025-01-10",
		ToDate:             "2025-01-10",
		Reason:             "personal work",
		ContactDuringLeave: "9876543210",
		ForwardToRole:      string(models.RoleHOD),
		ForwardToPersonID:  "hod-1",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleFaculty})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestLeaveHandlerCreateIncompatiblePairReturns400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestLeaveHandler(newFakeAppRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/leave/applications", dto.SubmitLeaveRequest{
		SelectedTypes:      []string{models.LeaveTypeCasual, models.LeaveTypeEarned},
		FromDate:           "2025-01-10",
		ToDate:             "2025-01-10",
		Reason:             "personal work",
		ContactDuringLeave: "9876543210",
		ForwardToRole:      string(models.RoleHOD),
		ForwardToPersonID:  "hod-1",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "emp-1", Role: models.RoleFaculty})

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "INCOMPATIBLE_COMBINATION", envelope.Error.Code)
}

func TestLeaveHandlerCreateWithoutClaimsReturns401(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestLeaveHandler(newFakeAppRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/leave/applications", nil)

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLeaveHandlerApproveFinalizedReturns409(t *testing.T) {
	gin.SetMode(gin.TestMode)
	apps := newFakeAppRepo()
	app := &models.LeaveApplication{
		EmployeeID:        "emp-1",
		Status:            models.StatusApproved,
		ForwardToRole:     models.RoleDean,
		ForwardToPersonID: "dean-1",
	}
	require.NoError(t, apps.Create(context.Background(), app))
	handler := newTestLeaveHandler(apps)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/leave/applications/"+app.ID+"/approve", dto.DecisionRequest{Remarks: "ok"})
	c.Params = gin.Params{{Key: "id", Value: app.ID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "dean-1", Role: models.RoleDean})

	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "ALREADY_FINALIZED", envelope.Error.Code)
}

func TestLeaveHandlerRejectByHolderReturns200(t *testing.T) {
	gin.SetMode(gin.TestMode)
	apps := newFakeAppRepo()
	app := &models.LeaveApplication{
		EmployeeID:        "emp-1",
		SelectedTypes:     []string{models.LeaveTypeCasual},
		Days:              1,
		Status:            models.StatusForwardedToDean,
		ForwardToRole:     models.RoleDean,
		ForwardToPersonID: "dean-1",
	}
	require.NoError(t, apps.Create(context.Background(), app))
	handler := newTestLeaveHandler(apps)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/leave/applications/"+app.ID+"/reject", dto.DecisionRequest{Remarks: "denied"})
	c.Params = gin.Params{{Key: "id", Value: app.ID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "dean-1", Role: models.RoleDean})

	handler.Reject(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	stored, err := apps.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, stored.Status)
}

func TestLeaveHandlerForwardUnknownApplicationReturns404(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestLeaveHandler(newFakeAppRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/leave/applications/missing/forward", dto.ForwardRequest{
		Role:     string(models.RoleDean),
		PersonID: "dean-1",
	})
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD})

	handler.Forward(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaveHandlerForwardWithoutPersonReturns400(t *testing.T) {
	gin.SetMode(gin.TestMode)
	apps := newFakeAppRepo()
	app := &models.LeaveApplication{
		EmployeeID:        "emp-1",
		Status:            models.StatusPending,
		ForwardToRole:     models.RoleHOD,
		ForwardToPersonID: "hod-1",
	}
	require.NoError(t, apps.Create(context.Background(), app))
	handler := newTestLeaveHandler(apps)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = jsonRequest(http.MethodPost, "/leave/applications/"+app.ID+"/forward", map[string]string{
		"role": string(models.RoleDean),
	})
	c.Params = gin.Params{{Key: "id", Value: app.ID}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "hod-1", Role: models.RoleHOD})

	handler.Forward(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "UNKNOWN_ROUTING_TARGET", envelope.Error.Code)

	stored, err := apps.FindByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
}

func TestLeaveHandlerCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newTestLeaveHandler(newFakeAppRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/leave/types", nil)

	handler.Catalog(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []models.LeaveTypeEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, len(models.LeaveTypeCatalog))
}

func TestLeaveHandlerExportCSV(t *testing.T) {
	gin.SetMode(gin.TestMode)
	apps := newFakeAppRepo()
	require.NoError(t, apps.Create(context.Background(), &models.LeaveApplication{
		EmployeeID:    "emp-1",
		SelectedTypes: []string{models.LeaveTypeCasual},
		Days:          1,
		Status:        models.StatusPending,
	}))
	handler := newTestLeaveHandler(apps)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/leave/applications/export?format=csv", nil)

	handler.Export(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "emp-1")
}
