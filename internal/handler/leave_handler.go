package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prabandh/portal-api/internal/dto"
	"github.com/prabandh/portal-api/internal/models"
	"github.com/prabandh/portal-api/internal/service"
	appErrors "github.com/prabandh/portal-api/pkg/errors"
	"github.com/prabandh/portal-api/pkg/export"
	"github.com/prabandh/portal-api/pkg/response"
)

// LeaveHandler exposes the leave application and workflow endpoints.
type LeaveHandler struct {
	leaves   *service.LeaveService
	workflow *service.LeaveWorkflowService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
}

// NewLeaveHandler constructs the handler.
func NewLeaveHandler(leaves *service.LeaveService, workflow *service.LeaveWorkflowService,
	csv *export.CSVExporter, pdf *export.PDFExporter) *LeaveHandler {
	return &LeaveHandler{leaves: leaves, workflow: workflow, csv: csv, pdf: pdf}
}

// Catalog godoc
// @Summary List leave types
// @Tags Leave
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leave/types [get]
func (h *LeaveHandler) Catalog(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.leaves.Catalog(), nil)
}

// Create godoc
// @Summary Submit a leave application
// @Tags Leave
// @Accept json
// @Produce json
// @Param payload body dto.SubmitLeaveRequest true "Leave application"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /leave/applications [post]
func (h *LeaveHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SubmitLeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid leave application payload"))
		return
	}

	app, err := h.leaves.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, app)
}

// List godoc
// @Summary List leave applications
// @Tags Leave
// @Produce json
// @Param status query string false "Comma-separated statuses"
// @Param employeeId query string false "Employee filter (HR/admin only)"
// @Param queue query bool false "Return the actor's decision queue"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /leave/applications [get]
func (h *LeaveHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	opts := service.ListOptions{
		EmployeeID: c.Query("employeeId"),
		Queue:      c.Query("queue") == "true",
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "pageSize", 20),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				opts.Statuses = append(opts.Statuses, s)
			}
		}
	}

	apps, pagination, err := h.leaves.List(c.Request.Context(), claims, opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, apps, &pagination)
}

// Get godoc
// @Summary Get one leave application
// @Tags Leave
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave/applications/{id} [get]
func (h *LeaveHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.leaves.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// Balance godoc
// @Summary Balance snapshot for an application's employee
// @Tags Leave
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /leave/applications/{id}/balance [get]
func (h *LeaveHandler) Balance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	snapshot, err := h.leaves.BalanceForApplication(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, snapshot, nil)
}

// MyBalances godoc
// @Summary Balance snapshot for the authenticated employee
// @Tags Leave
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /leave/balances/me [get]
func (h *LeaveHandler) MyBalances(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	snapshot, err := h.leaves.BalanceSnapshot(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Approve godoc
// @Summary Approve a leave application
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest false "Approver remarks"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave/applications/{id}/approve [post]
func (h *LeaveHandler) Approve(c *gin.Context) {
	h.decide(c, h.workflow.Approve)
}

// Reject godoc
// @Summary Reject a leave application
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.DecisionRequest false "Approver remarks"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave/applications/{id}/reject [post]
func (h *LeaveHandler) Reject(c *gin.Context) {
	h.decide(c, h.workflow.Reject)
}

func (h *LeaveHandler) decide(c *gin.Context,
	action func(ctx context.Context, id string, claims *models.JWTClaims, remarks string) (*models.LeaveApplication, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
			return
		}
	}

	app, err := action(c.Request.Context(), c.Param("id"), claims, req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// Forward godoc
// @Summary Forward a leave application to a new holder
// @Tags Leave
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.ForwardRequest true "Forward target"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /leave/applications/{id}/forward [post]
func (h *LeaveHandler) Forward(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.ForwardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid forward payload"))
		return
	}

	app, err := h.workflow.Forward(c.Request.Context(), c.Param("id"), claims, models.UserRole(req.Role), req.PersonID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// Export godoc
// @Summary Export all applications as CSV or PDF
// @Tags Leave
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /leave/applications/export [get]
func (h *LeaveHandler) Export(c *gin.Context) {
	dataset, err := h.leaves.ExportDataset(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	stamp := time.Now().UTC().Format("20060102")
	switch c.DefaultQuery("format", "csv") {
	case "pdf":
		payload, err := h.pdf.Render(dataset, "Leave Applications")
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="leave-applications-`+stamp+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", payload)
	case "csv":
		payload, err := h.csv.Render(dataset)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv"))
			return
		}
		c.Header("Content-Disposition", `attachment; filename="leave-applications-`+stamp+`.csv"`)
		c.Data(http.StatusOK, "text/csv", payload)
	default:
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf"))
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
