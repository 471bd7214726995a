package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prabandh/portal-api/internal/models"
	"github.com/prabandh/portal-api/internal/service"
	"github.com/prabandh/portal-api/pkg/response"
)

// RoutingHandler exposes the approver directory.
type RoutingHandler struct {
	routing *service.RoutingService
}

// NewRoutingHandler constructs the handler.
func NewRoutingHandler(routing *service.RoutingService) *RoutingHandler {
	return &RoutingHandler{routing: routing}
}

// Roles godoc
// @Summary List approver roles
// @Tags Routing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /routing/roles [get]
func (h *RoutingHandler) Roles(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.routing.ListRoles(), nil)
}

// People godoc
// @Summary List people eligible to receive a forward in a role
// @Tags Routing
// @Produce json
// @Param role path string true "Approver role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /routing/roles/{role}/people [get]
func (h *RoutingHandler) People(c *gin.Context) {
	people, err := h.routing.ListPeople(c.Request.Context(), models.UserRole(c.Param("role")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, people, nil)
}
