package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/prabandh/portal-api/internal/models"
	appErrors "github.com/prabandh/portal-api/pkg/errors"
)

type routingRepository interface {
	ListPeople(ctx context.Context, role models.UserRole) ([]models.PersonRef, error)
	Exists(ctx context.Context, role models.UserRole, personID string) (bool, error)
}

// RoutingService exposes the approver directory used to address forwards.
type RoutingService struct {
	repo   routingRepository
	logger *zap.Logger
}

// NewRoutingService constructs a RoutingService.
func NewRoutingService(repo routingRepository, logger *zap.Logger) *RoutingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoutingService{repo: repo, logger: logger}
}

// ListRoles returns the approver roles an application can be forwarded to.
func (s *RoutingService) ListRoles() []models.UserRole {
	roles := make([]models.UserRole, len(models.ApproverRoles))
	copy(roles, models.ApproverRoles)
	return roles
}

// ListPeople returns the active roster for an approver role.
func (s *RoutingService) ListPeople(ctx context.Context, role models.UserRole) ([]models.PersonRef, error) {
	if !models.IsApproverRole(role) {
		return nil, appErrors.Clone(appErrors.ErrUnknownRoutingTarget, fmt.Sprintf("%q is not an approver role", role))
	}
	people, err := s.repo.ListPeople(ctx, role)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvers")
	}
	return people, nil
}

// Resolve verifies a forward target. An empty personID addresses the role as
// a whole; a non-empty one must name an active member of that role's roster.
func (s *RoutingService) Resolve(ctx context.Context, role models.UserRole, personID string) error {
	if !models.IsApproverRole(role) {
		return appErrors.Clone(appErrors.ErrUnknownRoutingTarget, fmt.Sprintf("%q is not an approver role", role))
	}
	if personID == "" {
		return nil
	}
	ok, err := s.repo.Exists(ctx, role, personID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve forward target")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrUnknownRoutingTarget,
			fmt.Sprintf("person %s is not an active %s", personID, role))
	}
	return nil
}
