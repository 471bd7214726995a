package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prabandh/portal-api/internal/models"
)

// RoutingRepository resolves forward targets against the users table.
type RoutingRepository struct {
	db *sqlx.DB
}

// NewRoutingRepository constructs the repository.
func NewRoutingRepository(db *sqlx.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

// ListPeople returns the active roster for an approver role.
func (r *RoutingRepository) ListPeople(ctx context.Context, role models.UserRole) ([]models.PersonRef, error) {
	const query = `SELECT id, full_name, role FROM users WHERE role = $1 AND active = TRUE ORDER BY full_name`
	var people []models.PersonRef
	if err := r.db.SelectContext(ctx, &people, query, role); err != nil {
		return nil, fmt.Errorf("list people for role %s: %w", role, err)
	}
	return people, nil
}

// Exists reports whether personID is an active member of the role's roster.
func (r *RoutingRepository) Exists(ctx context.Context, role models.UserRole, personID string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE id = $1 AND role = $2 AND active = TRUE`
	var one int
	if err := r.db.GetContext(ctx, &one, query, personID, role); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("resolve routing target: %w", err)
	}
	return true, nil
}
