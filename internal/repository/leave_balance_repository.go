package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prabandh/portal-api/internal/models"
	appErrors "github.com/prabandh/portal-api/pkg/errors"
)

// LeaveBalanceRepository is the balance ledger. All mutations are single
// conditional statements so the database row lock serializes concurrent
// writers per (employee, leave type).
type LeaveBalanceRepository struct {
	db *sqlx.DB
}

// NewLeaveBalanceRepository constructs the repository.
func NewLeaveBalanceRepository(db *sqlx.DB) *LeaveBalanceRepository {
	return &LeaveBalanceRepository{db: db}
}

// Provision inserts default allocation rows for an employee. Idempotent:
// existing rows are left untouched.
func (r *LeaveBalanceRepository) Provision(ctx context.Context, employeeID string) error {
	const query = `INSERT INTO leave_balances (employee_id, leave_type, total, used, created_at, updated_at)
        VALUES ($1, $2, $3, 0, NOW(), NOW())
        ON CONFLICT (employee_id, leave_type) DO NOTHING`
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provision: %w", err)
	}
	for _, entry := range models.LeaveTypeCatalog {
		if _, err := tx.ExecContext(ctx, query, employeeID, entry.ID, entry.DefaultAllocation); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("provision %s balance: %w", entry.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit provision: %w", err)
	}
	return nil
}

// Remaining returns the undrawn balance for one type.
func (r *LeaveBalanceRepository) Remaining(ctx context.Context, employeeID, leaveType string) (float64, error) {
	const query = `SELECT total - used FROM leave_balances WHERE employee_id = $1 AND leave_type = $2`
	var remaining float64
	if err := r.db.GetContext(ctx, &remaining, query, employeeID, leaveType); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErrors.Clone(appErrors.ErrNotFound, "leave balance not provisioned")
		}
		return 0, fmt.Errorf("read remaining balance: %w", err)
	}
	return remaining, nil
}

// Snapshot returns all balance rows for an employee.
func (r *LeaveBalanceRepository) Snapshot(ctx context.Context, employeeID string) ([]models.LeaveBalance, error) {
	const query = `SELECT employee_id, leave_type, total, used, created_at, updated_at
        FROM leave_balances WHERE employee_id = $1 ORDER BY leave_type`
	var balances []models.LeaveBalance
	if err := r.db.SelectContext(ctx, &balances, query, employeeID); err != nil {
		return nil, fmt.Errorf("load balance snapshot: %w", err)
	}
	return balances, nil
}

// CheckAndDebit atomically verifies remaining >= amount and consumes it.
// The guard lives in the WHERE clause, so two concurrent debits against a
// near-exhausted balance can never both succeed.
func (r *LeaveBalanceRepository) CheckAndDebit(ctx context.Context, employeeID, leaveType string, amount float64) error {
	const query = `UPDATE leave_balances SET used = used + $3, updated_at = NOW()
        WHERE employee_id = $1 AND leave_type = $2 AND total - used >= $3`
	res, err := r.db.ExecContext(ctx, query, employeeID, leaveType, amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit balance result: %w", err)
	}
	if affected == 0 {
		// Distinguish an exhausted balance from a missing row.
		if _, err := r.Remaining(ctx, employeeID, leaveType); err != nil {
			return err
		}
		return appErrors.Clone(appErrors.ErrInsufficientBalance,
			fmt.Sprintf("insufficient %s balance for %.1f day(s)", leaveType, amount))
	}
	return nil
}

// Credit reverses a prior debit, clamping used at zero.
func (r *LeaveBalanceRepository) Credit(ctx context.Context, employeeID, leaveType string, amount float64) error {
	const query = `UPDATE leave_balances SET used = GREATEST(used - $3, 0), updated_at = NOW()
        WHERE employee_id = $1 AND leave_type = $2`
	if _, err := r.db.ExecContext(ctx, query, employeeID, leaveType, amount); err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}
