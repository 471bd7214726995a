package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/prabandh/portal-api/internal/models"
)

// LeaveApplicationRepository handles persistence of leave applications and
// their class adjustments.
type LeaveApplicationRepository struct {
	db *sqlx.DB
}

// NewLeaveApplicationRepository constructs the repository.
func NewLeaveApplicationRepository(db *sqlx.DB) *LeaveApplicationRepository {
	return &LeaveApplicationRepository{db: db}
}

const applicationColumns = `id, employee_id, selected_types, from_date, to_date, is_half_day, days, reason,
        contact_during_leave, address_during_leave, forward_to_role, forward_to_person_id, status, remarks,
        applied_on, updated_on`

// Create persists the application and its adjustments in one transaction.
func (r *LeaveApplicationRepository) Create(ctx context.Context, app *models.LeaveApplication) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if app.AppliedOn.IsZero() {
		app.AppliedOn = now
	}
	app.UpdatedOn = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create application: %w", err)
	}
	const insertApp = `INSERT INTO leave_applications (id, employee_id, selected_types, from_date, to_date, is_half_day,
        days, reason, contact_during_leave, address_during_leave, forward_to_role, forward_to_person_id, status,
        remarks, applied_on, updated_on)
        VALUES (:id, :employee_id, :selected_types, :from_date, :to_date, :is_half_day, :days, :reason,
        :contact_during_leave, :address_during_leave, :forward_to_role, :forward_to_person_id, :status,
        :remarks, :applied_on, :updated_on)`
	if _, err := tx.NamedExecContext(ctx, insertApp, app); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("create application: %w", err)
	}

	const insertAdj = `INSERT INTO class_adjustments (id, application_id, course, branch, semester, subject, class_timing, concerned_teacher)
        VALUES (:id, :application_id, :course, :branch, :semester, :subject, :class_timing, :concerned_teacher)`
	for i := range app.ClassAdjustments {
		if app.ClassAdjustments[i].ID == "" {
			app.ClassAdjustments[i].ID = uuid.NewString()
		}
		app.ClassAdjustments[i].ApplicationID = app.ID
		if _, err := tx.NamedExecContext(ctx, insertAdj, app.ClassAdjustments[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("create class adjustment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create application: %w", err)
	}
	return nil
}

// FindByID returns an application with its class adjustments.
func (r *LeaveApplicationRepository) FindByID(ctx context.Context, id string) (*models.LeaveApplication, error) {
	query := fmt.Sprintf(`SELECT %s FROM leave_applications WHERE id = $1`, applicationColumns)
	var app models.LeaveApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	adjustments, err := r.listAdjustments(ctx, id)
	if err != nil {
		return nil, err
	}
	app.ClassAdjustments = adjustments
	return &app, nil
}

func (r *LeaveApplicationRepository) listAdjustments(ctx context.Context, applicationID string) ([]models.ClassAdjustment, error) {
	const query = `SELECT id, application_id, course, branch, semester, subject, class_timing, concerned_teacher
        FROM class_adjustments WHERE application_id = $1 ORDER BY id`
	var adjustments []models.ClassAdjustment
	if err := r.db.SelectContext(ctx, &adjustments, query, applicationID); err != nil {
		return nil, fmt.Errorf("list class adjustments: %w", err)
	}
	return adjustments, nil
}

// List returns applications matching the filter, newest first.
func (r *LeaveApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.LeaveApplication, int, error) {
	var conditions []string
	var args []interface{}

	if filter.EmployeeID != "" {
		conditions = append(conditions, fmt.Sprintf("employee_id = $%d", len(args)+1))
		args = append(args, filter.EmployeeID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.StringArray(statuses))
	}
	if filter.HolderPersonID != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(forward_to_person_id = $%d OR (forward_to_person_id = '' AND forward_to_role = $%d))",
			len(args)+1, len(args)+2))
		args = append(args, filter.HolderPersonID, filter.HolderRole)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM leave_applications%s ORDER BY applied_on DESC LIMIT %d OFFSET %d`,
		applicationColumns, clause, size, offset)
	var apps []models.LeaveApplication
	if err := r.db.SelectContext(ctx, &apps, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM leave_applications" + clause
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return apps, total, nil
}

// UpdateStatus applies a workflow transition guarded by the expected current
// status. Returns false when no row matched, meaning the application moved
// concurrently; the caller decides between AlreadyFinalized and StaleState.
func (r *LeaveApplicationRepository) UpdateStatus(ctx context.Context, id string, expected, next models.ApplicationStatus,
	forwardRole models.UserRole, forwardPersonID string, remarks *string) (bool, error) {
	const query = `UPDATE leave_applications
        SET status = $3, forward_to_role = $4, forward_to_person_id = $5,
            remarks = COALESCE($6, remarks), updated_on = NOW()
        WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, expected, next, forwardRole, forwardPersonID, remarks)
	if err != nil {
		return false, fmt.Errorf("update application status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update application status result: %w", err)
	}
	return affected == 1, nil
}
