package models

import (
	"time"

	"github.com/lib/pq"
)

// ApplicationStatus is the lifecycle state of a leave application.
type ApplicationStatus string

const (
	StatusPending         ApplicationStatus = "pending"
	StatusForwardedToHOD  ApplicationStatus = "forwarded_to_hod"
	StatusForwardedToHR   ApplicationStatus = "forwarded_to_hr"
	StatusForwardedToDean ApplicationStatus = "forwarded_to_dean"
	StatusForwardedToVC   ApplicationStatus = "forwarded_to_vc"
	StatusApproved        ApplicationStatus = "approved"
	StatusApprovedByHR    ApplicationStatus = "approved_by_hr"
	StatusRejected        ApplicationStatus = "rejected"
	StatusRejectedByHR    ApplicationStatus = "rejected_by_hr"
)

// IsTerminal reports whether no further transitions are permitted.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusApprovedByHR, StatusRejected, StatusRejectedByHR:
		return true
	}
	return false
}

// IsRejected reports whether the status is a rejecting terminal state.
func (s ApplicationStatus) IsRejected() bool {
	return s == StatusRejected || s == StatusRejectedByHR
}

// ForwardedStatusForRole maps an approver role to its awaiting-decision state.
func ForwardedStatusForRole(role UserRole) (ApplicationStatus, bool) {
	switch role {
	case RoleHOD:
		return StatusForwardedToHOD, true
	case RoleHR:
		return StatusForwardedToHR, true
	case RoleDean:
		return StatusForwardedToDean, true
	case RoleVC:
		return StatusForwardedToVC, true
	}
	return "", false
}

// LeaveApplication is one submitted leave request. Terminal applications are
// retained for audit; rows are never deleted.
type LeaveApplication struct {
	ID                  string            `db:"id" json:"id"`
	EmployeeID          string            `db:"employee_id" json:"employee_id"`
	SelectedTypes       pq.StringArray    `db:"selected_types" json:"selected_types"`
	FromDate            time.Time         `db:"from_date" json:"from_date"`
	ToDate              time.Time         `db:"to_date" json:"to_date"`
	IsHalfDay           bool              `db:"is_half_day" json:"is_half_day"`
	Days                float64           `db:"days" json:"days"`
	Reason              string            `db:"reason" json:"reason"`
	ContactDuringLeave  string            `db:"contact_during_leave" json:"contact_during_leave"`
	AddressDuringLeave  string            `db:"address_during_leave" json:"address_during_leave"`
	ForwardToRole       UserRole          `db:"forward_to_role" json:"forward_to_role"`
	ForwardToPersonID   string            `db:"forward_to_person_id" json:"forward_to_person_id"`
	Status              ApplicationStatus `db:"status" json:"status"`
	Remarks             *string           `db:"remarks" json:"remarks,omitempty"`
	AppliedOn           time.Time         `db:"applied_on" json:"applied_on"`
	UpdatedOn           time.Time         `db:"updated_on" json:"updated_on"`
	ClassAdjustments    []ClassAdjustment `db:"-" json:"class_adjustments"`
}

// HolderMatches reports whether the actor is the current designated holder.
// A concrete person pin takes precedence; when the application is addressed
// to a role without a person (auto-advance to HR), any actor in that role
// may act.
func (a *LeaveApplication) HolderMatches(actorID string, actorRole UserRole) bool {
	if a.ForwardToPersonID != "" {
		return a.ForwardToPersonID == actorID
	}
	return a.ForwardToRole == actorRole
}

// ClassAdjustment records a class coverage arrangement attached to a leave
// application. Purely descriptive; cascade-deleted with the application.
type ClassAdjustment struct {
	ID               string `db:"id" json:"id"`
	ApplicationID    string `db:"application_id" json:"-"`
	Course           string `db:"course" json:"course"`
	Branch           string `db:"branch" json:"branch"`
	Semester         string `db:"semester" json:"semester"`
	Subject          string `db:"subject" json:"subject"`
	ClassTiming      string `db:"class_timing" json:"class_timing"`
	ConcernedTeacher string `db:"concerned_teacher" json:"concerned_teacher"`
}

// ApplicationFilter captures list criteria for leave applications.
type ApplicationFilter struct {
	EmployeeID string
	Statuses   []ApplicationStatus
	// HolderPersonID/HolderRole select the actor's pending-decision queue:
	// applications addressed to the person, or to the role with no person.
	HolderPersonID string
	HolderRole     UserRole
	Page           int
	PageSize       int
}
