package dto

// ClassAdjustmentPayload is one class coverage row on a submission.
type ClassAdjustmentPayload struct {
	Course           string `json:"course" validate:"required"`
	Branch           string `json:"branch" validate:"required"`
	Semester         string `json:"semester" validate:"required"`
	Subject          string `json:"subject" validate:"required"`
	ClassTiming      string `json:"class_timing" validate:"required"`
	ConcernedTeacher string `json:"concerned_teacher" validate:"required"`
}

// SubmitLeaveRequest is the payload for creating a leave application.
// Dates are calendar days in ISO form (2006-01-02).
type SubmitLeaveRequest struct {
	SelectedTypes      []string                 `json:"selected_types" validate:"required,min=1,max=2"`
	FromDate           string                   `json:"from_date" validate:"required,datetime=2006-01-02"`
	ToDate             string                   `json:"to_date" validate:"required,datetime=2006-01-02"`
	IsHalfDay          bool                     `json:"is_half_day"`
	Reason             string                   `json:"reason" validate:"required"`
	ContactDuringLeave string                   `json:"contact_during_leave" validate:"required,max=15"`
	AddressDuringLeave string                   `json:"address_during_leave"`
	ForwardToRole      string                   `json:"forward_to_role" validate:"required"`
	ForwardToPersonID  string                   `json:"forward_to_person_id" validate:"required"`
	ClassAdjustments   []ClassAdjustmentPayload `json:"class_adjustments"`
}

// DecisionRequest carries approver remarks for approve/reject actions.
type DecisionRequest struct {
	Remarks string `json:"remarks"`
}

// ForwardRequest escalates an application to a new holder.
type ForwardRequest struct {
	Role     string `json:"role" validate:"required"`
	PersonID string `json:"person_id" validate:"required"`
}
