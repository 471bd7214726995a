package models

import "time"

// LeaveBalance is the per-employee, per-leave-type ledger row. Remaining is
// always total - used; the column set never stores it independently.
type LeaveBalance struct {
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	LeaveType  string    `db:"leave_type" json:"leave_type"`
	Total      float64   `db:"total" json:"total"`
	Used       float64   `db:"used" json:"used"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Remaining returns the undrawn balance.
func (b LeaveBalance) Remaining() float64 {
	return b.Total - b.Used
}

// BalanceEntry is the wire shape of a single type's balance.
type BalanceEntry struct {
	Total     float64 `json:"total"`
	Used      float64 `json:"used"`
	Remaining float64 `json:"remaining"`
}

// BalanceSnapshot maps leave-type id to its balance entry for one employee.
type BalanceSnapshot map[string]BalanceEntry
