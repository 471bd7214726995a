package models

// LeaveTypeEntry is one row of the static leave-type catalog.
type LeaveTypeEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	// DefaultAllocation is the yearly allocation provisioned for a new
	// employee, in days.
	DefaultAllocation float64 `json:"default_allocation"`
}

// Leave type identifiers.
const (
	LeaveTypeCasual        = "casual"
	LeaveTypeMedical       = "medical"
	LeaveTypeCompensatory  = "compensatory"
	LeaveTypeEarned        = "earned"
	LeaveTypeSemester      = "semester"
	LeaveTypeMaternity     = "maternity"
	LeaveTypePaternity     = "paternity"
	LeaveTypeExtraordinary = "extraordinary"
	LeaveTypeAcademic      = "academic"
	LeaveTypeHalfPay       = "half_pay"
	LeaveTypeDuty          = "duty"
)

// LeaveTypeCatalog lists every leave type with its label and the allocation
// HR provisions by default. Loaded once, never mutated.
var LeaveTypeCatalog = []LeaveTypeEntry{
	{ID: LeaveTypeCasual, Label: "Casual Leave", DefaultAllocation: 15},
	{ID: LeaveTypeMedical, Label: "Medical Leave", DefaultAllocation: 12},
	{ID: LeaveTypeCompensatory, Label: "Compensatory Leave", DefaultAllocation: 8},
	{ID: LeaveTypeEarned, Label: "Earned Leave", DefaultAllocation: 15},
	{ID: LeaveTypeSemester, Label: "Semester Break", DefaultAllocation: 5},
	{ID: LeaveTypeMaternity, Label: "Maternity Leave", DefaultAllocation: 15},
	{ID: LeaveTypePaternity, Label: "Paternity Leave", DefaultAllocation: 0},
	{ID: LeaveTypeExtraordinary, Label: "Extraordinary Leave", DefaultAllocation: 15},
	{ID: LeaveTypeAcademic, Label: "Academic Leave", DefaultAllocation: 5},
	{ID: LeaveTypeHalfPay, Label: "Half Pay Leave", DefaultAllocation: 5},
	{ID: LeaveTypeDuty, Label: "Duty Leave", DefaultAllocation: 15},
}

// SanctionedPairs are the only two leave-type combinations allowed on a
// single application. No type appears in more than one pair.
var SanctionedPairs = [][2]string{
	{LeaveTypeCasual, LeaveTypeCompensatory},
	{LeaveTypeEarned, LeaveTypeMedical},
}

var leaveTypeIndex = func() map[string]LeaveTypeEntry {
	idx := make(map[string]LeaveTypeEntry, len(LeaveTypeCatalog))
	for _, entry := range LeaveTypeCatalog {
		idx[entry.ID] = entry
	}
	return idx
}()

// LeaveTypeByID looks up a catalog entry.
func LeaveTypeByID(id string) (LeaveTypeEntry, bool) {
	entry, ok := leaveTypeIndex[id]
	return entry, ok
}

// IsSanctionedPair reports whether the two types form a sanctioned pair,
// in either order.
func IsSanctionedPair(a, b string) bool {
	for _, pair := range SanctionedPairs {
		if (pair[0] == a && pair[1] == b) || (pair[0] == b && pair[1] == a) {
			return true
		}
	}
	return false
}
