package models

import "time"

// UserRole represents the organizational role of a portal user.
type UserRole string

const (
	RoleFaculty UserRole = "faculty"
	RoleHOD     UserRole = "hod"
	RoleHR      UserRole = "hr"
	RoleDean    UserRole = "dean"
	RoleVC      UserRole = "vc"
	RoleAdmin   UserRole = "admin"
)

// ApproverRoles are the roles eligible to receive a forwarded application.
var ApproverRoles = []UserRole{RoleHOD, RoleHR, RoleDean, RoleVC}

// IsApproverRole reports whether role may hold a forwarded application.
func IsApproverRole(role UserRole) bool {
	for _, r := range ApproverRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a portal user stored in the users table. Faculty and the
// approving roles share this table; the role column doubles as the routing
// directory.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Department   string     `db:"department" json:"department"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// PersonRef is a routing directory entry for forward targets.
type PersonRef struct {
	ID       string   `db:"id" json:"id"`
	FullName string   `db:"full_name" json:"full_name"`
	Role     UserRole `db:"role" json:"role"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
