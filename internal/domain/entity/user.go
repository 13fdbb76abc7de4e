package entity

import "time"

// Role identifies what a user is allowed to do in the lifecycle
type Role string

const (
	RoleAnnotator Role = "annotator"
	RoleReviewer  Role = "reviewer"
	RoleAdmin     Role = "admin"
)

// IsValid returns true if the role is one of the defined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleAnnotator, RoleReviewer, RoleAdmin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// User is a participant in the lifecycle. Credentials live with the authentication collaborator.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
