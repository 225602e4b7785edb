package domain

import "time"

// UserRole separates administrators from regular members.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// ValidRole reports whether the role is a known value.
func ValidRole(r UserRole) bool {
	return r == UserRoleAdmin || r == UserRoleUser
}

// User is an account that creates, is assigned to, or reports on KPIs.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRef is the reduced user shape embedded in KPI responses.
type UserRef struct {
	ID       string
	Username string
	Email    string
}

// Ref returns the embeddable reference for the user.
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, Email: u.Email}
}
