package domain

// AuthContext is the resolved identity a request carries into core
// operations. Role checks happen against this, never against raw request
// fields.
type AuthContext struct {
	UserID   string
	Username string
	Role     UserRole
}

// IsAdmin reports whether the caller holds the admin role.
func (a AuthContext) IsAdmin() bool {
	return a.Role == UserRoleAdmin
}
