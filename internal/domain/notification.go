package domain

import "time"

// NotificationTypeInApp is the only delivery channel currently supported.
const NotificationTypeInApp = "in-app"

// Notification is a feed entry for a single recipient. Only IsRead mutates
// after creation; retention is out of scope.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	Type      string
	IsRead    bool
	CreatedAt time.Time
}
