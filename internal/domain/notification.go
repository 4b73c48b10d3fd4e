package domain

import "time"

// Notification is an in-app message shown to a patron, created when their
// hold becomes ready for pickup.
type Notification struct {
	ID        string
	UserID    string
	Message   string
	CreatedAt time.Time
	ReadAt    *time.Time
}
