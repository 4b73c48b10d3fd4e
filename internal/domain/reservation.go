package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusFulfilled ReservationStatus = "fulfilled"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusCancelled || s == ReservationStatusExpired
}

// Reservation is a patron's place in line for a book, or the time-boxed hold
// it turns into once a copy frees up.
type Reservation struct {
	ID     string
	UserID string
	BookID string
	Status ReservationStatus
	// QueuePosition is the 1-based FIFO rank among active reservations for
	// the book. Zero outside the active state (stored as NULL).
	QueuePosition int
	ReservedAt    time.Time
	NotifiedAt    *time.Time
	FulfilledAt   *time.Time
	ExpiresAt     *time.Time
}

// HoldExpired reports whether a fulfilled reservation's pickup window has
// passed as of now.
func (r Reservation) HoldExpired(now time.Time) bool {
	return r.Status == ReservationStatusFulfilled && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}
