package domain

import "time"

// Activity log actions recorded on every reservation state transition.
const (
	ActivityReservationCreated   = "reservation_created"
	ActivityReservationCancelled = "reservation_cancelled"
	ActivityReservationFulfilled = "reservation_fulfilled"
	ActivityReservationExpired   = "reservation_expired"
)

// ActivityEntry is an append-only audit record. Entries are never updated or
// deleted.
type ActivityEntry struct {
	ID            string
	UserID        string
	ReservationID string
	Action        string
	Detail        string
	CreatedAt     time.Time
}
