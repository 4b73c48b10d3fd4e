package app

import (
	"context"
	"time"

	"github.com/openshelf/circulate/internal/domain"
)

// promoteNext moves the earliest active reservation for the book into the
// fulfilled state when a copy is free. The caller must already hold the book
// row lock. A copy counts as free only when available_copies exceeds the
// holds still awaiting pickup, so one copy is never promised to two patrons.
func promoteNext(ctx context.Context, repo ReservationRepository, book domain.Book, now time.Time, ttl time.Duration) (*domain.Reservation, error) {
	if book.AvailableCopies < 1 {
		return nil, nil
	}
	held, err := repo.CountOutstandingHolds(ctx, book.ID, now)
	if err != nil {
		return nil, err
	}
	if book.AvailableCopies-held < 1 {
		return nil, nil
	}

	next, err := repo.NextActiveReservation(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	res := *next
	fulfillHold(&res, now, ttl)
	if err := repo.UpdateReservation(ctx, res); err != nil {
		return nil, err
	}
	if err := renumberQueue(ctx, repo, book.ID); err != nil {
		return nil, err
	}
	if err := repo.AppendActivity(ctx, domain.ActivityEntry{
		ID:            newID(),
		UserID:        res.UserID,
		ReservationID: res.ID,
		Action:        domain.ActivityReservationFulfilled,
		Detail:        "promoted from queue, copy ready for pickup",
		CreatedAt:     now,
	}); err != nil {
		return nil, err
	}
	return &res, nil
}

// fulfillHold applies the active -> fulfilled transition in place.
func fulfillHold(res *domain.Reservation, now time.Time, ttl time.Duration) {
	expires := now.Add(ttl)
	res.Status = domain.ReservationStatusFulfilled
	res.QueuePosition = 0
	res.NotifiedAt = &now
	res.FulfilledAt = &now
	res.ExpiresAt = &expires
}

// renumberQueue reassigns contiguous 1..N positions to the book's active
// reservations in (queue_position, reserved_at) order, writing only rows
// whose position changed. Must run inside the mutation's transaction.
func renumberQueue(ctx context.Context, repo ReservationRepository, bookID string) error {
	active, err := repo.ListActiveReservations(ctx, bookID)
	if err != nil {
		return err
	}
	for i, res := range active {
		want := i + 1
		if res.QueuePosition == want {
			continue
		}
		if err := repo.UpdateQueuePosition(ctx, res.ID, want); err != nil {
			return err
		}
	}
	return nil
}
