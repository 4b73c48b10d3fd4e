package app

import (
	"context"
	"time"

	"github.com/openshelf/circulate/internal/clock"
	"github.com/openshelf/circulate/internal/domain"
)

// BookAvailability is the read model served to catalog/UI consumers.
// HeldCopies counts fulfilled holds still inside their pickup window, so the
// checkout path can exclude claimed units from the general pool.
type BookAvailability struct {
	BookID          string
	Available       bool
	AvailableCopies int
	TotalCopies     int
	QueueLength     int
	HeldCopies      int
}

// UserReservation pairs a reservation with its book for display.
type UserReservation struct {
	Reservation domain.Reservation
	Book        domain.Book
}

// BookReservation pairs a reservation with its patron for staff views.
type BookReservation struct {
	Reservation domain.Reservation
	User        domain.User
}

type ProjectionRepository interface {
	GetBook(ctx context.Context, bookID string) (domain.Book, error)
	CountActiveReservations(ctx context.Context, bookID string) (int, error)
	CountOutstandingHolds(ctx context.Context, bookID string, now time.Time) (int, error)
	ListReservationsByUser(ctx context.Context, userID string) ([]UserReservation, error)
	ListReservationsByBook(ctx context.Context, bookID string) ([]BookReservation, error)
}

type ProjectionService struct {
	repo  ProjectionRepository
	clock clock.Clock
}

func NewProjectionService(repo ProjectionRepository, clk clock.Clock) *ProjectionService {
	return &ProjectionService{
		repo:  repo,
		clock: clk,
	}
}

func (s *ProjectionService) GetBookAvailability(ctx context.Context, bookID string) (BookAvailability, error) {
	if bookID == "" {
		return BookAvailability{}, domain.ErrInvalidID
	}

	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		return BookAvailability{}, err
	}
	queueLength, err := s.repo.CountActiveReservations(ctx, bookID)
	if err != nil {
		return BookAvailability{}, err
	}
	held, err := s.repo.CountOutstandingHolds(ctx, bookID, s.clock.Now())
	if err != nil {
		return BookAvailability{}, err
	}

	return BookAvailability{
		BookID:          book.ID,
		Available:       book.AvailableCopies > 0,
		AvailableCopies: book.AvailableCopies,
		TotalCopies:     book.TotalCopies,
		QueueLength:     queueLength,
		HeldCopies:      held,
	}, nil
}

func (s *ProjectionService) GetUserReservations(ctx context.Context, userID string) ([]UserReservation, error) {
	if userID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListReservationsByUser(ctx, userID)
}

func (s *ProjectionService) GetBookReservations(ctx context.Context, bookID string) ([]BookReservation, error) {
	if bookID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListReservationsByBook(ctx, bookID)
}
