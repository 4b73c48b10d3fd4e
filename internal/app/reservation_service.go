package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openshelf/circulate/internal/clock"
	"github.com/openshelf/circulate/internal/domain"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetBookForUpdate(ctx context.Context, bookID string) (domain.Book, error)
	GetReservation(ctx context.Context, id string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error)
	FindOpenReservation(ctx context.Context, userID, bookID string) (*domain.Reservation, error)
	CountActiveReservations(ctx context.Context, bookID string) (int, error)
	CountOutstandingHolds(ctx context.Context, bookID string, now time.Time) (int, error)
	NextActiveReservation(ctx context.Context, bookID string) (*domain.Reservation, error)
	ListActiveReservations(ctx context.Context, bookID string) ([]domain.Reservation, error)
	CreateReservation(ctx context.Context, res domain.Reservation) error
	UpdateReservation(ctx context.Context, res domain.Reservation) error
	UpdateQueuePosition(ctx context.Context, reservationID string, position int) error
	AppendActivity(ctx context.Context, entry domain.ActivityEntry) error
	ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Reservation, error)
}

type ReservationService struct {
	repo     ReservationRepository
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger
	holdTTL  time.Duration
}

const defaultHoldTTL = 48 * time.Hour

func NewReservationService(repo ReservationRepository, clk clock.Clock, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:    repo,
		clock:   clk,
		logger:  slog.Default(),
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithHoldTTL overrides the default pickup window for fulfilled holds.
func WithHoldTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithNotifier sets the sink for hold-ready notifications. Notification
// failures are logged, never propagated.
func WithNotifier(n Notifier) ReservationServiceOption {
	return func(s *ReservationService) {
		s.notifier = n
	}
}

func WithLogger(l *slog.Logger) ReservationServiceOption {
	return func(s *ReservationService) {
		if l != nil {
			s.logger = l
		}
	}
}

type CreateReservationInput struct {
	UserID string
	BookID string
}

// CreateReservation puts the user at the back of the book's queue. When the
// new reservation lands at the head of the queue and a copy is free it is
// promoted to a hold within the same transaction.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	if in.UserID == "" || in.BookID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Reservation
	var promoted *domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		book, err := s.repo.GetBookForUpdate(txCtx, in.BookID)
		if err != nil {
			return err
		}

		existing, err := s.repo.FindOpenReservation(txCtx, in.UserID, in.BookID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateReservation
		}

		active, err := s.repo.CountActiveReservations(txCtx, in.BookID)
		if err != nil {
			return err
		}

		res := domain.Reservation{
			ID:            newID(),
			UserID:        in.UserID,
			BookID:        in.BookID,
			Status:        domain.ReservationStatusActive,
			QueuePosition: active + 1,
			ReservedAt:    now,
		}

		if err := s.repo.CreateReservation(txCtx, res); err != nil {
			return err
		}
		if err := s.repo.AppendActivity(txCtx, domain.ActivityEntry{
			ID:            newID(),
			UserID:        res.UserID,
			ReservationID: res.ID,
			Action:        domain.ActivityReservationCreated,
			Detail:        fmt.Sprintf("joined queue at position %d", res.QueuePosition),
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		result = res

		if res.QueuePosition == 1 {
			promoted, err = promoteNext(txCtx, s.repo, book, now, s.holdTTL)
			if err != nil {
				return err
			}
			if promoted != nil {
				result = *promoted
			}
		}
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	if promoted != nil {
		s.notifyHoldReady(ctx, *promoted)
	}
	return result, nil
}

type CancelReservationInput struct {
	ReservationID string
	UserID        string
}

// CancelReservation cancels an active or fulfilled reservation owned by the
// user. Renumbering and the follow-up promotion attempt run in the same
// transaction as the cancellation.
func (s *ReservationService) CancelReservation(ctx context.Context, in CancelReservationInput) (domain.Reservation, error) {
	now := s.clock.Now()
	var result domain.Reservation
	var promoted *domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservation(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if res.UserID != in.UserID {
			return domain.ErrNotOwner
		}

		book, err := s.repo.GetBookForUpdate(txCtx, res.BookID)
		if err != nil {
			return err
		}
		// Re-read under the book lock; a concurrent sweep or promotion may
		// have settled it between the first read and the lock.
		res, err = s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if res.Status.Terminal() {
			return domain.ErrReservationClosed
		}

		res.Status = domain.ReservationStatusCancelled
		res.QueuePosition = 0
		if err := s.repo.UpdateReservation(txCtx, res); err != nil {
			return err
		}
		if err := renumberQueue(txCtx, s.repo, res.BookID); err != nil {
			return err
		}
		if err := s.repo.AppendActivity(txCtx, domain.ActivityEntry{
			ID:            newID(),
			UserID:        res.UserID,
			ReservationID: res.ID,
			Action:        domain.ActivityReservationCancelled,
			Detail:        "cancelled by patron",
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		promoted, err = promoteNext(txCtx, s.repo, book, now, s.holdTTL)
		if err != nil {
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	if promoted != nil {
		s.notifyHoldReady(ctx, *promoted)
	}
	return result, nil
}

type FulfillReservationInput struct {
	ReservationID string
	StaffID       string
}

// FulfillReservation is the staff override: it hands a copy to the named
// reservation regardless of its queue position.
func (s *ReservationService) FulfillReservation(ctx context.Context, in FulfillReservationInput) (domain.Reservation, error) {
	now := s.clock.Now()
	var result domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservation(txCtx, in.ReservationID)
		if err != nil {
			return err
		}

		if _, err := s.repo.GetBookForUpdate(txCtx, res.BookID); err != nil {
			return err
		}
		res, err = s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if res.Status != domain.ReservationStatusActive {
			return domain.ErrReservationNotActive
		}

		fulfillHold(&res, now, s.holdTTL)
		if err := s.repo.UpdateReservation(txCtx, res); err != nil {
			return err
		}
		if err := renumberQueue(txCtx, s.repo, res.BookID); err != nil {
			return err
		}
		if err := s.repo.AppendActivity(txCtx, domain.ActivityEntry{
			ID:            newID(),
			UserID:        res.UserID,
			ReservationID: res.ID,
			Action:        domain.ActivityReservationFulfilled,
			Detail:        fmt.Sprintf("fulfilled manually by staff %s", in.StaffID),
			CreatedAt:     now,
		}); err != nil {
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.notifyHoldReady(ctx, result)
	return result, nil
}

// AssignNextInQueue promotes the earliest active reservation for the book to
// a hold, if a copy is free. Returns nil without error when there is nothing
// to promote; safe to call repeatedly.
func (s *ReservationService) AssignNextInQueue(ctx context.Context, bookID string) (*domain.Reservation, error) {
	now := s.clock.Now()
	var promoted *domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		book, err := s.repo.GetBookForUpdate(txCtx, bookID)
		if err != nil {
			return err
		}
		promoted, err = promoteNext(txCtx, s.repo, book, now, s.holdTTL)
		return err
	})
	if err != nil {
		return nil, err
	}

	if promoted != nil {
		s.notifyHoldReady(ctx, *promoted)
	}
	return promoted, nil
}

// NotifyCopiesAvailable is the contract point for the external checkout and
// returns subsystem: it must be called whenever available_copies for a book
// increases. Promotion is attempted until the free copies are spoken for.
// Returns the number of reservations promoted.
func (s *ReservationService) NotifyCopiesAvailable(ctx context.Context, bookID string) (int, error) {
	promoted := 0
	for {
		res, err := s.AssignNextInQueue(ctx, bookID)
		if err != nil {
			return promoted, err
		}
		if res == nil {
			return promoted, nil
		}
		promoted++
	}
}

func (s *ReservationService) notifyHoldReady(ctx context.Context, res domain.Reservation) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.HoldReady(ctx, res); err != nil {
		s.logger.Warn("hold-ready notification failed",
			"reservation_id", res.ID,
			"user_id", res.UserID,
			"book_id", res.BookID,
			"error", err,
		)
	}
}
