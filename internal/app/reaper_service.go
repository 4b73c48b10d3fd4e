package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/openshelf/circulate/internal/clock"
	"github.com/openshelf/circulate/internal/domain"
)

// ReaperService expires stale holds. An external scheduler invokes
// CheckExpiredReservations on a cadence; the 48-hour window is a logical
// deadline enforced only by that sweep.
type ReaperService struct {
	repo     ReservationRepository
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger
	holdTTL  time.Duration
}

func NewReaperService(repo ReservationRepository, clk clock.Clock, opts ...ReaperServiceOption) *ReaperService {
	svc := &ReaperService{
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

type ReaperServiceOption func(*ReaperService)

func WithReaperHoldTTL(d time.Duration) ReaperServiceOption {
	return func(s *ReaperService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

func WithReaperNotifier(n Notifier) ReaperServiceOption {
	return func(s *ReaperService) {
		s.notifier = n
	}
}

func WithReaperLogger(l *slog.Logger) ReaperServiceOption {
	return func(s *ReaperService) {
		if l != nil {
			s.logger = l
		}
	}
}

// CheckExpiredReservations converts holds whose pickup window has passed to
// expired and cascades a promotion attempt to the next queued patron for
// each affected book. Items are processed independently: one failure is
// logged and skipped without touching the rest. Returns the reservations
// actually expired, so an immediate re-run expires nothing new.
func (s *ReaperService) CheckExpiredReservations(ctx context.Context) ([]domain.Reservation, error) {
	now := s.clock.Now()

	stale, err := s.repo.ListExpiredHolds(ctx, now)
	if err != nil {
		return nil, err
	}

	var expired []domain.Reservation
	var promotions []domain.Reservation

	for _, candidate := range stale {
		var settled domain.Reservation
		var promoted *domain.Reservation
		skipped := false

		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			book, err := s.repo.GetBookForUpdate(txCtx, candidate.BookID)
			if err != nil {
				return err
			}
			res, err := s.repo.GetReservationForUpdate(txCtx, candidate.ID)
			if err != nil {
				return err
			}
			// Another sweep or a cancellation may have settled it since the
			// candidate list was read.
			if !res.HoldExpired(now) {
				skipped = true
				return nil
			}

			res.Status = domain.ReservationStatusExpired
			if err := s.repo.UpdateReservation(txCtx, res); err != nil {
				return err
			}
			if err := s.repo.AppendActivity(txCtx, domain.ActivityEntry{
				ID:            newID(),
				UserID:        res.UserID,
				ReservationID: res.ID,
				Action:        domain.ActivityReservationExpired,
				Detail:        "hold not picked up within the pickup window",
				CreatedAt:     now,
			}); err != nil {
				return err
			}

			promoted, err = promoteNext(txCtx, s.repo, book, now, s.holdTTL)
			if err != nil {
				return err
			}

			settled = res
			return nil
		})
		if err != nil {
			s.logger.Error("expiring hold failed",
				"reservation_id", candidate.ID,
				"book_id", candidate.BookID,
				"error", err,
			)
			continue
		}
		if skipped {
			continue
		}

		expired = append(expired, settled)
		if promoted != nil {
			promotions = append(promotions, *promoted)
		}
	}

	for _, res := range promotions {
		s.notifyHoldReady(ctx, res)
	}
	return expired, nil
}

func (s *ReaperService) notifyHoldReady(ctx context.Context, res domain.Reservation) {
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
