// Package notify delivers hold-ready notifications: an in-app notification
// row plus a best-effort email. Email delivery is an external collaborator;
// its failures are logged and never surface to the caller.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/openshelf/circulate/internal/domain"
)

type Store interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetBookTitle(ctx context.Context, bookID string) (string, error)
	CreateNotification(ctx context.Context, n domain.Notification) error
}

// EmailSender is the external email service boundary.
type EmailSender interface {
	SendHoldReady(ctx context.Context, user domain.User, bookTitle string, expiresAt time.Time) error
}

type Notifier struct {
	store  Store
	email  EmailSender
	logger *slog.Logger
}

func New(store Store, email EmailSender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		store:  store,
		email:  email,
		logger: logger,
	}
}

// HoldReady records an in-app notification for the patron and fires the
// email. The reservation must be fulfilled (ExpiresAt set) when called.
func (n *Notifier) HoldReady(ctx context.Context, res domain.Reservation) error {
	user, err := n.store.GetUser(ctx, res.UserID)
	if err != nil {
		return fmt.Errorf("look up user: %w", err)
	}
	title, err := n.store.GetBookTitle(ctx, res.BookID)
	if err != nil {
		return fmt.Errorf("look up book: %w", err)
	}

	var expiresAt time.Time
	if res.ExpiresAt != nil {
		expiresAt = *res.ExpiresAt
	}

	notification := domain.Notification{
		ID:     uuid.NewString(),
		UserID: user.ID,
		Message: fmt.Sprintf(
			"Your hold on %q is ready for pickup until %s.",
			title, expiresAt.Format("Jan 2, 2006 15:04 MST"),
		),
		CreatedAt: time.Now().UTC(),
	}
	if err := n.store.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	if n.email != nil {
		if err := n.email.SendHoldReady(ctx, user, title, expiresAt); err != nil {
			n.logger.Warn("hold-ready email failed",
				"user_id", user.ID,
				"book_id", res.BookID,
				"error", err,
			)
		}
	}
	return nil
}

// LogEmailSender stands in for the real email service in local setups.
type LogEmailSender struct {
	Logger *slog.Logger
}

func (s LogEmailSender) SendHoldReady(_ context.Context, user domain.User, bookTitle string, expiresAt time.Time) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("hold-ready email (not sent: no email service configured)",
		"to", user.Email,
		"book", bookTitle,
		"expires_at", expiresAt,
	)
	return nil
}
