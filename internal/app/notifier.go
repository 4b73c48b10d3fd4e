package app

import (
	"context"

	"github.com/openshelf/circulate/internal/domain"
)

// Notifier is told when a reservation becomes a hold ready for pickup.
// Implementations are best-effort: callers log failures and never roll back
// the committed state transition.
type Notifier interface {
	HoldReady(ctx context.Context, res domain.Reservation) error
}
