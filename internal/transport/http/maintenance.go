package http

import (
	"context"
	"net/http"

	"github.com/openshelf/circulate/internal/domain"
)

// HoldExpirer is the sweep the external scheduler invokes on a cadence.
type HoldExpirer interface {
	CheckExpiredReservations(ctx context.Context) ([]domain.Reservation, error)
}

// HandleExpireHolds routes POST /maintenance/expired-holds. Safe to invoke
// repeatedly: already-settled holds are never expired twice.
func HandleExpireHolds(svc HoldExpirer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		expired, err := svc.CheckExpiredReservations(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		out := make([]reservationResponse, 0, len(expired))
		for _, res := range expired {
			out = append(out, toReservationResponse(res))
		}
		writeJSON(w, http.StatusOK, expireHoldsResponse{Expired: out})
	}
}

type expireHoldsResponse struct {
	Expired []reservationResponse `json:"expired"`
}
