package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/openshelf/circulate/internal/app"
	"github.com/openshelf/circulate/internal/domain"
)

// UserQueries serves a patron's reservation history.
type UserQueries interface {
	GetUserReservations(ctx context.Context, userID string) ([]app.UserReservation, error)
}

// HandleUserReservations routes GET /users/{id}/reservations.
func HandleUserReservations(queries UserQueries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		userID, ok := parseUserReservationsPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		items, err := queries.GetUserReservations(r.Context(), userID)
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		out := make([]userReservationResponse, 0, len(items))
		for _, item := range items {
			out = append(out, userReservationResponse{
				Reservation: toReservationResponse(item.Reservation),
				Book: bookResponse{
					ID:              item.Book.ID,
					Title:           item.Book.Title,
					Author:          item.Book.Author,
					TotalCopies:     item.Book.TotalCopies,
					AvailableCopies: item.Book.AvailableCopies,
				},
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseUserReservationsPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "users" || parts[1] == "" || parts[2] != "reservations" {
		return "", false
	}
	return parts[1], true
}

type bookResponse struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
}

type userReservationResponse struct {
	Reservation reservationResponse `json:"reservation"`
	Book        bookResponse        `json:"book"`
}
