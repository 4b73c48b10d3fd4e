package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/openshelf/circulate/internal/app"
	"github.com/openshelf/circulate/internal/domain"
)

// BookQueries serves the read-only book projections.
type BookQueries interface {
	GetBookAvailability(ctx context.Context, bookID string) (app.BookAvailability, error)
	GetBookReservations(ctx context.Context, bookID string) ([]app.BookReservation, error)
}

// CopiesAvailableSink is the callback the external checkout/returns
// subsystem invokes when copies of a book become available.
type CopiesAvailableSink interface {
	NotifyCopiesAvailable(ctx context.Context, bookID string) (int, error)
}

// HandleBooks routes GET /books/{id}/availability,
// GET /books/{id}/reservations, and POST /books/{id}/copies-available.
func HandleBooks(queries BookQueries, sink CopiesAvailableSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookID, action, ok := parseBookPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		switch {
		case action == "availability" && r.Method == http.MethodGet:
			availability, err := queries.GetBookAvailability(r.Context(), bookID)
			if err != nil {
				writeBookError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, toAvailabilityResponse(availability))

		case action == "reservations" && r.Method == http.MethodGet:
			items, err := queries.GetBookReservations(r.Context(), bookID)
			if err != nil {
				writeBookError(w, err)
				return
			}
			out := make([]bookReservationResponse, 0, len(items))
			for _, item := range items {
				out = append(out, bookReservationResponse{
					Reservation: toReservationResponse(item.Reservation),
					User: userResponse{
						ID:    item.User.ID,
						Name:  item.User.Name,
						Email: item.User.Email,
					},
				})
			}
			writeJSON(w, http.StatusOK, out)

		case action == "copies-available" && r.Method == http.MethodPost:
			promoted, err := sink.NotifyCopiesAvailable(r.Context(), bookID)
			if err != nil {
				writeBookError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, copiesAvailableResponse{Promoted: promoted})

		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func writeBookError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case domain.ErrBookNotFound:
		writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func parseBookPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "books" || parts[1] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type availabilityResponse struct {
	BookID          string `json:"book_id"`
	Available       bool   `json:"available"`
	AvailableCopies int    `json:"available_copies"`
	TotalCopies     int    `json:"total_copies"`
	QueueLength     int    `json:"queue_length"`
	HeldCopies      int    `json:"held_copies"`
}

func toAvailabilityResponse(a app.BookAvailability) availabilityResponse {
	return availabilityResponse{
		BookID:          a.BookID,
		Available:       a.Available,
		AvailableCopies: a.AvailableCopies,
		TotalCopies:     a.TotalCopies,
		QueueLength:     a.QueueLength,
		HeldCopies:      a.HeldCopies,
	}
}

type userResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type bookReservationResponse struct {
	Reservation reservationResponse `json:"reservation"`
	User        userResponse        `json:"user"`
}

type copiesAvailableResponse struct {
	Promoted int `json:"promoted"`
}
