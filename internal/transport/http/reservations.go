package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/openshelf/circulate/internal/app"
	"github.com/openshelf/circulate/internal/domain"
)

// ReservationCreator is the minimal interface needed to create a reservation.
type ReservationCreator interface {
	CreateReservation(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
}

// ReservationLifecycle covers the per-reservation actions.
type ReservationLifecycle interface {
	CancelReservation(ctx context.Context, in app.CancelReservationInput) (domain.Reservation, error)
	FulfillReservation(ctx context.Context, in app.FulfillReservationInput) (domain.Reservation, error)
}

// HandleCreateReservation returns an HTTP handler for joining a book's queue.
func HandleCreateReservation(svc ReservationCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req createReservationRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.UserID == "" || req.BookID == "" {
			writeError(w, http.StatusBadRequest, codeMissingRequiredField, "user_id and book_id are required")
			return
		}

		res, err := svc.CreateReservation(r.Context(), app.CreateReservationInput{
			UserID: req.UserID,
			BookID: req.BookID,
		})
		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrBookNotFound:
				writeError(w, http.StatusNotFound, codeBookNotFound, err.Error())
			case domain.ErrUserNotFound:
				writeError(w, http.StatusNotFound, codeUserNotFound, err.Error())
			case domain.ErrDuplicateReservation:
				writeError(w, http.StatusConflict, codeDuplicateReservation, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(res))
	}
}

// HandleReservationActions routes POST /reservations/{id}/cancel and
// POST /reservations/{id}/fulfill.
func HandleReservationActions(svc ReservationLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		reservationID, action, ok := parseReservationActionPath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		var req reservationActionRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		var res domain.Reservation
		var err error
		switch action {
		case "cancel":
			if req.UserID == "" {
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, "user_id is required")
				return
			}
			res, err = svc.CancelReservation(r.Context(), app.CancelReservationInput{
				ReservationID: reservationID,
				UserID:        req.UserID,
			})
		case "fulfill":
			if req.StaffID == "" {
				writeError(w, http.StatusBadRequest, codeMissingRequiredField, "staff_id is required")
				return
			}
			res, err = svc.FulfillReservation(r.Context(), app.FulfillReservationInput{
				ReservationID: reservationID,
				StaffID:       req.StaffID,
			})
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		if err != nil {
			switch err {
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			case domain.ErrReservationNotFound:
				writeError(w, http.StatusNotFound, codeReservationNotFound, err.Error())
			case domain.ErrNotOwner:
				writeError(w, http.StatusForbidden, codeNotOwner, err.Error())
			case domain.ErrReservationNotActive:
				writeError(w, http.StatusConflict, codeReservationNotActive, err.Error())
			case domain.ErrReservationClosed:
				writeError(w, http.StatusConflict, codeReservationClosed, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(res))
	}
}

func parseReservationActionPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 || parts[0] != "reservations" || parts[1] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

type createReservationRequest struct {
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
}

type reservationActionRequest struct {
	UserID  string `json:"user_id,omitempty"`
	StaffID string `json:"staff_id,omitempty"`
}

type reservationResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	BookID        string     `json:"book_id"`
	Status        string     `json:"status"`
	QueuePosition int        `json:"queue_position,omitempty"`
	ReservedAt    time.Time  `json:"reserved_at"`
	NotifiedAt    *time.Time `json:"notified_at,omitempty"`
	FulfilledAt   *time.Time `json:"fulfilled_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:            res.ID,
		UserID:        res.UserID,
		BookID:        res.BookID,
		Status:        string(res.Status),
		QueuePosition: res.QueuePosition,
		ReservedAt:    res.ReservedAt,
		NotifiedAt:    res.NotifiedAt,
		FulfilledAt:   res.FulfilledAt,
		ExpiresAt:     res.ExpiresAt,
	}
}
