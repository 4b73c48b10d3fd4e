package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openshelf/circulate/internal/domain"
)

type stubExpirer struct {
	expired []domain.Reservation
	err     error
	calls   int
}

func (s *stubExpirer) CheckExpiredReservations(_ context.Context) ([]domain.Reservation, error) {
	s.calls++
	return s.expired, s.err
}

func TestHandleExpireHolds(t *testing.T) {
	t.Parallel()

	t.Run("returns the expired subset", func(t *testing.T) {
		svc := &stubExpirer{expired: []domain.Reservation{
			{ID: "res-1", Status: domain.ReservationStatusExpired},
		}}
		handler := HandleExpireHolds(svc)

		req := httptest.NewRequest(http.MethodPost, "/maintenance/expired-holds", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.calls != 1 {
			t.Fatalf("expected one sweep, got %d", svc.calls)
		}
		if !strings.Contains(rec.Body.String(), `"id":"res-1"`) {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("empty sweep", func(t *testing.T) {
		handler := HandleExpireHolds(&stubExpirer{})
		req := httptest.NewRequest(http.MethodPost, "/maintenance/expired-holds", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"expired":[]`) {
			t.Fatalf("expected empty expired list, got %s", rec.Body.String())
		}
	})

	t.Run("sweep failure", func(t *testing.T) {
		handler := HandleExpireHolds(&stubExpirer{err: errors.New("db down")})
		req := httptest.NewRequest(http.MethodPost, "/maintenance/expired-holds", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		handler := HandleExpireHolds(&stubExpirer{})
		req := httptest.NewRequest(http.MethodGet, "/maintenance/expired-holds", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}
