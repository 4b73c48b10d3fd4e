package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openshelf/circulate/internal/app"
	"github.com/openshelf/circulate/internal/domain"
)

type stubBookQueries struct {
	availability app.BookAvailability
	reservations []app.BookReservation
	err          error
}

func (s *stubBookQueries) GetBookAvailability(_ context.Context, _ string) (app.BookAvailability, error) {
	return s.availability, s.err
}

func (s *stubBookQueries) GetBookReservations(_ context.Context, _ string) ([]app.BookReservation, error) {
	return s.reservations, s.err
}

type stubCopiesSink struct {
	promoted int
	err      error
	gotBook  string
}

func (s *stubCopiesSink) NotifyCopiesAvailable(_ context.Context, bookID string) (int, error) {
	s.gotBook = bookID
	return s.promoted, s.err
}

func TestHandleBooks(t *testing.T) {
	t.Parallel()

	t.Run("availability", func(t *testing.T) {
		queries := &stubBookQueries{availability: app.BookAvailability{
			BookID:          "book-1",
			Available:       true,
			AvailableCopies: 2,
			TotalCopies:     3,
			QueueLength:     4,
			HeldCopies:      1,
		}}
		handler := HandleBooks(queries, &stubCopiesSink{})

		req := httptest.NewRequest(http.MethodGet, "/books/book-1/availability", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		for _, want := range []string{`"available":true`, `"queue_length":4`, `"held_copies":1`} {
			if !strings.Contains(body, want) {
				t.Fatalf("expected body to contain %s, got %s", want, body)
			}
		}
	})

	t.Run("book reservations include the patron", func(t *testing.T) {
		queries := &stubBookQueries{reservations: []app.BookReservation{{
			Reservation: domain.Reservation{ID: "res-1", Status: domain.ReservationStatusActive, QueuePosition: 1},
			User:        domain.User{ID: "user-1", Name: "Ada", Email: "ada@example.com"},
		}}}
		handler := HandleBooks(queries, &stubCopiesSink{})

		req := httptest.NewRequest(http.MethodGet, "/books/book-1/reservations", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"name":"Ada"`) {
			t.Fatalf("expected user in response, got %s", rec.Body.String())
		}
	})

	t.Run("copies-available triggers promotion", func(t *testing.T) {
		sink := &stubCopiesSink{promoted: 2}
		handler := HandleBooks(&stubBookQueries{}, sink)

		req := httptest.NewRequest(http.MethodPost, "/books/book-1/copies-available", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if sink.gotBook != "book-1" {
			t.Fatalf("expected sink invoked for book-1, got %q", sink.gotBook)
		}
		if !strings.Contains(rec.Body.String(), `"promoted":2`) {
			t.Fatalf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("unknown book", func(t *testing.T) {
		handler := HandleBooks(&stubBookQueries{err: domain.ErrBookNotFound}, &stubCopiesSink{})
		req := httptest.NewRequest(http.MethodGet, "/books/book-x/availability", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		handler := HandleBooks(&stubBookQueries{}, &stubCopiesSink{})
		req := httptest.NewRequest(http.MethodGet, "/books/book-1/copies-available", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("malformed path", func(t *testing.T) {
		handler := HandleBooks(&stubBookQueries{}, &stubCopiesSink{})
		req := httptest.NewRequest(http.MethodGet, "/books/book-1", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}
