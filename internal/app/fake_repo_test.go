package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/openshelf/circulate/internal/domain"
)

// fakeReservationRepo mirrors the Postgres repository's semantics in memory.
type fakeReservationRepo struct {
	books        map[string]domain.Book
	reservations []domain.Reservation
	activity     []domain.ActivityEntry

	// failBookIDs makes GetBookForUpdate fail for those books, to exercise
	// per-item isolation in the reaper.
	failBookIDs map[string]bool
}

func newFakeReservationRepo(books []domain.Book, reservations []domain.Reservation) *fakeReservationRepo {
	b := make(map[string]domain.Book, len(books))
	for _, book := range books {
		b[book.ID] = book
	}
	return &fakeReservationRepo{
		books:        b,
		reservations: append([]domain.Reservation{}, reservations...),
		failBookIDs:  map[string]bool{},
	}
}

func (f *fakeReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeReservationRepo) GetBookForUpdate(_ context.Context, bookID string) (domain.Book, error) {
	if f.failBookIDs[bookID] {
		return domain.Book{}, errors.New("storage failure")
	}
	book, ok := f.books[bookID]
	if !ok {
		return domain.Book{}, domain.ErrBookNotFound
	}
	return book, nil
}

func (f *fakeReservationRepo) GetReservation(_ context.Context, id string) (domain.Reservation, error) {
	for _, res := range f.reservations {
		if res.ID == id {
			return res, nil
		}
	}
	return domain.Reservation{}, domain.ErrReservationNotFound
}

func (f *fakeReservationRepo) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	return f.GetReservation(ctx, id)
}

func (f *fakeReservationRepo) FindOpenReservation(_ context.Context, userID, bookID string) (*domain.Reservation, error) {
	for i := range f.reservations {
		res := f.reservations[i]
		if res.UserID == userID && res.BookID == bookID && !res.Status.Terminal() {
			return &res, nil
		}
	}
	return nil, nil
}

func (f *fakeReservationRepo) CountActiveReservations(_ context.Context, bookID string) (int, error) {
	total := 0
	for _, res := range f.reservations {
		if res.BookID == bookID && res.Status == domain.ReservationStatusActive {
			total++
		}
	}
	return total, nil
}

func (f *fakeReservationRepo) CountOutstandingHolds(_ context.Context, bookID string, now time.Time) (int, error) {
	total := 0
	for _, res := range f.reservations {
		if res.BookID == bookID && res.Status == domain.ReservationStatusFulfilled &&
			res.ExpiresAt != nil && res.ExpiresAt.After(now) {
			total++
		}
	}
	return total, nil
}

func (f *fakeReservationRepo) NextActiveReservation(ctx context.Context, bookID string) (*domain.Reservation, error) {
	active, err := f.ListActiveReservations(ctx, bookID)
	if err != nil || len(active) == 0 {
		return nil, err
	}
	res := active[0]
	return &res, nil
}

func (f *fakeReservationRepo) ListActiveReservations(_ context.Context, bookID string) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.BookID == bookID && res.Status == domain.ReservationStatusActive {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QueuePosition != out[j].QueuePosition {
			return out[i].QueuePosition < out[j].QueuePosition
		}
		return out[i].ReservedAt.Before(out[j].ReservedAt)
	})
	return out, nil
}

func (f *fakeReservationRepo) ListExpiredHolds(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for _, res := range f.reservations {
		if res.HoldExpired(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
	})
	return out, nil
}

func (f *fakeReservationRepo) CreateReservation(_ context.Context, res domain.Reservation) error {
	for _, existing := range f.reservations {
		if existing.UserID == res.UserID && existing.BookID == res.BookID && !existing.Status.Terminal() {
			return domain.ErrDuplicateReservation
		}
	}
	f.reservations = append(f.reservations, res)
	return nil
}

func (f *fakeReservationRepo) UpdateReservation(_ context.Context, res domain.Reservation) error {
	for i := range f.reservations {
		if f.reservations[i].ID == res.ID {
			f.reservations[i] = res
			return nil
		}
	}
	return domain.ErrReservationNotFound
}

func (f *fakeReservationRepo) UpdateQueuePosition(_ context.Context, reservationID string, position int) error {
	for i := range f.reservations {
		if f.reservations[i].ID == reservationID && f.reservations[i].Status == domain.ReservationStatusActive {
			f.reservations[i].QueuePosition = position
			return nil
		}
	}
	return domain.ErrReservationNotFound
}

func (f *fakeReservationRepo) AppendActivity(_ context.Context, entry domain.ActivityEntry) error {
	f.activity = append(f.activity, entry)
	return nil
}

func (f *fakeReservationRepo) byID(id string) domain.Reservation {
	for _, res := range f.reservations {
		if res.ID == id {
			return res
		}
	}
	return domain.Reservation{}
}

// activePositions returns the book's active queue positions in order.
func (f *fakeReservationRepo) activePositions(bookID string) []int {
	active, _ := f.ListActiveReservations(context.Background(), bookID)
	out := make([]int, 0, len(active))
	for _, res := range active {
		out = append(out, res.QueuePosition)
	}
	return out
}

// recordingNotifier captures hold-ready notifications; optionally failing.
type recordingNotifier struct {
	notified []domain.Reservation
	fail     bool
}

func (n *recordingNotifier) HoldReady(_ context.Context, res domain.Reservation) error {
	if n.fail {
		return errors.New("notification sink unreachable")
	}
	n.notified = append(n.notified, res)
	return nil
}
