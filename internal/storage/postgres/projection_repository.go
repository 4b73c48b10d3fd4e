package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openshelf/circulate/internal/app"
	"github.com/openshelf/circulate/internal/domain"
)

// ProjectionRepository serves the read-only availability and listing
// queries. It never participates in a mutation transaction.
type ProjectionRepository struct {
	pool *pgxpool.Pool
}

func NewProjectionRepository(pool *pgxpool.Pool) *ProjectionRepository {
	return &ProjectionRepository{pool: pool}
}

func (r *ProjectionRepository) GetBook(ctx context.Context, bookID string) (domain.Book, error) {
	const query = `SELECT id, title, author, total_copies, available_copies FROM books WHERE id = $1`
	var b domain.Book
	err := r.pool.QueryRow(ctx, query, bookID).Scan(&b.ID, &b.Title, &b.Author, &b.TotalCopies, &b.AvailableCopies)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Book{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

func (r *ProjectionRepository) CountActiveReservations(ctx context.Context, bookID string) (int, error) {
	const query = `SELECT COUNT(*) FROM reservations WHERE book_id = $1 AND status = 'active'`
	var total int
	if err := r.pool.QueryRow(ctx, query, bookID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return total, nil
}

func (r *ProjectionRepository) CountOutstandingHolds(ctx context.Context, bookID string, now time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM reservations
WHERE book_id = $1 AND status = 'fulfilled' AND expires_at > $2`

	var total int
	if err := r.pool.QueryRow(ctx, query, bookID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count outstanding holds: %w", err)
	}
	return total, nil
}

func (r *ProjectionRepository) ListReservationsByUser(ctx context.Context, userID string) ([]app.UserReservation, error) {
	const query = `
SELECT r.id, r.user_id, r.book_id, r.status, r.queue_position, r.reserved_at, r.notified_at, r.fulfilled_at, r.expires_at,
       b.id, b.title, b.author, b.total_copies, b.available_copies
FROM reservations r
JOIN books b ON b.id = r.book_id
WHERE r.user_id = $1
ORDER BY r.reserved_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations by user: %w", err)
	}
	defer rows.Close()

	var out []app.UserReservation
	for rows.Next() {
		var item app.UserReservation
		var position *int
		err := rows.Scan(
			&item.Reservation.ID,
			&item.Reservation.UserID,
			&item.Reservation.BookID,
			&item.Reservation.Status,
			&position,
			&item.Reservation.ReservedAt,
			&item.Reservation.NotifiedAt,
			&item.Reservation.FulfilledAt,
			&item.Reservation.ExpiresAt,
			&item.Book.ID,
			&item.Book.Title,
			&item.Book.Author,
			&item.Book.TotalCopies,
			&item.Book.AvailableCopies,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user reservation: %w", err)
		}
		if position != nil {
			item.Reservation.QueuePosition = *position
		}
		out = append(out, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate user reservations: %w", rows.Err())
	}
	return out, nil
}

func (r *ProjectionRepository) ListReservationsByBook(ctx context.Context, bookID string) ([]app.BookReservation, error) {
	const query = `
SELECT r.id, r.user_id, r.book_id, r.status, r.queue_position, r.reserved_at, r.notified_at, r.fulfilled_at, r.expires_at,
       u.id, u.name, u.email
FROM reservations r
JOIN users u ON u.id = r.user_id
WHERE r.book_id = $1
ORDER BY r.status = 'active' DESC, r.queue_position ASC NULLS LAST, r.reserved_at ASC`

	rows, err := r.pool.Query(ctx, query, bookID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations by book: %w", err)
	}
	defer rows.Close()

	var out []app.BookReservation
	for rows.Next() {
		var item app.BookReservation
		var position *int
		err := rows.Scan(
			&item.Reservation.ID,
			&item.Reservation.UserID,
			&item.Reservation.BookID,
			&item.Reservation.Status,
			&position,
			&item.Reservation.ReservedAt,
			&item.Reservation.NotifiedAt,
			&item.Reservation.FulfilledAt,
			&item.Reservation.ExpiresAt,
			&item.User.ID,
			&item.User.Name,
			&item.User.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("scan book reservation: %w", err)
		}
		if position != nil {
			item.Reservation.QueuePosition = *position
		}
		out = append(out, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate book reservations: %w", rows.Err())
	}
	return out, nil
}
