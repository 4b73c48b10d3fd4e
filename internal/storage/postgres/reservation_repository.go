package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openshelf/circulate/internal/domain"
)

const reservationColumns = `id, user_id, book_id, status, queue_position, reserved_at, notified_at, fulfilled_at, expires_at`

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetBookForUpdate takes the book row lock that serializes all queue
// mutations for one book.
func (r *ReservationRepository) GetBookForUpdate(ctx context.Context, bookID string) (domain.Book, error) {
	const query = `SELECT id, title, author, total_copies, available_copies FROM books WHERE id = $1 FOR UPDATE`
	var b domain.Book
	err := r.queryRow(ctx, query, bookID).Scan(&b.ID, &b.Title, &b.Author, &b.TotalCopies, &b.AvailableCopies)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Book{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Book{}, domain.ErrBookNotFound
		}
		return domain.Book{}, fmt.Errorf("get book for update: %w", err)
	}
	return b, nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1 FOR UPDATE`
	res, err := scanReservation(r.queryRow(ctx, query, id))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation for update: %w", err)
	}
	return res, nil
}

// FindOpenReservation returns the user's active or fulfilled reservation for
// the book, or nil when there is none.
func (r *ReservationRepository) FindOpenReservation(ctx context.Context, userID, bookID string) (*domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM reservations
WHERE user_id = $1 AND book_id = $2 AND status IN ('active', 'fulfilled')`

	res, err := scanReservation(r.queryRow(ctx, query, userID, bookID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find open reservation: %w", err)
	}
	return &res, nil
}

func (r *ReservationRepository) CountActiveReservations(ctx context.Context, bookID string) (int, error) {
	const query = `SELECT COUNT(*) FROM reservations WHERE book_id = $1 AND status = 'active'`
	var total int
	if err := r.queryRow(ctx, query, bookID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return total, nil
}

// CountOutstandingHolds counts fulfilled reservations still inside their
// pickup window. These claim a copy each from the available pool.
func (r *ReservationRepository) CountOutstandingHolds(ctx context.Context, bookID string, now time.Time) (int, error) {
	const query = `
SELECT COUNT(*)
FROM reservations
WHERE book_id = $1 AND status = 'fulfilled' AND expires_at > $2`

	var total int
	if err := r.queryRow(ctx, query, bookID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("count outstanding holds: %w", err)
	}
	return total, nil
}

func (r *ReservationRepository) NextActiveReservation(ctx context.Context, bookID string) (*domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY queue_position ASC, reserved_at ASC
LIMIT 1`

	res, err := scanReservation(r.queryRow(ctx, query, bookID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("next active reservation: %w", err)
	}
	return &res, nil
}

func (r *ReservationRepository) ListActiveReservations(ctx context.Context, bookID string) ([]domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY queue_position ASC, reserved_at ASC`

	rows, err := r.query(ctx, query, bookID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list active reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

func (r *ReservationRepository) ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'fulfilled' AND expires_at < $1
ORDER BY expires_at ASC`

	rows, err := r.query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate expired holds: %w", rows.Err())
	}
	return out, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, user_id, book_id, status, queue_position, reserved_at, notified_at, fulfilled_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.UserID,
		res.BookID,
		res.Status,
		positionValue(res),
		res.ReservedAt,
		res.NotifiedAt,
		res.FulfilledAt,
		res.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReservation
		}
		if isForeignKeyViolation(err) {
			return domain.ErrUserNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) UpdateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
UPDATE reservations
SET status = $2, queue_position = $3, notified_at = $4, fulfilled_at = $5, expires_at = $6
WHERE id = $1`

	tag, err := r.exec(ctx, stmt,
		res.ID,
		res.Status,
		positionValue(res),
		res.NotifiedAt,
		res.FulfilledAt,
		res.ExpiresAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) UpdateQueuePosition(ctx context.Context, reservationID string, position int) error {
	const stmt = `UPDATE reservations SET queue_position = $2 WHERE id = $1 AND status = 'active'`
	tag, err := r.exec(ctx, stmt, reservationID, position)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update queue position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

func (r *ReservationRepository) AppendActivity(ctx context.Context, entry domain.ActivityEntry) error {
	const stmt = `
INSERT INTO activity_log (id, user_id, reservation_id, action, detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		entry.ID,
		entry.UserID,
		entry.ReservationID,
		entry.Action,
		entry.Detail,
		entry.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

// scanReservation reads the reservationColumns projection. queue_position is
// NULL outside the active state and mapped to 0.
func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var res domain.Reservation
	var position *int
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.BookID,
		&res.Status,
		&position,
		&res.ReservedAt,
		&res.NotifiedAt,
		&res.FulfilledAt,
		&res.ExpiresAt,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	if position != nil {
		res.QueuePosition = *position
	}
	return res, nil
}

func positionValue(res domain.Reservation) any {
	if res.Status != domain.ReservationStatusActive || res.QueuePosition < 1 {
		return nil
	}
	return res.QueuePosition
}
