package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tessera/internal/database"
	apperrors "tessera/internal/errors"
	"tessera/internal/inventory"
	"tessera/internal/models"

	"github.com/lib/pq"
)

// SeatRepository is the Postgres implementation of inventory.Store.
type SeatRepository struct {
	db          *database.DB
	lockTimeout time.Duration
}

func NewSeatRepository(db *database.DB, lockTimeout time.Duration) *SeatRepository {
	return &SeatRepository{db: db, lockTimeout: lockTimeout}
}

var _ inventory.Store = (*SeatRepository)(nil)

const selectSeat = `
	SELECT s.event_id, s.row_label, s.seat_number, s.status, s.reserved_by, s.reserved_until,
	       s.price_code_id, COALESCE(pc.base_price, 0), s.updated_at
	FROM seats s
	LEFT JOIN price_codes pc ON pc.id = s.price_code_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSeat(row rowScanner) (*models.Seat, error) {
	var (
		seat          models.Seat
		status        string
		reservedBy    sql.NullInt64
		reservedUntil sql.NullTime
		priceCodeID   sql.NullInt64
	)
	err := row.Scan(
		&seat.EventID,
		&seat.Row,
		&seat.Number,
		&status,
		&reservedBy,
		&reservedUntil,
		&priceCodeID,
		&seat.BasePrice,
		&seat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	seat.Status = models.SeatStatus(status)
	if reservedBy.Valid {
		seat.ReservedBy = &reservedBy.Int64
	}
	if reservedUntil.Valid {
		seat.ReservedUntil = &reservedUntil.Time
	}
	if priceCodeID.Valid {
		seat.PriceCodeID = &priceCodeID.Int64
	}
	return &seat, nil
}

func (r *SeatRepository) GetSeat(ctx context.Context, key models.SeatKey) (*models.Seat, error) {
	key.Row = models.NormalizeRow(key.Row)
	query := selectSeat + `
	WHERE s.event_id = $1 AND s.row_label = $2 AND s.seat_number = $3`

	var seat *models.Seat
	err := r.db.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		seat, err = scanSeat(r.db.QueryRowContext(ctx, query, key.EventID, key.Row, key.Number))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.WithSeats(apperrors.KindSeatNotFound, "seat not found", []models.SeatKey{key})
	}
	if err != nil {
		return nil, storeError(err, "failed to get seat")
	}
	return seat, nil
}

func (r *SeatRepository) ListSeats(ctx context.Context, eventID int64) ([]models.Seat, error) {
	query := selectSeat + `
	WHERE s.event_id = $1
	ORDER BY s.row_label, s.seat_number`

	var seats []models.Seat
	err := r.db.WithRetry(ctx, func(ctx context.Context) error {
		seats = seats[:0]
		rows, err := r.db.QueryContext(ctx, query, eventID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			seat, err := scanSeat(rows)
			if err != nil {
				return err
			}
			seats = append(seats, *seat)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeError(err, "failed to list seats")
	}
	return seats, nil
}

// TrySetStatus evaluates lazy expiry inside the UPDATE predicate, so the
// compare and the write are one atomic statement.
func (r *SeatRepository) TrySetStatus(ctx context.Context, t models.SeatTransition) (bool, error) {
	query := `
		UPDATE seats
		SET status = $4, reserved_by = $5, reserved_until = $6, updated_at = NOW()
		WHERE event_id = $1 AND row_label = $2 AND seat_number = $3
		  AND (CASE WHEN status = 'RESERVED' AND (reserved_until IS NULL OR reserved_until <= $7)
		            THEN 'AVAILABLE' ELSE status END) = $8
		  AND ($9::bigint IS NULL OR reserved_by = $9)`

	var applied bool
	err := r.db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, query,
			t.Key.EventID, models.NormalizeRow(t.Key.Row), t.Key.Number,
			string(t.Next), t.Holder, t.Until,
			t.Now, string(t.Expect), t.ExpectHolder)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = n == 1
		return nil
	})
	if err != nil {
		return false, storeError(err, "failed to update seat")
	}
	return applied, nil
}

func (r *SeatRepository) InTx(ctx context.Context, eventID int64, fn func(tx inventory.Tx) error) error {
	err := r.db.InTx(ctx, r.lockTimeout, func(tx *sql.Tx) error {
		return fn(&seatTx{tx: tx, eventID: eventID})
	})
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return storeError(err, "inventory transaction failed")
}

func (r *SeatRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE seats
		SET status = 'AVAILABLE', reserved_by = NULL, reserved_until = NULL, updated_at = NOW()
		WHERE status = 'RESERVED' AND (reserved_until IS NULL OR reserved_until <= $1)`

	var cleared int64
	err := r.db.WithRetry(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, query, now)
		if err != nil {
			return err
		}
		cleared, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, storeError(err, "failed to sweep expired holds")
	}
	return cleared, nil
}

// CreateSeats inserts generated seats, skipping ones that already exist.
func (r *SeatRepository) CreateSeats(ctx context.Context, seats []models.Seat) (int64, error) {
	query := `
		INSERT INTO seats (event_id, row_label, seat_number, status, price_code_id)
		VALUES ($1, $2, $3, 'AVAILABLE', $4)
		ON CONFLICT (event_id, row_label, seat_number) DO NOTHING`

	var created int64
	err := r.db.InTx(ctx, 0, func(tx *sql.Tx) error {
		created = 0
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, seat := range seats {
			res, err := stmt.ExecContext(ctx, seat.EventID, models.NormalizeRow(seat.Row), seat.Number, seat.PriceCodeID)
			if err != nil {
				return fmt.Errorf("failed to insert seat %s: %w", seat.Key(), err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			created += n
		}
		return nil
	})
	if err != nil {
		return 0, storeError(err, "failed to create seats")
	}
	return created, nil
}

type seatTx struct {
	tx      *sql.Tx
	eventID int64
}

// LockSeats takes row locks in (row, seat) order so that concurrent
// multi-seat transactions cannot deadlock on each other.
func (t *seatTx) LockSeats(ctx context.Context, keys []models.SeatKey) (map[models.SeatKey]*models.Seat, error) {
	rowLabels := make([]string, len(keys))
	numbers := make([]int64, len(keys))
	for i, k := range keys {
		if k.EventID != t.eventID {
			return nil, fmt.Errorf("seat %s belongs to event %d, transaction is scoped to event %d", k, k.EventID, t.eventID)
		}
		rowLabels[i] = models.NormalizeRow(k.Row)
		numbers[i] = int64(k.Number)
	}

	query := selectSeat + `
	WHERE s.event_id = $1
	  AND (s.row_label, s.seat_number) IN (SELECT * FROM unnest($2::text[], $3::int[]))
	ORDER BY s.row_label, s.seat_number
	FOR UPDATE OF s`

	rows, err := t.tx.QueryContext(ctx, query, t.eventID, pq.Array(rowLabels), pq.Array(numbers))
	if err != nil {
		return nil, fmt.Errorf("failed to lock seats: %w", err)
	}
	defer rows.Close()

	seats := make(map[models.SeatKey]*models.Seat, len(keys))
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats[seat.Key()] = seat
	}
	return seats, rows.Err()
}

func (t *seatTx) UpdateSeat(ctx context.Context, seat *models.Seat) error {
	query := `
		UPDATE seats
		SET status = $4, reserved_by = $5, reserved_until = $6, updated_at = NOW()
		WHERE event_id = $1 AND row_label = $2 AND seat_number = $3`

	_, err := t.tx.ExecContext(ctx, query,
		seat.EventID, seat.Row, seat.Number,
		string(seat.Status), seat.ReservedBy, seat.ReservedUntil)
	if err != nil {
		return fmt.Errorf("failed to update seat %s: %w", seat.Key(), err)
	}
	return nil
}

func (t *seatTx) InsertOwnership(ctx context.Context, rec *models.Ownership) error {
	query := `
		INSERT INTO ticket_ownership (event_id, row_label, seat_number, user_id, barcode, payment_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	err := t.tx.QueryRowContext(ctx, query,
		rec.EventID, rec.Row, rec.Number, rec.UserID, rec.Barcode, rec.PaymentRef, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert ownership for %s: %w", rec.Key(), err)
	}
	return nil
}

func (t *seatTx) RecordPayment(ctx context.Context, use *models.PaymentUse) error {
	query := `
		INSERT INTO payment_fulfillments (payment_ref, event_id, user_id, amount_minor, currency)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := t.tx.ExecContext(ctx, query, use.PaymentRef, use.EventID, use.UserID, use.AmountMinor, use.Currency)
	if database.IsUniqueViolation(err, database.PaymentRefConstraint) {
		return apperrors.Newf(apperrors.KindPaymentAlreadyUsed, "payment %s was already used", use.PaymentRef)
	}
	if err != nil {
		return fmt.Errorf("failed to record payment %s: %w", use.PaymentRef, err)
	}
	return nil
}

// storeError classifies infrastructure failures. Exhausted retries and
// connection problems surface as STORE_UNAVAILABLE.
func storeError(err error, message string) error {
	if errors.Is(err, database.ErrRetriesExhausted) || database.IsRetryableError(err) {
		return apperrors.Wrap(apperrors.KindStoreUnavailable, err, message)
	}
	return fmt.Errorf("%s: %w", message, err)
}
