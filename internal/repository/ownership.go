package repository

import (
	"context"
	"database/sql"

	"tessera/internal/database"
	"tessera/internal/inventory"
	"tessera/internal/models"
)

// OwnershipRepository reads the ticket ownership ledger. Records are only
// ever written inside a fulfillment transaction, see seatTx.InsertOwnership.
type OwnershipRepository struct {
	db *database.DB
}

func NewOwnershipRepository(db *database.DB) *OwnershipRepository {
	return &OwnershipRepository{db: db}
}

var _ inventory.OwnershipReader = (*OwnershipRepository)(nil)

const selectOwnership = `
	SELECT id, event_id, row_label, seat_number, user_id, barcode, payment_ref, created_at
	FROM ticket_ownership`

func scanOwnership(row rowScanner) (*models.Ownership, error) {
	var (
		rec        models.Ownership
		paymentRef sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.EventID,
		&rec.Row,
		&rec.Number,
		&rec.UserID,
		&rec.Barcode,
		&paymentRef,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if paymentRef.Valid {
		rec.PaymentRef = &paymentRef.String
	}
	return &rec, nil
}

func (r *OwnershipRepository) ListByUser(ctx context.Context, userID int64) ([]models.Ownership, error) {
	query := selectOwnership + `
	WHERE user_id = $1
	ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, storeError(err, "failed to list tickets")
	}
	defer rows.Close()

	var records []models.Ownership
	for rows.Next() {
		rec, err := scanOwnership(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (r *OwnershipRepository) GetByBarcode(ctx context.Context, barcode string) (*models.Ownership, error) {
	rec, err := scanOwnership(r.db.QueryRowContext(ctx, selectOwnership+`
	WHERE barcode = $1`, barcode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "failed to get ticket")
	}
	return rec, nil
}
