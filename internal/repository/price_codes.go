package repository

import (
	"context"

	"tessera/internal/database"
	"tessera/internal/models"

	"github.com/shopspring/decimal"
)

type PriceCodeRepository struct {
	db *database.DB
}

func NewPriceCodeRepository(db *database.DB) *PriceCodeRepository {
	return &PriceCodeRepository{db: db}
}

// Upsert creates the price code or updates its base price, keyed by label.
func (r *PriceCodeRepository) Upsert(ctx context.Context, label string, basePrice decimal.Decimal) (*models.PriceCode, error) {
	query := `
		INSERT INTO price_codes (label, base_price)
		VALUES ($1, $2)
		ON CONFLICT (label) DO UPDATE SET base_price = EXCLUDED.base_price, updated_at = NOW()
		RETURNING id, label, base_price`

	pc := &models.PriceCode{}
	err := r.db.QueryRowContext(ctx, query, label, basePrice).Scan(&pc.ID, &pc.Label, &pc.BasePrice)
	if err != nil {
		return nil, storeError(err, "failed to upsert price code")
	}
	return pc, nil
}
