// Package inventory defines the seat store contract shared by the reservation
// and fulfillment services, and an in-memory implementation of it.
package inventory

import (
	"context"
	"time"

	"tessera/internal/models"
)

// Store is the durable source of truth for seat status.
type Store interface {
	// GetSeat returns the stored record, or an error of kind SEAT_NOT_FOUND.
	GetSeat(ctx context.Context, key models.SeatKey) (*models.Seat, error)
	// ListSeats returns every seat of the event ordered by row and number.
	ListSeats(ctx context.Context, eventID int64) ([]models.Seat, error)
	// TrySetStatus applies a single-seat compare-and-set on the displayed status.
	TrySetStatus(ctx context.Context, t models.SeatTransition) (bool, error)
	// InTx runs fn in one all-or-nothing transaction scoped to eventID.
	// Nothing fn wrote is visible to others unless fn returns nil.
	InTx(ctx context.Context, eventID int64, fn func(tx Tx) error) error
	// SweepExpired rewrites holds that lapsed before now to AVAILABLE.
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
}

// Tx is the view of the store inside InTx.
type Tx interface {
	// LockSeats takes exclusive locks on keys in lock order and returns the
	// seats that exist. Missing keys are simply absent from the result.
	LockSeats(ctx context.Context, keys []models.SeatKey) (map[models.SeatKey]*models.Seat, error)
	UpdateSeat(ctx context.Context, seat *models.Seat) error
	InsertOwnership(ctx context.Context, rec *models.Ownership) error
	// RecordPayment fails with kind PAYMENT_ALREADY_USED if the reference was
	// already recorded.
	RecordPayment(ctx context.Context, use *models.PaymentUse) error
}

// OwnershipReader reads the ownership ledger.
type OwnershipReader interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Ownership, error)
	GetByBarcode(ctx context.Context, barcode string) (*models.Ownership, error)
}
