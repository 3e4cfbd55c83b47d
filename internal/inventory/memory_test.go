package inventory

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	standard := int64(1)
	store.PutPriceCode(models.PriceCode{ID: standard, Label: "standard", BasePrice: decimal.RequireFromString("10.00")})
	store.AddSeats(
		models.Seat{EventID: 1, Row: "A", Number: 1, PriceCodeID: &standard},
		models.Seat{EventID: 1, Row: "A", Number: 2, PriceCodeID: &standard},
		models.Seat{EventID: 1, Row: "B", Number: 1},
	)
	return store
}

func key(row string, n int) models.SeatKey {
	return models.SeatKey{EventID: 1, Row: row, Number: n}
}

func TestMemoryStoreGetSeatJoinsPrice(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	seat, err := store.GetSeat(ctx, key("a", 1))
	require.NoError(t, err)
	assert.Equal(t, models.SeatAvailable, seat.Status)
	assert.True(t, decimal.RequireFromString("10").Equal(seat.BasePrice))

	store.PutPriceCode(models.PriceCode{ID: 1, BasePrice: decimal.RequireFromString("12.50")})
	seat, err = store.GetSeat(ctx, key("A", 1))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("12.50").Equal(seat.BasePrice))

	_, err = store.GetSeat(ctx, key("Z", 9))
	assert.True(t, stderrors.Is(err, apperrors.ErrSeatNotFound))
}

func TestMemoryStoreListSeatsOrdered(t *testing.T) {
	store := seedStore(t)
	store.AddSeats(models.Seat{EventID: 2, Row: "A", Number: 1})

	seats, err := store.ListSeats(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, seats, 3)
	assert.Equal(t, "A1", seats[0].Key().String())
	assert.Equal(t, "A2", seats[1].Key().String())
	assert.Equal(t, "B1", seats[2].Key().String())
}

func TestMemoryStoreTrySetStatusComparesDisplayedStatus(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()
	now := time.Now()
	user := int64(7)
	until := now.Add(-time.Minute)

	ok, err := store.TrySetStatus(ctx, models.SeatTransition{
		Key: key("A", 1), Expect: models.SeatAvailable, Next: models.SeatReserved,
		Holder: &user, Until: &until, Now: now.Add(-2 * time.Minute),
	})
	require.NoError(t, err)
	require.True(t, ok)

	// The hold has lapsed by now, so it is displayed AVAILABLE.
	other := int64(8)
	fresh := now.Add(time.Minute)
	ok, err = store.TrySetStatus(ctx, models.SeatTransition{
		Key: key("A", 1), Expect: models.SeatReserved, Next: models.SeatAvailable, Now: now,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.TrySetStatus(ctx, models.SeatTransition{
		Key: key("A", 1), Expect: models.SeatAvailable, Next: models.SeatReserved,
		Holder: &other, Until: &fresh, Now: now,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TrySetStatus(ctx, models.SeatTransition{
		Key: key("A", 1), Expect: models.SeatReserved, ExpectHolder: &user, Next: models.SeatAvailable, Now: now,
	})
	require.NoError(t, err)
	assert.False(t, ok, "holder precondition must be enforced")

	seat, err := store.GetSeat(ctx, key("A", 1))
	require.NoError(t, err)
	assert.Equal(t, other, *seat.ReservedBy)
}

func TestMemoryStoreTxRollsBackOnError(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()
	boom := stderrors.New("boom")

	err := store.InTx(ctx, 1, func(tx Tx) error {
		seats, err := tx.LockSeats(ctx, []models.SeatKey{key("A", 1), key("A", 2)})
		if err != nil {
			return err
		}
		for _, seat := range seats {
			seat.MarkSold()
			if err := tx.UpdateSeat(ctx, seat); err != nil {
				return err
			}
		}
		if err := tx.InsertOwnership(ctx, &models.Ownership{EventID: 1, Row: "A", Number: 1, UserID: 7, Barcode: "x"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	for _, k := range []models.SeatKey{key("A", 1), key("A", 2)} {
		seat, err := store.GetSeat(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, models.SeatAvailable, seat.Status)
	}
	owned, err := store.ListByUser(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, owned)
}

func TestMemoryStoreTxCommits(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, 1, func(tx Tx) error {
		seats, err := tx.LockSeats(ctx, []models.SeatKey{key("A", 1), key("C", 9)})
		if err != nil {
			return err
		}
		assert.Len(t, seats, 1, "missing seats are absent from the result")
		seat := seats[key("A", 1)]
		seat.MarkSold()
		if err := tx.UpdateSeat(ctx, seat); err != nil {
			return err
		}
		if err := tx.RecordPayment(ctx, &models.PaymentUse{PaymentRef: "pi_1", EventID: 1, UserID: 7}); err != nil {
			return err
		}
		return tx.InsertOwnership(ctx, &models.Ownership{EventID: 1, Row: "A", Number: 1, UserID: 7, Barcode: "bc-1"})
	})
	require.NoError(t, err)

	rec, err := store.GetByBarcode(ctx, "bc-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(7), rec.UserID)
	assert.NotZero(t, rec.ID)

	err = store.InTx(ctx, 1, func(tx Tx) error {
		return tx.RecordPayment(ctx, &models.PaymentUse{PaymentRef: "pi_1", EventID: 1, UserID: 7})
	})
	assert.True(t, stderrors.Is(err, apperrors.ErrPaymentAlreadyUsed))
}

func TestMemoryStoreRejectsHolderlessHold(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	err := store.InTx(ctx, 1, func(tx Tx) error {
		seats, err := tx.LockSeats(ctx, []models.SeatKey{key("A", 1)})
		if err != nil {
			return err
		}
		seat := seats[key("A", 1)]
		seat.Status = models.SeatReserved
		return tx.UpdateSeat(ctx, seat)
	})
	assert.Error(t, err)

	err = store.InTx(ctx, 1, func(tx Tx) error {
		return tx.UpdateSeat(ctx, &models.Seat{EventID: 1, Row: "A", Number: 2, Status: models.SeatSold})
	})
	assert.Error(t, err, "unlocked seats cannot be written")
}

func TestMemoryStoreSweepExpired(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()
	now := time.Now()
	user := int64(7)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	_, err := store.TrySetStatus(ctx, models.SeatTransition{Key: key("A", 1), Expect: models.SeatAvailable, Next: models.SeatReserved, Holder: &user, Until: &past, Now: now.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = store.TrySetStatus(ctx, models.SeatTransition{Key: key("A", 2), Expect: models.SeatAvailable, Next: models.SeatReserved, Holder: &user, Until: &future, Now: now})
	require.NoError(t, err)

	cleared, err := store.SweepExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)

	seat, err := store.GetSeat(ctx, key("A", 1))
	require.NoError(t, err)
	assert.Equal(t, models.SeatAvailable, seat.Status)
	assert.Nil(t, seat.ReservedBy)

	seat, err = store.GetSeat(ctx, key("A", 2))
	require.NoError(t, err)
	assert.Equal(t, models.SeatReserved, seat.Status)
}
