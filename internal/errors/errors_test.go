package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"tessera/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := WithSeats(KindSeatUnavailable, "some seats are unavailable", []models.SeatKey{
		{EventID: 1, Row: "B", Number: 1},
		{EventID: 1, Row: "A", Number: 2},
	})
	wrapped := fmt.Errorf("reserve: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrSeatUnavailable))
	assert.False(t, stderrors.Is(wrapped, ErrSeatNotFound))
	assert.Equal(t, KindSeatUnavailable, KindOf(wrapped))
	assert.Equal(t, []string{"A2", "B1"}, err.SeatLabels())
	assert.Equal(t, "some seats are unavailable [A2, B1]", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(stderrors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset by peer")
	err := Wrap(KindStoreUnavailable, cause, "inventory store unavailable")

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestWithDetail(t *testing.T) {
	err := New(KindAmountMismatch, "mismatch").WithDetail("expected_minor", int64(2000))
	assert.Equal(t, int64(2000), err.Details["expected_minor"])
}
