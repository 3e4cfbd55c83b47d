package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pq.Error{Code: "40001"}, true},
		{"deadlock", fmt.Errorf("lock seats: %w", &pq.Error{Code: "40P01"}), true},
		{"lock timeout", &pq.Error{Code: "55P03"}, true},
		{"barcode collision", &pq.Error{Code: "23505", Constraint: BarcodeConstraint}, true},
		{"payment reuse", &pq.Error{Code: "23505", Constraint: PaymentRefConstraint}, false},
		{"check violation", &pq.Error{Code: "23514"}, false},
		{"bad conn", driver.ErrBadConn, true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"canceled", context.Canceled, false},
		{"domain", errors.New("seat not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: PaymentRefConstraint})
	assert.True(t, IsUniqueViolation(err, PaymentRefConstraint))
	assert.True(t, IsUniqueViolation(err, ""))
	assert.False(t, IsUniqueViolation(err, BarcodeConstraint))
	assert.False(t, IsUniqueViolation(errors.New("x"), ""))
}

func TestWithRetryStopsOnDomainError(t *testing.T) {
	db := &DB{retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}}
	domain := errors.New("not held")
	calls := 0

	err := db.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return domain
	})
	assert.ErrorIs(t, err, domain)
	assert.Equal(t, 1, calls)
}

func TestWithRetryIsBounded(t *testing.T) {
	retries := 0
	db := &DB{retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond, OnRetry: func(int, error) { retries++ }}}
	calls := 0

	err := db.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		return &pq.Error{Code: "40P01"}
	})
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestWithRetryRecovers(t *testing.T) {
	db := &DB{retry: RetryPolicy{MaxAttempts: 3, Backoff: time.Millisecond}}
	calls := 0

	err := db.WithRetry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &pq.Error{Code: "40001"}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestInTxRollsBackOnError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db := New(sqlDB, RetryPolicy{MaxAttempts: 1})
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout = '2000ms'").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = db.InTx(context.Background(), 2*time.Second, func(tx *sql.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
