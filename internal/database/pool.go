package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
)

type PoolStats struct {
	MaxOpenConns      int           `json:"max_open_connections"`
	OpenConns         int           `json:"open_connections"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

type HealthCheck struct {
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
	Timestamp    time.Time     `json:"timestamp"`
}

func (db *DB) GetPoolStats() PoolStats {
	stats := db.Stats()
	return PoolStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (db *DB) HealthCheck(ctx context.Context) HealthCheck {
	start := time.Now()
	healthCheck := HealthCheck{
		Timestamp: start,
		Stats:     db.GetPoolStats(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.PingContext(pingCtx)
	healthCheck.ResponseTime = time.Since(start)

	if err != nil {
		healthCheck.Status = "unhealthy"
		healthCheck.Error = err.Error()
		slog.Error("Database health check failed", "error", err)
	} else {
		healthCheck.Status = "healthy"
	}

	if stats := db.Stats(); stats.InUse > int(float64(stats.MaxOpenConnections)*0.9) {
		slog.Warn("High connection usage detected",
			"in_use", stats.InUse, "max_open", stats.MaxOpenConnections)
	}

	return healthCheck
}

// RetryPolicy bounds how transient storage failures are retried.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// OnRetry is called before each new attempt.
	OnRetry func(attempt int, err error)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 100 * time.Millisecond
	}
	return p
}

// ErrRetriesExhausted wraps the last transient error once every attempt failed.
var ErrRetriesExhausted = errors.New("storage retries exhausted")

// WithRetry runs op, retrying transient failures with linear backoff.
// Non-transient errors are returned unchanged on the first occurrence.
func (db *DB) WithRetry(ctx context.Context, op func(ctx context.Context) error) error {
	policy := db.retry.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryableError(err) {
			return err
		}
		lastErr = err

		if attempt < policy.MaxAttempts {
			slog.Warn("Database operation failed, retrying",
				"attempt", attempt, "max_retries", policy.MaxAttempts, "error", err)
			if policy.OnRetry != nil {
				policy.OnRetry(attempt, err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * policy.Backoff):
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, policy.MaxAttempts, lastErr)
}

// InTx runs fn inside a transaction with the configured lock timeout. The whole
// transaction is retried when it fails with a transient error.
func (db *DB) InTx(ctx context.Context, lockTimeout time.Duration, fn func(tx *sql.Tx) error) error {
	return db.WithRetry(ctx, func(ctx context.Context) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to set lock timeout: %w", err)
			}
		}

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

// Constraint names created by the migrations.
const (
	BarcodeConstraint    = "ticket_ownership_barcode_key"
	PaymentRefConstraint = "payment_fulfillments_pkey"
)

// Transient Postgres conditions: the same statement can succeed when re-run.
var retryableCodes = map[pq.ErrorCode]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
	"57P01": {}, // admin_shutdown
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
}

// IsRetryableError reports whether err is a transient storage failure.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		// A barcode collision is resolved by re-running with a fresh barcode.
		if pqErr.Code == "23505" && pqErr.Constraint == BarcodeConstraint {
			return true
		}
		_, ok := retryableCodes[pqErr.Code]
		return ok
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	errStr := err.Error()
	for _, retryable := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
	} {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation,
// optionally of the named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
