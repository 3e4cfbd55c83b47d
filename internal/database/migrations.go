package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createPriceCodesTable,
		createSeatsTable,
		createSeatsHoldIndex,
		createTicketOwnershipTable,
		createTicketOwnershipUserIndex,
		createPaymentFulfillmentsTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createPriceCodesTable = `
CREATE TABLE IF NOT EXISTS price_codes (
    id SERIAL PRIMARY KEY,
    label VARCHAR(64) NOT NULL UNIQUE,
    base_price NUMERIC(10,2) NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createSeatsTable = `
CREATE TABLE IF NOT EXISTS seats (
    event_id BIGINT NOT NULL,
    row_label VARCHAR(8) NOT NULL,
    seat_number INTEGER NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
    reserved_by BIGINT,
    reserved_until TIMESTAMPTZ,
    price_code_id INTEGER REFERENCES price_codes(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (event_id, row_label, seat_number),
    CHECK (status IN ('AVAILABLE', 'RESERVED', 'SOLD')),
    CHECK ((status = 'RESERVED') = (reserved_by IS NOT NULL AND reserved_until IS NOT NULL)),
    CHECK ((reserved_by IS NULL) = (reserved_until IS NULL))
);`

const createSeatsHoldIndex = `
CREATE INDEX IF NOT EXISTS idx_seats_reserved_until ON seats(reserved_until) WHERE status = 'RESERVED';`

const createTicketOwnershipTable = `
CREATE TABLE IF NOT EXISTS ticket_ownership (
    id BIGSERIAL PRIMARY KEY,
    event_id BIGINT NOT NULL,
    row_label VARCHAR(8) NOT NULL,
    seat_number INTEGER NOT NULL,
    user_id BIGINT NOT NULL,
    barcode VARCHAR(128) NOT NULL UNIQUE,
    payment_ref VARCHAR(255),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    FOREIGN KEY (event_id, row_label, seat_number) REFERENCES seats(event_id, row_label, seat_number),
    UNIQUE (event_id, row_label, seat_number)
);`

const createTicketOwnershipUserIndex = `
CREATE INDEX IF NOT EXISTS idx_ticket_ownership_user ON ticket_ownership(user_id, created_at DESC);`

const createPaymentFulfillmentsTable = `
CREATE TABLE IF NOT EXISTS payment_fulfillments (
    payment_ref VARCHAR(255) PRIMARY KEY,
    event_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    amount_minor BIGINT NOT NULL,
    currency VARCHAR(8) NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
