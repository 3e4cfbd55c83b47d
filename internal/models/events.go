package models

import "time"

// NATS Event Types
const (
	EventSeatsReserved    = "seats.reserved"
	EventSeatsReleased    = "seats.released"
	EventTicketsPurchased = "tickets.purchased"
	EventPurchaseRejected = "purchase.rejected"
	EventHoldsExpired     = "seats.holds_expired"
)

// SeatsReservedEvent is published after a hold commits.
type SeatsReservedEvent struct {
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Seats     []string  `json:"seats"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

// SeatsReleasedEvent is published when a user gives seats back.
type SeatsReleasedEvent struct {
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Seats     []string  `json:"seats"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketsPurchasedEvent carries the ownership records of one fulfillment.
type TicketsPurchasedEvent struct {
	EventID     int64       `json:"event_id"`
	UserID      int64       `json:"user_id"`
	PaymentRef  string      `json:"payment_ref,omitempty"`
	AmountMinor int64       `json:"amount_minor"`
	Tickets     []Ownership `json:"tickets"`
	Timestamp   time.Time   `json:"timestamp"`
}

// PurchaseRejectedEvent flags a payment that could not be fulfilled,
// typically a charged amount that differs from the recomputed price.
type PurchaseRejectedEvent struct {
	EventID       int64     `json:"event_id"`
	UserID        int64     `json:"user_id"`
	PaymentRef    string    `json:"payment_ref"`
	Reason        string    `json:"reason"`
	ChargedMinor  int64     `json:"charged_minor"`
	ExpectedMinor int64     `json:"expected_minor"`
	Seats         []string  `json:"seats"`
	Timestamp     time.Time `json:"timestamp"`
}

// HoldsExpiredEvent is published by the sweeper after clearing stale holds.
type HoldsExpiredEvent struct {
	Cleared   int64     `json:"cleared"`
	Timestamp time.Time `json:"timestamp"`
}
