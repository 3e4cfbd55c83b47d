package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SeatStatus - состояние места в инвентаре события
type SeatStatus string

const (
	SeatAvailable SeatStatus = "AVAILABLE"
	SeatReserved  SeatStatus = "RESERVED"
	SeatSold      SeatStatus = "SOLD"
)

// Valid reports whether s is one of the three stored states.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatAvailable, SeatReserved, SeatSold:
		return true
	}
	return false
}

// SeatKey identifies a seat within the whole system.
type SeatKey struct {
	EventID int64  `json:"event_id"`
	Row     string `json:"row"`
	Number  int    `json:"seat"`
}

// String renders the seat label the way venues print it, e.g. "A12".
func (k SeatKey) String() string {
	return k.Row + strconv.Itoa(k.Number)
}

// Less orders keys by (event, row, number). Locks are always taken in this order.
func (k SeatKey) Less(other SeatKey) bool {
	if k.EventID != other.EventID {
		return k.EventID < other.EventID
	}
	if k.Row != other.Row {
		return k.Row < other.Row
	}
	return k.Number < other.Number
}

// NormalizeRow trims and upper-cases a row label.
func NormalizeRow(row string) string {
	return strings.ToUpper(strings.TrimSpace(row))
}

// NormalizeSeats turns client seat references into canonical keys of eventID.
func NormalizeSeats(eventID int64, refs []SeatRef) ([]SeatKey, error) {
	keys := make([]SeatKey, len(refs))
	for i, ref := range refs {
		keys[i] = SeatKey{EventID: eventID, Row: ref.Row, Number: int(ref.Seat)}
	}
	return CanonicalSeats(eventID, keys)
}

// MaxSeatNumber is the largest seat number the store can hold (INTEGER column).
const MaxSeatNumber = math.MaxInt32

// CanonicalSeats canonicalizes a seat selection: every key is bound to eventID,
// row labels are normalized, duplicates removed and the result sorted in lock order.
func CanonicalSeats(eventID int64, keys []SeatKey) ([]SeatKey, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one seat is required")
	}
	seen := make(map[SeatKey]struct{}, len(keys))
	out := make([]SeatKey, 0, len(keys))
	for _, k := range keys {
		row := NormalizeRow(k.Row)
		if row == "" {
			return nil, fmt.Errorf("row label is required")
		}
		if k.Number <= 0 || k.Number > MaxSeatNumber {
			return nil, fmt.Errorf("invalid seat number %d in row %s", k.Number, row)
		}
		key := SeatKey{EventID: eventID, Row: row, Number: k.Number}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	SortSeatKeys(out)
	return out, nil
}

// SortSeatKeys sorts keys in place in lock order.
func SortSeatKeys(keys []SeatKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// SeatLabels returns the printable labels of keys.
func SeatLabels(keys []SeatKey) []string {
	labels := make([]string, len(keys))
	for i, k := range keys {
		labels[i] = k.String()
	}
	return labels
}

// Seat is the stored inventory record of one seat.
type Seat struct {
	EventID       int64           `json:"event_id" db:"event_id"`
	Row           string          `json:"row" db:"row_label"`
	Number        int             `json:"seat" db:"seat_number"`
	Status        SeatStatus      `json:"status" db:"status"`
	ReservedBy    *int64          `json:"reserved_by,omitempty" db:"reserved_by"`
	ReservedUntil *time.Time      `json:"reserved_until,omitempty" db:"reserved_until"`
	PriceCodeID   *int64          `json:"price_code_id,omitempty" db:"price_code_id"`
	BasePrice     decimal.Decimal `json:"base_price" db:"base_price"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// Key returns the identity of the seat.
func (s *Seat) Key() SeatKey {
	return SeatKey{EventID: s.EventID, Row: s.Row, Number: s.Number}
}

// DisplayStatus applies lazy expiry: a hold whose deadline has passed, or that
// has no deadline at all, reads as AVAILABLE.
func (s *Seat) DisplayStatus(now time.Time) SeatStatus {
	if s.Status == SeatReserved && (s.ReservedUntil == nil || !s.ReservedUntil.After(now)) {
		return SeatAvailable
	}
	return s.Status
}

// HeldBy reports whether the seat is under a live hold of userID.
func (s *Seat) HeldBy(userID int64, now time.Time) bool {
	return s.DisplayStatus(now) == SeatReserved && s.ReservedBy != nil && *s.ReservedBy == userID
}

// Hold places RESERVED(userID, until) on the seat.
func (s *Seat) Hold(userID int64, until time.Time) {
	s.Status = SeatReserved
	s.ReservedBy = &userID
	s.ReservedUntil = &until
}

// Clear returns the seat to AVAILABLE with no holder.
func (s *Seat) Clear() {
	s.Status = SeatAvailable
	s.ReservedBy = nil
	s.ReservedUntil = nil
}

// MarkSold finalizes the seat. Holder fields are cleared so that they stay
// non-null only while RESERVED.
func (s *Seat) MarkSold() {
	s.Status = SeatSold
	s.ReservedBy = nil
	s.ReservedUntil = nil
}

// SeatTransition is a single-seat compare-and-set request.
// It applies only when the displayed status at Now equals Expect and, if
// ExpectHolder is set, the stored holder equals it.
type SeatTransition struct {
	Key          SeatKey
	Expect       SeatStatus
	ExpectHolder *int64
	Next         SeatStatus
	Holder       *int64
	Until        *time.Time
	Now          time.Time
}

// PriceCode - справочник цен
type PriceCode struct {
	ID        int64           `json:"id" db:"id"`
	Label     string          `json:"label" db:"label"`
	BasePrice decimal.Decimal `json:"base_price" db:"base_price"`
}

// Ownership is an append-only ticket ownership record.
type Ownership struct {
	ID         int64     `json:"id" db:"id"`
	EventID    int64     `json:"event_id" db:"event_id"`
	Row        string    `json:"row" db:"row_label"`
	Number     int       `json:"seat" db:"seat_number"`
	UserID     int64     `json:"user_id" db:"user_id"`
	Barcode    string    `json:"barcode" db:"barcode"`
	PaymentRef *string   `json:"payment_ref,omitempty" db:"payment_ref"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Key returns the seat the record refers to.
func (o *Ownership) Key() SeatKey {
	return SeatKey{EventID: o.EventID, Row: o.Row, Number: o.Number}
}

// PaymentUse records that an external payment has paid for one fulfillment.
type PaymentUse struct {
	PaymentRef  string    `json:"payment_ref" db:"payment_ref"`
	EventID     int64     `json:"event_id" db:"event_id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	AmountMinor int64     `json:"amount_minor" db:"amount_minor"`
	Currency    string    `json:"currency" db:"currency"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Hold is the outcome of a successful reservation.
type Hold struct {
	EventID   int64     `json:"event_id"`
	UserID    int64     `json:"user_id"`
	Seats     []SeatKey `json:"seats"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PricePhase selects which seat states pricing accepts.
type PricePhase string

const (
	// PhaseHold prices an active reservation; every seat must be RESERVED.
	PhaseHold PricePhase = "hold"
	// PhaseAudit also accepts SOLD seats.
	PhaseAudit PricePhase = "audit"
)

// PriceLine is the price of one seat in a quote.
type PriceLine struct {
	Seat      SeatKey         `json:"seat"`
	Status    SeatStatus      `json:"status"`
	HeldBy    *int64          `json:"held_by,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Quote is the authoritative amount for a set of seats.
type Quote struct {
	EventID     int64       `json:"event_id"`
	Seats       []SeatKey   `json:"seats"`
	Lines       []PriceLine `json:"lines"`
	Total       string      `json:"total"`
	AmountMinor int64       `json:"amount_minor"`
	Currency    string      `json:"currency"`
}

// Purchase is the outcome of a successful fulfillment.
type Purchase struct {
	EventID     int64       `json:"event_id"`
	UserID      int64       `json:"user_id"`
	Tickets     []Ownership `json:"tickets"`
	PaymentRef  *string     `json:"payment_ref,omitempty"`
	AmountMinor int64       `json:"amount_minor"`
}

// PaymentStatusSucceeded is the only payment status that allows fulfillment.
const PaymentStatusSucceeded = "succeeded"

// ExternalPayment is what the payment collaborator reports about a payment.
type ExternalPayment struct {
	Reference   string            `json:"reference"`
	Status      string            `json:"status"`
	AmountMinor int64             `json:"amount_minor"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// PaymentIntent is a payment created for a priced hold.
type PaymentIntent struct {
	Reference    string `json:"payment_ref"`
	ClientSecret string `json:"client_secret,omitempty"`
	RedirectURL  string `json:"redirect_url,omitempty"`
	AmountMinor  int64  `json:"amount_minor"`
	Currency     string `json:"currency"`
}

// Payment metadata keys written at intent creation and checked at completion.
const (
	PaymentMetaEventID = "event_id"
	PaymentMetaUserID  = "user_id"
	PaymentMetaSeats   = "seats"
)

// PaymentRequest asks the payment collaborator for a new payment.
type PaymentRequest struct {
	OrderID     string
	AmountMinor int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// PaymentOrderID is the provider order id of a payment for a hold.
func PaymentOrderID(eventID, userID, nonce int64) string {
	return fmt.Sprintf("%d-%d-%d", eventID, userID, nonce)
}
