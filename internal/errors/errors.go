package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"tessera/internal/models"
)

var ErrUnauthorized = stderrors.New("user is not authorized")
var ErrForbidden = stderrors.New("operation is forbidden for user")

// Kind is the machine-readable class of a domain failure.
type Kind string

const (
	KindSeatNotFound          Kind = "SEAT_NOT_FOUND"
	KindTicketNotFound        Kind = "TICKET_NOT_FOUND"
	KindSeatUnavailable       Kind = "SEAT_UNAVAILABLE"
	KindSeatNotHeld           Kind = "SEAT_NOT_HELD"
	KindHoldExpiredOrNotOwned Kind = "HOLD_EXPIRED_OR_NOT_OWNED"
	KindPaymentNotConfirmed   Kind = "PAYMENT_NOT_CONFIRMED"
	KindAmountMismatch        Kind = "AMOUNT_MISMATCH"
	KindPaymentAlreadyUsed    Kind = "PAYMENT_ALREADY_USED"
	KindPaymentGateway        Kind = "PAYMENT_GATEWAY"
	KindStoreUnavailable      Kind = "STORE_UNAVAILABLE"
	KindInvalidRequest        Kind = "INVALID_REQUEST"
	KindInternal              Kind = "INTERNAL"
)

// Sentinels for errors.Is checks. Any *Error matches the sentinel of its kind.
var (
	ErrSeatNotFound          = &Error{Kind: KindSeatNotFound, Message: "seat not found"}
	ErrTicketNotFound        = &Error{Kind: KindTicketNotFound, Message: "ticket not found"}
	ErrSeatUnavailable       = &Error{Kind: KindSeatUnavailable, Message: "some seats are unavailable"}
	ErrSeatNotHeld           = &Error{Kind: KindSeatNotHeld, Message: "seat is not reserved"}
	ErrHoldExpiredOrNotOwned = &Error{Kind: KindHoldExpiredOrNotOwned, Message: "hold expired or not owned by user"}
	ErrPaymentNotConfirmed   = &Error{Kind: KindPaymentNotConfirmed, Message: "payment not confirmed"}
	ErrAmountMismatch        = &Error{Kind: KindAmountMismatch, Message: "charged amount does not match price"}
	ErrPaymentAlreadyUsed    = &Error{Kind: KindPaymentAlreadyUsed, Message: "payment already used"}
	ErrPaymentGateway        = &Error{Kind: KindPaymentGateway, Message: "payment provider unavailable"}
	ErrStoreUnavailable      = &Error{Kind: KindStoreUnavailable, Message: "inventory store unavailable"}
	ErrInvalidRequest        = &Error{Kind: KindInvalidRequest, Message: "invalid request"}
)

// Error is a domain failure. Multi-seat failures list every offending seat.
type Error struct {
	Kind    Kind
	Message string
	Seats   []models.SeatKey
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Seats) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(models.SeatLabels(e.Seats), ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can test against sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// SeatLabels returns the offending seats as printable labels.
func (e *Error) SeatLabels() []string {
	return models.SeatLabels(e.Seats)
}

// New creates an error of kind with message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithSeats creates an aggregate error listing seats.
func WithSeats(kind Kind, message string, seats []models.SeatKey) *Error {
	listed := make([]models.SeatKey, len(seats))
	copy(listed, seats)
	models.SortSeatKeys(listed)
	return &Error{Kind: kind, Message: message, Seats: listed}
}

// Wrap attaches kind and message to a lower-level cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithDetail returns e with an extra detail attached.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// As finds the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
