package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"tessera/internal/barcode"
	apperrors "tessera/internal/errors"
	"tessera/internal/inventory"
	"tessera/internal/logger"
	"tessera/internal/metrics"
	"tessera/internal/models"
)

const (
	modeDirect  = "direct"
	modePayment = "payment"
)

// FulfillmentService turns held seats into sold tickets.
type FulfillmentService struct {
	store    inventory.Store
	owners   inventory.OwnershipReader
	pricing  *PricingService
	gateway  PaymentGateway
	events   *eventPublisher
	barcodes *barcode.Generator
	metrics  *metrics.Metrics
	opts     Options
}

func NewFulfillmentService(store inventory.Store, owners inventory.OwnershipReader, pricing *PricingService, gateway PaymentGateway, events *eventPublisher, barcodes *barcode.Generator, m *metrics.Metrics, opts Options) *FulfillmentService {
	return &FulfillmentService{
		store:    store,
		owners:   owners,
		pricing:  pricing,
		gateway:  gateway,
		events:   events,
		barcodes: barcodes,
		metrics:  m,
		opts:     opts.withDefaults(),
	}
}

// PurchaseDirect sells seats the caller currently holds, without payment.
func (s *FulfillmentService) PurchaseDirect(ctx context.Context, eventID, userID int64, seats []models.SeatKey) (*models.Purchase, error) {
	keys, err := validateSelection(eventID, userID, seats)
	if err != nil {
		return nil, err
	}

	purchase, err := s.fulfill(ctx, eventID, userID, keys, nil)
	if err != nil {
		s.metrics.PurchaseResult(modeDirect, resultLabel(err))
		return nil, err
	}
	s.metrics.PurchaseResult(modeDirect, "ok")
	return purchase, nil
}

// PurchaseWithPayment sells held seats against a confirmed external payment.
// The payment is fetched before any seat is locked, the charged amount must
// equal the live price of the hold, and the sale itself re-checks the amount
// against the locked rows.
func (s *FulfillmentService) PurchaseWithPayment(ctx context.Context, eventID, userID int64, seats []models.SeatKey, paymentRef string) (*models.Purchase, error) {
	keys, err := validateSelection(eventID, userID, seats)
	if err != nil {
		return nil, err
	}
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "payment reference is required")
	}
	if s.gateway == nil {
		return nil, apperrors.New(apperrors.KindPaymentGateway, "payments are not configured")
	}
	log := logger.WithContext(ctx).With("event_id", eventID, "payment_ref", paymentRef)

	payment, err := s.gateway.GetPayment(ctx, paymentRef)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			s.metrics.PurchaseResult(modePayment, resultLabel(err))
			return nil, err
		}
		s.metrics.PurchaseResult(modePayment, "gateway_error")
		return nil, apperrors.Wrap(apperrors.KindPaymentGateway, err, "failed to retrieve payment")
	}

	if payment.Status != models.PaymentStatusSucceeded {
		// Nothing was charged, so there is nothing to refund.
		s.metrics.PaymentRejected("not_confirmed")
		s.metrics.PurchaseResult(modePayment, "rejected")
		return nil, apperrors.Newf(apperrors.KindPaymentNotConfirmed, "payment status is %q", payment.Status).
			WithDetail("status", payment.Status)
	}
	if err := checkPaymentOwner(payment, eventID, userID, keys); err != nil {
		s.reject(ctx, eventID, userID, keys, payment, 0, "foreign_payment")
		return nil, err
	}

	quote, err := s.pricing.Price(ctx, eventID, keys, models.PhaseHold)
	if err != nil {
		return nil, s.holdLost(ctx, eventID, userID, keys, payment, err)
	}

	if payment.AmountMinor != quote.AmountMinor || !sameCurrency(payment.Currency, quote.Currency) {
		s.reject(ctx, eventID, userID, keys, payment, quote.AmountMinor, "amount_mismatch")
		log.Warn("Payment amount does not match price",
			"user_id", userID,
			"charged_minor", payment.AmountMinor,
			"charged_currency", payment.Currency,
			"expected_minor", quote.AmountMinor,
			"expected_currency", quote.Currency)
		return nil, amountMismatch(payment.AmountMinor, quote.AmountMinor)
	}

	use := &models.PaymentUse{
		PaymentRef:  paymentRef,
		EventID:     eventID,
		UserID:      userID,
		AmountMinor: payment.AmountMinor,
		Currency:    strings.ToLower(payment.Currency),
	}
	purchase, err := s.fulfill(ctx, eventID, userID, keys, use)
	if err != nil {
		if errors.Is(err, apperrors.ErrAmountMismatch) {
			s.reject(ctx, eventID, userID, keys, payment, quote.AmountMinor, "price_changed")
			log.Warn("Price changed between quote and sale", "user_id", userID, "error", err)
			return nil, err
		}
		return nil, s.holdLost(ctx, eventID, userID, keys, payment, err)
	}
	s.metrics.PurchaseResult(modePayment, "ok")
	return purchase, nil
}

// fulfill is the atomic sale. It may run more than once when the store retries
// a transient failure, so it rebuilds its results on every run.
func (s *FulfillmentService) fulfill(ctx context.Context, eventID, userID int64, keys []models.SeatKey, use *models.PaymentUse) (*models.Purchase, error) {
	var (
		tickets []models.Ownership
		amount  int64
	)
	start := time.Now()
	err := s.store.InTx(ctx, eventID, func(tx inventory.Tx) error {
		tickets = tickets[:0]
		now := s.opts.Clock()

		locked, err := tx.LockSeats(ctx, keys)
		if err != nil {
			return err
		}

		var failing []models.SeatKey
		ordered := make([]*models.Seat, 0, len(keys))
		for _, key := range keys {
			seat, ok := locked[key]
			if !ok || !seat.HeldBy(userID, now) {
				failing = append(failing, key)
				continue
			}
			ordered = append(ordered, seat)
		}
		if len(failing) > 0 {
			return apperrors.WithSeats(apperrors.KindHoldExpiredOrNotOwned, "hold expired or not owned by user", failing)
		}

		amount = amountOf(ordered)
		var paymentRef *string
		if use != nil {
			if amount != use.AmountMinor {
				return amountMismatch(use.AmountMinor, amount)
			}
			if err := tx.RecordPayment(ctx, use); err != nil {
				return err
			}
			ref := use.PaymentRef
			paymentRef = &ref
		}

		for _, seat := range ordered {
			seat.MarkSold()
			if err := tx.UpdateSeat(ctx, seat); err != nil {
				return err
			}
			rec := models.Ownership{
				EventID:    seat.EventID,
				Row:        seat.Row,
				Number:     seat.Number,
				UserID:     userID,
				Barcode:    s.barcodes.Next(seat.Key()),
				PaymentRef: paymentRef,
				CreatedAt:  now,
			}
			if err := tx.InsertOwnership(ctx, &rec); err != nil {
				return err
			}
			tickets = append(tickets, rec)
		}
		return nil
	})
	s.metrics.ObserveDuration("fulfill", start)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("failed to fulfill purchase: %w", err)
	}

	purchase := &models.Purchase{
		EventID:     eventID,
		UserID:      userID,
		Tickets:     tickets,
		AmountMinor: amount,
	}
	event := models.TicketsPurchasedEvent{
		EventID:     eventID,
		UserID:      userID,
		AmountMinor: amount,
		Tickets:     tickets,
		Timestamp:   time.Now(),
	}
	if use != nil {
		purchase.PaymentRef = &use.PaymentRef
		event.PaymentRef = use.PaymentRef
	}

	logger.WithContext(ctx).Info("Tickets sold",
		"event_id", eventID,
		"user_id", userID,
		"seats", models.SeatLabels(keys),
		"amount_minor", amount,
		"paid", use != nil)

	s.events.publish(ctx, models.EventTicketsPurchased, event)
	return purchase, nil
}

// CreatePaymentIntent prices the caller's hold and asks the payment provider
// for a payment of exactly that amount.
func (s *FulfillmentService) CreatePaymentIntent(ctx context.Context, eventID, userID int64, seats []models.SeatKey) (*models.PaymentIntent, error) {
	keys, err := validateSelection(eventID, userID, seats)
	if err != nil {
		return nil, err
	}
	if s.gateway == nil {
		return nil, apperrors.New(apperrors.KindPaymentGateway, "payments are not configured")
	}

	quote, err := s.pricing.Price(ctx, eventID, keys, models.PhaseHold)
	if err != nil {
		return nil, err
	}
	var notOwned []models.SeatKey
	for _, line := range quote.Lines {
		if line.HeldBy == nil || *line.HeldBy != userID {
			notOwned = append(notOwned, line.Seat)
		}
	}
	if len(notOwned) > 0 {
		return nil, apperrors.WithSeats(apperrors.KindHoldExpiredOrNotOwned, "hold expired or not owned by user", notOwned)
	}
	if quote.AmountMinor <= 0 {
		return nil, apperrors.New(apperrors.KindInvalidRequest, "nothing to pay for")
	}

	labels := strings.Join(models.SeatLabels(keys), ",")
	intent, err := s.gateway.CreatePayment(ctx, models.PaymentRequest{
		OrderID:     models.PaymentOrderID(eventID, userID, s.opts.Clock().UnixNano()),
		AmountMinor: quote.AmountMinor,
		Currency:    quote.Currency,
		Description: fmt.Sprintf("Event %d seats %s", eventID, labels),
		Metadata: map[string]string{
			models.PaymentMetaEventID: strconv.FormatInt(eventID, 10),
			models.PaymentMetaUserID:  strconv.FormatInt(userID, 10),
			models.PaymentMetaSeats:   labels,
		},
	})
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.KindPaymentGateway, err, "failed to create payment")
	}

	logger.WithContext(ctx).Info("Payment intent created",
		"event_id", eventID,
		"user_id", userID,
		"payment_ref", intent.Reference,
		"amount_minor", intent.AmountMinor)
	return intent, nil
}

// checkPaymentOwner rejects a payment whose metadata names another user, event
// or seat set. Payments without metadata are accepted.
func checkPaymentOwner(payment *models.ExternalPayment, eventID, userID int64, keys []models.SeatKey) error {
	md := payment.Metadata
	if v, ok := md[models.PaymentMetaUserID]; ok && v != strconv.FormatInt(userID, 10) {
		return apperrors.New(apperrors.KindPaymentNotConfirmed, "payment belongs to another user")
	}
	if v, ok := md[models.PaymentMetaEventID]; ok && v != strconv.FormatInt(eventID, 10) {
		return apperrors.New(apperrors.KindPaymentNotConfirmed, "payment belongs to another event")
	}
	if v, ok := md[models.PaymentMetaSeats]; ok && v != strings.Join(models.SeatLabels(keys), ",") {
		return apperrors.New(apperrors.KindPaymentNotConfirmed, "payment was created for other seats")
	}
	return nil
}

// holdLost handles a sale that failed after the charge succeeded. Losing the
// hold or the seat asks for a refund, unless this payment already paid for
// tickets of the same user (a retried completion). A seat that is no longer
// reserved reads as HOLD_EXPIRED_OR_NOT_OWNED, the same as in PurchaseDirect.
// Other failures are returned unchanged and may be retried.
func (s *FulfillmentService) holdLost(ctx context.Context, eventID, userID int64, keys []models.SeatKey, payment *models.ExternalPayment, err error) error {
	appErr, ok := apperrors.As(err)
	if !ok {
		s.metrics.PurchaseResult(modePayment, resultLabel(err))
		return err
	}
	switch appErr.Kind {
	case apperrors.KindSeatNotHeld:
		err = apperrors.WithSeats(apperrors.KindHoldExpiredOrNotOwned, "hold expired or not owned by user", appErr.Seats)
	case apperrors.KindHoldExpiredOrNotOwned, apperrors.KindSeatNotFound:
	default:
		s.metrics.PurchaseResult(modePayment, resultLabel(err))
		return err
	}

	if s.paidBefore(ctx, userID, payment.Reference) {
		logger.WithContext(ctx).Info("Payment already fulfilled",
			"event_id", eventID,
			"user_id", userID,
			"payment_ref", payment.Reference)
		s.metrics.PurchaseResult(modePayment, resultLabel(err))
		return err
	}

	s.reject(ctx, eventID, userID, keys, payment, 0, "hold_lost")
	logger.WithContext(ctx).Warn("Paid seats could not be sold, refund required",
		"event_id", eventID,
		"user_id", userID,
		"payment_ref", payment.Reference,
		"error", err)
	return err
}

// paidBefore reports whether the user owns tickets bought with ref.
func (s *FulfillmentService) paidBefore(ctx context.Context, userID int64, ref string) bool {
	if s.owners == nil {
		return false
	}
	owned, err := s.owners.ListByUser(ctx, userID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to read ownership", "user_id", userID, "error", err)
		return false
	}
	for _, rec := range owned {
		if rec.PaymentRef != nil && *rec.PaymentRef == ref {
			return true
		}
	}
	return false
}

func (s *FulfillmentService) reject(ctx context.Context, eventID, userID int64, keys []models.SeatKey, payment *models.ExternalPayment, expected int64, reason string) {
	s.metrics.PaymentRejected(reason)
	s.metrics.PurchaseResult(modePayment, "rejected")
	s.events.publish(ctx, models.EventPurchaseRejected, models.PurchaseRejectedEvent{
		EventID:       eventID,
		UserID:        userID,
		PaymentRef:    payment.Reference,
		Reason:        reason,
		ChargedMinor:  payment.AmountMinor,
		ExpectedMinor: expected,
		Seats:         models.SeatLabels(keys),
		Timestamp:     time.Now(),
	})
}

func amountMismatch(charged, expected int64) error {
	return apperrors.Newf(apperrors.KindAmountMismatch, "charged %d does not match price %d", charged, expected).
		WithDetail("charged_minor", charged).
		WithDetail("expected_minor", expected)
}

func sameCurrency(a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	return strings.EqualFold(a, b)
}

func resultLabel(err error) string {
	return strings.ToLower(string(apperrors.KindOf(err)))
}
