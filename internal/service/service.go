package service

import (
	"context"
	"strings"
	"time"

	"tessera/internal/barcode"
	"tessera/internal/inventory"
	"tessera/internal/logger"
	"tessera/internal/metrics"
	"tessera/internal/models"
)

// Publisher delivers domain events. messaging.NATSClient implements it.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	GetPayment(ctx context.Context, reference string) (*models.ExternalPayment, error)
	CreatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error)
}

// TicketSearcher queries the sold-ticket search projection.
type TicketSearcher interface {
	SearchTickets(ctx context.Context, query string, eventID int64, limit int) ([]models.TicketDocument, error)
}

type Options struct {
	HoldDuration    time.Duration
	MaxHoldDuration time.Duration
	Currency        string
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HoldDuration <= 0 {
		o.HoldDuration = 10 * time.Minute
	}
	if o.MaxHoldDuration < o.HoldDuration {
		o.MaxHoldDuration = 3 * o.HoldDuration
	}
	o.Currency = strings.ToLower(strings.TrimSpace(o.Currency))
	if o.Currency == "" {
		o.Currency = "usd"
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Dependencies are the collaborators shared by all services. Gateway,
// Publisher, Search and Metrics may be nil.
type Dependencies struct {
	Store     inventory.Store
	Owners    inventory.OwnershipReader
	Gateway   PaymentGateway
	Publisher Publisher
	Search    TicketSearcher
	Barcodes  *barcode.Generator
	Metrics   *metrics.Metrics
}

type Services struct {
	Reservations *ReservationService
	Pricing      *PricingService
	Fulfillment  *FulfillmentService
	Seats        *SeatService
	Tickets      *TicketService
}

func NewServices(deps Dependencies, opts Options) *Services {
	opts = opts.withDefaults()
	if deps.Barcodes == nil {
		deps.Barcodes = barcode.NewGenerator("")
	}
	events := &eventPublisher{publisher: deps.Publisher}

	pricing := NewPricingService(deps.Store, opts)
	return &Services{
		Reservations: NewReservationService(deps.Store, events, deps.Metrics, opts),
		Pricing:      pricing,
		Fulfillment:  NewFulfillmentService(deps.Store, deps.Owners, pricing, deps.Gateway, events, deps.Barcodes, deps.Metrics, opts),
		Seats:        NewSeatService(deps.Store, opts),
		Tickets:      NewTicketService(deps.Owners, deps.Search),
	}
}

// eventPublisher publishes after a state change has committed. Failures are
// logged and never undo the committed change.
type eventPublisher struct {
	publisher Publisher
}

func (p *eventPublisher) publish(ctx context.Context, subject string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"subject", subject,
			"error", err)
	}
}
