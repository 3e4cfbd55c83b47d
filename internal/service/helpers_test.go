package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tessera/internal/barcode"
	apperrors "tessera/internal/errors"
	"tessera/internal/inventory"
	"tessera/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testEvent = int64(1)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []interface{}
	fail     bool
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("nats unavailable")
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) Subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

func (p *recordingPublisher) rejections() []models.PurchaseRejectedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.PurchaseRejectedEvent
	for _, data := range p.payloads {
		if ev, ok := data.(models.PurchaseRejectedEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

type fakeGateway struct {
	mu       sync.Mutex
	payments map[string]*models.ExternalPayment
	created  []models.PaymentRequest
	err      error
	// onGet runs during GetPayment, before the result is returned.
	onGet func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{payments: make(map[string]*models.ExternalPayment)}
}

func (g *fakeGateway) set(ref, status string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments[ref] = &models.ExternalPayment{Reference: ref, Status: status, AmountMinor: amount, Currency: "usd"}
}

func (g *fakeGateway) GetPayment(ctx context.Context, ref string) (*models.ExternalPayment, error) {
	if g.onGet != nil {
		g.onGet()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	p, ok := g.payments[ref]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindPaymentNotConfirmed, "payment %s not found", ref)
	}
	copied := *p
	return &copied, nil
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, req)
	ref := "pi_test_" + req.OrderID
	g.payments[ref] = &models.ExternalPayment{
		Reference:   ref,
		Status:      "requires_payment_method",
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	}
	return &models.PaymentIntent{Reference: ref, ClientSecret: ref + "_secret", AmountMinor: req.AmountMinor, Currency: req.Currency}, nil
}

type testEnv struct {
	store     *inventory.MemoryStore
	clock     *testClock
	gateway   *fakeGateway
	publisher *recordingPublisher
	services  *Services
}

// newTestEnv seeds event 1 with rows A and B, four seats each. Row A costs
// 10.00 and row B costs 15.00.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := inventory.NewMemoryStore()
	standard, premium := int64(1), int64(2)
	store.PutPriceCode(models.PriceCode{ID: standard, Label: "standard", BasePrice: decimal.RequireFromString("10.00")})
	store.PutPriceCode(models.PriceCode{ID: premium, Label: "premium", BasePrice: decimal.RequireFromString("15.00")})
	for n := 1; n <= 4; n++ {
		store.AddSeats(
			models.Seat{EventID: testEvent, Row: "A", Number: n, PriceCodeID: &standard},
			models.Seat{EventID: testEvent, Row: "B", Number: n, PriceCodeID: &premium},
		)
	}

	env := &testEnv{
		store:     store,
		clock:     &testClock{now: time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC)},
		gateway:   newFakeGateway(),
		publisher: &recordingPublisher{},
	}
	env.services = NewServices(Dependencies{
		Store:     store,
		Owners:    store,
		Gateway:   env.gateway,
		Publisher: env.publisher,
		Barcodes:  barcode.NewGenerator("test"),
	}, Options{
		HoldDuration:    10 * time.Minute,
		MaxHoldDuration: 30 * time.Minute,
		Currency:        "usd",
		Clock:           env.clock.Now,
	})
	return env
}

func seats(labels ...string) []models.SeatKey {
	keys := make([]models.SeatKey, len(labels))
	for i, l := range labels {
		keys[i] = models.SeatKey{EventID: testEvent, Row: l[:1], Number: int(l[1] - '0')}
	}
	return keys
}

func (e *testEnv) seat(t *testing.T, label string) *models.Seat {
	t.Helper()
	seat, err := e.store.GetSeat(context.Background(), seats(label)[0])
	require.NoError(t, err)
	return seat
}

func (e *testEnv) reserve(t *testing.T, userID int64, labels ...string) *models.Hold {
	t.Helper()
	hold, err := e.services.Reservations.Reserve(context.Background(), testEvent, userID, seats(labels...), 0)
	require.NoError(t, err)
	return hold
}

func requireKind(t *testing.T, err error, kind apperrors.Kind) *apperrors.Error {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected domain error, got %v", err)
	require.Equal(t, kind, appErr.Kind, "error: %v", err)
	return appErr
}
