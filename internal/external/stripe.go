package external

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
)

var errStripeKeyRequired = errors.New("stripe secret key is required")

// StripeIntents is the subset of the Stripe PaymentIntents API used here.
type StripeIntents interface {
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeIntentsAPI struct{}

func (stripeIntentsAPI) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

func (stripeIntentsAPI) New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

// StripeGateway reads and creates Stripe PaymentIntents.
type StripeGateway struct {
	intents StripeIntents
}

// NewStripeGateway sets the package-level Stripe key and returns a gateway
// backed by the live API.
func NewStripeGateway(secretKey string) (*StripeGateway, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errStripeKeyRequired
	}
	stripe.Key = secretKey
	return &StripeGateway{intents: stripeIntentsAPI{}}, nil
}

// NewStripeGatewayWithAPI is used in tests.
func NewStripeGatewayWithAPI(intents StripeIntents) *StripeGateway {
	return &StripeGateway{intents: intents}
}

// GetPayment retrieves the PaymentIntent. The received amount is preferred
// over the requested one once funds have moved.
func (g *StripeGateway) GetPayment(ctx context.Context, reference string) (*models.ExternalPayment, error) {
	pi, err := g.intents.Get(ctx, reference, nil)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, apperrors.Newf(apperrors.KindPaymentNotConfirmed, "payment %s not found", reference)
		}
		return nil, fmt.Errorf("failed to retrieve payment intent %s: %w", reference, err)
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	return &models.ExternalPayment{
		Reference:   pi.ID,
		Status:      string(pi.Status),
		AmountMinor: amount,
		Currency:    strings.ToLower(string(pi.Currency)),
		Metadata:    pi.Metadata,
	}, nil
}

// CreatePayment creates a PaymentIntent for the amount and attaches req's
// metadata. The order id doubles as the idempotency key.
func (g *StripeGateway) CreatePayment(ctx context.Context, req models.PaymentRequest) (*models.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(req.AmountMinor),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.OrderID != "" {
		params.SetIdempotencyKey(req.OrderID)
	}

	pi, err := g.intents.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &models.PaymentIntent{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     strings.ToLower(string(pi.Currency)),
	}, nil
}
