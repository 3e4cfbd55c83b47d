package external

import (
	"context"
	"errors"
	"testing"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"

	"github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntents struct {
	intents map[string]*stripe.PaymentIntent
	created []*stripe.PaymentIntentParams
	err     error
}

func (f *fakeIntents) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	pi, ok := f.intents[id]
	if !ok {
		return nil, &stripe.Error{Code: stripe.ErrorCodeResourceMissing, HTTPStatusCode: 404, Msg: "No such payment_intent"}
	}
	return pi, nil
}

func (f *fakeIntents) New(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, params)
	return &stripe.PaymentIntent{
		ID:           "pi_new",
		ClientSecret: "pi_new_secret",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Metadata:     params.Metadata,
	}, nil
}

func TestStripeGetPayment(t *testing.T) {
	api := &fakeIntents{intents: map[string]*stripe.PaymentIntent{
		"pi_1": {
			ID:             "pi_1",
			Status:         stripe.PaymentIntentStatusSucceeded,
			Amount:         2600,
			AmountReceived: 2500,
			Currency:       "USD",
			Metadata:       map[string]string{models.PaymentMetaUserID: "7"},
		},
		"pi_2": {ID: "pi_2", Status: stripe.PaymentIntentStatusProcessing, Amount: 1000, Currency: "usd"},
	}}
	gw := NewStripeGatewayWithAPI(api)

	payment, err := gw.GetPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, int64(2500), payment.AmountMinor)
	assert.Equal(t, "usd", payment.Currency)
	assert.Equal(t, "7", payment.Metadata[models.PaymentMetaUserID])

	payment, err = gw.GetPayment(context.Background(), "pi_2")
	require.NoError(t, err)
	assert.Equal(t, "processing", payment.Status)
	assert.Equal(t, int64(1000), payment.AmountMinor)

	_, err = gw.GetPayment(context.Background(), "pi_missing")
	assert.Equal(t, apperrors.KindPaymentNotConfirmed, apperrors.KindOf(err))
}

func TestStripeGetPaymentTransportError(t *testing.T) {
	gw := NewStripeGatewayWithAPI(&fakeIntents{err: errors.New("connection refused")})

	_, err := gw.GetPayment(context.Background(), "pi_1")
	require.Error(t, err)
	_, isDomain := apperrors.As(err)
	assert.False(t, isDomain)
}

func TestStripeCreatePayment(t *testing.T) {
	api := &fakeIntents{}
	gw := NewStripeGatewayWithAPI(api)

	intent, err := gw.CreatePayment(context.Background(), models.PaymentRequest{
		OrderID:     "1-7-42",
		AmountMinor: 2500,
		Currency:    "USD",
		Metadata:    map[string]string{models.PaymentMetaSeats: "A1,A2"},
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_new", intent.Reference)
	assert.Equal(t, "pi_new_secret", intent.ClientSecret)
	assert.Equal(t, int64(2500), intent.AmountMinor)
	require.Len(t, api.created, 1)
	params := api.created[0]
	assert.Equal(t, "usd", *params.Currency)
	assert.Equal(t, "A1,A2", params.Metadata[models.PaymentMetaSeats])
	assert.Equal(t, "1-7-42", *params.IdempotencyKey)
}

func TestNewStripeGatewayRequiresKey(t *testing.T) {
	_, err := NewStripeGateway("  ")
	assert.ErrorIs(t, err, errStripeKeyRequired)
}
