package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
)

type mockGateway struct {
	sessionIn *CheckoutSessionInput
	intentIn  *PaymentIntentInput
	err       error
}

func (m *mockGateway) CreateCheckoutSession(_ context.Context, in CheckoutSessionInput) (*GatewaySession, error) {
	m.sessionIn = &in
	if m.err != nil {
		return nil, m.err
	}
	return &GatewaySession{ID: "cs_test_123", URL: "https://checkout.example/cs_test_123"}, nil
}

func (m *mockGateway) CreatePaymentIntent(_ context.Context, in PaymentIntentInput) (*GatewayIntent, error) {
	m.intentIn = &in
	if m.err != nil {
		return nil, m.err
	}
	return &GatewayIntent{ID: "pi_test_123", ClientSecret: "pi_test_123_secret"}, nil
}

func (m *mockGateway) ConstructEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}

func newCheckoutService(gw PaymentGateway) *CheckoutService {
	return NewCheckoutService(gw, NewCartSealer("seal-secret"), CheckoutConfig{
		Currency:   "usd",
		SuccessURL: "https://shop.example/confirmation?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "https://shop.example/cart",
	}, aws_pkg.NopMetrics{}, zap.NewNop())
}

func validRequest() CheckoutRequest {
	return CheckoutRequest{
		Items: models.CartSnapshot{
			{TestID: uuid.New(), LocationID: uuid.New(), CompanyID: uuid.New(), Quantity: 1, UnitPrice: decimal.NewFromInt(100), TestName: "Lipid Panel", LocationName: "Main St Lab"},
			{TestID: uuid.New(), LocationID: uuid.New(), CompanyID: uuid.New(), Quantity: 2, UnitPrice: decimal.NewFromInt(25)},
		},
		Customer: Buyer{Name: "Dana Buyer", Email: "dana@example.com", Phone: "5551234567"},
	}
}

func TestCreateCheckoutSession_RecomputesTotal(t *testing.T) {
	gw := &mockGateway{}
	svc := newCheckoutService(gw)

	req := validRequest()
	bogus := decimal.NewFromInt(1)
	req.ClientTotal = &bogus

	sess, err := svc.CreateCheckoutSession(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "cs_test_123", sess.SessionID)
	assert.Equal(t, "https://checkout.example/cs_test_123", sess.RedirectURL)
	assert.True(t, sess.Total.Equal(decimal.NewFromInt(150)))

	require.NotNil(t, gw.sessionIn)
	require.Len(t, gw.sessionIn.Lines, 2)
	assert.Equal(t, int64(10000), gw.sessionIn.Lines[0].UnitAmount)
	assert.Equal(t, "Lipid Panel", gw.sessionIn.Lines[0].Name)
	assert.Equal(t, "at Main St Lab", gw.sessionIn.Lines[0].Description)
	assert.Equal(t, "Diagnostic test", gw.sessionIn.Lines[1].Name)
	assert.Equal(t, int64(2), gw.sessionIn.Lines[1].Quantity)
	assert.Equal(t, "dana@example.com", gw.sessionIn.Metadata[metaCustomerEmail])
	assert.Equal(t, "1", gw.sessionIn.Metadata[metaCartChunks])
}

func TestCreateCheckoutSession_MetadataRoundTrips(t *testing.T) {
	gw := &mockGateway{}
	svc := newCheckoutService(gw)
	req := validRequest()

	_, err := svc.CreateCheckoutSession(context.Background(), req)
	require.NoError(t, err)

	cart, _, err := NewCartSealer("seal-secret").Decode(gw.sessionIn.Metadata)
	require.NoError(t, err)
	assert.True(t, cart.Total().Equal(req.Items.Total()))
}

func TestCreateCheckoutSession_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CheckoutRequest)
	}{
		{"empty cart", func(r *CheckoutRequest) { r.Items = nil }},
		{"zero quantity", func(r *CheckoutRequest) { r.Items[0].Quantity = 0 }},
		{"negative price", func(r *CheckoutRequest) { r.Items[0].UnitPrice = decimal.NewFromInt(-1) }},
		{"sub-cent price", func(r *CheckoutRequest) { r.Items[0].UnitPrice = decimal.RequireFromString("0.125") }},
		{"missing name", func(r *CheckoutRequest) { r.Customer.Name = "  " }},
		{"bad email", func(r *CheckoutRequest) { r.Customer.Email = "not-an-email" }},
		{"missing phone", func(r *CheckoutRequest) { r.Customer.Phone = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{}
			svc := newCheckoutService(gw)
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.CreateCheckoutSession(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidCheckout)
			assert.Nil(t, gw.sessionIn, "gateway must not be called")
		})
	}
}

func TestCreateCheckoutSession_ChargedAmountEqualsTotal(t *testing.T) {
	gw := &mockGateway{}
	svc := newCheckoutService(gw)
	req := validRequest()
	req.Items[0].Quantity = 3
	req.Items[0].UnitPrice = decimal.RequireFromString("0.13")
	req.Items[1].UnitPrice = decimal.RequireFromString("19.99")

	sess, err := svc.CreateCheckoutSession(context.Background(), req)
	require.NoError(t, err)

	var charged int64
	for _, l := range gw.sessionIn.Lines {
		charged += l.UnitAmount * l.Quantity
	}
	assert.Equal(t, models.ToMinorUnits(sess.Total), charged)
}

func TestCreateCheckoutSession_GatewayFailure(t *testing.T) {
	svc := newCheckoutService(&mockGateway{err: errors.New("stripe down")})

	_, err := svc.CreateCheckoutSession(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrCheckoutInit)
}

func TestCreatePaymentIntent(t *testing.T) {
	gw := &mockGateway{}
	svc := newCheckoutService(gw)

	pi, err := svc.CreatePaymentIntent(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "pi_test_123", pi.PaymentIntentID)
	assert.Equal(t, "pi_test_123_secret", pi.ClientSecret)
	require.NotNil(t, gw.intentIn)
	assert.Equal(t, int64(15000), gw.intentIn.Amount)
	assert.Equal(t, "usd", gw.intentIn.Currency)
	assert.Contains(t, gw.intentIn.Metadata, metaCartSig)
}
