package services

import (
	"context"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// GatewayLine is one display line on the hosted checkout page. UnitAmount is
// in minor units.
type GatewayLine struct {
	Name        string
	Description string
	UnitAmount  int64
	Quantity    int64
}

type CheckoutSessionInput struct {
	Lines         []GatewayLine
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type PaymentIntentInput struct {
	Amount       int64
	Currency     string
	ReceiptEmail string
	Metadata     map[string]string
}

type GatewaySession struct {
	ID  string
	URL string
}

type GatewayIntent struct {
	ID           string
	ClientSecret string
}

// PaymentGateway is the slice of the payment provider this service uses.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*GatewaySession, error)
	CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*GatewayIntent, error)
	ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error)
}

type StripeGateway struct {
	api        *client.API
	webhookKey string
}

func NewStripeGateway(secretKey, webhookKey string) *StripeGateway {
	return &StripeGateway{api: client.New(secretKey, nil), webhookKey: webhookKey}
}

func (s *StripeGateway) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (*GatewaySession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(in.SuccessURL),
		CancelURL:          stripe.String(in.CancelURL),
		CustomerEmail:      stripe.String(in.CustomerEmail),
		Metadata:           in.Metadata,
	}
	params.Context = ctx

	for _, l := range in.Lines {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(l.Name),
		}
		if l.Description != "" {
			product.Description = stripe.String(l.Description)
		}
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(in.Currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(l.UnitAmount),
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &GatewaySession{ID: sess.ID, URL: sess.URL}, nil
}

func (s *StripeGateway) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*GatewayIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.Amount),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: in.Metadata,
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return &GatewayIntent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ConstructEvent verifies the Stripe-Signature header against the exact raw
// payload. Only a handful of stable fields are read from the event, so the
// account's API version is allowed to differ from the library's.
func (s *StripeGateway) ConstructEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, s.webhookKey, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
