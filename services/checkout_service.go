package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
)

var (
	// ErrInvalidCheckout wraps every validation failure; nothing is created.
	ErrInvalidCheckout = errors.New("invalid checkout request")
	// ErrCheckoutInit means the gateway refused or failed to create the session.
	ErrCheckoutInit = errors.New("checkout initialization failed")
	// ErrInvalidDispatch wraps bad recipient classes or company ids.
	ErrInvalidDispatch = errors.New("invalid dispatch request")
)

type CheckoutRequest struct {
	Items       models.CartSnapshot
	Customer    Buyer
	CustomerID  *uuid.UUID
	ClientTotal *decimal.Decimal
}

type CheckoutSession struct {
	SessionID   string          `json:"session_id"`
	RedirectURL string          `json:"url"`
	Total       decimal.Decimal `json:"total"`
}

type PaymentIntentSession struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	Total           decimal.Decimal `json:"total"`
}

type CheckoutService struct {
	gateway    PaymentGateway
	sealer     *CartSealer
	validate   *validator.Validate
	currency   string
	successURL string
	cancelURL  string
	metrics    aws_pkg.MetricsRecorder
	log        *zap.Logger
}

type CheckoutConfig struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

func NewCheckoutService(gateway PaymentGateway, sealer *CartSealer, cfg CheckoutConfig, metrics aws_pkg.MetricsRecorder, log *zap.Logger) *CheckoutService {
	return &CheckoutService{
		gateway:    gateway,
		sealer:     sealer,
		validate:   validator.New(),
		currency:   cfg.Currency,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		metrics:    metrics,
		log:        log,
	}
}

// CreateCheckoutSession starts the hosted checkout flow. The charge is always
// recomputed from the cart; a client total is only compared and logged.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	total, md, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	lines := make([]GatewayLine, 0, len(req.Items))
	for _, l := range req.Items {
		lines = append(lines, GatewayLine{
			Name:        displayName(l),
			Description: displayDescription(l),
			UnitAmount:  models.ToMinorUnits(l.UnitPrice),
			Quantity:    int64(l.Quantity),
		})
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionInput{
		Lines:         lines,
		Currency:      s.currency,
		CustomerEmail: req.Customer.Email,
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		Metadata:      md,
	})
	if err != nil {
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCheckoutFailures, map[string]string{"flow": "hosted"})
		s.log.Error("checkout session creation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCheckoutInit, err)
	}

	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCheckoutSessions, map[string]string{"flow": "hosted"})
	s.log.Info("checkout session created",
		zap.String("session_id", sess.ID),
		zap.Int("lines", len(req.Items)),
		zap.String("total", total.StringFixed(2)),
	)

	return &CheckoutSession{SessionID: sess.ID, RedirectURL: sess.URL, Total: total}, nil
}

// CreatePaymentIntent starts the embedded payment element flow. The same
// sealed cart travels on the intent's metadata.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, req CheckoutRequest) (*PaymentIntentSession, error) {
	total, md, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	pi, err := s.gateway.CreatePaymentIntent(ctx, PaymentIntentInput{
		Amount:       models.ToMinorUnits(total),
		Currency:     s.currency,
		ReceiptEmail: req.Customer.Email,
		Metadata:     md,
	})
	if err != nil {
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCheckoutFailures, map[string]string{"flow": "embedded"})
		s.log.Error("payment intent creation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCheckoutInit, err)
	}

	_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCheckoutSessions, map[string]string{"flow": "embedded"})
	s.log.Info("payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.String("total", total.StringFixed(2)),
	)

	return &PaymentIntentSession{PaymentIntentID: pi.ID, ClientSecret: pi.ClientSecret, Total: total}, nil
}

// prepare validates the request and builds the recomputed total and the full
// metadata map shared by both flows.
func (s *CheckoutService) prepare(ctx context.Context, req CheckoutRequest) (decimal.Decimal, map[string]string, error) {
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)

	if err := s.validate.StructCtx(ctx, req.Customer); err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: customer name, email and phone are required", ErrInvalidCheckout)
	}
	if err := req.Items.Validate(); err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: %w", ErrInvalidCheckout, err)
	}

	total := req.Items.Total()
	if req.ClientTotal != nil && !req.ClientTotal.Equal(total) {
		s.log.Warn("client total disagrees with recomputed total",
			zap.String("client_total", req.ClientTotal.StringFixed(2)),
			zap.String("total", total.StringFixed(2)),
		)
	}

	md, err := s.sealer.Encode(req.Items)
	if err != nil {
		return decimal.Zero, nil, fmt.Errorf("%w: %w", ErrInvalidCheckout, err)
	}
	for k, v := range buyerMetadata(req.Customer, req.CustomerID, s.currency) {
		md[k] = v
	}

	return total, md, nil
}

func displayName(l models.LineItem) string {
	if l.TestName != "" {
		return l.TestName
	}
	return "Diagnostic test"
}

func displayDescription(l models.LineItem) string {
	if l.LocationName != "" {
		return "at " + l.LocationName
	}
	return ""
}
