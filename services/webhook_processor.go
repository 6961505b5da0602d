package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"fulfillment-service/events"
	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
	"fulfillment-service/repository"
)

const maxOrderNumberAttempts = 5

// publishTimeout bounds an order event publish that runs after the webhook
// has been acknowledged.
const publishTimeout = 10 * time.Second

var (
	// ErrInvalidSignature means the webhook could not be authenticated.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrOrderPersistence means the order could not be written; the gateway
	// should redeliver.
	ErrOrderPersistence = errors.New("order persistence failed")
)

type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

type WebhookResult struct {
	Outcome     Outcome
	EventID     string
	EventType   string
	Reference   string
	OrderID     uuid.UUID
	OrderNumber string
}

// paidPayment is the gateway-neutral view of a completed payment.
type paidPayment struct {
	Reference       string
	PaymentIntentID *string
	AmountTotal     int64
	Currency        string
	Email           string
	Metadata        map[string]string
}

type WebhookProcessor struct {
	gateway   PaymentGateway
	sealer    *CartSealer
	orders    repository.OrderRepository
	queue     DispatchQueue
	publisher events.OrderEventPublisher
	metrics   aws_pkg.MetricsRecorder
	log       *zap.Logger
	now       func() time.Time

	publishing sync.WaitGroup
}

func NewWebhookProcessor(
	gateway PaymentGateway,
	sealer *CartSealer,
	orders repository.OrderRepository,
	queue DispatchQueue,
	publisher events.OrderEventPublisher,
	metrics aws_pkg.MetricsRecorder,
	log *zap.Logger,
) *WebhookProcessor {
	return &WebhookProcessor{
		gateway:   gateway,
		sealer:    sealer,
		orders:    orders,
		queue:     queue,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		now:       time.Now,
	}
}

// Process authenticates and handles one webhook delivery. It returns
// ErrInvalidSignature when the payload is not authentic and
// ErrOrderPersistence when the order could not be stored; every other outcome
// is a success the caller acknowledges.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	event, err := p.gateway.ConstructEvent(payload, signatureHeader)
	if err != nil {
		_ = p.metrics.RecordCount(ctx, aws_pkg.MetricWebhooksRejected, nil)
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &WebhookResult{Outcome: OutcomeIgnored, EventID: event.ID, EventType: string(event.Type)}
	log := p.log.With(zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))

	payment, ok, err := p.paidPaymentFrom(event)
	if err != nil {
		log.Error("failed to decode webhook object", zap.Error(err))
		return result, nil
	}
	if !ok {
		log.Info("webhook acknowledged without action")
		return result, nil
	}
	result.Reference = payment.Reference
	log = log.With(zap.String("gateway_reference", payment.Reference))

	cart, rawCart, err := p.sealer.Decode(payment.Metadata)
	if err != nil {
		// redelivery cannot repair the metadata, so the event is acknowledged
		result.Outcome = OutcomeRejected
		_ = p.metrics.RecordCount(ctx, aws_pkg.MetricCartSealFailures, nil)
		log.Error("cart metadata rejected, order not created", zap.Error(err))
		return result, nil
	}

	buyer, customerID := buyerFromMetadata(payment.Metadata)
	if buyer.Email == "" {
		buyer.Email = payment.Email
	}
	currency := payment.Metadata[metaCurrency]
	if currency == "" {
		currency = payment.Currency
	}

	total := cart.Total()
	if charged := payment.AmountTotal; charged != models.ToMinorUnits(total) {
		log.Warn("charged amount differs from recomputed cart total",
			zap.Int64("charged_minor", charged),
			zap.String("cart_total", total.StringFixed(2)),
		)
	}

	var order *models.Order
	created := false
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		order = buildOrder(payment, cart, rawCart, buyer, customerID, strings.ToLower(currency), GenerateOrderNumber(p.now()))
		created, err = p.orders.CreatePaid(ctx, order)
		if errors.Is(err, repository.ErrOrderNumberTaken) {
			log.Warn("order number collision, regenerating", zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if err != nil {
		_ = p.metrics.RecordCount(ctx, aws_pkg.MetricOrderPersistenceFailures, nil)
		log.Error("order persistence failed, gateway will redeliver", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrOrderPersistence, err)
	}

	if !created {
		result.Outcome = OutcomeDuplicate
		_ = p.metrics.RecordCount(ctx, aws_pkg.MetricDuplicateWebhooks, nil)
		log.Info("duplicate delivery, order already exists")
		return result, nil
	}

	result.Outcome = OutcomeCreated
	result.OrderID = order.ID
	result.OrderNumber = order.OrderNumber
	_ = p.metrics.RecordCount(ctx, aws_pkg.MetricOrdersCreated, nil)
	log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int("items", len(order.OrderItems)),
	)

	p.handOff(ctx, order, log)
	return result, nil
}

// handOff queues notifications and announces the order. Failures are logged;
// the order is already durable. The event is published in the background so
// a slow broker never holds back the acknowledgement.
func (p *WebhookProcessor) handOff(ctx context.Context, order *models.Order, log *zap.Logger) {
	if err := p.queue.Enqueue(ctx, models.NewDispatchRequest(order.ID.String())); err != nil {
		log.Error("failed to enqueue notifications", zap.String("order_number", order.OrderNumber), zap.Error(err))
	}

	evt := orderCreatedEvent(order, p.now())
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	p.publishing.Add(1)
	go func() {
		defer p.publishing.Done()
		defer cancel()
		if err := p.publisher.PublishOrderCreated(pubCtx, evt); err != nil {
			log.Warn("failed to publish order event", zap.String("order_number", evt.OrderNumber), zap.Error(err))
		}
	}()
}

// Wait blocks until every background event publish has finished.
func (p *WebhookProcessor) Wait() {
	p.publishing.Wait()
}

// paidPaymentFrom returns the completed payment carried by event, or ok=false
// for events that do not create orders.
func (p *WebhookProcessor) paidPaymentFrom(event stripe.Event) (*paidPayment, bool, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, false, err
		}
		// delayed payment methods complete the session unpaid and follow up
		// with async_payment_succeeded
		if event.Type == stripe.EventTypeCheckoutSessionCompleted && sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return nil, false, nil
		}
		out := &paidPayment{
			Reference:   sess.ID,
			AmountTotal: sess.AmountTotal,
			Currency:    string(sess.Currency),
			Email:       sess.CustomerEmail,
			Metadata:    sess.Metadata,
		}
		if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
			id := sess.PaymentIntent.ID
			out.PaymentIntentID = &id
		}
		return out, true, nil

	case stripe.EventTypePaymentIntentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, false, err
		}
		// hosted checkout intents carry no cart; their session event creates the order
		if _, ours := pi.Metadata[metaCartChunks]; !ours {
			return nil, false, nil
		}
		id := pi.ID
		return &paidPayment{
			Reference:       pi.ID,
			PaymentIntentID: &id,
			AmountTotal:     pi.Amount,
			Currency:        string(pi.Currency),
			Email:           pi.ReceiptEmail,
			Metadata:        pi.Metadata,
		}, true, nil
	}

	return nil, false, nil
}

func buildOrder(payment *paidPayment, cart models.CartSnapshot, rawCart []byte, buyer Buyer, customerID *uuid.UUID, currency, orderNumber string) *models.Order {
	order := &models.Order{
		OrderNumber:      orderNumber,
		CustomerID:       customerID,
		CustomerName:     buyer.Name,
		CustomerEmail:    buyer.Email,
		CustomerPhone:    buyer.Phone,
		TotalAmount:      cart.Total(),
		Currency:         currency,
		PaymentStatus:    models.PaymentPending,
		GatewayReference: payment.Reference,
		PaymentIntentID:  payment.PaymentIntentID,
		CartSnapshot:     datatypes.JSON(rawCart),
	}

	for _, l := range cart {
		order.OrderItems = append(order.OrderItems, models.OrderItem{
			TestID:     l.TestID,
			LocationID: l.LocationID,
			CompanyID:  l.CompanyID,
			Quantity:   l.Quantity,
			Price:      l.UnitPrice,
		})
		order.TestResults = append(order.TestResults, models.TestResult{
			CustomerID:   customerID,
			TestID:       l.TestID,
			LocationID:   l.LocationID,
			CompanyID:    l.CompanyID,
			ResultStatus: models.ResultPending,
		})
	}

	return order
}

func orderCreatedEvent(order *models.Order, now time.Time) models.OrderCreatedEvent {
	seen := map[uuid.UUID]bool{}
	var companies []string
	for _, it := range order.OrderItems {
		if !seen[it.CompanyID] {
			seen[it.CompanyID] = true
			companies = append(companies, it.CompanyID.String())
		}
	}

	evt := models.OrderCreatedEvent{
		Event:         models.EventOrderCreated,
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		ItemCount:     len(order.OrderItems),
		CompanyIDs:    companies,
		Timestamp:     now.UTC(),
	}
	if order.CustomerID != nil {
		evt.CustomerID = order.CustomerID.String()
	}
	return evt
}
