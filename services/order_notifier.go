package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment-service/models"
	"fulfillment-service/notification"
	"fulfillment-service/repository"
)

// Dispatcher sends an order's notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, order *models.Order, opts notification.DispatchOptions) notification.Report
}

// OrderNotifier loads an order fresh from the database and hands it to the
// dispatcher. It serves the dispatch queue, the admin endpoint and the CLI.
type OrderNotifier struct {
	orders     repository.OrderRepository
	dispatcher Dispatcher
	log        *zap.Logger
}

func NewOrderNotifier(orders repository.OrderRepository, dispatcher Dispatcher, log *zap.Logger) *OrderNotifier {
	return &OrderNotifier{orders: orders, dispatcher: dispatcher, log: log}
}

// Handle processes one queued dispatch request.
func (n *OrderNotifier) Handle(ctx context.Context, req models.DispatchRequest) error {
	id, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", req.OrderID, err)
	}
	opts, err := ParseDispatchOptions(req.Classes, req.CompanyID)
	if err != nil {
		return err
	}

	order, err := n.orders.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load order %s: %w", req.OrderID, err)
	}

	n.dispatcher.Dispatch(ctx, order, opts)
	return nil
}

// Redispatch re-runs the selected notification classes for an order number.
func (n *OrderNotifier) Redispatch(ctx context.Context, orderNumber string, opts notification.DispatchOptions) (*notification.Report, error) {
	order, err := n.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	n.log.Info("re-dispatching notifications",
		zap.String("order_number", orderNumber),
		zap.Strings("classes", opts.Classes),
	)
	report := n.dispatcher.Dispatch(ctx, order, opts)
	return &report, nil
}

// ParseDispatchOptions validates recipient classes and an optional company id.
func ParseDispatchOptions(classes []string, companyID string) (notification.DispatchOptions, error) {
	var opts notification.DispatchOptions
	for _, c := range classes {
		if !models.IsRecipientClass(c) {
			return opts, fmt.Errorf("%w: unknown recipient class %q", ErrInvalidDispatch, c)
		}
		opts.Classes = append(opts.Classes, c)
	}
	if companyID != "" {
		id, err := uuid.Parse(companyID)
		if err != nil {
			return opts, fmt.Errorf("%w: invalid company id %q", ErrInvalidDispatch, companyID)
		}
		opts.CompanyID = &id
	}
	return opts, nil
}
