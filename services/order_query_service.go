package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
	"fulfillment-service/repository"
)

// ErrOrderNotFound is returned for unknown identifiers. Callers treat it as a
// normal result.
var ErrOrderNotFound = repository.ErrOrderNotFound

// OrderCache is an optional read-through cache of completed orders.
type OrderCache interface {
	Get(ctx context.Context, key string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order, keys ...string) error
}

type MetaData struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

type OrderQueryService struct {
	orders  repository.OrderRepository
	cache   OrderCache
	metrics aws_pkg.MetricsRecorder
	log     *zap.Logger
}

// NewOrderQueryService builds the query service; cache may be nil.
func NewOrderQueryService(orders repository.OrderRepository, cache OrderCache, metrics aws_pkg.MetricsRecorder, log *zap.Logger) *OrderQueryService {
	return &OrderQueryService{orders: orders, cache: cache, metrics: metrics, log: log}
}

func (s *OrderQueryService) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.cached(ctx, "id:"+id.String(), func() (*models.Order, error) {
		return s.orders.FindByID(ctx, id)
	})
}

func (s *OrderQueryService) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return s.cached(ctx, "number:"+orderNumber, func() (*models.Order, error) {
		return s.orders.FindByOrderNumber(ctx, orderNumber)
	})
}

// GetByGatewayReference looks an order up by checkout session or payment
// intent id. The confirmation page polls this until the webhook has landed.
func (s *OrderQueryService) GetByGatewayReference(ctx context.Context, ref string) (*models.Order, error) {
	return s.cached(ctx, "ref:"+ref, func() (*models.Order, error) {
		return s.orders.FindByGatewayReference(ctx, ref)
	})
}

// ListCustomerOrders returns a customer's orders newest first. Lists are not
// cached.
func (s *OrderQueryService) ListCustomerOrders(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, MetaData, error) {
	page, limit = clampPage(page, limit)
	orders, total, err := s.orders.FindByCustomerID(ctx, customerID, page, limit)
	if err != nil {
		return nil, MetaData{}, err
	}
	return orders, MetaData{Total: total, Page: page, Limit: limit}, nil
}

// cached reads through the cache. Misses are never stored, so an order is
// visible as soon as its transaction commits; cache errors fall back to the
// database.
func (s *OrderQueryService) cached(ctx context.Context, key string, load func() (*models.Order, error)) (*models.Order, error) {
	if s.cache != nil {
		order, err := s.cache.Get(ctx, key)
		if err == nil {
			_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCacheHits, nil)
			return order, nil
		}
		_ = s.metrics.RecordCount(ctx, aws_pkg.MetricCacheMisses, nil)
	}

	order, err := load()
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil && order.PaymentStatus == models.PaymentCompleted {
		keys := []string{key, "id:" + order.ID.String(), "number:" + order.OrderNumber, "ref:" + order.GatewayReference}
		if err := s.cache.Set(ctx, order, dedupe(keys)...); err != nil {
			s.log.Warn("order cache write failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	}
	return order, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return page, limit
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
