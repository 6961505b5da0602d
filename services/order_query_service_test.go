package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
	"fulfillment-service/repository"
)

type mockOrderRepo struct {
	repository.OrderRepository
	orders  map[string]*models.Order
	lookups int
	err     error
}

func (m *mockOrderRepo) find(key string) (*models.Order, error) {
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	if o, ok := m.orders[key]; ok {
		return o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return m.find(id.String())
}

func (m *mockOrderRepo) FindByOrderNumber(_ context.Context, n string) (*models.Order, error) {
	return m.find(n)
}

func (m *mockOrderRepo) FindByGatewayReference(_ context.Context, ref string) (*models.Order, error) {
	return m.find(ref)
}

func (m *mockOrderRepo) FindByCustomerID(_ context.Context, _ uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	m.lookups++
	return []models.Order{{OrderNumber: "ORD-1"}}, 11, nil
}

type mapCache struct {
	entries map[string]*models.Order
	getErr  error
}

func (c *mapCache) Get(_ context.Context, key string) (*models.Order, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if o, ok := c.entries[key]; ok {
		return o, nil
	}
	return nil, errors.New("miss")
}

func (c *mapCache) Set(_ context.Context, order *models.Order, keys ...string) error {
	for _, k := range keys {
		c.entries[k] = order
	}
	return nil
}

func completedOrder() *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		OrderNumber:      "ORD-ABC-12345",
		GatewayReference: "cs_test_q",
		PaymentStatus:    models.PaymentCompleted,
	}
}

func newQueryFixture(o *models.Order) (*OrderQueryService, *mockOrderRepo, *mapCache) {
	repo := &mockOrderRepo{orders: map[string]*models.Order{
		o.ID.String(): o, o.OrderNumber: o, o.GatewayReference: o,
	}}
	cache := &mapCache{entries: map[string]*models.Order{}}
	return NewOrderQueryService(repo, cache, aws_pkg.NopMetrics{}, zap.NewNop()), repo, cache
}

func TestGetByGatewayReference_PopulatesEveryKey(t *testing.T) {
	o := completedOrder()
	svc, repo, cache := newQueryFixture(o)

	got, err := svc.GetByGatewayReference(context.Background(), "cs_test_q")
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)
	assert.Len(t, cache.entries, 3)

	_, err = svc.GetByOrderNumber(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	_, err = svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lookups, "later reads are served from cache")
}

func TestGetByGatewayReference_NotFoundIsNotCached(t *testing.T) {
	svc, repo, cache := newQueryFixture(completedOrder())

	_, err := svc.GetByGatewayReference(context.Background(), "cs_unknown")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = svc.GetByGatewayReference(context.Background(), "cs_unknown")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.Empty(t, cache.entries)
	assert.Equal(t, 2, repo.lookups)
}

func TestGetByOrderNumber_CacheErrorFallsThrough(t *testing.T) {
	o := completedOrder()
	svc, _, cache := newQueryFixture(o)
	cache.getErr = errors.New("redis: connection refused")

	got, err := svc.GetByOrderNumber(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestGetByID_WithoutCache(t *testing.T) {
	o := completedOrder()
	repo := &mockOrderRepo{orders: map[string]*models.Order{o.ID.String(): o}}
	svc := NewOrderQueryService(repo, nil, aws_pkg.NopMetrics{}, zap.NewNop())

	got, err := svc.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, got.OrderNumber)
}

func TestGetByID_RepositoryError(t *testing.T) {
	o := completedOrder()
	svc, repo, _ := newQueryFixture(o)
	repo.err = errors.New("db down")

	_, err := svc.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOrderNotFound)
}

func TestListCustomerOrders_ClampsPaging(t *testing.T) {
	svc, _, _ := newQueryFixture(completedOrder())

	orders, meta, err := svc.ListCustomerOrders(context.Background(), uuid.New(), 0, 1000)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, MetaData{Total: 11, Page: 1, Limit: 10}, meta)
}
