package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fulfillment-service/models"
)

var (
	// ErrOrderNotFound is returned by every lookup when no order matches.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNumberTaken means the generated order number collided with an
	// existing one; the caller should generate a new number and retry.
	ErrOrderNumberTaken = errors.New("order number already taken")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	CreatePaid(ctx context.Context, order *models.Order) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByGatewayReference(ctx context.Context, ref string) (*models.Order, error)
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, int64, error)
}

// GormOrderRepository implements OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// CreatePaid writes the order, its items and its pending test results as one
// transaction. The order row is inserted with ON CONFLICT (gateway_reference)
// DO NOTHING: when another delivery already created it, nothing is written and
// CreatePaid returns false with a nil error. The order only becomes
// "completed" in the final statement, so a half-written order is never
// visible as paid.
func (r *GormOrderRepository) CreatePaid(ctx context.Context, order *models.Order) (bool, error) {
	created := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order.PaymentStatus = models.PaymentPending

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_reference"}},
			DoNothing: true,
		}).Omit(clause.Associations).Create(order)
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrOrderNumberTaken
			}
			return fmt.Errorf("insert order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}

		for i := range order.OrderItems {
			order.OrderItems[i].OrderID = order.ID
		}
		for i := range order.TestResults {
			order.TestResults[i].OrderID = order.ID
		}

		if len(order.OrderItems) > 0 {
			if err := tx.Omit(clause.Associations).Create(&order.OrderItems).Error; err != nil {
				return fmt.Errorf("insert order items: %w", err)
			}
		}
		if len(order.TestResults) > 0 {
			if err := tx.Create(&order.TestResults).Error; err != nil {
				return fmt.Errorf("insert test results: %w", err)
			}
		}

		if err := tx.Model(order).Update("payment_status", models.PaymentCompleted).Error; err != nil {
			return fmt.Errorf("complete order: %w", err)
		}

		created = true
		return nil
	})
	if err != nil {
		order.PaymentStatus = models.PaymentPending
		return false, err
	}

	return created, nil
}

// FindByID retrieves a fully loaded order by primary key
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByOrderNumber retrieves a fully loaded order by its public number
func (r *GormOrderRepository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findOne(ctx, "order_number = ?", orderNumber)
}

// FindByGatewayReference matches either the checkout session id or the
// payment intent id recorded for the order.
func (r *GormOrderRepository) FindByGatewayReference(ctx context.Context, ref string) (*models.Order, error) {
	return r.findOne(ctx, "gateway_reference = ? OR payment_intent_id = ?", ref, ref)
}

// FindByCustomerID retrieves a customer's orders, newest first, with pagination
func (r *GormOrderRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("customer_id = ?", customerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := preloadAll(query).
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) findOne(ctx context.Context, where string, args ...interface{}) (*models.Order, error) {
	var order models.Order

	err := preloadAll(r.db.WithContext(ctx)).
		Where(where, args...).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	return &order, nil
}

func preloadAll(db *gorm.DB) *gorm.DB {
	return db.
		Preload("OrderItems").
		Preload("OrderItems.Test").
		Preload("OrderItems.Location").
		Preload("OrderItems.Company").
		Preload("TestResults")
}
