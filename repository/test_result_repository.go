package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fulfillment-service/models"
)

type TestResultRepository interface {
	FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.TestResult, int64, error)
}

type GormTestResultRepository struct {
	db *gorm.DB
}

func NewGormTestResultRepository(db *gorm.DB) *GormTestResultRepository {
	return &GormTestResultRepository{db: db}
}

// FindByCustomerID retrieves a customer's test results, newest first, with
// the test, location and provider loaded and each result's order number set.
func (r *GormTestResultRepository) FindByCustomerID(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.TestResult, int64, error) {
	var results []models.TestResult
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.TestResult{}).
		Where("customer_id = ?", customerID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Preload("Test").
		Preload("Location").
		Preload("Company").
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, 0, err
	}

	if err := r.attachOrderNumbers(ctx, results); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *GormTestResultRepository) attachOrderNumbers(ctx context.Context, results []models.TestResult) error {
	if len(results) == 0 {
		return nil
	}
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, res := range results {
		if !seen[res.OrderID] {
			seen[res.OrderID] = true
			ids = append(ids, res.OrderID)
		}
	}

	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Select("id", "order_number").
		Where("id IN ?", ids).
		Find(&orders).Error; err != nil {
		return err
	}

	numbers := make(map[uuid.UUID]string, len(orders))
	for _, o := range orders {
		numbers[o.ID] = o.OrderNumber
	}
	for i := range results {
		results[i].OrderNumber = numbers[results[i].OrderID]
	}
	return nil
}
