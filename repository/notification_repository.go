package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"fulfillment-service/models"
)

type NotificationRepository interface {
	SaveRecord(ctx context.Context, rec *models.NotificationRecord) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.NotificationRecord, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) SaveRecord(ctx context.Context, rec *models.NotificationRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *notificationRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.NotificationRecord, error) {
	var records []models.NotificationRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error
	return records, err
}
