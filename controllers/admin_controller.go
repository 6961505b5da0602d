package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "fulfillment-service/common/errors"
	"fulfillment-service/models"
	"fulfillment-service/notification"
	"fulfillment-service/services"
)

type Redispatcher interface {
	Redispatch(ctx context.Context, orderNumber string, opts notification.DispatchOptions) (*notification.Report, error)
}

type NotificationLister interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.NotificationRecord, error)
}

type AdminController struct {
	notifier Redispatcher
	orders   OrderReader
	records  NotificationLister
	log      *zap.Logger
}

func NewAdminController(notifier Redispatcher, orders OrderReader, records NotificationLister, log *zap.Logger) *AdminController {
	return &AdminController{notifier: notifier, orders: orders, records: records, log: log}
}

type redispatchRequest struct {
	Classes   []string `json:"classes" binding:"required,min=1"`
	CompanyID string   `json:"company_id"`
}

// Redispatch handles POST /api/admin/orders/:orderNumber/notifications.
func (ac *AdminController) Redispatch(c *gin.Context) {
	var req redispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrValidation.WithMessage(err.Error()))
		return
	}

	opts, err := services.ParseDispatchOptions(req.Classes, req.CompanyID)
	if err != nil {
		_ = c.Error(apperrors.ErrValidation.WithMessage(err.Error()))
		return
	}

	report, err := ac.notifier.Redispatch(c.Request.Context(), c.Param("orderNumber"), opts)
	if err != nil {
		_ = c.Error(lookupError(err))
		return
	}

	ac.log.Info("manual notification dispatch",
		zap.String("order_number", c.Param("orderNumber")),
		zap.Int("sent", report.Count(models.NotificationSent)),
		zap.Int("failed", report.Count(models.NotificationFailed)),
	)
	c.JSON(http.StatusOK, report)
}

// ListNotifications handles GET /api/admin/orders/:orderNumber/notifications.
func (ac *AdminController) ListNotifications(c *gin.Context) {
	order, err := ac.orders.GetByOrderNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		_ = c.Error(lookupError(err))
		return
	}

	records, err := ac.records.ListByOrder(c.Request.Context(), order.ID)
	if err != nil {
		_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"order_number": order.OrderNumber, "notifications": records})
}
