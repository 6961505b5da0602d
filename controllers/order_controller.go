package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "fulfillment-service/common/errors"
	"fulfillment-service/middleware"
	"fulfillment-service/models"
	"fulfillment-service/services"
)

type OrderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	GetByGatewayReference(ctx context.Context, ref string) (*models.Order, error)
	ListCustomerOrders(ctx context.Context, customerID uuid.UUID, page, limit int) ([]models.Order, services.MetaData, error)
}

type OrderController struct {
	orders OrderReader
}

func NewOrderController(orders OrderReader) *OrderController {
	return &OrderController{orders: orders}
}

// GetOrderByNumber handles GET /api/orders/:orderNumber.
func (oc *OrderController) GetOrderByNumber(c *gin.Context) {
	order, err := oc.orders.GetByOrderNumber(c.Request.Context(), c.Param("orderNumber"))
	if err != nil {
		_ = c.Error(lookupError(err))
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderByID handles GET /api/orders/id/:id.
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		_ = c.Error(apperrors.ErrBadRequest.WithMessage("Invalid order ID"))
		return
	}

	order, err := oc.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(lookupError(err))
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetOrderBySession handles GET /api/orders/session/:sessionId. The
// confirmation page polls it; until the webhook lands the answer is a 404
// with a pending hint.
func (oc *OrderController) GetOrderBySession(c *gin.Context) {
	order, err := oc.orders.GetByGatewayReference(c.Request.Context(), c.Param("sessionId"))
	if errors.Is(err, services.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"status": "pending"})
		return
	}
	if err != nil {
		_ = c.Error(apperrors.ErrInternalServer.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetCustomerOrders handles GET /api/customer/orders.
func (oc *OrderController) GetCustomerOrders(c *gin.Context) {
	customerID, ok := middleware.CustomerID(c)
	if !ok {
		_ = c.Error(apperrors.ErrUnauthorized)
		return
	}

	page, limit := parsePaginationParams(c)
	orders, meta, err := oc.orders.ListCustomerOrders(c.Request.Context(), customerID, page, limit)
	if err != nil {
		_ = c.Error(apperrors.ErrInternalServer.WithMessage("Failed to fetch orders").Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "meta": meta})
}

func lookupError(err error) *apperrors.Error {
	if errors.Is(err, services.ErrOrderNotFound) {
		return apperrors.ErrNotFound.WithMessage("Order not found")
	}
	return apperrors.ErrInternalServer.Wrap(err)
}

func parsePaginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 1 {
		limit = 10
	}
	return page, limit
}
