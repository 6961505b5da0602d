package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "fulfillment-service/common/errors"
	"fulfillment-service/middleware"
	"fulfillment-service/models"
	"fulfillment-service/services"
)

// CheckoutInitiator starts hosted or embedded checkout.
type CheckoutInitiator interface {
	CreateCheckoutSession(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutSession, error)
	CreatePaymentIntent(ctx context.Context, req services.CheckoutRequest) (*services.PaymentIntentSession, error)
}

type checkoutItem struct {
	TestID       uuid.UUID       `json:"test_id" binding:"required"`
	LocationID   uuid.UUID       `json:"location_id" binding:"required"`
	CompanyID    uuid.UUID       `json:"company_id" binding:"required"`
	Quantity     int             `json:"quantity" binding:"required,min=1"`
	Price        decimal.Decimal `json:"price"`
	TestName     string          `json:"test_name"`
	LocationName string          `json:"location_name"`
}

type checkoutCustomer struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"required"`
}

type checkoutRequest struct {
	Items    []checkoutItem   `json:"items" binding:"required,min=1,dive"`
	Customer checkoutCustomer `json:"customer" binding:"required"`
	Total    *decimal.Decimal `json:"total"`
}

func (r checkoutRequest) toService(c *gin.Context) services.CheckoutRequest {
	out := services.CheckoutRequest{
		Customer:    services.Buyer{Name: r.Customer.Name, Email: r.Customer.Email, Phone: r.Customer.Phone},
		ClientTotal: r.Total,
	}
	for _, it := range r.Items {
		out.Items = append(out.Items, models.LineItem{
			TestID:       it.TestID,
			LocationID:   it.LocationID,
			CompanyID:    it.CompanyID,
			Quantity:     it.Quantity,
			UnitPrice:    it.Price,
			TestName:     it.TestName,
			LocationName: it.LocationName,
		})
	}
	if id, ok := middleware.CustomerID(c); ok {
		out.CustomerID = &id
	}
	return out
}

type CheckoutController struct {
	checkout CheckoutInitiator
	log      *zap.Logger
}

func NewCheckoutController(checkout CheckoutInitiator, log *zap.Logger) *CheckoutController {
	return &CheckoutController{checkout: checkout, log: log}
}

// CreateCheckoutSession handles POST /api/checkout.
func (cc *CheckoutController) CreateCheckoutSession(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrValidation.WithMessage(err.Error()))
		return
	}

	sess, err := cc.checkout.CreateCheckoutSession(c.Request.Context(), req.toService(c))
	if err != nil {
		_ = c.Error(checkoutError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"session_id": sess.SessionID, "url": sess.RedirectURL})
}

// CreatePaymentIntent handles POST /api/payment-intents.
func (cc *CheckoutController) CreatePaymentIntent(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.ErrValidation.WithMessage(err.Error()))
		return
	}

	pi, err := cc.checkout.CreatePaymentIntent(c.Request.Context(), req.toService(c))
	if err != nil {
		_ = c.Error(checkoutError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment_intent_id": pi.PaymentIntentID, "client_secret": pi.ClientSecret})
}

func checkoutError(err error) *apperrors.Error {
	switch {
	case errors.Is(err, services.ErrInvalidCheckout):
		return apperrors.ErrValidation.WithMessage(err.Error()).Wrap(err)
	case errors.Is(err, services.ErrCheckoutInit):
		return apperrors.ErrBadGateway.Wrap(err)
	default:
		return apperrors.ErrInternalServer.Wrap(err)
	}
}
