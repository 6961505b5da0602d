package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fulfillment-service/common/logger"
	"fulfillment-service/services"
)

// maxWebhookBody matches the gateway's documented event size ceiling.
const maxWebhookBody = int64(65536)

type WebhookHandler interface {
	Process(ctx context.Context, payload []byte, signatureHeader string) (*services.WebhookResult, error)
}

type WebhookController struct {
	processor WebhookHandler
	log       *zap.Logger
}

func NewWebhookController(processor WebhookHandler, log *zap.Logger) *WebhookController {
	return &WebhookController{processor: processor, log: log}
}

// StripeWebhook handles POST /api/webhooks/stripe. The body is read raw:
// signature verification needs the exact bytes the gateway signed.
func (wc *WebhookController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		wc.log.Warn("failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not read body"})
		return
	}

	result, err := wc.processor.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	switch {
	case errors.Is(err, services.ErrInvalidSignature):
		logger.Warn(c, "Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	case err != nil:
		// non-2xx makes the gateway redeliver
		logger.Error(c, "Stripe webhook processing failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	logger.Info(c, "Stripe webhook processed",
		zap.String("event_id", result.EventID),
		zap.String("event_type", result.EventType),
		zap.String("outcome", string(result.Outcome)),
	)
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
