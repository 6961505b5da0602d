package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fulfillment-service/database"
	"fulfillment-service/events"
	"fulfillment-service/models"
	aws_pkg "fulfillment-service/pkg/aws"
	"fulfillment-service/repository"
	"fulfillment-service/services"
)

const webhookSecret = "whsec_controller_test"

type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, models.DispatchRequest) error { return nil }

func webhookRouter(t *testing.T) (*gin.Engine, *gorm.DB, *services.CartSealer) {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "webhook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	sealer := services.NewCartSealer("seal")
	processor := services.NewWebhookProcessor(
		services.NewStripeGateway("sk_test_unused", webhookSecret),
		sealer,
		repository.NewGormOrderRepository(db),
		discardQueue{},
		events.NopPublisher{},
		aws_pkg.NopMetrics{},
		zap.NewNop(),
	)

	r := setupRouter()
	r.POST("/api/webhooks/stripe", NewWebhookController(processor, zap.NewNop()).StripeWebhook)
	return r, db, sealer
}

func completedSessionPayload(t *testing.T, sealer *services.CartSealer) []byte {
	t.Helper()
	md, err := sealer.Encode(models.CartSnapshot{{
		TestID: uuid.New(), LocationID: uuid.New(), CompanyID: uuid.New(),
		Quantity: 1, UnitPrice: decimal.NewFromInt(100),
	}})
	require.NoError(t, err)
	md["customer_name"] = "Dana Buyer"
	md["customer_email"] = "dana@example.com"
	md["customer_phone"] = "5551234567"

	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_ctrl_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{"object": map[string]interface{}{
			"id":             "cs_ctrl_1",
			"object":         "checkout.session",
			"payment_status": "paid",
			"amount_total":   10000,
			"currency":       "usd",
			"metadata":       md,
		}},
	})
	require.NoError(t, err)
	return payload
}

func postWebhook(r http.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func orderCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestStripeWebhook_SignedDeliveryCreatesOrderOnce(t *testing.T) {
	r, db, sealer := webhookRouter(t)
	payload := completedSessionPayload(t, sealer)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload, Secret: webhookSecret, Timestamp: time.Now(),
	})

	w := postWebhook(r, payload, signed.Header)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"received"}`, w.Body.String())

	w = postWebhook(r, payload, signed.Header)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, int64(1), orderCount(t, db))
}

func TestStripeWebhook_TamperedBodyRejected(t *testing.T) {
	r, db, sealer := webhookRouter(t)
	payload := completedSessionPayload(t, sealer)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload, Secret: webhookSecret, Timestamp: time.Now(),
	})

	tampered := bytes.Replace(payload, []byte(`"amount_total":10000`), []byte(`"amount_total":1`), 1)
	w := postWebhook(r, tampered, signed.Header)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid webhook"}`, w.Body.String())
	assert.Equal(t, int64(0), orderCount(t, db))
}

func TestStripeWebhook_MissingSignature(t *testing.T) {
	r, db, sealer := webhookRouter(t)

	w := postWebhook(r, completedSessionPayload(t, sealer), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), orderCount(t, db))
}

type erroringProcessor struct{ err error }

func (p erroringProcessor) Process(context.Context, []byte, string) (*services.WebhookResult, error) {
	return nil, p.err
}

func TestStripeWebhook_PersistenceFailureAsksForRedelivery(t *testing.T) {
	r := setupRouter()
	r.POST("/api/webhooks/stripe", NewWebhookController(erroringProcessor{err: services.ErrOrderPersistence}, zap.NewNop()).StripeWebhook)

	w := postWebhook(r, []byte(`{}`), "t=1,v1=abc")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
