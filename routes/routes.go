package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "fulfillment-service/common/errors"
	"fulfillment-service/common/logger"
	"fulfillment-service/controllers"
	"fulfillment-service/middleware"
	aws_pkg "fulfillment-service/pkg/aws"
)

const serviceName = "fulfillment-service"

// Router bundles everything the HTTP surface needs.
type Router struct {
	Checkout *controllers.CheckoutController
	Webhook  *controllers.WebhookController
	Orders   *controllers.OrderController
	Results  *controllers.ResultController
	Admin    *controllers.AdminController

	Auth           *middleware.Authenticator
	Limiter        *middleware.RateLimiter
	Metrics        aws_pkg.MetricsRecorder
	AllowedOrigins []string
	// Health reports whether the datastore is reachable.
	Health func(ctx context.Context) error
	Log    *zap.Logger
}

func (rt Router) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger(rt.Log))
	r.Use(middleware.MetricsMiddleware(rt.Metrics, serviceName))
	r.Use(corsMiddleware(rt.AllowedOrigins))
	r.Use(apperrors.ErrorMiddleware())

	r.GET("/healthz", rt.health)

	api := r.Group("/api")

	// signed by the gateway; no auth, no rate limit, raw body
	api.POST("/webhooks/stripe", rt.Webhook.StripeWebhook)

	public := api.Group("")
	public.Use(middleware.SecurityHeaders())
	if rt.Limiter != nil {
		public.Use(middleware.RateLimitMiddleware(rt.Limiter))
	}
	{
		checkout := public.Group("")
		checkout.Use(rt.Auth.OptionalCustomer())
		checkout.POST("/checkout", rt.Checkout.CreateCheckoutSession)
		checkout.POST("/payment-intents", rt.Checkout.CreatePaymentIntent)

		public.GET("/orders/:orderNumber", rt.Orders.GetOrderByNumber)
		public.GET("/orders/id/:id", rt.Orders.GetOrderByID)
		public.GET("/orders/session/:sessionId", rt.Orders.GetOrderBySession)

		customer := public.Group("/customer")
		customer.Use(rt.Auth.RequireCustomer())
		customer.GET("/orders", rt.Orders.GetCustomerOrders)
		customer.GET("/results", rt.Results.GetCustomerResults)

		admin := public.Group("/admin")
		admin.Use(rt.Auth.RequireAdmin())
		admin.POST("/orders/:orderNumber/notifications", rt.Admin.Redispatch)
		admin.GET("/orders/:orderNumber/notifications", rt.Admin.ListNotifications)
	}

	return r
}

func (rt Router) health(c *gin.Context) {
	if rt.Health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := rt.Health(ctx); err != nil {
			logger.Error(c, "health check failed", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
