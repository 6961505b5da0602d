package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fulfillment-service/cache"
	"fulfillment-service/config"
	"fulfillment-service/controllers"
	"fulfillment-service/database"
	"fulfillment-service/events"
	"fulfillment-service/middleware"
	aws_pkg "fulfillment-service/pkg/aws"
	"fulfillment-service/repository"
	"fulfillment-service/routes"
	"fulfillment-service/services"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the notification workers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply database migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	if migrateOnStart && cfg.DBDriver == "postgres" {
		if err := database.RunMigrations(cfg.MigrateURL(), false, log); err != nil {
			return err
		}
	}

	// dispatch queue: SQS when configured, otherwise the in-process pool
	var queue services.DispatchQueue
	var pool *services.WorkerPoolQueue
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()
	if cfg.DispatchQueueURL != "" {
		queueURL := cfg.DispatchQueueURL
		if !strings.HasPrefix(queueURL, "http") {
			// a bare queue name
			if queueURL, err = aws_pkg.GetQueueURL(ctx, *a.awsCfg, queueURL); err != nil {
				return err
			}
		}
		sqsQueue := services.NewSQSDispatchQueue(aws_pkg.NewSQSQueue(*a.awsCfg, queueURL, log), a.metrics, log)
		queue = sqsQueue
		go func() {
			if err := sqsQueue.Consume(ctx, a.notifier.Handle); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("dispatch consumer stopped", zap.Error(err))
			}
		}()
	} else {
		pool = services.NewWorkerPoolQueue(cfg.DispatchWorkers, cfg.DispatchQueueSize, a.notifier.Handle, log)
		pool.Start(workerCtx)
		queue = pool
	}

	publisher, closePublishers := newPublisher(a)
	defer closePublishers()

	var orderCache services.OrderCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, order cache disabled", zap.Error(err))
		} else {
			orderCache = cache.NewRedisOrderCache(rdb, cfg.OrderCacheTTL)
		}
	}

	sealer := services.NewCartSealer(cfg.CartSigningSecret)
	gateway := services.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookKey)
	checkout := services.NewCheckoutService(gateway, sealer, services.CheckoutConfig{
		Currency:   cfg.Currency,
		SuccessURL: cfg.SuccessURL,
		CancelURL:  cfg.CancelURL,
	}, a.metrics, log)
	processor := services.NewWebhookProcessor(gateway, sealer, a.orders, queue, publisher, a.metrics, log)
	queries := services.NewOrderQueryService(a.orders, orderCache, a.metrics, log)
	results := services.NewResultQueryService(repository.NewGormTestResultRepository(a.db), log)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 5*time.Minute)
	go limiter.Cleanup(ctx.Done())

	engine := routes.Router{
		Checkout:       controllers.NewCheckoutController(checkout, log),
		Webhook:        controllers.NewWebhookController(processor, log),
		Orders:         controllers.NewOrderController(queries),
		Results:        controllers.NewResultController(results),
		Admin:          controllers.NewAdminController(a.notifier, queries, a.records, log),
		Auth:           middleware.NewAuthenticator(cfg.JWTSecret),
		Limiter:        limiter,
		Metrics:        a.metrics,
		AllowedOrigins: cfg.AllowedOrigins,
		Health:         func(ctx context.Context) error { return database.Ping(ctx, a.db) },
		Log:            log,
	}.Engine()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Fulfillment service started", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	log.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	// HTTP is closed, so nothing enqueues any more; drain what is left
	if pool != nil {
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.Warn("Dispatch queue not fully drained", zap.Error(err))
		}
	}
	// in-flight order events finish before the publishers close
	processor.Wait()

	log.Info("Fulfillment service stopped gracefully")
	return nil
}

// newPublisher fans order events out to every configured sink.
func newPublisher(a *app) (events.OrderEventPublisher, func()) {
	var sinks events.MultiPublisher
	var closers []func() error

	if a.cfg.OrderSNSTopicARN != "" {
		sinks = append(sinks, events.NewSNSOrderPublisher(aws_pkg.NewSNSClient(*a.awsCfg), a.cfg.OrderSNSTopicARN, a.log))
	}
	if len(a.cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaOrderPublisher(a.cfg.KafkaBrokers, a.cfg.OrderEventsTopic, a.log)
		sinks = append(sinks, kp)
		closers = append(closers, kp.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.log.Warn("publisher close error", zap.Error(err))
			}
		}
	}
	if len(sinks) == 0 {
		return events.NopPublisher{}, closeAll
	}
	return sinks, closeAll
}
