package cmd

import (
	"context"
	"fmt"
	"io"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fulfillment-service/common/logger"
	"fulfillment-service/config"
	"fulfillment-service/database"
	"fulfillment-service/notification"
	aws_pkg "fulfillment-service/pkg/aws"
	"fulfillment-service/repository"
	"fulfillment-service/sender"
	"fulfillment-service/services"
)

// app holds the dependencies shared by every command that touches orders.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	awsCfg  *sdkaws.Config
	metrics aws_pkg.MetricsRecorder

	orders     *repository.GormOrderRepository
	records    repository.NotificationRepository
	dispatcher *notification.Dispatcher
	notifier   *services.OrderNotifier
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: aws_pkg.NopMetrics{}}

	if cfg.CloudWatchEnabled || cfg.DispatchQueueURL != "" || cfg.OrderSNSTopicARN != "" {
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		a.awsCfg = &awsCfg
	}

	var sink io.Writer
	if cfg.CloudWatchEnabled {
		cwl, err := aws_pkg.NewCloudWatchLogsClient(ctx, *a.awsCfg, cfg.CloudWatchLogGroup, "fulfillment-service")
		if err != nil {
			// console logging still works
			fmt.Printf("CloudWatch Logs unavailable: %v\n", err)
		} else {
			sink = cwl
		}
		a.metrics = aws_pkg.NewMetricsClient(*a.awsCfg, cfg.CloudWatchNamespace, true)
	}
	a.log = logger.InitializeWithWriter(cfg.Env, sink)

	db, err := database.Open(cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db

	emailSender, err := newEmailSender(cfg, a.log)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}
	renderer, err := notification.NewRenderer(cfg.BrandName)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	a.orders = repository.NewGormOrderRepository(db)
	a.records = repository.NewNotificationRepository(db)
	a.dispatcher = notification.NewDispatcher(emailSender, a.records, renderer, notification.Config{
		From:          cfg.EmailFrom,
		OperatorEmail: cfg.OperatorEmail,
		Concurrency:   cfg.DispatchWorkers,
	}, a.metrics, a.log)
	a.notifier = services.NewOrderNotifier(a.orders, a.dispatcher, a.log)

	return a, nil
}

func newEmailSender(cfg *config.Config, log *zap.Logger) (sender.EmailSender, error) {
	switch cfg.EmailProvider {
	case "resend":
		return sender.NewResendSender(cfg.ResendBaseURL, cfg.ResendAPIKey, log), nil
	case "smtp":
		s, err := sender.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		if err != nil {
			return nil, fmt.Errorf("init smtp sender: %w", err)
		}
		return s, nil
	default:
		return sender.NewLogSender(log), nil
	}
}

func (a *app) Close() {
	if err := database.Close(a.db); err != nil {
		a.log.Error("Database close error", zap.Error(err))
	}
	_ = a.log.Sync()
}
