package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	aws_pkg "fulfillment-service/pkg/aws"
)

type Config struct {
	Env  string
	Port string

	DBDriver         string // postgres or sqlite
	SQLitePath       string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	StripeSecretKey   string
	StripeWebhookKey  string
	CartSigningSecret string
	Currency          string
	PublicBaseURL     string
	SuccessURL        string
	CancelURL         string

	BrandName     string
	EmailProvider string // resend, smtp or log
	EmailFrom     string
	OperatorEmail string
	ResendAPIKey  string
	ResendBaseURL string
	SMTPHost      string
	SMTPPort      int
	SMTPUsername  string
	SMTPPassword  string

	DispatchWorkers   int
	DispatchQueueSize int
	DispatchQueueURL  string // SQS; empty means the in-process worker pool
	OrderSNSTopicARN  string
	KafkaBrokers      []string
	OrderEventsTopic  string

	RedisAddr     string
	RedisPassword string
	OrderCacheTTL time.Duration

	JWTSecret      string
	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// LoadConfig reads .env (if present) and the process environment, overlays
// secrets from AWS Secrets Manager when AWS_USE_SECRETS=true, and validates
// the values every command needs.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	base := getEnv("PUBLIC_BASE_URL", "http://localhost:3000")
	cfg := &Config{
		Env:  getEnv("APP_ENV", "development"),
		Port: getEnv("PORT", "8090"),

		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		SQLitePath:       getEnv("SQLITE_PATH", "fulfillment.db"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		StripeSecretKey:   os.Getenv("STRIPE_API_KEY"),
		StripeWebhookKey:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CartSigningSecret: os.Getenv("CART_SIGNING_SECRET"),
		Currency:          strings.ToLower(getEnv("CURRENCY", "usd")),
		PublicBaseURL:     base,
		SuccessURL:        getEnv("CHECKOUT_SUCCESS_URL", base+"/confirmation?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         getEnv("CHECKOUT_CANCEL_URL", base+"/cart"),

		BrandName:     getEnv("BRAND_NAME", "Diagnostic Marketplace"),
		EmailProvider: getEnv("EMAIL_PROVIDER", "log"),
		EmailFrom:     getEnv("EMAIL_FROM", "orders@example.com"),
		OperatorEmail: os.Getenv("OPERATOR_EMAIL"),
		ResendAPIKey:  os.Getenv("RESEND_API_KEY"),
		ResendBaseURL: getEnv("RESEND_BASE_URL", "https://api.resend.com"),
		SMTPHost:      os.Getenv("SMTP_HOST"),
		SMTPPort:      getEnvInt("SMTP_PORT", 587),
		SMTPUsername:  os.Getenv("SMTP_USERNAME"),
		SMTPPassword:  os.Getenv("SMTP_PASSWORD"),

		DispatchWorkers:   getEnvInt("DISPATCH_WORKERS", 4),
		DispatchQueueSize: getEnvInt("DISPATCH_QUEUE_SIZE", 256),
		DispatchQueueURL:  os.Getenv("DISPATCH_QUEUE_URL"),
		OrderSNSTopicARN:  os.Getenv("ORDER_SNS_TOPIC_ARN"),
		KafkaBrokers:      splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic:  getEnv("ORDER_EVENTS_TOPIC", "orders.created"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		OrderCacheTTL: getEnvDuration("ORDER_CACHE_TTL", 5*time.Minute),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", base)),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 10),

		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Fulfillment"),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", "/fulfillment/services"),
	}

	if os.Getenv("AWS_USE_SECRETS") == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if awsCfg, err := aws_pkg.LoadAWSConfig(ctx); err == nil {
			cfg.applySecrets(ctx, aws_pkg.NewSecretsClient(awsCfg))
		}
	}

	return cfg, nil
}

// applySecrets overlays non-empty values from the database and Stripe secrets.
func (c *Config) applySecrets(ctx context.Context, sm aws_pkg.SecretGetter) {
	if m, err := aws_pkg.GetSecretJSON(ctx, sm, getEnv("DB_SECRET_NAME", "fulfillment/DB_CREDENTIALS")); err == nil {
		overlay(&c.PostgresUser, m["POSTGRES_USER"])
		overlay(&c.PostgresPassword, m["POSTGRES_PASSWORD"])
		overlay(&c.PostgresDB, m["POSTGRES_DB"])
		overlay(&c.PostgresHost, m["POSTGRES_HOST"])
		overlay(&c.PostgresPort, m["POSTGRES_PORT"])
	}
	if m, err := aws_pkg.GetSecretJSON(ctx, sm, getEnv("STRIPE_SECRET_NAME", "fulfillment/STRIPE")); err == nil {
		overlay(&c.StripeSecretKey, m["STRIPE_API_KEY"])
		overlay(&c.StripeWebhookKey, m["STRIPE_WEBHOOK_SECRET"])
		overlay(&c.CartSigningSecret, m["CART_SIGNING_SECRET"])
		overlay(&c.ResendAPIKey, m["RESEND_API_KEY"])
		overlay(&c.JWTSecret, m["JWT_SECRET"])
	}
}

// ValidateDatabase checks the values needed to open Postgres.
func (c *Config) ValidateDatabase() error {
	if c.DBDriver == "sqlite" {
		return nil
	}
	if c.DBDriver != "postgres" {
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.PostgresUser == "" || c.PostgresPassword == "" || c.PostgresDB == "" || c.PostgresHost == "" {
		return fmt.Errorf("database config incomplete")
	}
	return nil
}

// ValidateServer checks everything the HTTP server needs on top of the database.
func (c *Config) ValidateServer() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.StripeSecretKey == "" || c.StripeWebhookKey == "" {
		return fmt.Errorf("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required")
	}
	if c.CartSigningSecret == "" {
		return fmt.Errorf("CART_SIGNING_SECRET is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.EmailProvider {
	case "resend":
		if c.ResendAPIKey == "" {
			return fmt.Errorf("RESEND_API_KEY is required for EMAIL_PROVIDER=resend")
		}
	case "smtp":
		if c.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required for EMAIL_PROVIDER=smtp")
		}
	case "log":
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	return nil
}

// DSN builds the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.PostgresHost, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresPort, c.PostgresSSLMode, c.PostgresTimeZone,
	)
}

// MigrateURL builds the postgres:// URL golang-migrate expects.
func (c *Config) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode)
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
