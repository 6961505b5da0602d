package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSecrets map[string]string

func (f fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("PUBLIC_BASE_URL", "https://shop.test")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://shop.test/confirmation?session_id={CHECKOUT_SESSION_ID}", cfg.SuccessURL)
	assert.Equal(t, "https://shop.test/cart", cfg.CancelURL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "usd", cfg.Currency)
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{
		DBDriver:     "postgres",
		PostgresUser: "u", PostgresPassword: "p", PostgresDB: "d", PostgresHost: "h",
		StripeSecretKey: "sk", StripeWebhookKey: "whsec", CartSigningSecret: "seal", JWTSecret: "jwt",
		EmailProvider: "log",
	}
	require.NoError(t, cfg.ValidateServer())

	cfg.EmailProvider = "resend"
	assert.Error(t, cfg.ValidateServer())

	cfg.EmailProvider = "log"
	cfg.CartSigningSecret = ""
	assert.Error(t, cfg.ValidateServer())
}

func TestApplySecrets_OverlaysNonEmptyValues(t *testing.T) {
	t.Setenv("DB_SECRET_NAME", "db")
	t.Setenv("STRIPE_SECRET_NAME", "stripe")

	cfg := &Config{PostgresUser: "env-user", PostgresHost: "env-host"}
	cfg.applySecrets(context.Background(), fakeSecrets{
		"db":     `{"POSTGRES_USER":"secret-user","POSTGRES_HOST":""}`,
		"stripe": `{"STRIPE_API_KEY":"sk_live"}`,
	})

	assert.Equal(t, "secret-user", cfg.PostgresUser)
	assert.Equal(t, "env-host", cfg.PostgresHost)
	assert.Equal(t, "sk_live", cfg.StripeSecretKey)
}
