package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_123")

	cfg := Load()

	assert.Equal(t, "payment-service", cfg.ServiceName)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 0.10, cfg.Referral.DefaultCommissionRate)
	assert.Equal(t, int64(100), cfg.Gateway.MinorUnitMultiplier)
	assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	assert.Equal(t, "sk_test_123", cfg.Gateway.WebhookSecret, "webhook secret falls back to the gateway secret key")
	assert.Nil(t, cfg.Notifier.KafkaBrokers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("DEFAULT_COMMISSION_RATE", "0.15")
	t.Setenv("PAYSTACK_TIMEOUT", "3s")
	t.Setenv("JOBS_ENABLED", "false")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PAYSTACK_WEBHOOK_SECRET", "whsec")

	cfg := Load()

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Notifier.KafkaBrokers)
	assert.Equal(t, 0.15, cfg.Referral.DefaultCommissionRate)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout)
	assert.False(t, cfg.Jobs.Enabled)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "whsec", cfg.Gateway.WebhookSecret)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MINOR_UNIT_MULTIPLIER", "lots")
	t.Setenv("PAYOUT_LOCK_TTL", "soon")

	cfg := Load()

	assert.Equal(t, int64(100), cfg.Gateway.MinorUnitMultiplier)
	assert.Equal(t, 2*time.Minute, cfg.PayoutLockTTL)
}
