package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tair/lesson-payments/pkg/database"
)

// Config holds the payment service configuration
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string
	HTTPPort    string
	GRPCPort    string

	Database database.Config

	Gateway   GatewayConfig
	Referral  ReferralConfig
	Jobs      JobsConfig
	Notifier  NotifierConfig
	JWTSecret string

	RedisURL        string
	EnrollmentTTL   time.Duration
	PayoutLockTTL   time.Duration
	BankDetailsKey  string
	SentryDSN       string
	DefaultCurrency string
	RateLimitRPM    int
	RateLimitBurst  int
}

// GatewayConfig holds payment gateway settings
type GatewayConfig struct {
	BaseURL             string
	SecretKey           string
	WebhookSecret       string
	CallbackURL         string
	Timeout             time.Duration
	RequestsPerSecond   float64
	MinorUnitMultiplier int64
}

// ReferralConfig holds commission settings
type ReferralConfig struct {
	DefaultCommissionRate float64
}

// JobsConfig holds scheduled job settings
type JobsConfig struct {
	Enabled             bool
	AbandonSchedule     string
	AbandonAfter        time.Duration
	ReferralSchedule    string
	ReferralExpireAfter time.Duration
}

// NotifierConfig holds notification transport settings
type NotifierConfig struct {
	KafkaBrokers   []string
	Topic          string
	ConsumerGroup  string
	AdminEmail     string
	SendGridAPIKey string
	FromEmail      string
	FromName       string
	BaseURL        string
}

// Load reads configuration from the environment
func Load() *Config {
	secretKey := getEnv("PAYSTACK_SECRET_KEY", "")

	return &Config{
		ServiceName: getEnv("OTEL_SERVICE_NAME", "payment-service"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8083"),
		GRPCPort:    getEnv("GRPC_PORT", "9093"),
		Database: database.Config{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "paymentdb"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "payments.db"),
		},
		Gateway: GatewayConfig{
			BaseURL:             getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
			SecretKey:           secretKey,
			WebhookSecret:       getEnv("PAYSTACK_WEBHOOK_SECRET", secretKey),
			CallbackURL:         getEnv("PAYMENT_CALLBACK_URL", "http://localhost:3000/payments/callback"),
			Timeout:             getDuration("PAYSTACK_TIMEOUT", 10*time.Second),
			RequestsPerSecond:   getFloat("PAYSTACK_RPS", 20),
			MinorUnitMultiplier: int64(getInt("MINOR_UNIT_MULTIPLIER", 100)),
		},
		Referral: ReferralConfig{
			DefaultCommissionRate: getFloat("DEFAULT_COMMISSION_RATE", 0.10),
		},
		Jobs: JobsConfig{
			Enabled:             getBool("JOBS_ENABLED", true),
			AbandonSchedule:     getEnv("PAYMENT_ABANDON_SCHEDULE", "*/15 * * * *"),
			AbandonAfter:        getDuration("PAYMENT_ABANDON_AFTER", 24*time.Hour),
			ReferralSchedule:    getEnv("REFERRAL_EXPIRE_SCHEDULE", "0 3 * * *"),
			ReferralExpireAfter: getDuration("REFERRAL_EXPIRE_AFTER", 90*24*time.Hour),
		},
		Notifier: NotifierConfig{
			KafkaBrokers:   getList("KAFKA_BROKERS"),
			Topic:          getEnv("NOTIFICATION_TOPIC", "notifications"),
			ConsumerGroup:  getEnv("NOTIFICATION_CONSUMER_GROUP", "notification-worker"),
			AdminEmail:     getEnv("ADMIN_EMAIL", "admin@example.com"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			FromEmail:      getEnv("FROM_EMAIL", "noreply@example.com"),
			FromName:       getEnv("FROM_NAME", "Lessons"),
			BaseURL:        getEnv("APP_BASE_URL", "http://localhost:3000"),
		},
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change-me"),
		RedisURL:        getEnv("REDIS_URL", ""),
		EnrollmentTTL:   getDuration("ENROLLMENT_CACHE_TTL", 5*time.Minute),
		PayoutLockTTL:   getDuration("PAYOUT_LOCK_TTL", 2*time.Minute),
		BankDetailsKey:  getEnv("BANK_DETAILS_KEY", ""),
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		DefaultCurrency: getEnv("DEFAULT_CURRENCY", "NGN"),
		RateLimitRPM:    getInt("RATE_LIMIT_RPM", 120),
		RateLimitBurst:  getInt("RATE_LIMIT_BURST", 30),
	}
}

// IsDevelopment reports whether the service runs in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
