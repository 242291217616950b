package app

import (
	"context"

	"gorm.io/gorm"

	cartdomain "github.com/tair/lesson-payments/internal/cart/domain"
	enrolldomain "github.com/tair/lesson-payments/internal/enrollment/domain"
	"github.com/tair/lesson-payments/internal/notification"
	paymentdomain "github.com/tair/lesson-payments/internal/payment/domain"
	referraldomain "github.com/tair/lesson-payments/internal/referral/domain"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/kafka"
	"github.com/tair/lesson-payments/pkg/cache"
	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/email"
	"github.com/tair/lesson-payments/pkg/logger"
)

// Infrastructure holds the process-wide clients the use cases share
type Infrastructure struct {
	DB       *gorm.DB
	Cache    cache.Cache
	Locker   cache.Locker
	Notifier notification.Notifier
}

// Models lists every table the service owns or reads
func Models() []interface{} {
	return []interface{}{
		&userdomain.User{},
		&cartdomain.Cart{},
		&enrolldomain.Enrollment{},
		&paymentdomain.Payment{},
		&referraldomain.Referral{},
		&referraldomain.ReferralProfile{},
		&referraldomain.ReferralTransaction{},
	}
}

// Migrate creates or updates every table in Models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// NewInfrastructure connects the cache, lock and notification backends.
// Redis and Kafka are used when configured; otherwise in-process fallbacks
// keep a single instance working. The returned cleanup closes what was
// opened.
func NewInfrastructure(ctx context.Context, cfg *config.Config, db *gorm.DB) (*Infrastructure, func(), error) {
	infra := &Infrastructure{DB: db}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		infra.Cache = cache.NewRedisCache(client, "lessons:")
		infra.Locker = cache.NewRedisLocker(client, "lessons:lock:")
		logger.Logger.Info().Msg("Using Redis cache and locks")
	} else {
		infra.Cache = cache.NewMemoryCache()
		infra.Locker = cache.NewMemoryLocker()
		logger.Logger.Warn().Msg("REDIS_URL not set, using in-process cache and locks")
	}

	switch {
	case len(cfg.Notifier.KafkaBrokers) > 0:
		publisher, err := kafka.NewPublisher(cfg.Notifier.KafkaBrokers, cfg.Notifier.Topic)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = publisher.Close() })
		infra.Notifier = publisher
	case cfg.Notifier.SendGridAPIKey != "":
		svc := email.NewService(cfg.Notifier.SendGridAPIKey, cfg.Notifier.FromEmail, cfg.Notifier.FromName)
		infra.Notifier = notification.NewMailer(svc, cfg.Notifier.BaseURL)
		logger.Logger.Info().Msg("Sending notifications directly through SendGrid")
	default:
		infra.Notifier = notification.NewLogNotifier()
		logger.Logger.Warn().Msg("No notification transport configured, notifications are only logged")
	}

	return infra, cleanup, nil
}
