package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

const component = "jobs"

// PaymentAbandoner moves stale open payments to abandoned
type PaymentAbandoner interface {
	AbandonStale(ctx context.Context, createdBefore time.Time) (int64, error)
}

// ReferralExpirer expires invitations that were never used
type ReferralExpirer interface {
	Handle(ctx context.Context) (int64, error)
}

// Sweeper drops expired in-process cache entries
type Sweeper interface {
	Sweep() int
}

// CronManager manages scheduled jobs
type CronManager struct {
	cron      *cron.Cron
	cfg       config.JobsConfig
	payments  PaymentAbandoner
	referrals ReferralExpirer
	sweeper   Sweeper
	nowFn     func() time.Time
}

// NewCronManager creates a new cron manager. sweeper may be nil when the
// cache lives in Redis.
func NewCronManager(cfg config.JobsConfig, payments PaymentAbandoner, referrals ReferralExpirer, sweeper Sweeper) *CronManager {
	return &CronManager{
		cron:      cron.New(),
		cfg:       cfg,
		payments:  payments,
		referrals: referrals,
		sweeper:   sweeper,
		nowFn:     time.Now,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	if _, err := cm.cron.AddFunc(cm.cfg.AbandonSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		cm.AbandonStalePayments(ctx)
	}); err != nil {
		return err
	}

	if _, err := cm.cron.AddFunc(cm.cfg.ReferralSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		cm.ExpireReferrals(ctx)
	}); err != nil {
		return err
	}

	if cm.sweeper != nil {
		if _, err := cm.cron.AddFunc("@every 1m", func() {
			if n := cm.sweeper.Sweep(); n > 0 {
				logger.Logger.Debug().Str("component", component).Int("entries", n).Msg("Cache swept")
			}
		}); err != nil {
			return err
		}
	}

	logger.Logger.Info().
		Str("component", component).
		Str("abandon_schedule", cm.cfg.AbandonSchedule).
		Dur("abandon_after", cm.cfg.AbandonAfter).
		Str("referral_schedule", cm.cfg.ReferralSchedule).
		Dur("referral_expire_after", cm.cfg.ReferralExpireAfter).
		Msg("Cron jobs configured")

	return nil
}

// AbandonStalePayments abandons open payments older than the configured age
func (cm *CronManager) AbandonStalePayments(ctx context.Context) int64 {
	log := logger.Component(ctx, component)

	n, err := cm.payments.AbandonStale(ctx, cm.nowFn().Add(-cm.cfg.AbandonAfter))
	if err != nil {
		log.Error().Err(err).Msg("Failed to abandon stale payments")
		return 0
	}
	if n > 0 {
		metrics.PaymentsAbandoned.Add(float64(n))
		log.Info().Int64("count", n).Msg("Stale payments abandoned")
	}
	return n
}

// ExpireReferrals expires pending invitations past their window
func (cm *CronManager) ExpireReferrals(ctx context.Context) int64 {
	n, err := cm.referrals.Handle(ctx)
	if err != nil {
		logger.Component(ctx, component).Error().Err(err).Msg("Failed to expire referrals")
		return 0
	}
	return n
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	logger.Logger.Info().Str("component", component).Msg("Starting cron scheduler")
	cm.cron.Start()
}

// Stop stops the cron scheduler and waits for running jobs
func (cm *CronManager) Stop() context.Context {
	logger.Logger.Info().Str("component", component).Msg("Stopping cron scheduler")
	return cm.cron.Stop()
}
