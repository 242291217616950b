package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/lesson-payments/pkg/config"
)

type stubAbandoner struct {
	cutoff time.Time
	n      int64
	err    error
}

func (s *stubAbandoner) AbandonStale(_ context.Context, createdBefore time.Time) (int64, error) {
	s.cutoff = createdBefore
	return s.n, s.err
}

type stubExpirer struct {
	calls int
	n     int64
	err   error
}

func (s *stubExpirer) Handle(context.Context) (int64, error) {
	s.calls++
	return s.n, s.err
}

func testConfig() config.JobsConfig {
	return config.JobsConfig{
		Enabled:             true,
		AbandonSchedule:     "*/15 * * * *",
		AbandonAfter:        24 * time.Hour,
		ReferralSchedule:    "0 3 * * *",
		ReferralExpireAfter: 90 * 24 * time.Hour,
	}
}

func TestAbandonStalePayments_UsesCutoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payments := &stubAbandoner{n: 3}
	cm := NewCronManager(testConfig(), payments, &stubExpirer{}, nil)
	cm.nowFn = func() time.Time { return now }

	assert.Equal(t, int64(3), cm.AbandonStalePayments(context.Background()))
	assert.Equal(t, now.Add(-24*time.Hour), payments.cutoff)
}

func TestAbandonStalePayments_ErrorIsSwallowed(t *testing.T) {
	cm := NewCronManager(testConfig(), &stubAbandoner{err: errors.New("db down")}, &stubExpirer{}, nil)
	assert.Zero(t, cm.AbandonStalePayments(context.Background()))
}

func TestExpireReferrals(t *testing.T) {
	referrals := &stubExpirer{n: 2}
	cm := NewCronManager(testConfig(), &stubAbandoner{}, referrals, nil)

	assert.Equal(t, int64(2), cm.ExpireReferrals(context.Background()))
	assert.Equal(t, 1, referrals.calls)

	referrals.err = errors.New("boom")
	assert.Zero(t, cm.ExpireReferrals(context.Background()))
}

func TestSetupJobs_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.AbandonSchedule = "not a schedule"
	cm := NewCronManager(cfg, &stubAbandoner{}, &stubExpirer{}, nil)
	require.Error(t, cm.SetupJobs())

	cm = NewCronManager(testConfig(), &stubAbandoner{}, &stubExpirer{}, nil)
	require.NoError(t, cm.SetupJobs())
	assert.Len(t, cm.cron.Entries(), 2)
}
