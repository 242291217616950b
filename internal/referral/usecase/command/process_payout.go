package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tair/lesson-payments/internal/notification"
	"github.com/tair/lesson-payments/internal/referral/domain"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/cache"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

// ProcessPayoutCommand pays out every pending commission of a referrer
type ProcessPayoutCommand struct {
	ReferrerID uint
	Notes      string
	AdminRun   bool
}

// ProcessPayoutHandler settles pending commissions, one run per referrer at
// a time
type ProcessPayoutHandler struct {
	profiles    domain.ProfileRepository
	txs         domain.TransactionRepository
	ledger      domain.LedgerStore
	locker      cache.Locker
	users       userdomain.UserDirectory
	notifier    notification.Notifier
	lockTTL     time.Duration
	defaultRate float64
	adminEmail  string
	nowFn       func() time.Time
}

// PayoutDeps groups the collaborators of the payout handlers
type PayoutDeps struct {
	Profiles     domain.ProfileRepository
	Transactions domain.TransactionRepository
	Ledger       domain.LedgerStore
	Locker       cache.Locker
	Users        userdomain.UserDirectory
	Notifier     notification.Notifier
	LockTTL      time.Duration
	DefaultRate  float64
	AdminEmail   string
}

// NewProcessPayoutHandler creates a new payout handler
func NewProcessPayoutHandler(deps PayoutDeps) *ProcessPayoutHandler {
	ttl := deps.LockTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &ProcessPayoutHandler{
		profiles:    deps.Profiles,
		txs:         deps.Transactions,
		ledger:      deps.Ledger,
		locker:      deps.Locker,
		users:       deps.Users,
		notifier:    deps.Notifier,
		lockTTL:     ttl,
		defaultRate: deps.DefaultRate,
		adminEmail:  deps.AdminEmail,
		nowFn:       time.Now,
	}
}

// PayoutLockKey names the lock that serializes a referrer's payouts
func PayoutLockKey(referrerID uint) string {
	return fmt.Sprintf("payout:%d", referrerID)
}

// Handle runs the payout
func (h *ProcessPayoutHandler) Handle(ctx context.Context, cmd ProcessPayoutCommand) (*domain.PayoutSummary, error) {
	release, err := h.locker.Acquire(ctx, PayoutLockKey(cmd.ReferrerID), h.lockTTL)
	if errors.Is(err, cache.ErrLocked) {
		return nil, apperror.NewConflict("a payout for this referrer is already in progress")
	}
	if err != nil {
		return nil, fmt.Errorf("acquire payout lock: %w", err)
	}
	defer release()

	profile, err := h.profiles.GetOrCreate(ctx, cmd.ReferrerID, h.defaultRate)
	if err != nil {
		return nil, fmt.Errorf("load referrer profile: %w", err)
	}
	if !profile.HasBankDetails() {
		return nil, apperror.NewValidation("bank details are required before a payout")
	}

	count, _, err := h.txs.PendingSummary(ctx, cmd.ReferrerID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperror.NewValidation("nothing to pay out")
	}

	batchID := "PAYOUT-" + uuid.NewString()
	res, err := h.ledger.SettlePending(ctx, cmd.ReferrerID, batchID, cmd.Notes, h.nowFn())
	if err != nil {
		return nil, fmt.Errorf("settle payout: %w", err)
	}
	if res.Count == 0 {
		return nil, apperror.NewValidation("nothing to pay out")
	}
	if res.Drift > 0 {
		apperror.Warn(ctx, "referral", "payout-floor",
			fmt.Errorf("pending earnings of referrer %d were %d short of batch %s", cmd.ReferrerID, res.Drift, batchID))
	}

	metrics.PayoutsProcessed.Inc()
	metrics.PayoutAmount.Add(float64(res.Total))

	logger.Component(ctx, "referral").Info().
		Uint("referrer_id", cmd.ReferrerID).
		Str("batch_id", batchID).
		Int64("count", res.Count).
		Int64("total", res.Total).
		Bool("admin_run", cmd.AdminRun).
		Msg("Payout processed")

	payload := notification.Payload{
		"batch_id":    batchID,
		"total":       res.Total,
		"count":       res.Count,
		"referrer_id": cmd.ReferrerID,
	}
	if u, err := h.users.FindByID(ctx, cmd.ReferrerID); err != nil {
		apperror.Warn(ctx, "notification", "resolve-referrer", err)
	} else {
		to := notification.Recipient{UserID: u.ID, Email: u.Email, Name: u.FullName}
		apperror.Warn(ctx, "notification", string(notification.KindPayoutProcessed),
			h.notifier.Send(ctx, notification.KindPayoutProcessed, to, payload))
	}
	if cmd.AdminRun && h.adminEmail != "" {
		to := notification.Recipient{Email: h.adminEmail, Name: "Admin"}
		apperror.Warn(ctx, "notification", string(notification.KindPayoutProcessed),
			h.notifier.Send(ctx, notification.KindPayoutProcessed, to, payload))
	}

	summary := res.PayoutSummary
	return &summary, nil
}
