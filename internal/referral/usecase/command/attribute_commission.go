package command

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/tair/lesson-payments/internal/referral/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

// AttributeCommissionCommand describes a successful payment to credit
type AttributeCommissionCommand struct {
	PayerID    uint
	PayerEmail string
	StudentID  *uint
	PaymentID  uint
	Amount     int64
}

// AttributionResult describes the commission that was recorded
type AttributionResult struct {
	ReferrerID    uint
	ReferralID    uint
	TransactionID uint
	Commission    int64
	Completed     bool
}

// Commission returns round(amount × rate)
func Commission(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}

// AttributeCommissionHandler credits a payer's referrer
type AttributeCommissionHandler struct {
	resolver    *ReferralResolver
	profiles    domain.ProfileRepository
	ledger      domain.LedgerStore
	defaultRate float64
	nowFn       func() time.Time
}

// NewAttributeCommissionHandler creates a new attribution handler
func NewAttributeCommissionHandler(
	resolver *ReferralResolver,
	profiles domain.ProfileRepository,
	ledger domain.LedgerStore,
	defaultRate float64,
) *AttributeCommissionHandler {
	return &AttributeCommissionHandler{
		resolver:    resolver,
		profiles:    profiles,
		ledger:      ledger,
		defaultRate: defaultRate,
		nowFn:       time.Now,
	}
}

// Handle records the commission for one payment. It returns nil with no
// error when the payer has no usable referral or the payment was already
// credited.
func (h *AttributeCommissionHandler) Handle(ctx context.Context, cmd AttributeCommissionCommand) (*AttributionResult, error) {
	log := logger.Component(ctx, "referral")

	ref, err := h.resolver.Resolve(ctx, cmd.PayerID, cmd.PayerEmail)
	if err != nil {
		return nil, err
	}
	if ref == nil || ref.ReferrerID == 0 || ref.Status == domain.ReferralExpired {
		log.Debug().Uint("user_id", cmd.PayerID).Msg("No active referral for payer")
		return nil, nil
	}
	if ref.ReferrerID == cmd.PayerID {
		log.Warn().Uint("user_id", cmd.PayerID).Msg("Ignoring self referral")
		return nil, nil
	}

	profile, err := h.profiles.GetOrCreate(ctx, ref.ReferrerID, h.defaultRate)
	if err != nil {
		return nil, fmt.Errorf("load referrer profile: %w", err)
	}

	commission := Commission(cmd.Amount, profile.CommissionRate)
	if commission <= 0 {
		return nil, nil
	}

	t := &domain.ReferralTransaction{
		ReferrerID:       ref.ReferrerID,
		ReferralID:       ref.ID,
		UserID:           cmd.PayerID,
		StudentID:        cmd.StudentID,
		AmountPaid:       cmd.Amount,
		CommissionAmount: commission,
		Status:           domain.TransactionPending,
	}
	if cmd.PaymentID != 0 {
		paymentID := cmd.PaymentID
		t.PaymentID = &paymentID
	}

	completed, err := h.ledger.Accrue(ctx, t, h.defaultRate, h.nowFn())
	if apperror.Is(err, apperror.KindConflict) {
		log.Info().Uint("payment_id", cmd.PaymentID).Msg("Commission already recorded for payment")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("accrue commission: %w", err)
	}

	metrics.CommissionsAccrued.Inc()
	metrics.CommissionAmount.Add(float64(commission))

	log.Info().
		Uint("referrer_id", ref.ReferrerID).
		Uint("user_id", cmd.PayerID).
		Int64("amount", cmd.Amount).
		Int64("commission", commission).
		Bool("referral_completed", completed).
		Msg("Referral commission accrued")

	return &AttributionResult{
		ReferrerID:    ref.ReferrerID,
		ReferralID:    ref.ID,
		TransactionID: t.ID,
		Commission:    commission,
		Completed:     completed,
	}, nil
}
