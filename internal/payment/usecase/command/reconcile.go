package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

// Verification sources
const (
	SourcePoll    = "poll"
	SourceWebhook = "webhook"
)

var errMissingRecipient = errors.New("recipient has no email address")

// Reconciler applies a gateway-reported status to a payment. Both the poll
// and the webhook paths go through it so they share one idempotency guard.
type Reconciler struct {
	repo    domain.PaymentRepository
	settler *Settler
	nowFn   func() time.Time
}

// NewReconciler creates a new reconciler
func NewReconciler(repo domain.PaymentRepository, settler *Settler) *Reconciler {
	return &Reconciler{repo: repo, settler: settler, nowFn: time.Now}
}

// Apply transitions p to status. For success the side-effect bundle runs
// only if this call won the conditional update. It reports whether the
// bundle ran.
func (r *Reconciler) Apply(ctx context.Context, p *domain.Payment, status string, paidAt *time.Time, payer Payer, source string) (bool, error) {
	defer metrics.PaymentVerifications.WithLabelValues(source, status).Inc()

	if status != domain.StatusSuccess {
		changed, err := r.repo.UpdateStatus(ctx, p.ID, status)
		if err != nil {
			return false, fmt.Errorf("apply status %s: %w", status, err)
		}
		if changed {
			p.Status = status
		}
		logger.Info(ctx).
			Str("reference", p.Reference).
			Str("status", status).
			Bool("changed", changed).
			Str("source", source).
			Msg("Payment status reconciled")
		return false, nil
	}

	at := r.nowFn()
	if paidAt != nil && !paidAt.IsZero() {
		at = *paidAt
	}

	claimed, err := r.repo.MarkSucceeded(ctx, p.ID, at)
	if err != nil {
		return false, fmt.Errorf("mark payment succeeded: %w", err)
	}
	if !claimed {
		p.Status = domain.StatusSuccess
		logger.Info(ctx).
			Str("reference", p.Reference).
			Str("source", source).
			Msg("Payment already successful, side effects skipped")
		return false, nil
	}

	p.Status = domain.StatusSuccess
	p.PaidAt = &at

	logger.Info(ctx).
		Str("reference", p.Reference).
		Uint("user_id", p.UserID).
		Int64("amount", p.Amount).
		Str("source", source).
		Msg("Payment succeeded")

	r.settler.Settle(ctx, p, payer)
	return true, nil
}
