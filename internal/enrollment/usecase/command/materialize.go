package command

import (
	"context"
	"fmt"
	"time"

	"github.com/tair/lesson-payments/internal/enrollment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/cache"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

// Item is one purchased bundle
type Item struct {
	Subject string
	Grade   string
	Term    string
	Price   int64
}

// MaterializeCommand represents the command to grant a paid payment's items
type MaterializeCommand struct {
	UserID           uint
	PaymentReference string
	PaidAt           time.Time
	Items            []Item
}

// MaterializeResult reports how many items were granted
type MaterializeResult struct {
	Materialized int
	Failed       int
}

// MaterializeHandler turns line items into enrollments
type MaterializeHandler struct {
	repo  domain.EnrollmentRepository
	cache cache.Cache
}

// NewMaterializeHandler creates a new materialize handler
func NewMaterializeHandler(repo domain.EnrollmentRepository, c cache.Cache) *MaterializeHandler {
	return &MaterializeHandler{repo: repo, cache: c}
}

// Handle upserts one enrollment per item. A failing item is reported as a
// consistency warning and the remaining items are still processed.
func (h *MaterializeHandler) Handle(ctx context.Context, cmd MaterializeCommand) MaterializeResult {
	var res MaterializeResult

	paidAt := cmd.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	for _, item := range cmd.Items {
		e := &domain.Enrollment{
			UserID:           cmd.UserID,
			Subject:          item.Subject,
			Grade:            item.Grade,
			Term:             item.Term,
			PaymentReference: cmd.PaymentReference,
			Price:            item.Price,
			PurchasedAt:      paidAt,
			Active:           true,
		}
		if err := h.repo.Upsert(ctx, e); err != nil {
			res.Failed++
			apperror.Warn(ctx, "enrollment", "materialize",
				fmt.Errorf("%s/%s/%s for user %d: %w", item.Subject, item.Grade, item.Term, cmd.UserID, err))
			continue
		}
		res.Materialized++
	}

	metrics.EnrollmentsMaterialized.Add(float64(res.Materialized))

	if h.cache != nil {
		apperror.Warn(ctx, "enrollment", "invalidate-cache", h.cache.Delete(ctx, domain.CacheKey(cmd.UserID)))
	}

	logger.Info(ctx).
		Uint("user_id", cmd.UserID).
		Str("reference", cmd.PaymentReference).
		Int("materialized", res.Materialized).
		Int("failed", res.Failed).
		Msg("Enrollments materialized")

	return res
}
