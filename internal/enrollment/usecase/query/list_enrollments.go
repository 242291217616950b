package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tair/lesson-payments/internal/enrollment/domain"
	"github.com/tair/lesson-payments/pkg/cache"
	"github.com/tair/lesson-payments/pkg/logger"
)

// ListMyEnrollmentsHandler serves a user's active enrollments through a
// TTL cache
type ListMyEnrollmentsHandler struct {
	repo  domain.EnrollmentRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewListMyEnrollmentsHandler creates a new list enrollments handler
func NewListMyEnrollmentsHandler(repo domain.EnrollmentRepository, c cache.Cache, ttl time.Duration) *ListMyEnrollmentsHandler {
	return &ListMyEnrollmentsHandler{repo: repo, cache: c, ttl: ttl}
}

// Handle executes the list enrollments query
func (h *ListMyEnrollmentsHandler) Handle(ctx context.Context, userID uint) ([]domain.Enrollment, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user_id is required")
	}
	key := domain.CacheKey(userID)

	if h.cache != nil {
		raw, err := h.cache.Get(ctx, key)
		switch {
		case err == nil:
			var cached []domain.Enrollment
			if jerr := json.Unmarshal(raw, &cached); jerr == nil {
				return cached, nil
			}
		case !errors.Is(err, cache.ErrMiss):
			logger.Warn(ctx).Err(err).Str("key", key).Msg("Enrollment cache read failed")
		}
	}

	enrollments, err := h.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	if enrollments == nil {
		enrollments = []domain.Enrollment{}
	}

	if h.cache != nil {
		if raw, err := json.Marshal(enrollments); err == nil {
			if err := h.cache.Set(ctx, key, raw, h.ttl); err != nil {
				logger.Warn(ctx).Err(err).Str("key", key).Msg("Enrollment cache write failed")
			}
		}
	}
	return enrollments, nil
}
