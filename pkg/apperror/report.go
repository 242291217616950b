package apperror

import (
	"context"

	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

// Warn logs a consistency warning and counts it per component. A nil err
// is ignored so callers can pass results straight through.
func Warn(ctx context.Context, component, op string, err error) {
	if err == nil {
		return
	}
	w := NewConsistencyWarning(component, op, err)
	metrics.ConsistencyWarnings.WithLabelValues(component).Inc()
	logger.Component(ctx, component).Warn().
		Err(w.Err).
		Str("op", op).
		Msg("Consistency warning")
}
