package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tair/lesson-payments/pkg/httpx"
	"github.com/tair/lesson-payments/pkg/logger"
)

// Recover turns handler panics into 500 responses and reports them to
// Sentry. Without a configured DSN the hub is a no-op.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.CurrentHub().Clone()
		hub.Scope().SetRequest(r)
		ctx := sentry.SetHubOnContext(r.Context(), hub)

		defer func() {
			if rec := recover(); rec != nil {
				eventID := hub.RecoverWithContext(ctx, rec)
				hub.Flush(2 * time.Second)

				ev := logger.Error(ctx).
					Str("panic", fmt.Sprint(rec)).
					Str("method", r.Method).
					Str("path", r.URL.Path)
				if eventID != nil {
					ev = ev.Str("sentry_event_id", string(*eventID))
				}
				ev.Msg("Recovered from panic")

				httpx.RespondJSON(w, http.StatusInternalServerError, httpx.Response{
					Success: false,
					Error:   "internal server error",
				})
			}
		}()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
