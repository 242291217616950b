package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	PaymentsInitialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_initialized_total",
		Help: "Payments successfully initialized with the gateway",
	})

	PaymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment verifications by source (poll, webhook) and resulting status",
		},
		[]string{"source", "status"},
	)

	PaymentsSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Payments whose post-success side effects ran",
	})

	PaymentsAbandoned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_abandoned_total",
		Help: "Stale payments marked abandoned by the scheduler",
	})

	EnrollmentsMaterialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_materialized_total",
		Help: "Enrollments created or refreshed from successful payments",
	})

	CommissionsAccrued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commissions_accrued_total",
		Help: "Referral commission transactions created",
	})

	CommissionAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commission_amount_total",
		Help: "Sum of accrued commission in minor units",
	})

	PayoutsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payouts_processed_total",
		Help: "Payout batches processed",
	})

	PayoutAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payout_amount_total",
		Help: "Sum of paid out commission in minor units",
	})

	ReferralsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "referrals_expired_total",
		Help: "Pending referrals expired by the scheduler",
	})

	ConsistencyWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "consistency_warnings_total",
			Help: "Best-effort side effects that failed",
		},
		[]string{"component"},
	)
)

// Middleware records request count and latency per route template
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.statusCode = code
	s.ResponseWriter.WriteHeader(code)
}
