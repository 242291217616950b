package handler

import (
	"github.com/gorilla/mux"

	"github.com/tair/lesson-payments/pkg/metrics"
	"github.com/tair/lesson-payments/pkg/middleware"
)

// MiddlewareConfig holds middleware configuration
type MiddlewareConfig struct {
	EnableLogging bool
	EnableTracing bool
	EnableMetrics bool
	RateLimiter   *middleware.RateLimiter
}

// DefaultMiddlewareConfig returns default middleware configuration
func DefaultMiddlewareConfig(limiter *middleware.RateLimiter) MiddlewareConfig {
	return MiddlewareConfig{
		EnableLogging: true,
		EnableTracing: true,
		EnableMetrics: true,
		RateLimiter:   limiter,
	}
}

// RegisterMiddlewares registers all middlewares to the router. Panic
// recovery runs first so every other layer is covered.
func RegisterMiddlewares(router *mux.Router, config MiddlewareConfig) {
	router.Use(middleware.Recover)

	if config.EnableTracing {
		router.Use(middleware.Tracing("http-request"))
	}

	if config.EnableLogging {
		router.Use(middleware.Logging)
	}

	if config.EnableMetrics {
		router.Use(metrics.Middleware)
	}

	if config.RateLimiter != nil {
		router.Use(config.RateLimiter.Middleware)
	}
}
