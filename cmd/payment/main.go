package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	googlegrpc "google.golang.org/grpc"

	"github.com/tair/lesson-payments/internal/app"
	grpcDelivery "github.com/tair/lesson-payments/internal/payment/delivery/grpc"
	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/database"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/tracing"
)

func main() {
	cfg := config.Load()

	// Initialize logger
	logger.Init(cfg.ServiceName, cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	logger.Logger.Info().
		Str("service", cfg.ServiceName).
		Str("environment", cfg.Environment).
		Str("log_level", cfg.LogLevel).
		Msg("Starting payment service")

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			AttachStacktrace: true,
		}); err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to initialize Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Initialize tracer
	tp, err := tracing.InitTracer(cfg.ServiceName)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	// Connect to database
	db, err := database.NewGormConnection(cfg.Database)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Run migrations
	if err := app.Migrate(db); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Str("driver", cfg.Database.Driver).Msg("Database initialized successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, cleanup, err := app.NewInfrastructure(ctx, cfg, db)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize infrastructure")
	}
	defer cleanup()

	// Initialize handlers with Wire DI
	application, err := app.InitializeApp(cfg, infra)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if cfg.Jobs.Enabled {
		if err := application.Jobs.SetupJobs(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to configure cron jobs")
		}
		application.Jobs.Start()
		defer func() { <-application.Jobs.Stop().Done() }()
	}

	httpServer := startHTTPServer(application, sqlDB, cfg.HTTPPort)
	grpcServer := startGRPCServer(ctx, sqlDB, cfg.GRPCPort)

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()
}

func startHTTPServer(application *app.App, db *sql.DB, port string) *http.Server {
	router := application.Router()

	// Health check endpoint
	application.Payments.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Logger.Info().
			Str("port", port).
			Str("metrics_endpoint", "/metrics").
			Msg("HTTP server started")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	return srv
}

func startGRPCServer(ctx context.Context, db *sql.DB, port string) *googlegrpc.Server {
	health := grpcDelivery.NewHealthServer(db, 15*time.Second)
	srv := grpcDelivery.NewServer(health)
	go health.Run(ctx)

	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to listen for gRPC")
	}

	go func() {
		logger.Logger.Info().Str("port", port).Msg("gRPC health server started")
		if err := srv.Serve(lis); err != nil {
			logger.Logger.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	return srv
}
