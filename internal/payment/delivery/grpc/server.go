package grpc

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/tair/lesson-payments/pkg/logger"
)

// ServiceName is the health service key reported for the payment service
const ServiceName = "payment.v1.PaymentService"

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer keeps the gRPC health status in step with the database
type HealthServer struct {
	health   *health.Server
	db       Pinger
	interval time.Duration
}

// NewHealthServer creates a health server probing db every interval
func NewHealthServer(db Pinger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthServer{
		health:   health.NewServer(),
		db:       db,
		interval: interval,
	}
}

// Probe pings the database once and publishes the result
func (s *HealthServer) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.PingContext(ctx); err != nil {
		logger.Warn(ctx).Err(err).Msg("gRPC health probe failed")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Run probes until ctx is cancelled, then marks every service not serving
func (s *HealthServer) Run(ctx context.Context) {
	s.Probe(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// NewServer creates the gRPC server with tracing, logging and the health
// service registered
func NewServer(hs *HealthServer) *grpc.Server {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
		),
	)

	healthpb.RegisterHealthServer(srv, hs.health)

	// Register reflection service (for grpcurl and grpc tools)
	reflection.Register(srv)

	return srv
}
