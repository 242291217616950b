package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tair/lesson-payments/internal/notification"
	"github.com/tair/lesson-payments/kafka"
	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/email"
	"github.com/tair/lesson-payments/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.Init("notification-worker", cfg.IsDevelopment())
	logger.SetLevel(cfg.LogLevel)

	if len(cfg.Notifier.KafkaBrokers) == 0 {
		logger.Logger.Fatal().Msg("KAFKA_BROKERS is required")
	}

	var sender notification.Notifier = notification.NewLogNotifier()
	if cfg.Notifier.SendGridAPIKey != "" {
		svc := email.NewService(cfg.Notifier.SendGridAPIKey, cfg.Notifier.FromEmail, cfg.Notifier.FromName)
		sender = notification.NewMailer(svc, cfg.Notifier.BaseURL)
	} else {
		logger.Logger.Warn().Msg("SENDGRID_API_KEY not set, notifications are only logged")
	}

	consumer, err := kafka.NewConsumer(cfg.Notifier.KafkaBrokers, cfg.Notifier.ConsumerGroup, []string{cfg.Notifier.Topic})
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	consumer.RegisterFallback(func(ctx context.Context, event kafka.NotificationEvent) error {
		return sender.Send(ctx, event.Kind, event.Recipient, event.Payload)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start Kafka consumer")
	}

	logger.Logger.Info().
		Str("topic", cfg.Notifier.Topic).
		Str("group_id", cfg.Notifier.ConsumerGroup).
		Msg("Notification worker running")

	<-ctx.Done()
	logger.Logger.Info().Msg("Shutting down notification worker...")
}
