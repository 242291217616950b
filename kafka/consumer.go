package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/lesson-payments/internal/notification"
	"github.com/tair/lesson-payments/pkg/logger"
)

// ErrNoHandler is returned for events whose kind has no registered handler
var ErrNoHandler = errors.New("no handler registered")

// Consumer wraps Kafka consumer
type Consumer struct {
	consumer      sarama.ConsumerGroup
	groupID       string
	topics        []string
	handlers      map[notification.Kind]EventHandler
	fallback      EventHandler
	handlersMutex sync.RWMutex
}

// EventHandler is a function that handles events
type EventHandler func(ctx context.Context, event NotificationEvent) error

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Strs("topics", topics).
		Msg("Kafka consumer initialized")

	c := NewDispatcher()
	c.consumer = group
	c.groupID = groupID
	c.topics = topics
	return c, nil
}

// NewDispatcher creates a consumer with no broker connection. It only
// routes messages handed to HandleMessage.
func NewDispatcher() *Consumer {
	return &Consumer{handlers: make(map[notification.Kind]EventHandler)}
}

// RegisterHandler registers an event handler for a notification kind
func (c *Consumer) RegisterHandler(kind notification.Kind, handler EventHandler) {
	c.handlersMutex.Lock()
	defer c.handlersMutex.Unlock()
	c.handlers[kind] = handler
	logger.Logger.Info().
		Str("kind", string(kind)).
		Msg("Event handler registered")
}

// RegisterFallback registers the handler used for kinds without their own
func (c *Consumer) RegisterFallback(handler EventHandler) {
	c.handlersMutex.Lock()
	defer c.handlersMutex.Unlock()
	c.fallback = handler
}

// Start starts consuming messages. It returns immediately; consumption runs
// until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.consumer == nil {
		return errors.New("consumer has no broker connection")
	}
	handler := &consumerGroupHandler{consumer: c}

	go func() {
		for {
			if err := c.consumer.Consume(ctx, c.topics, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				logger.Logger.Error().Err(err).Msg("Error from consumer")
			}
			if ctx.Err() != nil {
				logger.Logger.Info().Msg("Consumer context cancelled, stopping...")
				return
			}
		}
	}()

	go func() {
		for err := range c.consumer.Errors() {
			logger.Logger.Error().Err(err).Msg("Consumer error")
		}
	}()

	logger.Logger.Info().
		Strs("topics", c.topics).
		Str("group_id", c.groupID).
		Msg("Kafka consumer started")

	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	if c.consumer != nil {
		return c.consumer.Close()
	}
	return nil
}

// HandleMessage decodes one message and routes it to its handler
func (c *Consumer) HandleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	// Extract trace context from Kafka headers
	carrier := propagation.MapCarrier{}
	eventType := ""
	for _, header := range message.Headers {
		key := string(header.Key)
		switch key {
		case "traceparent", "tracestate":
			carrier[key] = string(header.Value)
		case "event_type":
			eventType = string(header.Value)
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	tracer := otel.Tracer("kafka-consumer")
	ctx, span := tracer.Start(ctx, "kafka.consume.notification",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.String("messaging.source_kind", "topic"),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		),
	)
	defer span.End()

	if eventType != EventTypeNotification {
		span.SetStatus(codes.Error, "Unknown event type")
		logger.Warn(ctx).Str("event_type", eventType).Msg("Skipping message with unknown event type")
		return fmt.Errorf("unknown event type %q", eventType)
	}

	var event NotificationEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to unmarshal event")
		logger.Error(ctx).Err(err).Msg("Failed to unmarshal event")
		return fmt.Errorf("unmarshal event: %w", err)
	}

	span.SetAttributes(
		attribute.String("event.id", event.EventID),
		attribute.String("notification.kind", string(event.Kind)),
	)

	c.handlersMutex.RLock()
	handler, exists := c.handlers[event.Kind]
	if !exists {
		handler = c.fallback
	}
	c.handlersMutex.RUnlock()

	if handler == nil {
		span.SetStatus(codes.Error, "No handler registered")
		logger.Warn(ctx).Str("kind", string(event.Kind)).Msg("No handler registered for notification kind")
		return ErrNoHandler
	}

	if err := handler(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to handle event")
		logger.Error(ctx).
			Err(err).
			Str("kind", string(event.Kind)).
			Str("event_id", event.EventID).
			Msg("Failed to handle event")
		return err
	}

	span.SetStatus(codes.Ok, "Event handled successfully")
	logger.Info(ctx).
		Str("kind", string(event.Kind)).
		Str("event_id", event.EventID).
		Str("to", event.Recipient.Email).
		Msg("Notification delivered")
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks every message, including ones whose delivery failed:
// notifications are best-effort and a poison message must not block the
// partition.
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		_ = h.consumer.HandleMessage(session.Context(), message)
		session.MarkMessage(message, "")
	}
	return nil
}
