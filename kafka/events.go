package kafka

import (
	"time"

	"github.com/tair/lesson-payments/internal/notification"
)

// NotificationEvent is the wire form of one notification
type NotificationEvent struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	Kind      notification.Kind      `json:"kind"`
	Recipient notification.Recipient `json:"recipient"`
	Payload   notification.Payload   `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Event types
const (
	EventTypeNotification = "notification.requested"
)

// Kafka topics
const (
	TopicNotifications = "notifications"
)
