package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/lesson-payments/internal/notification"
)

func TestPublisher_Send(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())

	var published NotificationEvent
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		return json.Unmarshal(val, &published)
	})

	p := NewPublisherWithProducer(producer, "")
	err := p.Send(context.Background(), notification.KindCommissionEarned,
		notification.Recipient{UserID: 7, Email: "r@example.com"},
		notification.Payload{"commission": 500})
	require.NoError(t, err)
	require.NoError(t, p.Close())

	assert.Equal(t, EventTypeNotification, published.EventType)
	assert.Equal(t, notification.KindCommissionEarned, published.Kind)
	assert.Equal(t, uint(7), published.Recipient.UserID)
	assert.EqualValues(t, 500, published.Payload["commission"])
	assert.NotEmpty(t, published.EventID)
}

func TestPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, mocks.NewTestConfig())
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewPublisherWithProducer(producer, TopicNotifications)
	err := p.Send(context.Background(), notification.KindPaymentSuccess, notification.Recipient{Email: "a@example.com"}, nil)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}

func message(t *testing.T, event NotificationEvent, eventType string) *sarama.ConsumerMessage {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return &sarama.ConsumerMessage{
		Topic: TopicNotifications,
		Value: raw,
		Headers: []*sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}
}

func TestDispatcher_RoutesByKind(t *testing.T) {
	d := NewDispatcher()

	var got []notification.Kind
	d.RegisterHandler(notification.KindPayoutProcessed, func(_ context.Context, e NotificationEvent) error {
		got = append(got, e.Kind)
		return nil
	})

	ctx := context.Background()
	err := d.HandleMessage(ctx, message(t, NotificationEvent{Kind: notification.KindPayoutProcessed}, EventTypeNotification))
	require.NoError(t, err)
	assert.Equal(t, []notification.Kind{notification.KindPayoutProcessed}, got)

	err = d.HandleMessage(ctx, message(t, NotificationEvent{Kind: notification.KindPaymentSuccess}, EventTypeNotification))
	assert.ErrorIs(t, err, ErrNoHandler)

	d.RegisterFallback(func(_ context.Context, e NotificationEvent) error {
		got = append(got, e.Kind)
		return nil
	})
	err = d.HandleMessage(ctx, message(t, NotificationEvent{Kind: notification.KindPaymentSuccess}, EventTypeNotification))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestDispatcher_RejectsBadMessages(t *testing.T) {
	d := NewDispatcher()
	d.RegisterFallback(func(context.Context, NotificationEvent) error { return errors.New("should not run") })
	ctx := context.Background()

	err := d.HandleMessage(ctx, message(t, NotificationEvent{}, "product.purchased"))
	assert.Error(t, err)

	err = d.HandleMessage(ctx, &sarama.ConsumerMessage{
		Value:   []byte("{"),
		Headers: []*sarama.RecordHeader{{Key: []byte("event_type"), Value: []byte(EventTypeNotification)}},
	})
	assert.Error(t, err)
}

func TestStart_WithoutBroker(t *testing.T) {
	assert.Error(t, NewDispatcher().Start(context.Background()))
}
