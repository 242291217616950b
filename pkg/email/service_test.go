package email

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent   []*mail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status, Body: "bad request"}, nil
}

func TestSend_UsesSender(t *testing.T) {
	sender := &fakeSender{status: 202}
	svc := NewServiceWithSender(sender, "noreply@example.com", "Lessons")

	err := svc.Send(context.Background(), Message{
		ToEmail: "ada@example.com",
		ToName:  "Ada",
		Subject: "Payment received",
		Text:    "Thanks",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, "Payment received", m.Subject)
	assert.Equal(t, "noreply@example.com", m.From.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "ada@example.com", m.Personalizations[0].To[0].Address)
}

func TestSend_Failures(t *testing.T) {
	ctx := context.Background()

	svc := NewServiceWithSender(&fakeSender{status: 400}, "a@example.com", "A")
	assert.Error(t, svc.Send(ctx, Message{ToEmail: "b@example.com"}))

	svc = NewServiceWithSender(&fakeSender{err: errors.New("network")}, "a@example.com", "A")
	assert.Error(t, svc.Send(ctx, Message{ToEmail: "b@example.com"}))

	assert.Error(t, svc.Send(ctx, Message{}), "recipient is required")
}

func TestSend_ConsoleMode(t *testing.T) {
	svc := NewService("", "a@example.com", "A")
	assert.NoError(t, svc.Send(context.Background(), Message{ToEmail: "b@example.com", Subject: "hi"}))
}
