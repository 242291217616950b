package notification

import (
	"context"

	"github.com/tair/lesson-payments/pkg/email"
)

// MailSender is satisfied by email.Service
type MailSender interface {
	Send(ctx context.Context, msg email.Message) error
}

// Mailer renders notifications and sends them as e-mail. It backs the
// notifier worker and is used directly when no broker is configured.
type Mailer struct {
	sender  MailSender
	baseURL string
}

// NewMailer creates a mailer
func NewMailer(sender MailSender, baseURL string) *Mailer {
	return &Mailer{sender: sender, baseURL: baseURL}
}

func (m *Mailer) Send(ctx context.Context, kind Kind, to Recipient, payload Payload) error {
	subject, body, err := Render(kind, to, payload, m.baseURL)
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, email.Message{
		ToEmail: to.Email,
		ToName:  to.Name,
		Subject: subject,
		Text:    body,
	})
}
