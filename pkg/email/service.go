package email

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tair/lesson-payments/pkg/logger"
)

// Sender is the subset of the SendGrid client used here
type Sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// Message is one outgoing e-mail
type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Service handles email sending
type Service struct {
	sender    Sender
	fromEmail string
	fromName  string
}

// NewService creates an email service. An empty API key selects console
// mode, where messages are logged instead of sent.
func NewService(apiKey, fromEmail, fromName string) *Service {
	var sender Sender
	if apiKey != "" {
		sender = sendgrid.NewSendClient(apiKey)
	}
	return NewServiceWithSender(sender, fromEmail, fromName)
}

// NewServiceWithSender creates an email service over an explicit sender
func NewServiceWithSender(sender Sender, fromEmail, fromName string) *Service {
	return &Service{sender: sender, fromEmail: fromEmail, fromName: fromName}
}

// Send delivers a message through SendGrid
func (s *Service) Send(ctx context.Context, msg Message) error {
	if msg.ToEmail == "" {
		return fmt.Errorf("email: recipient address is required")
	}

	if s.sender == nil {
		logger.Info(ctx).
			Str("to", msg.ToEmail).
			Str("from", s.fromEmail).
			Str("subject", msg.Subject).
			Str("body", msg.Text).
			Msg("Email (console mode)")
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	html := msg.HTML
	if html == "" {
		html = "<pre>" + msg.Text + "</pre>"
	}

	resp, err := s.sender.SendWithContext(ctx, mail.NewSingleEmail(from, msg.Subject, to, msg.Text, html))
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid rejected message: status %d: %s", resp.StatusCode, resp.Body)
	}

	logger.Debug(ctx).
		Str("to", msg.ToEmail).
		Str("subject", msg.Subject).
		Int("status", resp.StatusCode).
		Msg("Email sent")
	return nil
}
