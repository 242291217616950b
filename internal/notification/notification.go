// Package notification defines the fire-and-forget notifications emitted by
// the payment and referral workflows, and the transports that carry them.
package notification

import (
	"context"

	"github.com/tair/lesson-payments/pkg/logger"
)

// Kind identifies a notification template
type Kind string

const (
	KindPaymentSuccess   Kind = "payment-success"
	KindCommissionEarned Kind = "commission-earned"
	KindPayoutRequested  Kind = "payout-requested"
	KindPayoutProcessed  Kind = "payout-processed"
)

// Recipient is who the notification is addressed to
type Recipient struct {
	UserID uint   `json:"user_id,omitempty"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
}

// Payload carries template variables
type Payload map[string]interface{}

// Notifier sends notifications. Callers treat failures as non-fatal.
type Notifier interface {
	Send(ctx context.Context, kind Kind, to Recipient, payload Payload) error
}

// LogNotifier writes notifications to the log. Used when no transport is
// configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (LogNotifier) Send(ctx context.Context, kind Kind, to Recipient, payload Payload) error {
	logger.Info(ctx).
		Str("kind", string(kind)).
		Str("to", to.Email).
		Uint("user_id", to.UserID).
		Interface("payload", payload).
		Msg("Notification")
	return nil
}
