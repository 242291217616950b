package command

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
)

// EventChargeSuccess is the only webhook event that changes state
const EventChargeSuccess = "charge.success"

// HandleWebhookCommand carries one raw webhook delivery
type HandleWebhookCommand struct {
	Body      []byte
	Signature string
}

// WebhookResult describes what a delivery did
type WebhookResult struct {
	Event     string `json:"event"`
	Reference string `json:"reference,omitempty"`
	Handled   bool   `json:"handled"`
	Settled   bool   `json:"settled"`
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		PaidAt    string `json:"paid_at"`
		Amount    int64  `json:"amount"`
	} `json:"data"`
}

// HandleWebhookHandler handles gateway webhook deliveries
type HandleWebhookHandler struct {
	repo       domain.PaymentRepository
	verifier   domain.WebhookVerifier
	reconciler *Reconciler
	parseTime  func(string) *time.Time
}

// NewHandleWebhookHandler creates a new webhook handler. parseTime reads the
// gateway's paid_at timestamps.
func NewHandleWebhookHandler(
	repo domain.PaymentRepository,
	verifier domain.WebhookVerifier,
	reconciler *Reconciler,
	parseTime func(string) *time.Time,
) *HandleWebhookHandler {
	return &HandleWebhookHandler{repo: repo, verifier: verifier, reconciler: reconciler, parseTime: parseTime}
}

// Handle authenticates the delivery and applies charge.success events.
// Unknown references and other events are acknowledged without effect.
func (h *HandleWebhookHandler) Handle(ctx context.Context, cmd HandleWebhookCommand) (*WebhookResult, error) {
	if !h.verifier.VerifySignature(cmd.Body, cmd.Signature) {
		logger.Warn(ctx).Msg("Webhook rejected: invalid signature")
		return nil, apperror.NewAuthentication("invalid webhook signature")
	}

	var evt webhookEvent
	if err := json.Unmarshal(cmd.Body, &evt); err != nil {
		return nil, apperror.NewValidation("invalid webhook payload")
	}

	out := &WebhookResult{Event: evt.Event, Reference: evt.Data.Reference}
	if evt.Event != EventChargeSuccess {
		logger.Debug(ctx).Str("event", evt.Event).Msg("Webhook event ignored")
		return out, nil
	}
	if strings.TrimSpace(evt.Data.Reference) == "" {
		return nil, apperror.NewValidation("webhook payload has no reference")
	}

	p, err := h.repo.FindByReference(ctx, evt.Data.Reference)
	if apperror.Is(err, apperror.KindNotFound) {
		logger.Warn(ctx).Str("reference", evt.Data.Reference).Msg("Webhook for unknown payment acknowledged")
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	apperror.Warn(ctx, "payment", "save-webhook-payload", h.repo.SaveWebhookPayload(ctx, p.ID, cmd.Body))

	var paidAt *time.Time
	if h.parseTime != nil {
		paidAt = h.parseTime(evt.Data.PaidAt)
	}

	settled, err := h.reconciler.Apply(ctx, p, domain.StatusSuccess, paidAt, Payer{UserID: p.UserID}, SourceWebhook)
	if err != nil {
		return nil, err
	}

	out.Handled = true
	out.Settled = settled
	return out, nil
}
