package command

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
)

// VerifyPaymentCommand represents the command to poll a payment's status
type VerifyPaymentCommand struct {
	Reference string
	UserID    uint
	Email     string
	Name      string
}

// VerifyPaymentResult is the payment state after verification
type VerifyPaymentResult struct {
	Reference string     `json:"reference"`
	Status    string     `json:"status"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`
	Settled   bool       `json:"settled"`
}

// VerifyPaymentHandler handles verify payment command
type VerifyPaymentHandler struct {
	repo       domain.PaymentRepository
	gateway    domain.Gateway
	reconciler *Reconciler
}

// NewVerifyPaymentHandler creates a new verify payment handler
func NewVerifyPaymentHandler(repo domain.PaymentRepository, gateway domain.Gateway, reconciler *Reconciler) *VerifyPaymentHandler {
	return &VerifyPaymentHandler{repo: repo, gateway: gateway, reconciler: reconciler}
}

// Handle asks the gateway for the payment's status and applies it. The raw
// gateway answer is stored whatever the outcome.
func (h *VerifyPaymentHandler) Handle(ctx context.Context, cmd VerifyPaymentCommand) (*VerifyPaymentResult, error) {
	p, err := h.repo.FindByReference(ctx, cmd.Reference)
	if err != nil {
		return nil, err
	}
	if p.UserID != cmd.UserID {
		// Someone else's payment is indistinguishable from a missing one
		return nil, apperror.NewNotFound("payment")
	}

	res, verifyErr := h.gateway.Verify(ctx, p.Reference)

	raw := errorEnvelope(verifyErr)
	if res != nil && len(res.Raw) > 0 {
		raw = res.Raw
	}
	if raw != nil {
		apperror.Warn(ctx, "payment", "save-verify-payload", h.repo.SaveVerifyPayload(ctx, p.ID, raw))
	}

	if verifyErr != nil {
		logger.Warn(ctx).Err(verifyErr).Str("reference", p.Reference).Msg("Payment verification failed")
		return nil, asUpstream("payment gateway verify failed", verifyErr)
	}

	status := domain.MapGatewayStatus(res.GatewayStatus)
	settled, err := h.reconciler.Apply(ctx, p, status, res.PaidAt,
		Payer{UserID: cmd.UserID, Email: cmd.Email, Name: cmd.Name}, SourcePoll)
	if err != nil {
		return nil, err
	}

	return &VerifyPaymentResult{
		Reference: p.Reference,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		PaidAt:    p.PaidAt,
		Settled:   settled,
	}, nil
}

// errorEnvelope records a failed call that returned no body
func errorEnvelope(err error) []byte {
	if err == nil {
		return nil
	}
	raw, _ := json.Marshal(map[string]interface{}{
		"status":  false,
		"message": err.Error(),
	})
	return raw
}

func asUpstream(msg string, err error) error {
	if apperror.Is(err, apperror.KindUpstream) {
		return err
	}
	return apperror.NewUpstream(msg, err)
}
