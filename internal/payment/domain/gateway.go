package domain

import (
	"context"
	"strings"
	"time"
)

// InitializeRequest asks the gateway for a hosted checkout
type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]interface{}
}

// InitializeResult is the gateway's checkout handle
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Raw              []byte
}

// VerifyResult is the gateway's view of a transaction
type VerifyResult struct {
	GatewayStatus string
	Reference     string
	AmountMinor   int64
	PaidAt        *time.Time
	Raw           []byte
}

// Gateway is the external payment processor
type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	// Verify returns the raw payload alongside any error so it can be
	// stored for audit
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}

// WebhookVerifier authenticates gateway webhook deliveries
type WebhookVerifier interface {
	VerifySignature(body []byte, signature string) bool
}

// MapGatewayStatus converts a gateway transaction status to a payment status
func MapGatewayStatus(gatewayStatus string) string {
	switch strings.ToLower(gatewayStatus) {
	case "success":
		return StatusSuccess
	case "failed", "reversed":
		return StatusFailed
	case "abandoned":
		return StatusAbandoned
	default:
		return StatusPending
	}
}
