// Package gateway talks to the Paystack-compatible payment processor.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/logger"
)

const maxResponseBytes = 1 << 20

// Client is a Paystack REST client. It never retries: initiation is not
// idempotent and verification is re-polled by the caller.
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	limiter       *rate.Limiter
}

// NewClient creates a gateway client from configuration
func NewClient(cfg config.GatewayConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 20
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	webhookSecret := cfg.WebhookSecret
	if webhookSecret == "" {
		webhookSecret = cfg.SecretKey
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: webhookSecret,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// envelope is the common Paystack response shape
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	PaidAt          string `json:"paid_at"`
	GatewayResponse string `json:"gateway_response"`
}

// Initialize requests a hosted checkout for the payment
func (c *Client) Initialize(ctx context.Context, req domain.InitializeRequest) (*domain.InitializeResult, error) {
	body := map[string]interface{}{
		"email":        req.Email,
		"amount":       req.AmountMinor,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
	}
	if req.Currency != "" {
		body["currency"] = req.Currency
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	raw, env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, apperror.NewUpstream("payment gateway initialize failed", err)
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil || data.AuthorizationURL == "" {
		return nil, apperror.NewUpstream("payment gateway initialize failed", errors.New("malformed response"))
	}

	return &domain.InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
		Raw:              raw,
	}, nil
}

// Verify fetches the transaction status. The returned result carries the
// raw payload even when err is non-nil, whenever the gateway answered.
func (c *Client) Verify(ctx context.Context, reference string) (*domain.VerifyResult, error) {
	raw, env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		var res *domain.VerifyResult
		if raw != nil {
			res = &domain.VerifyResult{Reference: reference, Raw: raw}
		}
		return res, apperror.NewUpstream("payment gateway verify failed", err)
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return &domain.VerifyResult{Reference: reference, Raw: raw},
			apperror.NewUpstream("payment gateway verify failed", errors.New("malformed response"))
	}

	res := &domain.VerifyResult{
		GatewayStatus: data.Status,
		Reference:     data.Reference,
		AmountMinor:   data.Amount,
		PaidAt:        ParseTime(data.PaidAt),
		Raw:           raw,
	}
	if res.Reference == "" {
		res.Reference = reference
	}
	return res, nil
}

// VerifySignature checks the hex HMAC-SHA512 of body against signature in
// constant time
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return VerifySignature(c.webhookSecret, body, signature)
}

// VerifySignature checks a webhook signature with the given secret
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// Sign computes the webhook signature of body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseTime parses a gateway timestamp, returning nil when absent or invalid
func ParseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// do performs a request and decodes the envelope. raw is returned whenever
// a response body was read.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, *envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("path", path).Msg("Payment gateway request failed")
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read response: %w", err)
	}

	logger.Debug(ctx).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Payment gateway call")

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return raw, nil, fmt.Errorf("unexpected gateway response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode >= 400 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return raw, &env, errors.New(msg)
	}
	return raw, &env, nil
}
