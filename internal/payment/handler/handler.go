package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/tair/lesson-payments/internal/payment/usecase/command"
	"github.com/tair/lesson-payments/internal/payment/usecase/query"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/httpx"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/middleware"
)

const maxWebhookBytes = 1 << 20

// SignatureHeader carries the gateway's HMAC of the webhook body
const SignatureHeader = "X-Paystack-Signature"

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PaymentHandler handles HTTP requests for payments using CQRS pattern
type PaymentHandler struct {
	// Command handlers
	initializeHandler *command.InitializePaymentHandler
	verifyHandler     *command.VerifyPaymentHandler
	webhookHandler    *command.HandleWebhookHandler

	// Query handlers
	getHandler   *query.GetPaymentHandler
	listHandler  *query.ListPaymentsHandler
	getMyHandler *query.GetMyPaymentsHandler

	auth *middleware.Authenticator
}

// NewPaymentHandlerWithDI creates a new payment handler using dependency injection
func NewPaymentHandlerWithDI(
	initializeHandler *command.InitializePaymentHandler,
	verifyHandler *command.VerifyPaymentHandler,
	webhookHandler *command.HandleWebhookHandler,
	getHandler *query.GetPaymentHandler,
	listHandler *query.ListPaymentsHandler,
	getMyHandler *query.GetMyPaymentsHandler,
	auth *middleware.Authenticator,
) *PaymentHandler {
	return &PaymentHandler{
		initializeHandler: initializeHandler,
		verifyHandler:     verifyHandler,
		webhookHandler:    webhookHandler,
		getHandler:        getHandler,
		listHandler:       listHandler,
		getMyHandler:      getMyHandler,
		auth:              auth,
	}
}

// InitializePayment handles POST /payments/initialize
func (h *PaymentHandler) InitializePayment(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	var cmd command.InitializePaymentCommand
	if err := httpx.DecodeAndValidate(r, &cmd); err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}
	cmd.UserID = p.ID
	cmd.Email = p.Email

	res, err := h.initializeHandler.Handle(r.Context(), cmd)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}

	httpx.RespondOK(w, http.StatusCreated, "Payment initialized", res)
}

// VerifyPayment handles GET /payments/verify/{reference}
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())

	res, err := h.verifyHandler.Handle(r.Context(), command.VerifyPaymentCommand{
		Reference: mux.Vars(r)["reference"],
		UserID:    p.ID,
		Email:     p.Email,
	})
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}

	httpx.RespondOK(w, http.StatusOK, "Payment verified", res)
}

// Webhook handles POST /payments/webhook. Everything except a bad signature
// or an unreadable body is acknowledged with 200 so the gateway stops
// retrying.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		httpx.RespondError(ctx, w, apperror.NewValidation("webhook body too large or unreadable"))
		return
	}

	res, err := h.webhookHandler.Handle(ctx, command.HandleWebhookCommand{
		Body:      body,
		Signature: r.Header.Get(SignatureHeader),
	})
	if err != nil {
		httpx.RespondError(ctx, w, err)
		return
	}

	logger.Info(ctx).
		Str("event", res.Event).
		Str("reference", res.Reference).
		Bool("handled", res.Handled).
		Bool("settled", res.Settled).
		Msg("Webhook processed")

	httpx.RespondOK(w, http.StatusOK, "ok", res)
}

// GetMyPayments handles GET /payments/my (authenticated user)
func (h *PaymentHandler) GetMyPayments(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.PrincipalFrom(r.Context())
	limit, offset := httpx.Pagination(r)

	payments, err := h.getMyHandler.Handle(r.Context(), query.GetMyPaymentsQuery{
		UserID: p.ID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}

	httpx.RespondOK(w, http.StatusOK, "", map[string]interface{}{
		"payments": payments,
		"total":    len(payments),
	})
}

// ListPayments handles GET /payments (admin)
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpx.Pagination(r)

	q := query.ListPaymentsQuery{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	}
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httpx.RespondError(r.Context(), w, apperror.NewValidation("invalid user_id"))
			return
		}
		q.UserID = uint(id)
	}

	payments, err := h.listHandler.Handle(r.Context(), q)
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}

	httpx.RespondOK(w, http.StatusOK, "", map[string]interface{}{
		"payments": payments,
		"total":    len(payments),
	})
}

// GetPayment handles GET /payments/{reference} (admin)
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.getHandler.Handle(r.Context(), query.GetPaymentQuery{Reference: mux.Vars(r)["reference"]})
	if err != nil {
		httpx.RespondError(r.Context(), w, err)
		return
	}

	httpx.RespondOK(w, http.StatusOK, "", payment)
}

// RegisterRoutes registers all payment routes
func (h *PaymentHandler) RegisterRoutes(router *mux.Router) {
	// Gateway callback, authenticated by signature
	router.HandleFunc("/payments/webhook", h.Webhook).Methods("POST")

	// Authenticated user routes
	router.HandleFunc("/payments/initialize", h.auth.RequireAuth(h.InitializePayment)).Methods("POST")
	router.HandleFunc("/payments/verify/{reference}", h.auth.RequireAuth(h.VerifyPayment)).Methods("GET")
	router.HandleFunc("/payments/my", h.auth.RequireAuth(h.GetMyPayments)).Methods("GET")

	// Admin routes
	router.HandleFunc("/payments", h.auth.RequireAdmin(h.ListPayments)).Methods("GET")
	router.HandleFunc("/payments/{reference}", h.auth.RequireAdmin(h.GetPayment)).Methods("GET")
}

// RegisterHealthCheck registers health check endpoint
func (h *PaymentHandler) RegisterHealthCheck(router *mux.Router, db Pinger) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			logger.Error(ctx).Err(err).Msg("Health check failed")
			httpx.RespondJSON(w, http.StatusServiceUnavailable, httpx.Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		httpx.RespondOK(w, http.StatusOK, "Payment service is healthy", nil)
	}).Methods("GET")
}
