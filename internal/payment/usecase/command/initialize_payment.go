package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	cartdomain "github.com/tair/lesson-payments/internal/cart/domain"
	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

// InitializePaymentCommand represents the command to start a checkout
type InitializePaymentCommand struct {
	UserID      uint              `json:"-"`
	Email       string            `json:"-"`
	StudentID   *uint             `json:"student_id,omitempty"`
	Amount      int64             `json:"amount" validate:"gt=0"`
	Items       []domain.LineItem `json:"items" validate:"omitempty,dive"`
	CallbackURL string            `json:"callback_url,omitempty" validate:"omitempty,url"`
}

// InitializePaymentResult is returned to the client to open the checkout
type InitializePaymentResult struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// InitializeSettings carries the configured defaults for new payments
type InitializeSettings struct {
	CallbackURL         string
	Currency            string
	MinorUnitMultiplier int64
}

// InitializePaymentHandler handles initialize payment command
type InitializePaymentHandler struct {
	repo     domain.PaymentRepository
	gateway  domain.Gateway
	carts    cartdomain.CartRepository
	settings InitializeSettings
	nowFn    func() time.Time
}

// NewInitializePaymentHandler creates a new initialize payment handler
func NewInitializePaymentHandler(
	repo domain.PaymentRepository,
	gateway domain.Gateway,
	carts cartdomain.CartRepository,
	settings InitializeSettings,
) *InitializePaymentHandler {
	if settings.MinorUnitMultiplier <= 0 {
		settings.MinorUnitMultiplier = 100
	}
	if settings.Currency == "" {
		settings.Currency = "NGN"
	}
	return &InitializePaymentHandler{
		repo:     repo,
		gateway:  gateway,
		carts:    carts,
		settings: settings,
		nowFn:    time.Now,
	}
}

// NewReference builds a payment reference PAY-<unix-ms>-<userID>-<random>
func NewReference(now time.Time, userID uint) string {
	return fmt.Sprintf("PAY-%d-%d-%s", now.UnixMilli(), userID, uuid.NewString()[:8])
}

// Handle executes the initialize payment command. Nothing is stored when
// the gateway refuses the checkout.
func (h *InitializePaymentHandler) Handle(ctx context.Context, cmd InitializePaymentCommand) (*InitializePaymentResult, error) {
	if cmd.UserID == 0 {
		return nil, apperror.NewAuthentication("user is required")
	}
	if cmd.Amount <= 0 {
		return nil, apperror.NewValidation("amount must be greater than 0")
	}
	if strings.TrimSpace(cmd.Email) == "" {
		return nil, apperror.NewValidation("email is required to start a payment")
	}

	items := cmd.Items
	if len(items) == 0 {
		cartItems, err := h.carts.GetItems(ctx, cmd.UserID)
		if err != nil {
			return nil, fmt.Errorf("load cart: %w", err)
		}
		for _, it := range cartItems {
			items = append(items, domain.LineItem{Subject: it.Subject, Grade: it.Grade, Term: it.Term, Price: it.Price})
		}
	}
	if len(items) == 0 {
		return nil, apperror.NewValidation("at least one item is required")
	}

	callback := cmd.CallbackURL
	if callback == "" {
		callback = h.settings.CallbackURL
	}

	reference := NewReference(h.nowFn(), cmd.UserID)

	metadata := map[string]interface{}{
		"user_id": cmd.UserID,
		"items":   len(items),
	}
	if cmd.StudentID != nil {
		metadata["student_id"] = *cmd.StudentID
	}

	checkout, err := h.gateway.Initialize(ctx, domain.InitializeRequest{
		Email:       cmd.Email,
		AmountMinor: cmd.Amount * h.settings.MinorUnitMultiplier,
		Currency:    h.settings.Currency,
		Reference:   reference,
		CallbackURL: callback,
		Metadata:    metadata,
	})
	if err != nil {
		logger.Warn(ctx).Err(err).Str("reference", reference).Msg("Gateway refused payment initialization")
		return nil, asUpstream("payment gateway initialize failed", err)
	}

	payment := &domain.Payment{
		UserID:            cmd.UserID,
		StudentID:         cmd.StudentID,
		Amount:            cmd.Amount,
		Currency:          h.settings.Currency,
		Reference:         reference,
		Status:            domain.StatusInitialized,
		AccessCode:        checkout.AccessCode,
		AuthorizationURL:  checkout.AuthorizationURL,
		CallbackURL:       callback,
		Items:             datatypes.NewJSONSlice(items),
		InitializePayload: datatypes.JSON(checkout.Raw),
	}
	if err := h.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	metrics.PaymentsInitialized.Inc()
	logger.Info(ctx).
		Str("reference", reference).
		Uint("user_id", cmd.UserID).
		Int64("amount", cmd.Amount).
		Int("items", len(items)).
		Msg("Payment initialized")

	return &InitializePaymentResult{
		Reference:        reference,
		AuthorizationURL: checkout.AuthorizationURL,
		AccessCode:       checkout.AccessCode,
	}, nil
}
