package query

import (
	"context"
	"strings"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
)

// GetPaymentQuery represents the query to get a payment
type GetPaymentQuery struct {
	Reference string
}

// GetPaymentHandler handles get payment query
type GetPaymentHandler struct {
	repo domain.PaymentRepository
}

// NewGetPaymentHandler creates a new get payment handler
func NewGetPaymentHandler(repo domain.PaymentRepository) *GetPaymentHandler {
	return &GetPaymentHandler{repo: repo}
}

// Handle executes the get payment query
func (h *GetPaymentHandler) Handle(ctx context.Context, query GetPaymentQuery) (*domain.Payment, error) {
	reference := strings.TrimSpace(query.Reference)
	if reference == "" {
		return nil, apperror.NewValidation("reference is required")
	}

	return h.repo.FindByReference(ctx, reference)
}
