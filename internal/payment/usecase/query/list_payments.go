package query

import (
	"context"
	"fmt"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
)

// ListPaymentsQuery represents the query to list payments
type ListPaymentsQuery struct {
	Status string
	UserID uint
	Limit  int
	Offset int
}

// ListPaymentsHandler handles list payments query
type ListPaymentsHandler struct {
	repo domain.PaymentRepository
}

// NewListPaymentsHandler creates a new list payments handler
func NewListPaymentsHandler(repo domain.PaymentRepository) *ListPaymentsHandler {
	return &ListPaymentsHandler{repo: repo}
}

// Handle executes the list payments query
func (h *ListPaymentsHandler) Handle(ctx context.Context, query ListPaymentsQuery) ([]domain.Payment, error) {
	switch query.Status {
	case "", domain.StatusInitialized, domain.StatusPending, domain.StatusSuccess, domain.StatusFailed, domain.StatusAbandoned:
	default:
		return nil, apperror.NewValidation("unknown payment status")
	}

	query.Limit = clampLimit(query.Limit)

	payments, err := h.repo.FindAll(ctx, domain.PaymentFilter{Status: query.Status, UserID: query.UserID}, query.Limit, query.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	if payments == nil {
		payments = []domain.Payment{}
	}

	return payments, nil
}
