package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/tair/lesson-payments/internal/referral/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/secure"
)

// UpdateBankDetailsCommand represents the command to set payout details
type UpdateBankDetailsCommand struct {
	UserID        uint
	BankName      string `json:"bank_name" validate:"required,max=100"`
	AccountName   string `json:"account_name" validate:"required,max=255"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
}

// UpdateBankDetailsHandler stores bank details with the account number sealed
type UpdateBankDetailsHandler struct {
	profiles    domain.ProfileRepository
	sealer      *secure.Sealer
	defaultRate float64
}

// NewUpdateBankDetailsHandler creates a new bank details handler
func NewUpdateBankDetailsHandler(profiles domain.ProfileRepository, sealer *secure.Sealer, defaultRate float64) *UpdateBankDetailsHandler {
	return &UpdateBankDetailsHandler{profiles: profiles, sealer: sealer, defaultRate: defaultRate}
}

// Handle seals the account number and saves the details, creating the
// profile first when needed
func (h *UpdateBankDetailsHandler) Handle(ctx context.Context, cmd UpdateBankDetailsCommand) (*domain.ReferralProfile, error) {
	number := strings.TrimSpace(cmd.AccountNumber)
	if number == "" || strings.TrimSpace(cmd.BankName) == "" {
		return nil, apperror.NewValidation("bank name and account number are required")
	}

	if _, err := h.profiles.GetOrCreate(ctx, cmd.UserID, h.defaultRate); err != nil {
		return nil, err
	}

	sealed, err := h.sealer.Seal(number)
	if err != nil {
		return nil, apperror.NewInternal("failed to seal account number", err)
	}

	last4 := secure.Last4(number)
	if err := h.profiles.UpdateBankDetails(ctx, cmd.UserID,
		strings.TrimSpace(cmd.BankName), strings.TrimSpace(cmd.AccountName), sealed, last4); err != nil {
		return nil, fmt.Errorf("save bank details: %w", err)
	}

	logger.Info(ctx).Uint("user_id", cmd.UserID).Str("bank", cmd.BankName).Msg("Bank details updated")

	return h.profiles.GetOrCreate(ctx, cmd.UserID, h.defaultRate)
}
