package command

import (
	"context"

	"github.com/tair/lesson-payments/internal/notification"
	"github.com/tair/lesson-payments/internal/referral/domain"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/secure"
)

// RequestPayoutResult is what the referrer sees after asking for a payout
type RequestPayoutResult struct {
	PendingCount  int64 `json:"pending_count"`
	PendingAmount int64 `json:"pending_amount"`
}

// RequestPayoutHandler checks payout preconditions and asks an admin to run
// the payout
type RequestPayoutHandler struct {
	profiles    domain.ProfileRepository
	txs         domain.TransactionRepository
	users       userdomain.UserDirectory
	notifier    notification.Notifier
	defaultRate float64
	adminEmail  string
}

// NewRequestPayoutHandler creates a new payout request handler
func NewRequestPayoutHandler(deps PayoutDeps) *RequestPayoutHandler {
	return &RequestPayoutHandler{
		profiles:    deps.Profiles,
		txs:         deps.Transactions,
		users:       deps.Users,
		notifier:    deps.Notifier,
		defaultRate: deps.DefaultRate,
		adminEmail:  deps.AdminEmail,
	}
}

// Handle validates the request and notifies the admin. Delivery failure
// does not fail the request.
func (h *RequestPayoutHandler) Handle(ctx context.Context, referrerID uint) (*RequestPayoutResult, error) {
	profile, err := h.profiles.GetOrCreate(ctx, referrerID, h.defaultRate)
	if err != nil {
		return nil, err
	}
	if !profile.HasBankDetails() {
		return nil, apperror.NewValidation("bank details are required before a payout")
	}

	count, total, err := h.txs.PendingSummary(ctx, referrerID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperror.NewValidation("nothing to pay out")
	}

	payload := notification.Payload{
		"referrer_id":    referrerID,
		"pending_count":  count,
		"pending_amount": total,
		"bank_name":      profile.BankName,
		"account_number": secure.Mask(profile.AccountLast4),
	}
	if u, err := h.users.FindByID(ctx, referrerID); err == nil {
		payload["referrer_email"] = u.Email
	}

	if h.adminEmail == "" {
		logger.Warn(ctx).Uint("referrer_id", referrerID).Msg("Payout requested but no admin address is configured")
	} else {
		apperror.Warn(ctx, "notification", string(notification.KindPayoutRequested),
			h.notifier.Send(ctx, notification.KindPayoutRequested,
				notification.Recipient{Email: h.adminEmail, Name: "Admin"}, payload))
	}

	logger.Info(ctx).
		Uint("referrer_id", referrerID).
		Int64("pending_count", count).
		Int64("pending_amount", total).
		Msg("Payout requested")

	return &RequestPayoutResult{PendingCount: count, PendingAmount: total}, nil
}
