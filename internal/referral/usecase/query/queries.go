package query

import (
	"context"
	"time"

	"github.com/tair/lesson-payments/internal/referral/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/secure"
)

// ProfileView is a referral profile as shown to its owner
type ProfileView struct {
	UserID          uint      `json:"user_id"`
	BankName        string    `json:"bank_name,omitempty"`
	AccountName     string    `json:"account_name,omitempty"`
	AccountNumber   string    `json:"account_number,omitempty"`
	CommissionRate  float64   `json:"commission_rate"`
	TotalEarnings   int64     `json:"total_earnings"`
	PendingEarnings int64     `json:"pending_earnings"`
	PaidOutEarnings int64     `json:"paid_out_earnings"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewProfileView masks the account number of p
func NewProfileView(p *domain.ReferralProfile) *ProfileView {
	v := &ProfileView{
		UserID:          p.UserID,
		BankName:        p.BankName,
		AccountName:     p.AccountName,
		CommissionRate:  p.CommissionRate,
		TotalEarnings:   p.TotalEarnings,
		PendingEarnings: p.PendingEarnings,
		PaidOutEarnings: p.PaidOutEarnings,
		CreatedAt:       p.CreatedAt,
	}
	if p.AccountLast4 != "" {
		v.AccountNumber = secure.Mask(p.AccountLast4)
	}
	return v
}

// GetProfileHandler returns the caller's profile, creating it on first use
type GetProfileHandler struct {
	profiles    domain.ProfileRepository
	defaultRate float64
}

// NewGetProfileHandler creates a new profile query handler
func NewGetProfileHandler(profiles domain.ProfileRepository, defaultRate float64) *GetProfileHandler {
	return &GetProfileHandler{profiles: profiles, defaultRate: defaultRate}
}

func (h *GetProfileHandler) Handle(ctx context.Context, userID uint) (*ProfileView, error) {
	p, err := h.profiles.GetOrCreate(ctx, userID, h.defaultRate)
	if err != nil {
		return nil, err
	}
	return NewProfileView(p), nil
}

// ListTransactionsQuery represents the query for commission history
type ListTransactionsQuery struct {
	ReferrerID uint
	Status     string
	Limit      int
	Offset     int
}

// ListTransactionsHandler lists a referrer's commissions
type ListTransactionsHandler struct {
	txs domain.TransactionRepository
}

// NewListTransactionsHandler creates a new transactions query handler
func NewListTransactionsHandler(txs domain.TransactionRepository) *ListTransactionsHandler {
	return &ListTransactionsHandler{txs: txs}
}

func (h *ListTransactionsHandler) Handle(ctx context.Context, q ListTransactionsQuery) ([]domain.ReferralTransaction, error) {
	switch q.Status {
	case "", domain.TransactionPending, domain.TransactionPaid:
	default:
		return nil, apperror.NewValidation("status must be pending or paid")
	}
	out, err := h.txs.ListByReferrer(ctx, q.ReferrerID, q.Status, q.Limit, q.Offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.ReferralTransaction{}
	}
	return out, nil
}

// ListReferralsHandler lists the invites a referrer has sent
type ListReferralsHandler struct {
	referrals domain.ReferralRepository
}

// NewListReferralsHandler creates a new referrals query handler
func NewListReferralsHandler(referrals domain.ReferralRepository) *ListReferralsHandler {
	return &ListReferralsHandler{referrals: referrals}
}

func (h *ListReferralsHandler) Handle(ctx context.Context, referrerID uint, limit, offset int) ([]domain.Referral, error) {
	out, err := h.referrals.ListByReferrer(ctx, referrerID, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Referral{}
	}
	return out, nil
}
