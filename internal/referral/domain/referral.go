package domain

import (
	"context"
	"time"
)

// Referral statuses
const (
	ReferralPending   = "pending"
	ReferralCompleted = "completed"
	ReferralExpired   = "expired"
)

// Commission transaction statuses
const (
	TransactionPending = "pending"
	TransactionPaid    = "paid"
)

// Referral links a referrer to an invited e-mail address and, once the
// invitee signs up, to their user id
type Referral struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ReferrerID     uint       `gorm:"not null;index" json:"referrer_id"`
	ReferredEmail  string     `gorm:"size:255;not null;index" json:"referred_email"`
	ReferredUserID *uint      `gorm:"index" json:"referred_user_id,omitempty"`
	Status         string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	RewardAmount   int64      `gorm:"not null;default:0" json:"reward_amount"`
	RewardClaimed  bool       `gorm:"not null;default:false" json:"reward_claimed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ReferralProfile holds a referrer's payout details and earnings ledger.
// TotalEarnings equals PendingEarnings plus PaidOutEarnings.
type ReferralProfile struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	UserID              uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	BankName            string    `gorm:"size:100" json:"bank_name"`
	AccountName         string    `gorm:"size:255" json:"account_name"`
	AccountNumberSealed string    `gorm:"type:text" json:"-"`
	AccountLast4        string    `gorm:"size:4" json:"-"`
	CommissionRate      float64   `gorm:"not null;default:0.1" json:"commission_rate"`
	TotalEarnings       int64     `gorm:"not null;default:0" json:"total_earnings"`
	PendingEarnings     int64     `gorm:"not null;default:0" json:"pending_earnings"`
	PaidOutEarnings     int64     `gorm:"not null;default:0" json:"paid_out_earnings"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasBankDetails reports whether the profile can receive a payout
func (p *ReferralProfile) HasBankDetails() bool {
	return p.BankName != "" && p.AccountNumberSealed != ""
}

// ReferralTransaction is one commission earned on one payment
type ReferralTransaction struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ReferrerID       uint       `gorm:"not null;index" json:"referrer_id"`
	ReferralID       uint       `gorm:"not null;index" json:"referral_id"`
	UserID           uint       `gorm:"not null;index" json:"user_id"`
	StudentID        *uint      `json:"student_id,omitempty"`
	PaymentID        *uint      `gorm:"uniqueIndex" json:"payment_id,omitempty"`
	AmountPaid       int64      `gorm:"not null" json:"amount_paid"`
	CommissionAmount int64      `gorm:"not null" json:"commission_amount"`
	Status           string     `gorm:"size:20;not null;default:pending;index" json:"status"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
	PayoutBatchID    string     `gorm:"size:64;index" json:"payout_batch_id,omitempty"`
	Notes            string     `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// PayoutSummary is the outcome of one payout run
type PayoutSummary struct {
	BatchID string `json:"batch_id"`
	Count   int64  `json:"count"`
	Total   int64  `json:"total"`
}

// ReferralRepository persists referrals
type ReferralRepository interface {
	Create(ctx context.Context, r *Referral) error
	FindByReferredUser(ctx context.Context, userID uint) (*Referral, error)
	FindPendingByEmail(ctx context.Context, email string) (*Referral, error)
	ListByReferrer(ctx context.Context, referrerID uint, limit, offset int) ([]Referral, error)
	AttachUser(ctx context.Context, id, userID uint) error
	ExpirePending(ctx context.Context, before time.Time) (int64, error)
}

// ProfileRepository persists referral profiles and their ledger
type ProfileRepository interface {
	GetOrCreate(ctx context.Context, userID uint, defaultRate float64) (*ReferralProfile, error)
	UpdateBankDetails(ctx context.Context, userID uint, bankName, accountName, sealed, last4 string) error
}

// TransactionRepository persists commission transactions
type TransactionRepository interface {
	ListByReferrer(ctx context.Context, referrerID uint, status string, limit, offset int) ([]ReferralTransaction, error)
	PendingSummary(ctx context.Context, referrerID uint) (count int64, total int64, err error)
}

// LedgerStore applies the multi-row ledger operations, each as one unit
// of work. Accrue reports whether the referral moved to completed.
type LedgerStore interface {
	Accrue(ctx context.Context, t *ReferralTransaction, defaultRate float64, at time.Time) (bool, error)
	SettlePending(ctx context.Context, referrerID uint, batchID, notes string, at time.Time) (*PayoutResult, error)
}

// PayoutResult carries the settled batch together with any ledger drift
// found while applying it
type PayoutResult struct {
	PayoutSummary
	Drift int64
}
