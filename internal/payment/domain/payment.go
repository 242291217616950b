package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// Payment statuses. initialized and pending are open; the rest are terminal.
const (
	StatusInitialized = "initialized"
	StatusPending     = "pending"
	StatusSuccess     = "success"
	StatusFailed      = "failed"
	StatusAbandoned   = "abandoned"
)

// OpenStatuses are the statuses a gateway report may still move away from
var OpenStatuses = []string{StatusInitialized, StatusPending}

// IsTerminal reports whether status ends the payment lifecycle
func IsTerminal(status string) bool {
	switch status {
	case StatusSuccess, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// LineItem is one purchased (subject, grade, term) bundle
type LineItem struct {
	Subject string `json:"subject" validate:"required"`
	Grade   string `json:"grade" validate:"required"`
	Term    string `json:"term" validate:"required"`
	Price   int64  `json:"price" validate:"gte=0"`
}

// Payment represents one gateway transaction
type Payment struct {
	ID                uint                          `json:"id" gorm:"primaryKey"`
	UserID            uint                          `json:"user_id" gorm:"not null;index"`
	StudentID         *uint                         `json:"student_id,omitempty"`
	Amount            int64                         `json:"amount" gorm:"not null"`
	Currency          string                        `json:"currency" gorm:"not null;default:'NGN'"`
	Reference         string                        `json:"reference" gorm:"not null;uniqueIndex"`
	Status            string                        `json:"status" gorm:"not null;default:'initialized';index"`
	AccessCode        string                        `json:"access_code,omitempty"`
	AuthorizationURL  string                        `json:"authorization_url,omitempty"`
	CallbackURL       string                        `json:"callback_url,omitempty"`
	PaidAt            *time.Time                    `json:"paid_at,omitempty"`
	Items             datatypes.JSONSlice[LineItem] `json:"items"`
	InitializePayload datatypes.JSON                `json:"-"`
	VerifyPayload     datatypes.JSON                `json:"-"`
	WebhookPayload    datatypes.JSON                `json:"-"`
	CreatedAt         time.Time                     `json:"created_at"`
	UpdatedAt         time.Time                     `json:"updated_at"`
}

// TableName specifies the table name
func (Payment) TableName() string {
	return "payments"
}

// PaymentFilter narrows admin listings
type PaymentFilter struct {
	Status string
	UserID uint
}

// PaymentRepository defines the contract for payment data access
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	FindByReference(ctx context.Context, reference string) (*Payment, error)
	FindByUserID(ctx context.Context, userID uint, limit, offset int) ([]Payment, error)
	FindAll(ctx context.Context, filter PaymentFilter, limit, offset int) ([]Payment, error)
	SaveVerifyPayload(ctx context.Context, id uint, payload []byte) error
	SaveWebhookPayload(ctx context.Context, id uint, payload []byte) error
	// MarkSucceeded atomically moves a payment to success. It reports true
	// only for the single call that performed the transition.
	MarkSucceeded(ctx context.Context, id uint, paidAt time.Time) (bool, error)
	// UpdateStatus applies a non-success status while the payment is open
	UpdateStatus(ctx context.Context, id uint, status string) (bool, error)
	AbandonStale(ctx context.Context, createdBefore time.Time) (int64, error)
}
