package domain

import (
	"context"
	"fmt"
	"time"
)

// Enrollment grants a user access to one (subject, grade, term) bundle.
// The natural key is unique; rows are only written through Upsert.
type Enrollment struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_enrollment_key,priority:1"`
	Subject          string    `json:"subject" gorm:"not null;uniqueIndex:idx_enrollment_key,priority:2"`
	Grade            string    `json:"grade" gorm:"not null;uniqueIndex:idx_enrollment_key,priority:3"`
	Term             string    `json:"term" gorm:"not null;uniqueIndex:idx_enrollment_key,priority:4"`
	PaymentReference string    `json:"payment_reference" gorm:"index"`
	Price            int64     `json:"price"`
	PurchasedAt      time.Time `json:"purchased_at"`
	Active           bool      `json:"active" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (Enrollment) TableName() string {
	return "enrollments"
}

// CacheKey is the cache key of a user's enrollment listing
func CacheKey(userID uint) string {
	return fmt.Sprintf("enrollments:%d", userID)
}

// EnrollmentRepository defines the contract for enrollment data access
type EnrollmentRepository interface {
	Upsert(ctx context.Context, e *Enrollment) error
	ListActive(ctx context.Context, userID uint) ([]Enrollment, error)
}
