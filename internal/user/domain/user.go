package domain

import (
	"context"
	"time"
)

// User types issued by the user service
const (
	UserTypeStudent  = "student"
	UserTypeParent   = "parent"
	UserTypeReferrer = "referrer"
	UserTypeAdmin    = "admin"
)

// User is the read-only view of an account owned by the user service
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null"`
	FullName  string    `json:"full_name"`
	UserType  string    `json:"user_type" gorm:"not null;default:'student'"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// IsAdmin checks if user has the admin type
func (u *User) IsAdmin() bool {
	return u.UserType == UserTypeAdmin
}

// UserDirectory resolves users for notification and referral matching
type UserDirectory interface {
	FindByID(ctx context.Context, id uint) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}
