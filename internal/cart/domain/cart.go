package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// Item is one lesson bundle waiting in a cart
type Item struct {
	Subject string `json:"subject"`
	Grade   string `json:"grade"`
	Term    string `json:"term"`
	Price   int64  `json:"price"`
}

// Cart holds a user's pending selections
type Cart struct {
	ID        uint                      `json:"id" gorm:"primaryKey"`
	UserID    uint                      `json:"user_id" gorm:"uniqueIndex;not null"`
	Items     datatypes.JSONSlice[Item] `json:"items"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// TableName specifies the table name
func (Cart) TableName() string {
	return "carts"
}

// CartRepository is the cart collaborator used by payment initiation and
// settlement
type CartRepository interface {
	GetItems(ctx context.Context, userID uint) ([]Item, error)
	SetItems(ctx context.Context, userID uint, items []Item) error
	Clear(ctx context.Context, userID uint) error
}
