package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/lesson-payments/internal/cart/domain"
)

// GormCartRepository implements CartRepository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GORM cart repository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// GetItems returns the user's cart items; a missing cart is an empty cart
func (r *GormCartRepository) GetItems(ctx context.Context, userID uint) ([]domain.Item, error) {
	var cart domain.Cart
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return []domain.Item(cart.Items), nil
}

// SetItems replaces the user's cart contents
func (r *GormCartRepository) SetItems(ctx context.Context, userID uint, items []domain.Item) error {
	if items == nil {
		items = []domain.Item{}
	}
	cart := domain.Cart{UserID: userID, Items: datatypes.NewJSONSlice(items)}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at"}),
	}).Create(&cart).Error
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// Clear empties the user's cart
func (r *GormCartRepository) Clear(ctx context.Context, userID uint) error {
	err := r.db.WithContext(ctx).Model(&domain.Cart{}).
		Where("user_id = ?", userID).
		Update("items", datatypes.NewJSONSlice([]domain.Item{})).Error
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
