package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/lesson-payments/internal/cart/domain"
	"github.com/tair/lesson-payments/pkg/database"
)

func TestGormCartRepository(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Cart{}))

	repo := NewGormCartRepository(db)
	ctx := context.Background()

	items, err := repo.GetItems(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items, "missing cart reads as empty")

	want := []domain.Item{
		{Subject: "Mathematics", Grade: "3", Term: "First Term", Price: 5000},
		{Subject: "English", Grade: "3", Term: "First Term", Price: 4000},
	}
	require.NoError(t, repo.SetItems(ctx, 1, want))
	require.NoError(t, repo.SetItems(ctx, 1, want[:1]), "second save overwrites")

	items, err = repo.GetItems(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, want[:1], items)

	require.NoError(t, repo.Clear(ctx, 1))
	items, err = repo.GetItems(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, items)

	var count int64
	require.NoError(t, db.Model(&domain.Cart{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	assert.NoError(t, repo.Clear(ctx, 42), "clearing a missing cart is a no-op")
}
