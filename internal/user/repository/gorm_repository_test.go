package repository

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/database"
)

func TestGormUserRepository(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}))

	u := &domain.User{Email: "Ada.Lovelace@Example.com", FullName: gofakeit.Name(), UserType: domain.UserTypeStudent}
	require.NoError(t, db.Create(u).Error)

	repo := NewGormUserRepository(db)
	ctx := context.Background()

	got, err := repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.False(t, got.IsAdmin())

	got, err = repo.FindByEmail(ctx, "  ada.lovelace@example.com ")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = repo.FindByID(ctx, 999)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = repo.FindByEmail(ctx, "nobody@example.com")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}
