package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/lesson-payments/internal/enrollment/domain"
	"github.com/tair/lesson-payments/pkg/database"
)

func TestUpsert_SameKeyRefreshes(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Enrollment{}))

	repo := NewGormEnrollmentRepository(db)
	ctx := context.Background()

	first := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	require.NoError(t, repo.Upsert(ctx, &domain.Enrollment{
		UserID: 1, Subject: "Mathematics", Grade: "3", Term: "First Term",
		PaymentReference: "PAY-1", Price: 5000, PurchasedAt: first, Active: true,
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.Enrollment{
		UserID: 1, Subject: "Mathematics", Grade: "3", Term: "First Term",
		PaymentReference: "PAY-2", Price: 4500, PurchasedAt: second, Active: true,
	}))
	require.NoError(t, repo.Upsert(ctx, &domain.Enrollment{
		UserID: 1, Subject: "Mathematics", Grade: "3", Term: "Second Term",
		PaymentReference: "PAY-2", Price: 4500, PurchasedAt: second, Active: true,
	}))

	var count int64
	require.NoError(t, db.Model(&domain.Enrollment{}).
		Where("user_id = ? AND subject = ? AND grade = ? AND term = ?", 1, "Mathematics", "3", "First Term").
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	list, err := repo.ListActive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "First Term", list[0].Term)
	assert.Equal(t, "PAY-2", list[0].PaymentReference)
	assert.Equal(t, int64(4500), list[0].Price)
	assert.True(t, list[0].PurchasedAt.Equal(second))
	assert.True(t, list[0].Active)
}

func TestListActive_SkipsInactiveAndOtherUsers(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Enrollment{}))

	repo := NewGormEnrollmentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Enrollment{UserID: 1, Subject: "English", Grade: "1", Term: "First Term", Active: true}))
	require.NoError(t, repo.Upsert(ctx, &domain.Enrollment{UserID: 2, Subject: "English", Grade: "1", Term: "First Term", Active: true}))
	require.NoError(t, db.Model(&domain.Enrollment{}).Where("user_id = ?", 2).Update("active", false).Error)

	list, err := repo.ListActive(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = repo.ListActive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
