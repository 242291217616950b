package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/lesson-payments/internal/enrollment/domain"
	"github.com/tair/lesson-payments/pkg/cache"
)

type countingRepo struct {
	calls int
	rows  []domain.Enrollment
}

func (c *countingRepo) Upsert(context.Context, *domain.Enrollment) error { return nil }

func (c *countingRepo) ListActive(context.Context, uint) ([]domain.Enrollment, error) {
	c.calls++
	return c.rows, nil
}

func TestListMyEnrollments_UsesCache(t *testing.T) {
	repo := &countingRepo{rows: []domain.Enrollment{{ID: 1, UserID: 3, Subject: "Mathematics", Grade: "3", Term: "First Term", Active: true}}}
	c := cache.NewMemoryCache()
	h := NewListMyEnrollmentsHandler(repo, c, time.Minute)
	ctx := context.Background()

	first, err := h.Handle(ctx, 3)
	require.NoError(t, err)
	second, err := h.Handle(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.calls)
	assert.Equal(t, first[0].Subject, second[0].Subject)

	require.NoError(t, c.Delete(ctx, domain.CacheKey(3)))
	_, err = h.Handle(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.calls)
}

func TestListMyEnrollments_EmptyIsNotNil(t *testing.T) {
	h := NewListMyEnrollmentsHandler(&countingRepo{}, nil, time.Minute)
	out, err := h.Handle(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	_, err = h.Handle(context.Background(), 0)
	assert.Error(t, err)
}
