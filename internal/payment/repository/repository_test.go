package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Payment{}))
	return db
}

func newPayment(ref string, userID uint) *domain.Payment {
	return &domain.Payment{
		UserID:    userID,
		Amount:    5000,
		Currency:  "NGN",
		Reference: ref,
		Status:    domain.StatusInitialized,
		Items: datatypes.NewJSONSlice([]domain.LineItem{
			{Subject: "Mathematics", Grade: "3", Term: "First Term", Price: 5000},
		}),
	}
}

func TestCreateAndFind(t *testing.T) {
	repo := NewGormPaymentRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newPayment("PAY-1", 1)))

	got, err := repo.FindByReference(ctx, "PAY-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitialized, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Mathematics", got.Items[0].Subject)

	_, err = repo.FindByReference(ctx, "PAY-missing")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	err = repo.Create(ctx, newPayment("PAY-1", 2))
	assert.True(t, apperror.Is(err, apperror.KindConflict), "reference is unique")
}

func TestMarkSucceeded_ClaimsOnce(t *testing.T) {
	repo := NewGormPaymentRepository(setupDB(t))
	ctx := context.Background()

	p := newPayment("PAY-2", 1)
	require.NoError(t, repo.Create(ctx, p))

	paidAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkSucceeded(ctx, p.ID, paidAt)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)

	got, err := repo.FindByReference(ctx, "PAY-2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.True(t, got.PaidAt.Equal(paidAt))
}

func TestUpdateStatus_OnlyWhileOpen(t *testing.T) {
	repo := NewGormPaymentRepository(setupDB(t))
	ctx := context.Background()

	p := newPayment("PAY-3", 1)
	require.NoError(t, repo.Create(ctx, p))

	changed, err := repo.UpdateStatus(ctx, p.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateStatus(ctx, p.ID, domain.StatusFailed)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.UpdateStatus(ctx, p.ID, domain.StatusPending)
	require.NoError(t, err)
	assert.False(t, changed, "terminal payments do not reopen")

	ok, err := repo.MarkSucceeded(ctx, p.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok, "a late success report still wins over failed")

	_, err = repo.UpdateStatus(ctx, p.ID, domain.StatusSuccess)
	assert.Error(t, err)
}

func TestSavePayloads(t *testing.T) {
	db := setupDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()

	p := newPayment("PAY-4", 1)
	require.NoError(t, repo.Create(ctx, p))

	require.NoError(t, repo.SaveVerifyPayload(ctx, p.ID, []byte(`{"status":true}`)))
	require.NoError(t, repo.SaveWebhookPayload(ctx, p.ID, []byte(`{"event":"charge.success"}`)))

	got, err := repo.FindByReference(ctx, "PAY-4")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":true}`, string(got.VerifyPayload))
	assert.JSONEq(t, `{"event":"charge.success"}`, string(got.WebhookPayload))
}

func TestListingAndAbandon(t *testing.T) {
	db := setupDB(t)
	repo := NewGormPaymentRepository(db)
	ctx := context.Background()

	for i, ref := range []string{"PAY-a", "PAY-b", "PAY-c"} {
		require.NoError(t, repo.Create(ctx, newPayment(ref, uint(1+i%2))))
	}
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, db.Model(&domain.Payment{}).Where("reference IN ?", []string{"PAY-a", "PAY-b"}).
		Update("created_at", old).Error)

	paid, err := repo.FindByReference(ctx, "PAY-b")
	require.NoError(t, err)
	_, err = repo.MarkSucceeded(ctx, paid.ID, time.Now())
	require.NoError(t, err)

	n, err := repo.AbandonStale(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the stale open payment is abandoned")

	mine, err := repo.FindByUserID(ctx, 1, 10, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	abandoned, err := repo.FindAll(ctx, domain.PaymentFilter{Status: domain.StatusAbandoned}, 10, 0)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, "PAY-a", abandoned[0].Reference)
}
