package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/lesson-payments/internal/referral/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/database"
)

var tracer = otel.Tracer("referral-repository")

// GormReferralRepository implements ReferralRepository using GORM
type GormReferralRepository struct {
	db *gorm.DB
}

// NewGormReferralRepository creates a new GORM referral repository
func NewGormReferralRepository(db *gorm.DB) *GormReferralRepository {
	return &GormReferralRepository{db: db}
}

func (r *GormReferralRepository) Create(ctx context.Context, ref *domain.Referral) error {
	ref.ReferredEmail = normalizeEmail(ref.ReferredEmail)
	if ref.Status == "" {
		ref.Status = domain.ReferralPending
	}
	if err := r.db.WithContext(ctx).Create(ref).Error; err != nil {
		return fmt.Errorf("failed to create referral: %w", err)
	}
	return nil
}

func (r *GormReferralRepository) FindByReferredUser(ctx context.Context, userID uint) (*domain.Referral, error) {
	var ref domain.Referral
	err := r.db.WithContext(ctx).
		Where("referred_user_id = ?", userID).
		Order("created_at ASC, id ASC").
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewNotFound("referral")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find referral: %w", err)
	}
	return &ref, nil
}

func (r *GormReferralRepository) FindPendingByEmail(ctx context.Context, email string) (*domain.Referral, error) {
	var ref domain.Referral
	err := r.db.WithContext(ctx).
		Where("referred_email = ? AND status = ?", normalizeEmail(email), domain.ReferralPending).
		Order("created_at ASC, id ASC").
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewNotFound("referral")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find referral: %w", err)
	}
	return &ref, nil
}

func (r *GormReferralRepository) ListByReferrer(ctx context.Context, referrerID uint, limit, offset int) ([]domain.Referral, error) {
	var out []domain.Referral
	err := r.db.WithContext(ctx).
		Where("referrer_id = ?", referrerID).
		Order("created_at DESC, id DESC").
		Limit(limit).Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return out, nil
}

// AttachUser backfills the referred user id on an e-mail matched referral
func (r *GormReferralRepository) AttachUser(ctx context.Context, id, userID uint) error {
	err := r.db.WithContext(ctx).Model(&domain.Referral{}).
		Where("id = ? AND referred_user_id IS NULL", id).
		Update("referred_user_id", userID).Error
	if err != nil {
		return fmt.Errorf("failed to attach referred user: %w", err)
	}
	return nil
}

// ExpirePending expires pending referrals created before the cutoff
func (r *GormReferralRepository) ExpirePending(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Referral{}).
		Where("status = ? AND created_at < ?", domain.ReferralPending, before).
		Update("status", domain.ReferralExpired)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire referrals: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// completeReferral moves a pending referral to completed. It reports false
// when the referral was no longer pending.
func completeReferral(db *gorm.DB, id uint, reward int64, at time.Time) (bool, error) {
	res := db.Model(&domain.Referral{}).
		Where("id = ? AND status = ?", id, domain.ReferralPending).
		Updates(map[string]interface{}{
			"status":        domain.ReferralCompleted,
			"reward_amount": reward,
			"completed_at":  at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to complete referral: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// GormProfileRepository implements ProfileRepository using GORM
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GORM profile repository
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// GetOrCreate returns the user's profile, creating it with the default rate
func (r *GormProfileRepository) GetOrCreate(ctx context.Context, userID uint, defaultRate float64) (*domain.ReferralProfile, error) {
	ctx, span := tracer.Start(ctx, "repository.GetOrCreateProfile",
		trace.WithAttributes(attribute.Int("user.id", int(userID))),
	)
	defer span.End()

	p, err := getOrCreateProfile(r.db.WithContext(ctx), userID, defaultRate)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return p, nil
}

func (r *GormProfileRepository) UpdateBankDetails(ctx context.Context, userID uint, bankName, accountName, sealed, last4 string) error {
	res := r.db.WithContext(ctx).Model(&domain.ReferralProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"bank_name":             bankName,
			"account_name":          accountName,
			"account_number_sealed": sealed,
			"account_last4":         last4,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update bank details: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NewNotFound("referral profile")
	}
	return nil
}

func getOrCreateProfile(db *gorm.DB, userID uint, defaultRate float64) (*domain.ReferralProfile, error) {
	seed := &domain.ReferralProfile{UserID: userID, CommissionRate: defaultRate}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, fmt.Errorf("failed to create referral profile: %w", err)
	}

	var p domain.ReferralProfile
	if err := db.Where("user_id = ?", userID).First(&p).Error; err != nil {
		return nil, fmt.Errorf("failed to load referral profile: %w", err)
	}
	return &p, nil
}

func addEarnings(db *gorm.DB, userID uint, amount int64) error {
	res := db.Model(&domain.ReferralProfile{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"total_earnings":   gorm.Expr("total_earnings + ?", amount),
			"pending_earnings": gorm.Expr("pending_earnings + ?", amount),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to add earnings: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NewNotFound("referral profile")
	}
	return nil
}

// GormTransactionRepository implements TransactionRepository and the
// multi-statement ledger operations using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GORM transaction repository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

func (r *GormTransactionRepository) ListByReferrer(ctx context.Context, referrerID uint, status string, limit, offset int) ([]domain.ReferralTransaction, error) {
	query := r.db.WithContext(ctx).Where("referrer_id = ?", referrerID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var out []domain.ReferralTransaction
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list referral transactions: %w", err)
	}
	return out, nil
}

// PendingSummary counts and sums the referrer's unpaid commissions
func (r *GormTransactionRepository) PendingSummary(ctx context.Context, referrerID uint) (int64, int64, error) {
	var row struct {
		Count int64
		Total int64
	}
	err := r.db.WithContext(ctx).Model(&domain.ReferralTransaction{}).
		Select("COUNT(*) AS count, COALESCE(SUM(commission_amount), 0) AS total").
		Where("referrer_id = ? AND status = ?", referrerID, domain.TransactionPending).
		Scan(&row).Error
	if err != nil {
		return 0, 0, fmt.Errorf("failed to summarize pending commissions: %w", err)
	}
	return row.Count, row.Total, nil
}

// Accrue records a commission, completes the referral when still pending
// and credits the referrer's ledger, all in one database transaction.
// A second commission for the same payment is a conflict.
func (r *GormTransactionRepository) Accrue(ctx context.Context, t *domain.ReferralTransaction, defaultRate float64, at time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "repository.AccrueCommission",
		trace.WithAttributes(
			attribute.Int("referrer.id", int(t.ReferrerID)),
			attribute.Int64("commission.amount", t.CommissionAmount),
		),
	)
	defer span.End()

	var completed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getOrCreateProfile(tx, t.ReferrerID, defaultRate); err != nil {
			return err
		}
		if err := createTransaction(tx, t); err != nil {
			return err
		}
		var err error
		if completed, err = completeReferral(tx, t.ReferralID, t.CommissionAmount, at); err != nil {
			return err
		}
		return addEarnings(tx, t.ReferrerID, t.CommissionAmount)
	})
	if err != nil {
		recordError(span, err)
		return false, err
	}
	return completed, nil
}

// SettlePending marks every pending commission of the referrer as paid under
// batchID and moves the batch total from pending to paid-out earnings. The
// pending balance is floored at zero; any shortfall is returned as Drift.
func (r *GormTransactionRepository) SettlePending(ctx context.Context, referrerID uint, batchID, notes string, at time.Time) (*domain.PayoutResult, error) {
	ctx, span := tracer.Start(ctx, "repository.SettlePending",
		trace.WithAttributes(
			attribute.Int("referrer.id", int(referrerID)),
			attribute.String("payout.batch_id", batchID),
		),
	)
	defer span.End()

	out := &domain.PayoutResult{PayoutSummary: domain.PayoutSummary{BatchID: batchID}}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":          domain.TransactionPaid,
			"paid_at":         at,
			"payout_batch_id": batchID,
		}
		if notes != "" {
			updates["notes"] = notes
		}
		res := tx.Model(&domain.ReferralTransaction{}).
			Where("referrer_id = ? AND status = ?", referrerID, domain.TransactionPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to mark commissions paid: %w", res.Error)
		}
		out.Count = res.RowsAffected
		if out.Count == 0 {
			return nil
		}

		if err := tx.Model(&domain.ReferralTransaction{}).
			Select("COALESCE(SUM(commission_amount), 0)").
			Where("payout_batch_id = ?", batchID).
			Scan(&out.Total).Error; err != nil {
			return fmt.Errorf("failed to sum payout batch: %w", err)
		}

		var pending int64
		if err := tx.Model(&domain.ReferralProfile{}).
			Select("pending_earnings").
			Where("user_id = ?", referrerID).
			Scan(&pending).Error; err != nil {
			return fmt.Errorf("failed to read pending earnings: %w", err)
		}
		if pending < out.Total {
			out.Drift = out.Total - pending
		}

		res = tx.Model(&domain.ReferralProfile{}).
			Where("user_id = ?", referrerID).
			Updates(map[string]interface{}{
				"pending_earnings":  gorm.Expr("CASE WHEN pending_earnings >= ? THEN pending_earnings - ? ELSE 0 END", out.Total, out.Total),
				"paid_out_earnings": gorm.Expr("paid_out_earnings + ?", out.Total),
			})
		if res.Error != nil {
			return fmt.Errorf("failed to move earnings to paid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.NewNotFound("referral profile")
		}

		batch := tx.Model(&domain.ReferralTransaction{}).Select("referral_id").Where("payout_batch_id = ?", batchID)
		if err := tx.Model(&domain.Referral{}).
			Where("id IN (?)", batch).
			Update("reward_claimed", true).Error; err != nil {
			return fmt.Errorf("failed to mark rewards claimed: %w", err)
		}
		return nil
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("payout.count", out.Count),
		attribute.Int64("payout.total", out.Total),
	)
	return out, nil
}

func createTransaction(db *gorm.DB, t *domain.ReferralTransaction) error {
	if err := db.Create(t).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return apperror.NewConflict("commission already recorded for payment")
		}
		return fmt.Errorf("failed to create referral transaction: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
