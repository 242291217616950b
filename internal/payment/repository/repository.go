package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/database"
)

var tracer = otel.Tracer("payment-repository")

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GORM payment repository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	ctx, span := tracer.Start(ctx, "repository.CreatePayment",
		trace.WithAttributes(attribute.String("payment.reference", payment.Reference)),
	)
	defer span.End()

	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		recordError(span, err)
		if database.IsDuplicateKey(err) {
			return apperror.NewConflict("payment reference already exists")
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	span.SetAttributes(attribute.Int("payment.id", int(payment.ID)))
	return nil
}

func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	ctx, span := tracer.Start(ctx, "repository.FindPaymentByReference",
		trace.WithAttributes(attribute.String("payment.reference", reference)),
	)
	defer span.End()

	var payment domain.Payment
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NewNotFound("payment")
	}
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return &payment, nil
}

func (r *GormPaymentRepository) FindByUserID(ctx context.Context, userID uint, limit, offset int) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Limit(limit).Offset(offset).
		Order("created_at DESC, id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *GormPaymentRepository) FindAll(ctx context.Context, filter domain.PaymentFilter, limit, offset int) ([]domain.Payment, error) {
	query := r.db.WithContext(ctx).Model(&domain.Payment{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}

	var payments []domain.Payment
	err := query.Limit(limit).Offset(offset).
		Order("created_at DESC, id DESC").
		Find(&payments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *GormPaymentRepository) SaveVerifyPayload(ctx context.Context, id uint, payload []byte) error {
	return r.savePayload(ctx, id, "verify_payload", payload)
}

func (r *GormPaymentRepository) SaveWebhookPayload(ctx context.Context, id uint, payload []byte) error {
	return r.savePayload(ctx, id, "webhook_payload", payload)
}

func (r *GormPaymentRepository) savePayload(ctx context.Context, id uint, column string, payload []byte) error {
	err := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ?", id).
		Update(column, datatypes.JSON(payload)).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", column, err)
	}
	return nil
}

func (r *GormPaymentRepository) MarkSucceeded(ctx context.Context, id uint, paidAt time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "repository.MarkPaymentSucceeded",
		trace.WithAttributes(attribute.Int("payment.id", int(id))),
	)
	defer span.End()

	result := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status <> ?", id, domain.StatusSuccess).
		Updates(map[string]interface{}{
			"status":  domain.StatusSuccess,
			"paid_at": paidAt,
		})
	if result.Error != nil {
		recordError(span, result.Error)
		return false, fmt.Errorf("failed to mark payment succeeded: %w", result.Error)
	}

	claimed := result.RowsAffected == 1
	span.SetAttributes(attribute.Bool("payment.claimed", claimed))
	return claimed, nil
}

func (r *GormPaymentRepository) UpdateStatus(ctx context.Context, id uint, status string) (bool, error) {
	if status == domain.StatusSuccess {
		return false, fmt.Errorf("use MarkSucceeded for the success transition")
	}
	result := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("id = ? AND status IN ?", id, domain.OpenStatuses).
		Update("status", status)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update payment status: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) AbandonStale(ctx context.Context, createdBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Payment{}).
		Where("status IN ? AND created_at < ?", domain.OpenStatuses, createdBefore).
		Update("status", domain.StatusAbandoned)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to abandon stale payments: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
