package repository

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tair/lesson-payments/internal/enrollment/domain"
)

var tracer = otel.Tracer("enrollment-repository")

// GormEnrollmentRepository implements EnrollmentRepository using GORM
type GormEnrollmentRepository struct {
	db *gorm.DB
}

// NewGormEnrollmentRepository creates a new GORM enrollment repository
func NewGormEnrollmentRepository(db *gorm.DB) *GormEnrollmentRepository {
	return &GormEnrollmentRepository{db: db}
}

// Upsert inserts the enrollment or refreshes the existing row with the same
// (user, subject, grade, term)
func (r *GormEnrollmentRepository) Upsert(ctx context.Context, e *domain.Enrollment) error {
	ctx, span := tracer.Start(ctx, "repository.UpsertEnrollment",
		trace.WithAttributes(
			attribute.Int("user.id", int(e.UserID)),
			attribute.String("enrollment.subject", e.Subject),
			attribute.String("enrollment.grade", e.Grade),
			attribute.String("enrollment.term", e.Term),
		),
	)
	defer span.End()

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "subject"}, {Name: "grade"}, {Name: "term"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"payment_reference", "price", "purchased_at", "active", "updated_at",
		}),
	}).Create(e).Error
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to upsert enrollment: %w", err)
	}
	return nil
}

// ListActive returns the user's active enrollments
func (r *GormEnrollmentRepository) ListActive(ctx context.Context, userID uint) ([]domain.Enrollment, error) {
	var out []domain.Enrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("subject, grade, term").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return out, nil
}
