package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
)

var tracer = otel.Tracer("user-repository")

// GormUserRepository implements UserDirectory using GORM
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// FindByID retrieves a user by ID
func (r *GormUserRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "repository.FindUserByID",
		trace.WithAttributes(attribute.Int("user.id", int(id))),
	)
	defer span.End()

	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, r.wrap(span, err)
	}
	return &user, nil
}

// FindByEmail retrieves a user by email, case-insensitively
func (r *GormUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := tracer.Start(ctx, "repository.FindUserByEmail")
	defer span.End()

	var user domain.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, r.wrap(span, err)
	}
	return &user, nil
}

func (r *GormUserRepository) wrap(span trace.Span, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NewNotFound("user")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return fmt.Errorf("failed to find user: %w", err)
}
