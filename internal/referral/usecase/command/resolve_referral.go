package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/tair/lesson-payments/internal/referral/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
)

// ReferralResolver finds the referral that applies to a payer
type ReferralResolver struct {
	referrals domain.ReferralRepository
}

// NewReferralResolver creates a new resolver
func NewReferralResolver(referrals domain.ReferralRepository) *ReferralResolver {
	return &ReferralResolver{referrals: referrals}
}

// Resolve looks the referral up by referred user id first, then by a pending
// invite for the payer's e-mail. An e-mail match is bound to the user so the
// next lookup takes the first path. It returns nil when nothing matches.
func (r *ReferralResolver) Resolve(ctx context.Context, userID uint, email string) (*domain.Referral, error) {
	ref, err := r.referrals.FindByReferredUser(ctx, userID)
	if err == nil {
		return ref, nil
	}
	if !apperror.Is(err, apperror.KindNotFound) {
		return nil, fmt.Errorf("find referral by user: %w", err)
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}

	ref, err = r.referrals.FindPendingByEmail(ctx, email)
	if apperror.Is(err, apperror.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find referral by email: %w", err)
	}

	apperror.Warn(ctx, "referral", "attach-user", r.referrals.AttachUser(ctx, ref.ID, userID))
	ref.ReferredUserID = &userID
	return ref, nil
}
