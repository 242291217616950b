package command

import (
	"context"
	"strings"
	"time"

	"github.com/tair/lesson-payments/internal/referral/domain"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

// InviteCommand represents the command to register a pending referral
type InviteCommand struct {
	ReferrerID    uint
	ReferrerEmail string
	Email         string `json:"email" validate:"required,email"`
}

// InviteHandler registers referral invites
type InviteHandler struct {
	referrals domain.ReferralRepository
	users     userdomain.UserDirectory
}

// NewInviteHandler creates a new invite handler
func NewInviteHandler(referrals domain.ReferralRepository, users userdomain.UserDirectory) *InviteHandler {
	return &InviteHandler{referrals: referrals, users: users}
}

// Handle creates the pending referral. An existing pending invite for the
// same address is a conflict. When the invitee already has an account the
// referral is bound to it immediately.
func (h *InviteHandler) Handle(ctx context.Context, cmd InviteCommand) (*domain.Referral, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" {
		return nil, apperror.NewValidation("email is required")
	}
	if strings.EqualFold(email, strings.TrimSpace(cmd.ReferrerEmail)) {
		return nil, apperror.NewValidation("you cannot refer yourself")
	}

	_, err := h.referrals.FindPendingByEmail(ctx, email)
	if err == nil {
		return nil, apperror.NewConflict("a pending referral already exists for this email")
	}
	if !apperror.Is(err, apperror.KindNotFound) {
		return nil, err
	}

	ref := &domain.Referral{
		ReferrerID:    cmd.ReferrerID,
		ReferredEmail: email,
		Status:        domain.ReferralPending,
	}
	if u, err := h.users.FindByEmail(ctx, email); err == nil {
		if u.ID == cmd.ReferrerID {
			return nil, apperror.NewValidation("you cannot refer yourself")
		}
		if _, err := h.referrals.FindByReferredUser(ctx, u.ID); err == nil {
			return nil, apperror.NewConflict("this user was already referred")
		}
		id := u.ID
		ref.ReferredUserID = &id
	}

	if err := h.referrals.Create(ctx, ref); err != nil {
		return nil, err
	}

	logger.Info(ctx).
		Uint("referrer_id", cmd.ReferrerID).
		Uint("referral_id", ref.ID).
		Msg("Referral invite created")
	return ref, nil
}

// ExpireReferralsHandler expires invites that never converted
type ExpireReferralsHandler struct {
	referrals domain.ReferralRepository
	after     time.Duration
	nowFn     func() time.Time
}

// NewExpireReferralsHandler creates a new expiry handler
func NewExpireReferralsHandler(referrals domain.ReferralRepository, after time.Duration) *ExpireReferralsHandler {
	return &ExpireReferralsHandler{referrals: referrals, after: after, nowFn: time.Now}
}

// Handle expires pending referrals older than the configured age
func (h *ExpireReferralsHandler) Handle(ctx context.Context) (int64, error) {
	n, err := h.referrals.ExpirePending(ctx, h.nowFn().Add(-h.after))
	if err != nil {
		return 0, err
	}
	metrics.ReferralsExpired.Add(float64(n))
	if n > 0 {
		logger.Info(ctx).Int64("expired", n).Msg("Stale referrals expired")
	}
	return n, nil
}
