package command

import (
	"context"

	cartdomain "github.com/tair/lesson-payments/internal/cart/domain"
	enrollcmd "github.com/tair/lesson-payments/internal/enrollment/usecase/command"
	"github.com/tair/lesson-payments/internal/notification"
	"github.com/tair/lesson-payments/internal/payment/domain"
	referralcmd "github.com/tair/lesson-payments/internal/referral/usecase/command"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/metrics"
)

const settleComponent = "settlement"

// EnrollmentMaterializer grants a payment's line items
type EnrollmentMaterializer interface {
	Handle(ctx context.Context, cmd enrollcmd.MaterializeCommand) enrollcmd.MaterializeResult
}

// CommissionAttributor credits the payer's referrer, if any
type CommissionAttributor interface {
	Handle(ctx context.Context, cmd referralcmd.AttributeCommissionCommand) (*referralcmd.AttributionResult, error)
}

// Payer identifies who paid. Email may be empty on the webhook path;
// it is then resolved through the user directory.
type Payer struct {
	UserID uint
	Email  string
	Name   string
}

// Settler runs the side effects of a payment that just became successful.
// Every step is best-effort: failures are reported as consistency warnings
// and never undo the payment.
type Settler struct {
	enrollments EnrollmentMaterializer
	carts       cartdomain.CartRepository
	attributor  CommissionAttributor
	users       userdomain.UserDirectory
	notifier    notification.Notifier
}

// NewSettler creates a new settler
func NewSettler(
	enrollments EnrollmentMaterializer,
	carts cartdomain.CartRepository,
	attributor CommissionAttributor,
	users userdomain.UserDirectory,
	notifier notification.Notifier,
) *Settler {
	return &Settler{
		enrollments: enrollments,
		carts:       carts,
		attributor:  attributor,
		users:       users,
		notifier:    notifier,
	}
}

// Settle runs enrollments, cart clearing, referral attribution and
// notifications, in that order
func (s *Settler) Settle(ctx context.Context, p *domain.Payment, payer Payer) {
	log := logger.Component(ctx, settleComponent)
	payer = s.resolvePayer(ctx, p, payer)

	items := make([]enrollcmd.Item, 0, len(p.Items))
	for _, it := range p.Items {
		items = append(items, enrollcmd.Item{Subject: it.Subject, Grade: it.Grade, Term: it.Term, Price: it.Price})
	}
	paidAt := p.UpdatedAt
	if p.PaidAt != nil {
		paidAt = *p.PaidAt
	}
	s.enrollments.Handle(ctx, enrollcmd.MaterializeCommand{
		UserID:           p.UserID,
		PaymentReference: p.Reference,
		PaidAt:           paidAt,
		Items:            items,
	})

	apperror.Warn(ctx, settleComponent, "clear-cart", s.carts.Clear(ctx, p.UserID))

	attribution, err := s.attributor.Handle(ctx, referralcmd.AttributeCommissionCommand{
		PayerID:    p.UserID,
		PayerEmail: payer.Email,
		StudentID:  p.StudentID,
		PaymentID:  p.ID,
		Amount:     p.Amount,
	})
	apperror.Warn(ctx, "referral", "attribute", err)

	s.notify(ctx, notification.KindPaymentSuccess,
		notification.Recipient{UserID: payer.UserID, Email: payer.Email, Name: payer.Name},
		notification.Payload{
			"reference": p.Reference,
			"amount":    p.Amount,
			"currency":  p.Currency,
			"items":     len(p.Items),
		})

	if attribution != nil {
		s.notifyReferrer(ctx, attribution, p)
	}

	metrics.PaymentsSettled.Inc()
	log.Info().
		Str("reference", p.Reference).
		Uint("user_id", p.UserID).
		Bool("commission", attribution != nil).
		Msg("Payment settled")
}

func (s *Settler) resolvePayer(ctx context.Context, p *domain.Payment, payer Payer) Payer {
	payer.UserID = p.UserID
	if payer.Email != "" && payer.Name != "" {
		return payer
	}
	u, err := s.users.FindByID(ctx, p.UserID)
	if err != nil {
		if payer.Email == "" {
			apperror.Warn(ctx, settleComponent, "resolve-payer", err)
		}
		return payer
	}
	if payer.Email == "" {
		payer.Email = u.Email
	}
	if payer.Name == "" {
		payer.Name = u.FullName
	}
	return payer
}

func (s *Settler) notifyReferrer(ctx context.Context, a *referralcmd.AttributionResult, p *domain.Payment) {
	to := notification.Recipient{UserID: a.ReferrerID}
	if u, err := s.users.FindByID(ctx, a.ReferrerID); err == nil {
		to.Email = u.Email
		to.Name = u.FullName
	} else {
		apperror.Warn(ctx, "notification", "resolve-referrer", err)
		return
	}

	s.notify(ctx, notification.KindCommissionEarned, to, notification.Payload{
		"amount_paid":    p.Amount,
		"commission":     a.Commission,
		"currency":       p.Currency,
		"transaction_id": a.TransactionID,
	})
}

func (s *Settler) notify(ctx context.Context, kind notification.Kind, to notification.Recipient, payload notification.Payload) {
	if to.Email == "" {
		apperror.Warn(ctx, "notification", string(kind), errMissingRecipient)
		return
	}
	apperror.Warn(ctx, "notification", string(kind), s.notifier.Send(ctx, kind, to, payload))
}
