//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	enrollhandler "github.com/tair/lesson-payments/internal/enrollment/handler"
	enrollcmd "github.com/tair/lesson-payments/internal/enrollment/usecase/command"
	paymentdomain "github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/internal/payment/gateway"
	paymenthandler "github.com/tair/lesson-payments/internal/payment/handler"
	paymentcmd "github.com/tair/lesson-payments/internal/payment/usecase/command"
	paymentquery "github.com/tair/lesson-payments/internal/payment/usecase/query"
	referraldomain "github.com/tair/lesson-payments/internal/referral/domain"
	referralhandler "github.com/tair/lesson-payments/internal/referral/handler"
	referralrepo "github.com/tair/lesson-payments/internal/referral/repository"
	referralcmd "github.com/tair/lesson-payments/internal/referral/usecase/command"
	referralquery "github.com/tair/lesson-payments/internal/referral/usecase/query"
	"github.com/tair/lesson-payments/pkg/config"
)

// Wire sets
var InfrastructureSet = wire.NewSet(
	wire.FieldsOf(new(*Infrastructure), "DB", "Cache", "Locker", "Notifier"),
	ProvideGatewayClient,
	wire.Bind(new(paymentdomain.Gateway), new(*gateway.Client)),
	wire.Bind(new(paymentdomain.WebhookVerifier), new(*gateway.Client)),
	ProvideAuthenticator,
	ProvideSealer,
	ProvideMiddlewareConfig,
)

var RepositorySet = wire.NewSet(
	ProvideUserDirectory,
	ProvideCartRepository,
	ProvideEnrollmentRepository,
	ProvidePaymentRepository,
	ProvideReferralRepository,
	ProvideProfileRepository,
	ProvideTransactionStore,
	wire.Bind(new(referraldomain.TransactionRepository), new(*referralrepo.GormTransactionRepository)),
	wire.Bind(new(referraldomain.LedgerStore), new(*referralrepo.GormTransactionRepository)),
)

var EnrollmentSet = wire.NewSet(
	enrollcmd.NewMaterializeHandler,
	ProvideListMyEnrollmentsHandler,
	enrollhandler.NewEnrollmentHandler,
)

var ReferralSet = wire.NewSet(
	referralcmd.NewReferralResolver,
	ProvideAttributeCommissionHandler,
	ProvidePayoutDeps,
	referralcmd.NewProcessPayoutHandler,
	referralcmd.NewRequestPayoutHandler,
	ProvideUpdateBankDetailsHandler,
	referralcmd.NewInviteHandler,
	ProvideExpireReferralsHandler,
	ProvideGetProfileHandler,
	referralquery.NewListTransactionsHandler,
	referralquery.NewListReferralsHandler,
	wire.Struct(new(referralhandler.Handlers), "*"),
	referralhandler.NewReferralHandler,
)

var PaymentSet = wire.NewSet(
	wire.Bind(new(paymentcmd.EnrollmentMaterializer), new(*enrollcmd.MaterializeHandler)),
	wire.Bind(new(paymentcmd.CommissionAttributor), new(*referralcmd.AttributeCommissionHandler)),
	paymentcmd.NewSettler,
	paymentcmd.NewReconciler,
	ProvideInitializePaymentHandler,
	paymentcmd.NewVerifyPaymentHandler,
	ProvideHandleWebhookHandler,
	paymentquery.NewGetPaymentHandler,
	paymentquery.NewListPaymentsHandler,
	paymentquery.NewGetMyPaymentsHandler,
	paymenthandler.NewPaymentHandlerWithDI,
)

var AllSet = wire.NewSet(
	InfrastructureSet,
	RepositorySet,
	EnrollmentSet,
	ReferralSet,
	PaymentSet,
	ProvideCronManager,
	wire.Struct(new(App), "*"),
)

// InitializeApp builds the application graph on top of the shared clients
func InitializeApp(cfg *config.Config, infra *Infrastructure) (*App, error) {
	wire.Build(AllSet)
	return nil, nil
}
