package app

import (
	"gorm.io/gorm"

	cartdomain "github.com/tair/lesson-payments/internal/cart/domain"
	cartrepo "github.com/tair/lesson-payments/internal/cart/repository"
	enrolldomain "github.com/tair/lesson-payments/internal/enrollment/domain"
	enrollhandler "github.com/tair/lesson-payments/internal/enrollment/handler"
	enrollrepo "github.com/tair/lesson-payments/internal/enrollment/repository"
	enrollcmd "github.com/tair/lesson-payments/internal/enrollment/usecase/command"
	enrollquery "github.com/tair/lesson-payments/internal/enrollment/usecase/query"
	"github.com/tair/lesson-payments/internal/jobs"
	"github.com/tair/lesson-payments/internal/notification"
	paymentdomain "github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/internal/payment/gateway"
	paymenthandler "github.com/tair/lesson-payments/internal/payment/handler"
	paymentrepo "github.com/tair/lesson-payments/internal/payment/repository"
	paymentcmd "github.com/tair/lesson-payments/internal/payment/usecase/command"
	referraldomain "github.com/tair/lesson-payments/internal/referral/domain"
	referralhandler "github.com/tair/lesson-payments/internal/referral/handler"
	referralrepo "github.com/tair/lesson-payments/internal/referral/repository"
	referralcmd "github.com/tair/lesson-payments/internal/referral/usecase/command"
	referralquery "github.com/tair/lesson-payments/internal/referral/usecase/query"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	userrepo "github.com/tair/lesson-payments/internal/user/repository"
	"github.com/tair/lesson-payments/pkg/auth"
	"github.com/tair/lesson-payments/pkg/cache"
	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/logger"
	"github.com/tair/lesson-payments/pkg/middleware"
	"github.com/tair/lesson-payments/pkg/secure"
)

// devBankDetailsKey seals bank details when BANK_DETAILS_KEY is unset
const devBankDetailsKey = "dev-bank-details-key"

// App holds everything the HTTP server and scheduler need
type App struct {
	Payments    *paymenthandler.PaymentHandler
	Enrollments *enrollhandler.EnrollmentHandler
	Referrals   *referralhandler.ReferralHandler
	Middleware  paymenthandler.MiddlewareConfig
	Jobs        *jobs.CronManager
}

// Repository providers

// ProvideUserDirectory provides the read-only user directory
func ProvideUserDirectory(db *gorm.DB) userdomain.UserDirectory {
	return userrepo.NewGormUserRepository(db)
}

// ProvideCartRepository provides the cart repository
func ProvideCartRepository(db *gorm.DB) cartdomain.CartRepository {
	return cartrepo.NewGormCartRepository(db)
}

// ProvideEnrollmentRepository provides the enrollment repository
func ProvideEnrollmentRepository(db *gorm.DB) enrolldomain.EnrollmentRepository {
	return enrollrepo.NewGormEnrollmentRepository(db)
}

// ProvidePaymentRepository provides the payment repository
func ProvidePaymentRepository(db *gorm.DB) paymentdomain.PaymentRepository {
	return paymentrepo.NewGormPaymentRepository(db)
}

// ProvideReferralRepository provides the referral repository
func ProvideReferralRepository(db *gorm.DB) referraldomain.ReferralRepository {
	return referralrepo.NewGormReferralRepository(db)
}

// ProvideProfileRepository provides the referral profile repository
func ProvideProfileRepository(db *gorm.DB) referraldomain.ProfileRepository {
	return referralrepo.NewGormProfileRepository(db)
}

// ProvideTransactionStore provides the commission ledger, which serves both
// transaction reads and the ledger writes
func ProvideTransactionStore(db *gorm.DB) *referralrepo.GormTransactionRepository {
	return referralrepo.NewGormTransactionRepository(db)
}

// Infrastructure providers

// ProvideGatewayClient provides the payment gateway client
func ProvideGatewayClient(cfg *config.Config) *gateway.Client {
	return gateway.NewClient(cfg.Gateway)
}

// ProvideAuthenticator provides the bearer token middleware
func ProvideAuthenticator(cfg *config.Config) *middleware.Authenticator {
	return middleware.NewAuthenticator(auth.NewTokenValidator(cfg.JWTSecret))
}

// ProvideSealer provides the bank detail sealer
func ProvideSealer(cfg *config.Config) *secure.Sealer {
	key := cfg.BankDetailsKey
	if key == "" {
		logger.Logger.Warn().Msg("BANK_DETAILS_KEY not set, sealing bank details with the development key")
		key = devBankDetailsKey
	}
	return secure.NewSealer(key)
}

// ProvideMiddlewareConfig provides the HTTP middleware chain settings
func ProvideMiddlewareConfig(cfg *config.Config) paymenthandler.MiddlewareConfig {
	return paymenthandler.DefaultMiddlewareConfig(middleware.NewRateLimiter(cfg.RateLimitRPM, cfg.RateLimitBurst))
}

// Enrollment providers

// ProvideListMyEnrollmentsHandler provides the cached enrollment listing
func ProvideListMyEnrollmentsHandler(repo enrolldomain.EnrollmentRepository, c cache.Cache, cfg *config.Config) *enrollquery.ListMyEnrollmentsHandler {
	return enrollquery.NewListMyEnrollmentsHandler(repo, c, cfg.EnrollmentTTL)
}

// Referral providers

// ProvideAttributeCommissionHandler provides commission attribution
func ProvideAttributeCommissionHandler(
	resolver *referralcmd.ReferralResolver,
	profiles referraldomain.ProfileRepository,
	ledger referraldomain.LedgerStore,
	cfg *config.Config,
) *referralcmd.AttributeCommissionHandler {
	return referralcmd.NewAttributeCommissionHandler(resolver, profiles, ledger, cfg.Referral.DefaultCommissionRate)
}

// ProvidePayoutDeps groups the payout collaborators
func ProvidePayoutDeps(
	profiles referraldomain.ProfileRepository,
	transactions referraldomain.TransactionRepository,
	ledger referraldomain.LedgerStore,
	locker cache.Locker,
	users userdomain.UserDirectory,
	notifier notification.Notifier,
	cfg *config.Config,
) referralcmd.PayoutDeps {
	return referralcmd.PayoutDeps{
		Profiles:     profiles,
		Transactions: transactions,
		Ledger:       ledger,
		Locker:       locker,
		Users:        users,
		Notifier:     notifier,
		LockTTL:      cfg.PayoutLockTTL,
		DefaultRate:  cfg.Referral.DefaultCommissionRate,
		AdminEmail:   cfg.Notifier.AdminEmail,
	}
}

// ProvideUpdateBankDetailsHandler provides bank detail updates
func ProvideUpdateBankDetailsHandler(profiles referraldomain.ProfileRepository, sealer *secure.Sealer, cfg *config.Config) *referralcmd.UpdateBankDetailsHandler {
	return referralcmd.NewUpdateBankDetailsHandler(profiles, sealer, cfg.Referral.DefaultCommissionRate)
}

// ProvideGetProfileHandler provides the referral profile query
func ProvideGetProfileHandler(profiles referraldomain.ProfileRepository, cfg *config.Config) *referralquery.GetProfileHandler {
	return referralquery.NewGetProfileHandler(profiles, cfg.Referral.DefaultCommissionRate)
}

// ProvideExpireReferralsHandler provides invitation expiry
func ProvideExpireReferralsHandler(referrals referraldomain.ReferralRepository, cfg *config.Config) *referralcmd.ExpireReferralsHandler {
	return referralcmd.NewExpireReferralsHandler(referrals, cfg.Jobs.ReferralExpireAfter)
}

// Payment providers

// ProvideInitializePaymentHandler provides checkout
func ProvideInitializePaymentHandler(
	repo paymentdomain.PaymentRepository,
	gw paymentdomain.Gateway,
	carts cartdomain.CartRepository,
	cfg *config.Config,
) *paymentcmd.InitializePaymentHandler {
	return paymentcmd.NewInitializePaymentHandler(repo, gw, carts, paymentcmd.InitializeSettings{
		CallbackURL:         cfg.Gateway.CallbackURL,
		Currency:            cfg.DefaultCurrency,
		MinorUnitMultiplier: cfg.Gateway.MinorUnitMultiplier,
	})
}

// ProvideHandleWebhookHandler provides webhook handling
func ProvideHandleWebhookHandler(
	repo paymentdomain.PaymentRepository,
	verifier paymentdomain.WebhookVerifier,
	reconciler *paymentcmd.Reconciler,
) *paymentcmd.HandleWebhookHandler {
	return paymentcmd.NewHandleWebhookHandler(repo, verifier, reconciler, gateway.ParseTime)
}

// Job providers

// ProvideCronManager provides the scheduler. The in-process cache is swept
// on a schedule; Redis expires keys itself.
func ProvideCronManager(
	cfg *config.Config,
	payments paymentdomain.PaymentRepository,
	expirer *referralcmd.ExpireReferralsHandler,
	c cache.Cache,
) *jobs.CronManager {
	var sweeper jobs.Sweeper
	if mc, ok := c.(*cache.MemoryCache); ok {
		sweeper = mc
	}
	return jobs.NewCronManager(cfg.Jobs, payments, expirer, sweeper)
}

// Compile-time interface checks
var (
	_ paymentcmd.EnrollmentMaterializer    = (*enrollcmd.MaterializeHandler)(nil)
	_ paymentcmd.CommissionAttributor      = (*referralcmd.AttributeCommissionHandler)(nil)
	_ referraldomain.TransactionRepository = (*referralrepo.GormTransactionRepository)(nil)
	_ referraldomain.LedgerStore           = (*referralrepo.GormTransactionRepository)(nil)
)
