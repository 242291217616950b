package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	cartdomain "github.com/tair/lesson-payments/internal/cart/domain"
	cartrepo "github.com/tair/lesson-payments/internal/cart/repository"
	enrolldomain "github.com/tair/lesson-payments/internal/enrollment/domain"
	enrollrepo "github.com/tair/lesson-payments/internal/enrollment/repository"
	enrollcmd "github.com/tair/lesson-payments/internal/enrollment/usecase/command"
	"github.com/tair/lesson-payments/internal/notification"
	"github.com/tair/lesson-payments/internal/payment/domain"
	"github.com/tair/lesson-payments/internal/payment/gateway"
	paymentrepo "github.com/tair/lesson-payments/internal/payment/repository"
	referraldomain "github.com/tair/lesson-payments/internal/referral/domain"
	referralrepo "github.com/tair/lesson-payments/internal/referral/repository"
	referralcmd "github.com/tair/lesson-payments/internal/referral/usecase/command"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	userrepo "github.com/tair/lesson-payments/internal/user/repository"
	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/cache"
	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/database"
)

const webhookSecret = "whsec_test"

type fakeGateway struct {
	mu        sync.Mutex
	initReqs  []domain.InitializeRequest
	initErr   error
	verify    *domain.VerifyResult
	verifyErr error
}

func (g *fakeGateway) Initialize(_ context.Context, req domain.InitializeRequest) (*domain.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initReqs = append(g.initReqs, req)
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &domain.InitializeResult{
		AuthorizationURL: "https://checkout.test/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
		Raw:              []byte(`{"status":true}`),
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*domain.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verify, g.verifyErr
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Kind
	to   []string
}

func (n *recordingNotifier) Send(_ context.Context, kind notification.Kind, to notification.Recipient, _ notification.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, kind)
	n.to = append(n.to, to.Email)
	return nil
}

type env struct {
	db         *gorm.DB
	payments   *paymentrepo.GormPaymentRepository
	carts      *cartrepo.GormCartRepository
	gw         *fakeGateway
	notifier   *recordingNotifier
	initialize *InitializePaymentHandler
	verify     *VerifyPaymentHandler
	webhook    *HandleWebhookHandler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Payment{}, &cartdomain.Cart{}, &enrolldomain.Enrollment{}, &userdomain.User{},
		&referraldomain.Referral{}, &referraldomain.ReferralProfile{}, &referraldomain.ReferralTransaction{},
	))
	require.NoError(t, db.Create(&[]userdomain.User{
		{ID: 7, Email: "referrer@example.com", FullName: "Rita Referrer", UserType: userdomain.UserTypeReferrer},
		{ID: 42, Email: "parent@example.com", FullName: "Pat Parent", UserType: userdomain.UserTypeParent},
	}).Error)

	e := &env{
		db:       db,
		payments: paymentrepo.NewGormPaymentRepository(db),
		carts:    cartrepo.NewGormCartRepository(db),
		gw:       &fakeGateway{},
		notifier: &recordingNotifier{},
	}

	users := userrepo.NewGormUserRepository(db)
	referrals := referralrepo.NewGormReferralRepository(db)
	attributor := referralcmd.NewAttributeCommissionHandler(
		referralcmd.NewReferralResolver(referrals),
		referralrepo.NewGormProfileRepository(db),
		referralrepo.NewGormTransactionRepository(db),
		0.10,
	)
	materializer := enrollcmd.NewMaterializeHandler(enrollrepo.NewGormEnrollmentRepository(db), cache.NewMemoryCache())

	settler := NewSettler(materializer, e.carts, attributor, users, e.notifier)
	reconciler := NewReconciler(e.payments, settler)

	e.initialize = NewInitializePaymentHandler(e.payments, e.gw, e.carts, InitializeSettings{
		CallbackURL:         "https://app.test/payments/callback",
		Currency:            "NGN",
		MinorUnitMultiplier: 100,
	})
	e.verify = NewVerifyPaymentHandler(e.payments, e.gw, reconciler)
	verifier := gateway.NewClient(config.GatewayConfig{SecretKey: "sk_test", WebhookSecret: webhookSecret})
	e.webhook = NewHandleWebhookHandler(e.payments, verifier, reconciler, gateway.ParseTime)

	require.NoError(t, referrals.Create(context.Background(), &referraldomain.Referral{
		ReferrerID:    7,
		ReferredEmail: "parent@example.com",
	}))
	return e
}

var mathsGrade3 = domain.LineItem{Subject: "Mathematics", Grade: "3", Term: "First Term", Price: 5000}

func (e *env) initPayment(t *testing.T) string {
	t.Helper()
	res, err := e.initialize.Handle(context.Background(), InitializePaymentCommand{
		UserID: 42,
		Email:  "parent@example.com",
		Amount: 5000,
		Items:  []domain.LineItem{mathsGrade3},
	})
	require.NoError(t, err)
	return res.Reference
}

func (e *env) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func webhookBody(reference string) []byte {
	return []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":%q,"status":"success","paid_at":"2026-02-01T10:00:00.000Z","amount":500000}}`, reference))
}

func TestInitialize(t *testing.T) {
	e := newEnv(t)

	ref := e.initPayment(t)
	assert.Regexp(t, `^PAY-\d+-42-[0-9a-f]{8}$`, ref)

	require.Len(t, e.gw.initReqs, 1)
	assert.Equal(t, int64(500000), e.gw.initReqs[0].AmountMinor)
	assert.Equal(t, "https://app.test/payments/callback", e.gw.initReqs[0].CallbackURL)

	p, err := e.payments.FindByReference(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitialized, p.Status)
	assert.Equal(t, []domain.LineItem{mathsGrade3}, []domain.LineItem(p.Items))
	assert.JSONEq(t, `{"status":true}`, string(p.InitializePayload))
}

func TestInitialize_FallsBackToCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.carts.SetItems(ctx, 42, []cartdomain.Item{{Subject: "English", Grade: "4", Term: "Second Term", Price: 4000}}))

	res, err := e.initialize.Handle(ctx, InitializePaymentCommand{UserID: 42, Email: "parent@example.com", Amount: 4000})
	require.NoError(t, err)

	p, err := e.payments.FindByReference(ctx, res.Reference)
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "English", p.Items[0].Subject)
}

func TestInitialize_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.initialize.Handle(ctx, InitializePaymentCommand{UserID: 42, Email: "parent@example.com", Amount: 0, Items: []domain.LineItem{mathsGrade3}})
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	_, err = e.initialize.Handle(ctx, InitializePaymentCommand{UserID: 42, Email: "parent@example.com", Amount: 5000})
	assert.True(t, apperror.Is(err, apperror.KindValidation), "empty items and empty cart")

	assert.Empty(t, e.gw.initReqs)
}

func TestInitialize_GatewayErrorCreatesNothing(t *testing.T) {
	e := newEnv(t)
	e.gw.initErr = errors.New("Invalid key")

	_, err := e.initialize.Handle(context.Background(), InitializePaymentCommand{
		UserID: 42, Email: "parent@example.com", Amount: 5000, Items: []domain.LineItem{mathsGrade3},
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindUpstream))
	assert.Contains(t, apperror.MessageOf(err), "Invalid key")
	assert.Zero(t, e.count(t, &domain.Payment{}))
}

func TestVerify_SuccessSettlesOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := e.initPayment(t)
	require.NoError(t, e.carts.SetItems(ctx, 42, []cartdomain.Item{{Subject: "Mathematics", Grade: "3", Term: "First Term", Price: 5000}}))

	paidAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	e.gw.verify = &domain.VerifyResult{GatewayStatus: "success", Reference: ref, PaidAt: &paidAt, Raw: []byte(`{"status":true,"data":{"status":"success"}}`)}

	cmd := VerifyPaymentCommand{Reference: ref, UserID: 42, Email: "parent@example.com", Name: "Pat Parent"}
	first, err := e.verify.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, first.Status)
	assert.True(t, first.Settled)

	second, err := e.verify.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, second.Status)
	assert.False(t, second.Settled, "side effects run once")

	var enrollments []enrolldomain.Enrollment
	require.NoError(t, e.db.Find(&enrollments).Error)
	require.Len(t, enrollments, 1)
	assert.Equal(t, ref, enrollments[0].PaymentReference)
	assert.True(t, enrollments[0].PurchasedAt.Equal(paidAt))

	var txs []referraldomain.ReferralTransaction
	require.NoError(t, e.db.Find(&txs).Error)
	require.Len(t, txs, 1)
	assert.Equal(t, int64(500), txs[0].CommissionAmount)

	var profile referraldomain.ReferralProfile
	require.NoError(t, e.db.Where("user_id = ?", 7).First(&profile).Error)
	assert.Equal(t, int64(500), profile.TotalEarnings)
	assert.Equal(t, int64(500), profile.PendingEarnings)

	items, err := e.carts.GetItems(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, items, "cart cleared after settlement")

	assert.Equal(t, []notification.Kind{notification.KindPaymentSuccess, notification.KindCommissionEarned}, e.notifier.sent)
	assert.Equal(t, []string{"parent@example.com", "referrer@example.com"}, e.notifier.to)
}

func TestVerify_NotOwner(t *testing.T) {
	e := newEnv(t)
	ref := e.initPayment(t)

	_, err := e.verify.Handle(context.Background(), VerifyPaymentCommand{Reference: ref, UserID: 99})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = e.verify.Handle(context.Background(), VerifyPaymentCommand{Reference: "PAY-missing", UserID: 42})
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestVerify_GatewayErrorStoresEnvelope(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := e.initPayment(t)
	e.gw.verifyErr = errors.New("connection reset")

	_, err := e.verify.Handle(ctx, VerifyPaymentCommand{Reference: ref, UserID: 42})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindUpstream))

	p, err := e.payments.FindByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitialized, p.Status)
	assert.JSONEq(t, `{"status":false,"message":"connection reset"}`, string(p.VerifyPayload))
}

func TestVerify_NonSuccessStatuses(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := e.initPayment(t)

	e.gw.verify = &domain.VerifyResult{GatewayStatus: "ongoing", Reference: ref}
	res, err := e.verify.Handle(ctx, VerifyPaymentCommand{Reference: ref, UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, res.Status)

	e.gw.verify = &domain.VerifyResult{GatewayStatus: "failed", Reference: ref}
	res, err = e.verify.Handle(ctx, VerifyPaymentCommand{Reference: ref, UserID: 42})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, res.Status)
	assert.False(t, res.Settled)

	assert.Zero(t, e.count(t, &enrolldomain.Enrollment{}))
	assert.Empty(t, e.notifier.sent)
}

func TestWebhook_InvalidSignature(t *testing.T) {
	e := newEnv(t)
	ref := e.initPayment(t)
	body := webhookBody(ref)

	_, err := e.webhook.Handle(context.Background(), HandleWebhookCommand{Body: body, Signature: gateway.Sign("wrong", body)})
	assert.True(t, apperror.Is(err, apperror.KindAuthentication))

	other := []byte(`{"event":"transfer.success","data":{}}`)
	_, err = e.webhook.Handle(context.Background(), HandleWebhookCommand{Body: other, Signature: "deadbeef"})
	assert.True(t, apperror.Is(err, apperror.KindAuthentication), "checked regardless of event type")

	p, err := e.payments.FindByReference(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitialized, p.Status)
}

func TestWebhook_ChargeSuccess(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := e.initPayment(t)
	body := webhookBody(ref)
	sig := gateway.Sign(webhookSecret, body)

	res, err := e.webhook.Handle(ctx, HandleWebhookCommand{Body: body, Signature: sig})
	require.NoError(t, err)
	assert.True(t, res.Handled)
	assert.True(t, res.Settled)

	res, err = e.webhook.Handle(ctx, HandleWebhookCommand{Body: body, Signature: sig})
	require.NoError(t, err)
	assert.False(t, res.Settled, "redelivery is a no-op")

	p, err := e.payments.FindByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, p.Status)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, 2026, p.PaidAt.Year())
	assert.NotEmpty(t, p.WebhookPayload)

	assert.Equal(t, int64(1), e.count(t, &enrolldomain.Enrollment{}))
	assert.Equal(t, int64(1), e.count(t, &referraldomain.ReferralTransaction{}))
	assert.Equal(t, "parent@example.com", e.notifier.to[0], "payer resolved through the user directory")
}

func TestWebhook_UnknownReferenceAndOtherEvents(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	body := webhookBody("PAY-unknown")
	res, err := e.webhook.Handle(ctx, HandleWebhookCommand{Body: body, Signature: gateway.Sign(webhookSecret, body)})
	require.NoError(t, err)
	assert.False(t, res.Handled)

	other := []byte(`{"event":"transfer.success","data":{"reference":"x"}}`)
	res, err = e.webhook.Handle(ctx, HandleWebhookCommand{Body: other, Signature: gateway.Sign(webhookSecret, other)})
	require.NoError(t, err)
	assert.False(t, res.Handled)

	junk := []byte(`not json`)
	_, err = e.webhook.Handle(ctx, HandleWebhookCommand{Body: junk, Signature: gateway.Sign(webhookSecret, junk)})
	assert.True(t, apperror.Is(err, apperror.KindValidation))
}

func TestPollAndWebhookRace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ref := e.initPayment(t)
	e.gw.verify = &domain.VerifyResult{GatewayStatus: "success", Reference: ref}
	body := webhookBody(ref)
	sig := gateway.Sign(webhookSecret, body)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := e.verify.Handle(ctx, VerifyPaymentCommand{Reference: ref, UserID: 42})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := e.webhook.Handle(ctx, HandleWebhookCommand{Body: body, Signature: sig})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), e.count(t, &enrolldomain.Enrollment{}))
	assert.Equal(t, int64(1), e.count(t, &referraldomain.ReferralTransaction{}))

	var profile referraldomain.ReferralProfile
	require.NoError(t, e.db.Where("user_id = ?", 7).First(&profile).Error)
	assert.Equal(t, int64(500), profile.TotalEarnings)
}
