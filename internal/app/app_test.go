package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/lesson-payments/internal/notification"
	userdomain "github.com/tair/lesson-payments/internal/user/domain"
	"github.com/tair/lesson-payments/pkg/auth"
	"github.com/tair/lesson-payments/pkg/cache"
	"github.com/tair/lesson-payments/pkg/config"
	"github.com/tair/lesson-payments/pkg/database"
	"github.com/tair/lesson-payments/pkg/httpx"
)

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []notification.Kind
}

func (n *recordingNotifier) Send(_ context.Context, kind notification.Kind, _ notification.Recipient, _ notification.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
	return nil
}

func newTestApp(t *testing.T) (*mux.Router, *config.Config, *recordingNotifier) {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&[]userdomain.User{
		{ID: 1, Email: "referrer@example.com", FullName: "Ada Referrer", UserType: userdomain.UserTypeReferrer},
		{ID: 2, Email: "parent@example.com", FullName: "Bola Parent", UserType: userdomain.UserTypeParent},
	}).Error)

	cfg := config.Load()
	cfg.JWTSecret = "test-secret"
	cfg.Gateway.WebhookSecret = "whsec"
	cfg.RateLimitRPM = 1000
	cfg.RateLimitBurst = 1000

	notifier := &recordingNotifier{}
	a, err := InitializeApp(cfg, &Infrastructure{
		DB:       db,
		Cache:    cache.NewMemoryCache(),
		Locker:   cache.NewMemoryLocker(),
		Notifier: notifier,
	})
	require.NoError(t, err)
	return a.Router(), cfg, notifier
}

func call(t *testing.T, router http.Handler, cfg *config.Config, method, path string, p *auth.Principal, body interface{}) (int, httpx.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if p != nil {
		token, err := auth.GenerateToken(*p, cfg.JWTSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp httpx.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestReferralRoutes(t *testing.T) {
	router, cfg, notifier := newTestApp(t)
	referrer := &auth.Principal{ID: 1, Email: "referrer@example.com", UserType: "referrer"}

	code, resp := call(t, router, cfg, http.MethodGet, "/referrals/me", referrer, nil)
	require.Equal(t, http.StatusOK, code)
	profile := resp.Data.(map[string]interface{})
	assert.EqualValues(t, 0.10, profile["commission_rate"])
	assert.EqualValues(t, 0, profile["pending_earnings"])

	code, resp = call(t, router, cfg, http.MethodPut, "/referrals/me/bank-details", referrer, map[string]string{
		"bank_name": "First Bank", "account_name": "Ada Referrer", "account_number": "0123456789",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "****6789", resp.Data.(map[string]interface{})["account_number"])

	code, _ = call(t, router, cfg, http.MethodPut, "/referrals/me/bank-details", referrer, map[string]string{"bank_name": "x"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, router, cfg, http.MethodPost, "/referrals/invite", referrer, map[string]string{"email": "New.Family@Example.com"})
	assert.Equal(t, http.StatusCreated, code)
	code, _ = call(t, router, cfg, http.MethodPost, "/referrals/invite", referrer, map[string]string{"email": "new.family@example.com"})
	assert.Equal(t, http.StatusConflict, code)

	code, resp = call(t, router, cfg, http.MethodGet, "/referrals/me/referrals", referrer, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Data, 1)

	code, _ = call(t, router, cfg, http.MethodGet, "/referrals/me/transactions?status=bogus", referrer, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, router, cfg, http.MethodPost, "/referrals/admin/payout/1", referrer, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, router, cfg, http.MethodGet, "/referrals/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	assert.Empty(t, notifier.kinds)
}

func TestEnrollmentAndPaymentRoutes(t *testing.T) {
	router, cfg, _ := newTestApp(t)
	parent := &auth.Principal{ID: 2, Email: "parent@example.com", UserType: "parent"}

	code, resp := call(t, router, cfg, http.MethodGet, "/enrollments/me", parent, nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)

	code, resp = call(t, router, cfg, http.MethodGet, "/payments/my", parent, nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, resp.Data.(map[string]interface{})["total"])

	code, _ = call(t, router, cfg, http.MethodPost, "/payments/initialize", parent, map[string]interface{}{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = call(t, router, cfg, http.MethodPost, "/payments/webhook", nil, map[string]string{"event": "charge.success"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "AUTHENTICATION_ERROR", resp.Code)
}

func TestModelsMigrate(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	for _, m := range Models() {
		assert.True(t, db.Migrator().HasTable(m))
	}
}
