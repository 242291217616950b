package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tair/lesson-payments/pkg/apperror"
	"github.com/tair/lesson-payments/pkg/auth"
	"github.com/tair/lesson-payments/pkg/httpx"
	"github.com/tair/lesson-payments/pkg/logger"
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal stores the authenticated principal in the context
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated principal, if any
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}

// Authenticator validates bearer tokens and gates handlers
type Authenticator struct {
	validator *auth.TokenValidator
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(validator *auth.TokenValidator) *Authenticator {
	return &Authenticator{validator: validator}
}

// RequireAuth rejects requests without a valid bearer token
func (a *Authenticator) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httpx.RespondError(ctx, w, apperror.NewAuthentication("authorization header required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httpx.RespondError(ctx, w, apperror.NewAuthentication("invalid authorization header format"))
			return
		}

		claims, err := a.validator.Validate(parts[1])
		if err != nil {
			logger.Warn(ctx).Err(err).Msg("Token validation failed")
			httpx.RespondError(ctx, w, apperror.NewAuthentication("invalid or expired token"))
			return
		}

		next(w, r.WithContext(WithPrincipal(ctx, claims.Principal())))
	}
}

// RequireAdmin authenticates and additionally requires the admin user type
func (a *Authenticator) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFrom(r.Context())
		if !p.IsAdmin() {
			logger.Warn(r.Context()).
				Uint("user_id", p.ID).
				Str("user_type", p.UserType).
				Msg("Non-admin attempted admin operation")
			httpx.RespondError(r.Context(), w, apperror.NewForbidden("admin access required"))
			return
		}
		next(w, r)
	})
}
