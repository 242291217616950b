package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserTypeAdmin is the user type allowed on admin routes
const UserTypeAdmin = "admin"

// Principal is the authenticated caller handed to every handler
type Principal struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
}

// IsAdmin reports whether the principal may use admin-only operations
func (p Principal) IsAdmin() bool {
	return p.UserType == UserTypeAdmin
}

// Claims represents JWT claims issued by the user service
type Claims struct {
	UserID   uint   `json:"user_id"`
	Email    string `json:"email"`
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

// Principal converts claims to a principal
func (c *Claims) Principal() Principal {
	return Principal{ID: c.UserID, Email: c.Email, UserType: c.UserType}
}

// TokenValidator validates bearer tokens signed with a shared HMAC secret
type TokenValidator struct {
	secret []byte
}

// NewTokenValidator creates a validator for the given secret
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret)}
}

// Validate parses and validates a token, returning its claims
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}

// GenerateToken issues a token for a principal. The user service owns login;
// this exists for tooling and tests.
func GenerateToken(p Principal, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   p.ID,
		Email:    p.Email,
		UserType: p.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
