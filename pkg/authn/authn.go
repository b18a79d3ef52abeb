// Package authn authenticates operator bearer tokens for the delivery
// service's administrative surface (dead-letter requeue, breaker reset).
package authn

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// OperatorIdentity is the verified subject of an operator token.
type OperatorIdentity struct {
	Subject  string
	TenantID string
	Scopes   []string
}

type operatorClaims struct {
	TenantID string   `json:"tenant_id,omitempty"`
	Scopes   []string `json:"scopes"`
	jwt.RegisteredClaims
}

// AuthenticateOperatorBearer verifies an Authorization header value against
// the shared signing secret and returns the operator identity. Any parse or
// validation failure collapses to ErrUnauthorized.
func AuthenticateOperatorBearer(secret []byte, authorization string) (*OperatorIdentity, error) {
	raw, ok := parseBearerToken(authorization)
	if !ok {
		return nil, ErrUnauthorized
	}
	var claims operatorClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}
	return &OperatorIdentity{
		Subject:  claims.Subject,
		TenantID: claims.TenantID,
		Scopes:   claims.Scopes,
	}, nil
}

// IssueOperatorToken mints a token for tooling and tests.
func IssueOperatorToken(secret []byte, subject, tenantID string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := operatorClaims{
		TenantID: tenantID,
		Scopes:   scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func HasScope(scopes []string, required string) bool {
	for _, s := range scopes {
		if s == required {
			return true
		}
	}
	return false
}

func parseBearerToken(authorization string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return "", false
	}
	token := strings.TrimSpace(authorization[len(prefix):])
	return token, token != ""
}
