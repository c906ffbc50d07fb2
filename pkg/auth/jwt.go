// Package auth mints the HMAC bearer tokens the API accepts: tenant-scoped
// tokens for management callers and cross-tenant service tokens for
// internal schedulers.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultExpiry = 24 * time.Hour

type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret []byte
	expiry time.Duration
}

func NewJWTService(secret string, expiryHours int) *JWTService {
	expiry := defaultExpiry
	if expiryHours > 0 {
		expiry = time.Duration(expiryHours) * time.Hour
	}
	return &JWTService{secret: []byte(secret), expiry: expiry}
}

// GenerateTenantToken issues a token scoped to one tenant.
func (s *JWTService) GenerateTenantToken(tenantID uuid.UUID) (string, error) {
	return s.sign(Claims{
		TenantID: tenantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

// GenerateServiceToken issues a cross-tenant token for internal callers.
func (s *JWTService) GenerateServiceToken() (string, error) {
	return s.sign(Claims{
		Role: "service",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
}

func (s *JWTService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
