package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/remindly/reminder-api/internal/handler"
)

const (
	ContextTenantID = "tenant_id"
	ContextRole     = "role"

	// RoleService marks internal callers that may operate across tenants.
	RoleService = "service"
)

type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

// Authenticate verifies the bearer token and sets the caller's tenant and
// role in the request context. The tenant always comes from the token,
// never from the request body.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			c.Abort()
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			c.Abort()
			return
		}

		if claims.Role != RoleService {
			if _, err := uuid.Parse(claims.TenantID); err != nil {
				c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid tenant ID"))
				c.Abort()
				return
			}
		}

		c.Set(ContextTenantID, claims.TenantID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// TenantID returns the authenticated caller's tenant.
func TenantID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.GetString(ContextTenantID))
}

// IsService reports whether the caller holds the cross-tenant service role.
func IsService(c *gin.Context) bool {
	return c.GetString(ContextRole) == RoleService
}
