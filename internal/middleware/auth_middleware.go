// internal/middleware/auth_middleware.go
package middleware

import (
	"strings"

	"qrconnect-service/internal/pkg/jwt"
	"qrconnect-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	jwtManager *jwt.Manager
}

func NewAuthMiddleware(jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager}
}

// Auth validates the bearer token and stores the account context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.jwtManager.Verify(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}

		c.Set("account_id", claims.AccountID)
		c.Set("roles", claims.Roles)
		c.Set("is_admin", claims.IsAdmin())

		c.Next()
	}
}

// RequireAdmin must be used after Auth().
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isAdmin, ok := c.Get("is_admin"); !ok || isAdmin != true {
			response.Forbidden(c, "admin role required")
			return
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// MustGetAccountID returns the authenticated account id; Auth() guarantees it.
func MustGetAccountID(c *gin.Context) int64 {
	v, _ := c.Get("account_id")
	id, _ := v.(int64)
	return id
}
