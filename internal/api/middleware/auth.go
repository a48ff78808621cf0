package middleware

import (
	"strings"

	"civicdesk/backend/internal/api/respond"
	"civicdesk/backend/internal/apperr"
	"civicdesk/backend/internal/auth"
	"civicdesk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// Auth перевіряє JWT з заголовка Authorization. Браузерні WebSocket-клієнти
// не можуть задати заголовок, тому для них приймається параметр ?token=.
func Auth(tokens *auth.TokenIssuer, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			respond.Error(c, log, apperr.Unauthorized("missing_token", "authorization token missing"))
			return
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			respond.Error(c, log, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(log *zap.Logger, roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentUser(c)
		if claims == nil {
			respond.Error(c, log, apperr.Unauthorized("missing_token", "authorization token missing"))
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		respond.Error(c, log, apperr.Forbidden("forbidden", "role not allowed"))
	}
}

// CurrentUser returns the verified claims, or nil on unauthenticated routes.
func CurrentUser(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
