package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"immo-backoffice/internal/logger"
	"immo-backoffice/internal/service"
)

const (
	claimsKey    = "jwt_claims"
	bearerPrefix = "Bearer "
)

// Middleware rejects requests without a valid bearer token and stores the
// claims in the context
func Middleware(v *Verifier, base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}

		claims, err := v.Verify(token)
		if err != nil {
			logger.FromGin(c, base).Info("token rejected", zap.Error(err))
			abortUnauthorized(c, err.Error())
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin lets only admin tokens through. It must run after Middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "admin role required",
			})
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Middleware
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

// CallerFrom converts the request's claims into a match caller
func CallerFrom(c *gin.Context) (service.Caller, bool) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return service.Caller{}, false
	}
	return service.Caller{OrganizationID: claims.OrganizationID, Admin: claims.IsAdmin()}, true
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   msg,
	})
}
