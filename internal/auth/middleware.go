package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// claimsContextKey is the gin context key the validated claims live under
const claimsContextKey = "auth_claims"

// Middleware returns a gin middleware enforcing a valid bearer token
func Middleware(manager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
			return
		}

		claims, err := manager.ValidateToken(parts[1])
		if err != nil {
			status := http.StatusUnauthorized
			message := "invalid token"
			if err == ErrTokenExpired {
				message = "token expired"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": message})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// ClaimsFrom extracts the validated claims from a request context
func ClaimsFrom(c *gin.Context) (*UserClaims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*UserClaims)
	return claims, ok
}
