// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request IDs, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	RequestID → Metrics → Logger → CORS → Security → RateLimit → Auth → Handler
//
// Rate limiting runs before auth to block brute-force attempts before any DB
// work. Auth resolves the acting user and stores an auth.Actor in the request
// context; handlers read the actor from there and never parse tokens
// themselves.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/db/repositories"
)

// AuthMiddleware validates the bearer token, resolves the acting user from the
// directory, and stores an auth.Actor in the request context. The actor's role
// is the user's CURRENT role: scope decisions always follow the directory,
// never a role captured inside an old token.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil || !user.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found or deactivated",
			})
			return
		}

		c.Set(auth.ActorContextKey, auth.Actor{
			ID:        user.ID,
			Role:      auth.Role(user.Role),
			Name:      user.FullName,
			IPAddress: c.ClientIP(),
		})
		c.Next()
	}
}
