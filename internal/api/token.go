// token.go issues the bearer tokens the rest of /api/v1 requires. Credential
// checks are deliberately uniform: unknown username, wrong password, and a
// deactivated account all produce the same 401 so the endpoint leaks nothing
// about which usernames exist.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/db/repositories"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenHandler verifies a username/password pair against the user directory
// and mints a signed bearer token valid for ttl.
func tokenHandler(userRepo *repositories.UserRepository, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req tokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "invalid request body: " + err.Error(),
			})
			return
		}
		if req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"message": "username and password are required",
			})
			return
		}

		user, err := userRepo.GetByUsername(c.Request.Context(), req.Username)
		if err != nil {
			slog.Error("user lookup failed during token issuance", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "internal server error",
			})
			return
		}
		if user == nil || !user.Active ||
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "invalid credentials",
			})
			return
		}

		token, err := auth.GenerateToken(user.ID, ttl)
		if err != nil {
			slog.Error("token signing failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "internal server error",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"token":      token,
			"token_type": "Bearer",
			"expires_in": int(ttl.Seconds()),
		})
	}
}
