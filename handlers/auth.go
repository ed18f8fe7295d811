package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminTokenHeader carries the admin token when no bearer token is sent
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken rejects requests whose token does not match the bcrypt
// hash. An empty hash disables the guarded routes entirely.
func RequireAdminToken(tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			errorResponse(c, http.StatusServiceUnavailable, "ADMIN_DISABLED", "Admin token is not configured")
			return
		}

		token := c.GetHeader(AdminTokenHeader)
		if auth := c.GetHeader("Authorization"); token == "" && strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimPrefix(auth, "Bearer ")
		}
		if token == "" {
			errorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Admin token is required")
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
			errorResponse(c, http.StatusForbidden, "FORBIDDEN", "Invalid admin token")
			return
		}
		c.Next()
	}
}
