package util

import (
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultUnavailableRetry is the Retry-After hint sent with 503 responses
const DefaultUnavailableRetry = 5 * time.Second

// UserIDKey is the gin context key the auth middleware sets
const UserIDKey = "user_id"

// GetUserIDFromContext extracts the user ID from the Gin context.
// If the user is not authenticated, it responds with 401 Unauthorized.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID := c.GetString(UserIDKey)
	if userID == "" {
		RespondUnauthorized(c)
		return "", false
	}
	return userID, true
}
