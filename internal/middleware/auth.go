package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/util"
	"go.uber.org/zap"
)

// DeviceHeader carries the optional client device fingerprint
const DeviceHeader = "X-Device-Fingerprint"

// Auth validates the bearer session token. On success the user id is stored
// in the gin context and, with the device fingerprint, in the request context
// the engagement service reads from.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			util.RespondUnauthorized(c, "Authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			util.RespondUnauthorized(c, "Invalid authorization header format")
			return
		}

		userID, err := identity.ParseToken(secret, parts[1])
		if err != nil {
			logger.Log.Debug("Token rejected", logger.WithIP(c.ClientIP()), zap.Error(err))
			util.RespondUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(util.UserIDKey, userID)

		ctx := identity.WithUser(c.Request.Context(), userID)
		if fp := strings.TrimSpace(c.GetHeader(DeviceHeader)); fp != "" {
			ctx = identity.WithDevice(ctx, fp)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
