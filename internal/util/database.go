package util

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
	"go.uber.org/zap"
)

// HandleStoreError responds to a storage failure. An unavailable store maps
// to 503 so clients know to retry; anything else is a 500.
// Returns true if a response was sent.
func HandleStoreError(c *gin.Context, err error, what string) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ledger.ErrUnavailable) {
		logger.Log.Warn("Store unavailable", zap.String("op", what), zap.Error(err))
		RespondServiceUnavailable(c, "engagement store")
		return true
	}

	logger.Log.Error("Store error", zap.String("op", what), zap.Error(err))
	RespondInternalError(c, "Failed to "+what)
	return true
}
