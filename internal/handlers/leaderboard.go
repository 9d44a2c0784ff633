package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/errors"
	"github.com/zfogg/showcase/backend/internal/leaderboard"
	"github.com/zfogg/showcase/backend/internal/models"
	"github.com/zfogg/showcase/backend/internal/util"
)

// GetLeaderboard ranks users by engagement score
// GET /api/v1/leaderboard?limit=50&period=all|day|week|month
func (h *Handlers) GetLeaderboard(c *gin.Context) {
	limit, err := util.ParseBoundedInt(c.Query("limit"), leaderboard.DefaultLimit, 1, leaderboard.MaxLimit)
	if err != nil {
		util.RespondWithAPIError(c, errors.ValidationError("limit", err.Error()))
		return
	}

	period, err := leaderboard.ParsePeriod(c.Query("period"))
	if err != nil {
		util.RespondWithAPIError(c, errors.ValidationError("period", err.Error()))
		return
	}

	entries, err := h.leaderboard.Rank(c.Request.Context(), limit, period)
	if util.HandleStoreError(c, err, "compute leaderboard") {
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"period":  period,
		"limit":   limit,
		"entries": entries,
	})
}
