package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/engagement"
	"github.com/zfogg/showcase/backend/internal/errors"
	"github.com/zfogg/showcase/backend/internal/models"
	"github.com/zfogg/showcase/backend/internal/util"
)

// ?window_hours bounds; the upper bound is the default retention horizon
const (
	defaultWindowHours = 24
	maxWindowHours     = 720
)

// TrackView counts a view of a post. The optional X-Device-Fingerprint
// header is stored with the event.
// POST /api/v1/posts/:id/view
func (h *Handlers) TrackView(c *gin.Context) {
	outcome, err := h.engagement.TrackView(c.Request.Context(), c.Param("id"))
	h.respondOutcome(c, outcome, err, "track view")
}

// TrackShare counts a share of a post
// POST /api/v1/posts/:id/share
func (h *Handlers) TrackShare(c *gin.Context) {
	var req struct {
		Platform string `json:"platform"` // whatsapp, link or other; empty means other
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.RespondBadRequest(c, "Invalid request body")
			return
		}
	}

	outcome, err := h.engagement.TrackShare(c.Request.Context(), c.Param("id"), req.Platform)
	h.respondOutcome(c, outcome, err, "track share")
}

// SubmitEndorsement endorses the owner of a post
// POST /api/v1/posts/:id/endorsements
func (h *Handlers) SubmitEndorsement(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "Invalid request body")
		return
	}

	outcome, err := h.engagement.SubmitEndorsement(c.Request.Context(), c.Param("id"), req.Message)
	h.respondOutcome(c, outcome, err, "submit endorsement")
}

// respondOutcome writes 201 for an accepted event, the mapped API error for a
// rejection, and 503/500 for store failures
func (h *Handlers) respondOutcome(c *gin.Context, outcome *engagement.Outcome, err error, op string) {
	if util.HandleStoreError(c, err, op) {
		return
	}

	if r := outcome.Rejection; r != nil {
		util.RespondWithAPIError(c, errors.FromRejection(string(r.Reason), r.Message, r.RetryAfter))
		return
	}

	c.JSON(http.StatusCreated, outcome)
}

// GetEndorsements lists a post's endorsements, newest first
// GET /api/v1/posts/:id/endorsements
func (h *Handlers) GetEndorsements(c *gin.Context) {
	postID := c.Param("id")

	endorsements, err := h.engagement.Endorsements(c.Request.Context(), postID)
	if util.HandleStoreError(c, err, "list endorsements") {
		return
	}
	if endorsements == nil {
		endorsements = []models.EngagementEvent{}
	}

	c.JSON(http.StatusOK, gin.H{
		"post_id":      postID,
		"endorsements": endorsements,
		"count":        len(endorsements),
	})
}

// GetPostEngagement returns a post's counters plus unique and recent viewers
// GET /api/v1/posts/:id/engagement?window_hours=24
func (h *Handlers) GetPostEngagement(c *gin.Context) {
	postID := c.Param("id")

	windowHours, err := util.ParseBoundedInt(c.Query("window_hours"), defaultWindowHours, 1, maxWindowHours)
	if err != nil {
		util.RespondWithAPIError(c, errors.ValidationError("window_hours", err.Error()))
		return
	}

	ctx := c.Request.Context()
	counts, err := h.engagement.GetPostEngagement(ctx, postID)
	if util.HandleStoreError(c, err, "load engagement") {
		return
	}
	unique, err := h.engagement.GetUniqueViewers(ctx, postID)
	if util.HandleStoreError(c, err, "count unique viewers") {
		return
	}
	recent, err := h.engagement.GetRecentViews(ctx, postID, windowHours)
	if util.HandleStoreError(c, err, "count recent views") {
		return
	}

	counts.PostID = postID
	c.JSON(http.StatusOK, gin.H{
		"engagement":       counts,
		"engagement_score": counts.Score(),
		"unique_viewers":   unique,
		"recent_views":     recent,
		"window_hours":     windowHours,
	})
}
