package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/showcase/backend/internal/engagement"
	"github.com/zfogg/showcase/backend/internal/leaderboard"
	"github.com/zfogg/showcase/backend/internal/websocket"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	engagement  *engagement.Service
	leaderboard *leaderboard.Ranker
	wsHandler   *websocket.Handler
	checks      map[string]HealthCheck
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc *engagement.Service, ranker *leaderboard.Ranker) *Handlers {
	return &Handlers{
		engagement:  svc,
		leaderboard: ranker,
		checks:      make(map[string]HealthCheck),
	}
}

// SetWebSocketHandler sets the WebSocket handler for live engagement updates
func (h *Handlers) SetWebSocketHandler(ws *websocket.Handler) {
	h.wsHandler = ws
}

// AddHealthCheck registers a dependency probe reported by /health
func (h *Handlers) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// RegisterRoutes mounts the API on router. auth guards every /api/v1 route
// except the websocket, which authenticates its own upgrade request.
func (h *Handlers) RegisterRoutes(router *gin.Engine, auth gin.HandlerFunc) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	if h.wsHandler != nil {
		api.GET("/ws", h.wsHandler.HandleWebSocket)
		api.GET("/ws/metrics", h.wsHandler.HandleMetrics)
	}

	authed := api.Group("", auth)
	{
		posts := authed.Group("/posts/:id")
		posts.POST("/view", h.TrackView)
		posts.POST("/share", h.TrackShare)
		posts.POST("/endorsements", h.SubmitEndorsement)
		posts.GET("/endorsements", h.GetEndorsements)
		posts.GET("/engagement", h.GetPostEngagement)

		authed.GET("/leaderboard", h.GetLeaderboard)
	}
}
