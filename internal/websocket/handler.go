package websocket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/logger"
	"go.uber.org/zap"
)

// Handler handles WebSocket HTTP upgrade requests
type Handler struct {
	hub       *Hub
	jwtSecret []byte

	// OriginPatterns are passed to websocket.Accept; empty skips the check
	OriginPatterns []string
}

// NewHandler creates a new WebSocket handler and registers the watch handlers
func NewHandler(hub *Hub, jwtSecret []byte) *Handler {
	h := &Handler{
		hub:       hub,
		jwtSecret: jwtSecret,
	}
	h.RegisterDefaultHandlers()
	return h
}

// HandleWebSocket handles WebSocket upgrade requests.
// Authentication is done via JWT token in query param: ?token=...
// Or via Authorization header: Bearer <token>
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, err := h.authenticateRequest(c)
	if err != nil {
		logger.Log.Debug("WebSocket auth failed", logger.WithIP(c.ClientIP()), zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "authentication_failed",
			"message": err.Error(),
		})
		return
	}

	conn, err := websocket.Accept(newUpgradeWriter(c.Writer), c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: len(h.OriginPatterns) == 0,
		OriginPatterns:     h.OriginPatterns,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", logger.WithUserID(userID), zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, userID)
	client.RemoteAddr = c.ClientIP()
	client.UserAgent = c.GetHeader("User-Agent")

	h.hub.Register(client)

	_ = client.Send(NewMessage(MessageTypeSystem, SystemPayload{
		Event:   "connected",
		Message: "Welcome to Showcase!",
		Data: map[string]interface{}{
			"user_id":     userID,
			"connections": h.hub.GetUserConnectionCount(userID),
			"server_time": time.Now().UTC().UnixMilli(),
		},
	}))

	go client.WritePump()
	client.ReadPump() // blocks until the client disconnects
}

// upgradeWriter sends the 101 to the server's writer and hijacks through gin,
// so gin marks the response as taken without writing a header of its own.
// Passing c.Writer directly fails: Accept flushes gin's header first and
// gin then refuses the hijack.
type upgradeWriter struct {
	gin gin.ResponseWriter
	raw http.ResponseWriter
}

func newUpgradeWriter(w gin.ResponseWriter) *upgradeWriter {
	var raw http.ResponseWriter = w
	for {
		u, ok := raw.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			break
		}
		raw = u.Unwrap()
	}
	return &upgradeWriter{gin: w, raw: raw}
}

func (w *upgradeWriter) Header() http.Header {
	return w.gin.Header()
}

func (w *upgradeWriter) Write(b []byte) (int, error) {
	return w.gin.Write(b)
}

func (w *upgradeWriter) WriteHeader(code int) {
	w.gin.WriteHeader(code)
	if code == http.StatusSwitchingProtocols {
		w.raw.WriteHeader(code)
	}
}

func (w *upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.gin.Hijack()
}

// authenticateRequest extracts and validates the session token
func (h *Handler) authenticateRequest(c *gin.Context) (string, error) {
	tokenString := c.Query("token")

	if auth := c.GetHeader("Authorization"); auth != "" {
		tokenString = strings.TrimPrefix(auth, "Bearer ")
	}

	if tokenString == "" {
		return "", errors.New("no authentication token provided")
	}

	return identity.ParseToken(h.jwtSecret, tokenString)
}

// HandleMetrics returns WebSocket metrics (for monitoring)
func (h *Handler) HandleMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket": h.hub.GetMetrics(),
		"timestamp": time.Now().UTC(),
	})
}

// RegisterDefaultHandlers registers the post watch handlers
func (h *Handler) RegisterDefaultHandlers() {
	h.hub.RegisterHandler(MessageTypeWatchPost, func(client *Client, msg *Message) error {
		postID, err := watchTarget(msg)
		if err != nil {
			return err
		}
		if err := h.hub.Watch(client, postID); err != nil {
			return err
		}
		return client.Send(NewReply(msg, MessageTypeWatching, WatchingPayload{PostIDs: h.hub.Watching(client)}))
	})

	h.hub.RegisterHandler(MessageTypeUnwatchPost, func(client *Client, msg *Message) error {
		postID, err := watchTarget(msg)
		if err != nil {
			return err
		}
		h.hub.Unwatch(client, postID)
		return client.Send(NewReply(msg, MessageTypeWatching, WatchingPayload{PostIDs: h.hub.Watching(client)}))
	})
}

func watchTarget(msg *Message) (string, error) {
	var payload WatchPayload
	if err := msg.ParsePayload(&payload); err != nil {
		return "", fmt.Errorf("invalid %s payload: %w", msg.Type, err)
	}
	postID := strings.TrimSpace(payload.PostID)
	if postID == "" {
		return "", fmt.Errorf("%s requires post_id", msg.Type)
	}
	return postID, nil
}

// Shutdown gracefully shuts down the WebSocket handler
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.hub.Shutdown(ctx)
}

// GetHub returns the hub for external access
func (h *Handler) GetHub() *Hub {
	return h.hub
}
