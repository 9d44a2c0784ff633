// Package websocket pushes live engagement updates to connected clients.
// Uses github.com/coder/websocket - the modern, context-aware WebSocket library for Go.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zfogg/showcase/backend/internal/fanout"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxWatchedPosts caps how many posts one connection may watch
const MaxWatchedPosts = 100

// Hub maintains the set of active clients and the posts they watch.
type Hub struct {
	// Registered clients by user ID for targeted messaging
	clients map[string]map[*Client]struct{}

	// Every registered client
	allClients map[*Client]struct{}

	// Clients watching each post
	watchers map[string]map[*Client]struct{}

	mu sync.RWMutex

	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	handlers map[string]MessageHandler

	rateLimitConfig RateLimitConfig
}

// Metrics tracks WebSocket statistics
type Metrics struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesSent       atomic.Int64
	UpdatesPushed      atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// RateLimitConfig defines per-connection inbound message limits
type RateLimitConfig struct {
	// MessagesPerSecond is the sustained rate
	MessagesPerSecond rate.Limit
	// BurstSize allows short bursts above the rate
	BurstSize int
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessagesPerSecond: 10,
		BurstSize:         20,
	}
}

// MessageHandler processes incoming messages of a specific type
type MessageHandler func(client *Client, message *Message) error

// NewHub creates a new Hub instance
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:         make(map[string]map[*Client]struct{}),
		allClients:      make(map[*Client]struct{}),
		watchers:        make(map[string]map[*Client]struct{}),
		metrics:         &Metrics{},
		ctx:             ctx,
		cancel:          cancel,
		handlers:        make(map[string]MessageHandler),
		rateLimitConfig: DefaultRateLimitConfig(),
	}
}

// RegisterHandler registers a handler for a specific message type
func (h *Hub) RegisterHandler(msgType string, handler MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[msgType] = handler
	logger.Log.Debug("Registered websocket handler", zap.String("type", msgType))
}

// GetHandler returns the handler for a message type
func (h *Hub) GetHandler(msgType string) (MessageHandler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handler, ok := h.handlers[msgType]
	return handler, ok
}

// Start runs the hub loop in the background until Shutdown
func (h *Hub) Start() {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.Run()
	}()
}

// Run blocks until the hub is shut down, then closes every connection.
// Deliveries happen synchronously in PushToPost.
func (h *Hub) Run() {
	logger.Log.Info("WebSocket hub starting")
	<-h.ctx.Done()
	logger.Log.Info("WebSocket hub shutting down")
	h.shutdown()
}

// Register adds a client to the hub. Registering on a stopped hub cancels the client.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ctx.Err() != nil {
		client.cancel()
		return
	}

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[*Client]struct{})
	}
	h.clients[client.UserID][client] = struct{}{}
	h.allClients[client] = struct{}{}

	h.metrics.TotalConnections.Add(1)
	h.metrics.ActiveConnections.Add(1)
	metrics.Get().WebSocketConnections.Inc()

	logger.Log.Info("Client connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))
}

// Unregister removes a client from every index and cancels its pumps
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return
	}
	delete(h.allClients, client)

	if clients, ok := h.clients[client.UserID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.UserID)
		}
	}

	for postID := range client.watching {
		h.removeWatcherLocked(postID, client)
	}
	client.watching = nil

	client.cancel()

	h.metrics.ActiveConnections.Add(-1)
	metrics.Get().WebSocketConnections.Dec()

	logger.Log.Info("Client disconnected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.metrics.ActiveConnections.Load()))
}

func (h *Hub) removeWatcherLocked(postID string, client *Client) {
	if set, ok := h.watchers[postID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.watchers, postID)
		}
	}
}

// Watch subscribes a registered client to updates for postID
func (h *Hub) Watch(client *Client, postID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.allClients[client]; !ok {
		return fmt.Errorf("client not registered")
	}
	if _, ok := client.watching[postID]; ok {
		return nil
	}
	if len(client.watching) >= MaxWatchedPosts {
		return fmt.Errorf("watch limit of %d posts reached", MaxWatchedPosts)
	}

	if h.watchers[postID] == nil {
		h.watchers[postID] = make(map[*Client]struct{})
	}
	h.watchers[postID][client] = struct{}{}
	client.watching[postID] = struct{}{}
	return nil
}

// Unwatch removes a client's subscription to postID
func (h *Hub) Unwatch(client *Client, postID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := client.watching[postID]; !ok {
		return
	}
	delete(client.watching, postID)
	h.removeWatcherLocked(postID, client)
}

// Watching returns the sorted post ids a client watches
func (h *Hub) Watching(client *Client) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(client.watching))
	for id := range client.watching {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WatcherCount returns how many connections watch postID
func (h *Hub) WatcherCount(postID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[postID])
}

// deliverLocked queues data on a client without blocking. A client whose
// buffer is full is dropped. Caller holds h.mu.
func (h *Hub) deliverLocked(client *Client, data []byte) bool {
	select {
	case client.send <- data:
		h.metrics.MessagesSent.Add(1)
		return true
	default:
		h.metrics.ConnectionsDropped.Add(1)
		go h.Unregister(client)
		return false
	}
}

// PushToPost sends a message to everyone watching postID and to every
// connection of ownerID. A connection in both sets receives it once.
func (h *Hub) PushToPost(postID, ownerID string, message *Message) int {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Log.Error("Failed to marshal post update", zap.Error(err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.watchers[postID] {
		if h.deliverLocked(client, data) {
			delivered++
		}
	}
	if ownerID != "" {
		for client := range h.clients[ownerID] {
			if _, watching := h.watchers[postID][client]; watching {
				continue
			}
			if h.deliverLocked(client, data) {
				delivered++
			}
		}
	}
	return delivered
}

// EngagementListener adapts the hub to the fan-out broadcaster. It runs on
// the broadcaster's worker and never blocks on slow clients.
func (h *Hub) EngagementListener() fanout.Listener {
	return func(u fanout.Update) {
		msg := NewMessage(MessageTypeEngagementUpdate, NewEngagementUpdatePayload(u))
		n := h.PushToPost(u.PostID, u.OwnerID, msg)
		h.metrics.UpdatesPushed.Add(int64(n))
	}
}

// GetUserConnectionCount returns the number of connections for a user
func (h *Hub) GetUserConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// GetMetrics returns current WebSocket metrics
func (h *Hub) GetMetrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalConnections:   h.metrics.TotalConnections.Load(),
		ActiveConnections:  h.metrics.ActiveConnections.Load(),
		MessagesReceived:   h.metrics.MessagesReceived.Load(),
		MessagesSent:       h.metrics.MessagesSent.Load(),
		UpdatesPushed:      h.metrics.UpdatesPushed.Load(),
		Errors:             h.metrics.Errors.Load(),
		ConnectionsDropped: h.metrics.ConnectionsDropped.Load(),
	}
}

// MetricsSnapshot is a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesSent       int64 `json:"messages_sent"`
	UpdatesPushed      int64 `json:"updates_pushed"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

// String implements Stringer for MetricsSnapshot
func (m MetricsSnapshot) String() string {
	return fmt.Sprintf(
		"connections=%d/%d messages=rx:%d/tx:%d updates=%d errors=%d dropped=%d",
		m.ActiveConnections, m.TotalConnections,
		m.MessagesReceived, m.MessagesSent,
		m.UpdatesPushed, m.Errors, m.ConnectionsDropped,
	)
}

// Shutdown stops the hub loop and closes every connection
func (h *Hub) Shutdown(ctx context.Context) error {
	logger.Log.Info("Initiating WebSocket hub shutdown")

	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("WebSocket hub shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

// shutdown notifies and cancels all client connections
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	shutdownMsg := &Message{
		Type:      MessageTypeSystem,
		Payload:   SystemPayload{Event: "server_shutdown"},
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
	data, _ := json.Marshal(shutdownMsg)

	closed := len(h.allClients)
	for client := range h.allClients {
		select {
		case client.send <- data:
		default:
		}
		client.cancel()
		metrics.Get().WebSocketConnections.Dec()
	}

	h.clients = make(map[string]map[*Client]struct{})
	h.allClients = make(map[*Client]struct{})
	h.watchers = make(map[string]map[*Client]struct{})
	h.metrics.ActiveConnections.Store(0)

	logger.Log.Info("Closed connections during shutdown", zap.Int("count", closed))
}

// SetRateLimitConfig updates the limits applied to new connections
func (h *Hub) SetRateLimitConfig(config RateLimitConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitConfig = config
}

// GetRateLimitConfig returns the current rate limit configuration
func (h *Hub) GetRateLimitConfig() RateLimitConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rateLimitConfig
}
