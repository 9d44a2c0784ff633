package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zfogg/showcase/backend/internal/fanout"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements custom unmarshaling for timestamps
func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON always outputs RFC3339
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Message types for WebSocket communication
const (
	// System messages
	MessageTypeSystem = "system"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"
	MessageTypeAuth   = "auth"

	// Post subscriptions
	MessageTypeWatchPost   = "watch_post"
	MessageTypeUnwatchPost = "unwatch_post"
	MessageTypeWatching    = "watching"

	// Real-time updates
	MessageTypeEngagementUpdate = "engagement_update"
)

// Message represents a WebSocket message
type Message struct {
	// Type identifies the message type for routing
	Type string `json:"type"`

	Payload interface{} `json:"payload,omitempty"`

	// ID is a unique message identifier for acknowledgment
	ID string `json:"id,omitempty"`

	// ReplyTo references the original message ID for responses
	ReplyTo string `json:"reply_to,omitempty"`

	// Timestamp accepts Unix ms or RFC3339 on input
	Timestamp FlexibleTime `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewReply creates a reply message to an original message
func NewReply(original *Message, msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		ReplyTo:   original.ID,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(code string, message string) *Message {
	return &Message{
		Type: MessageTypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// ErrorPayload represents an error message payload
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PingPayload represents a ping message payload
type PingPayload struct {
	ClientTime int64 `json:"client_time"`
}

// PongPayload represents a pong message payload
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

// AuthPayload represents authentication message payload
type AuthPayload struct {
	UserID string `json:"user_id,omitempty"`
	Status string `json:"status,omitempty"`
}

// SystemPayload represents system event payloads
type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// WatchPayload is sent by clients with watch_post and unwatch_post
type WatchPayload struct {
	PostID string `json:"post_id"`
}

// WatchingPayload acknowledges a watch change with the client's full set
type WatchingPayload struct {
	PostIDs []string `json:"post_ids"`
}

// EngagementUpdatePayload carries a post's counters after an accepted event
type EngagementUpdatePayload struct {
	EventID          string `json:"event_id"`
	PostID           string `json:"post_id"`
	OwnerID          string `json:"owner_id"`
	ActorID          string `json:"actor_id"`
	Kind             string `json:"kind"`
	ViewCount        int64  `json:"view_count"`
	ShareCount       int64  `json:"share_count"`
	EndorsementCount int64  `json:"endorsement_count"`
	EngagementScore  int64  `json:"engagement_score"`
	OccurredAt       int64  `json:"occurred_at"`
}

// NewEngagementUpdatePayload flattens a fan-out update for clients
func NewEngagementUpdatePayload(u fanout.Update) EngagementUpdatePayload {
	e := u.Engagement
	return EngagementUpdatePayload{
		EventID:          u.EventID,
		PostID:           u.PostID,
		OwnerID:          u.OwnerID,
		ActorID:          u.ActorID,
		Kind:             string(u.Kind),
		ViewCount:        e.ViewCount,
		ShareCount:       e.ShareCount,
		EndorsementCount: e.EndorsementCount,
		EngagementScore:  e.Score(),
		OccurredAt:       u.At.UnixMilli(),
	}
}

// ParsePayload unmarshals the payload into a specific type
func (m *Message) ParsePayload(target interface{}) error {
	if m.Payload == nil {
		return nil
	}

	// Payload arrives as a generic map; round-trip it into the target
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
