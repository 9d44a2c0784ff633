package models

import (
	"strings"
	"time"
	"unicode/utf8"
)

// EventKind discriminates the engagement events stored in the ledger
type EventKind string

const (
	KindView        EventKind = "view"
	KindShare       EventKind = "share"
	KindEndorsement EventKind = "endorsement"
)

// Valid reports whether k is a known event kind
func (k EventKind) Valid() bool {
	switch k {
	case KindView, KindShare, KindEndorsement:
		return true
	}
	return false
}

// SharePlatform is where a post was shared to
type SharePlatform string

const (
	PlatformWhatsApp SharePlatform = "whatsapp"
	PlatformLink     SharePlatform = "link"
	PlatformOther    SharePlatform = "other"
)

// ParsePlatform normalizes a client-supplied platform. Empty input means "other";
// anything unrecognized returns ok=false.
func ParsePlatform(raw string) (SharePlatform, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return PlatformOther, true
	case string(PlatformWhatsApp):
		return PlatformWhatsApp, true
	case string(PlatformLink):
		return PlatformLink, true
	case string(PlatformOther):
		return PlatformOther, true
	}
	return "", false
}

// EngagementEvent is one accepted view, share or endorsement.
// Rows are append-only; the only delete path is the retention sweep.
type EngagementEvent struct {
	// ULID, so lexical order is insertion order
	ID   string    `gorm:"primaryKey;size:26" json:"id"`
	Kind EventKind `gorm:"size:16;not null;index:idx_events_actor_post_kind,priority:3" json:"kind"`

	PostID  string `gorm:"not null;index:idx_events_post,priority:1;index:idx_events_actor_post_kind,priority:2" json:"post_id"`
	ActorID string `gorm:"not null;index:idx_events_actor_post_kind,priority:1" json:"actor_id"` // viewer, sharer or endorser
	OwnerID string `gorm:"not null;index" json:"owner_id"`                                      // post owner; endorsement target

	Platform          SharePlatform `gorm:"size:16" json:"platform,omitempty"`
	Message           string        `gorm:"type:text" json:"message,omitempty"`
	DeviceFingerprint string        `gorm:"size:128" json:"device_fingerprint,omitempty"`

	OccurredAt time.Time `gorm:"not null;index;index:idx_events_actor_post_kind,priority:4" json:"occurred_at"`
}

// TableName specifies the table name
func (EngagementEvent) TableName() string {
	return "engagement_events"
}

// MaxDeviceFingerprintLen is the size of the device_fingerprint column in bytes
const MaxDeviceFingerprintLen = 128

// NewViewEvent builds a view of postID by viewerID. The fingerprint is
// clipped to fit its column so it can never fail the insert.
func NewViewEvent(postID, ownerID, viewerID, deviceFingerprint string, at time.Time) *EngagementEvent {
	return &EngagementEvent{
		Kind:              KindView,
		PostID:            postID,
		ActorID:           viewerID,
		OwnerID:           ownerID,
		DeviceFingerprint: clipFingerprint(deviceFingerprint),
		OccurredAt:        at,
	}
}

func clipFingerprint(fp string) string {
	fp = strings.ToValidUTF8(fp, "")
	if len(fp) <= MaxDeviceFingerprintLen {
		return fp
	}
	cut := MaxDeviceFingerprintLen
	for cut > 0 && !utf8.RuneStart(fp[cut]) {
		cut--
	}
	return fp[:cut]
}

// NewShareEvent builds a share of postID by sharerID
func NewShareEvent(postID, ownerID, sharerID string, platform SharePlatform, at time.Time) *EngagementEvent {
	return &EngagementEvent{
		Kind:       KindShare,
		PostID:     postID,
		ActorID:    sharerID,
		OwnerID:    ownerID,
		Platform:   platform,
		OccurredAt: at,
	}
}

// NewEndorsementEvent builds an endorsement of toUserID's post by fromUserID
func NewEndorsementEvent(postID, fromUserID, toUserID, message string, at time.Time) *EngagementEvent {
	return &EngagementEvent{
		Kind:       KindEndorsement,
		PostID:     postID,
		ActorID:    fromUserID,
		OwnerID:    toUserID,
		Message:    message,
		OccurredAt: at,
	}
}
