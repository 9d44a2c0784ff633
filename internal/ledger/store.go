// Package ledger is the append-only record of accepted engagement events.
// It is the source of truth for deduplication, cooldowns, rate limits and
// every derived count.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/zfogg/showcase/backend/internal/models"
)

// ErrUnavailable wraps any failure of the underlying store. Callers may retry.
var ErrUnavailable = errors.New("ledger store unavailable")

// Store is the ledger persistence contract. Append is the only write besides
// the retention purge.
type Store interface {
	// Append persists ev, assigning an insertion-ordered ID when ev.ID is empty
	Append(ctx context.Context, ev *models.EngagementEvent) (string, error)

	// QueryByPost returns every event on postID in insertion order
	QueryByPost(ctx context.Context, postID string) ([]models.EngagementEvent, error)

	// QueryByUser returns events performed by userID; an empty kind matches all kinds
	QueryByUser(ctx context.Context, userID string, kind models.EventKind) ([]models.EngagementEvent, error)

	// QueryRecent returns events on postID with OccurredAt >= since
	QueryRecent(ctx context.Context, postID string, since time.Time) ([]models.EngagementEvent, error)

	// QuerySince returns every event with OccurredAt >= since in insertion order
	QuerySince(ctx context.Context, since time.Time) ([]models.EngagementEvent, error)

	// LastEvent returns the newest event of kind by userID on postID, or nil
	LastEvent(ctx context.Context, userID, postID string, kind models.EventKind) (*models.EngagementEvent, error)

	// CountByUserSince counts events of kind by userID with OccurredAt >= since
	CountByUserSince(ctx context.Context, userID string, kind models.EventKind, since time.Time) (int64, error)

	// PurgeBefore deletes events of the given kinds older than cutoff
	PurgeBefore(ctx context.Context, cutoff time.Time, kinds ...models.EventKind) (int64, error)
}

// NewEventID returns a ULID string. Lexical order follows creation order.
func NewEventID() string {
	return ulid.Make().String()
}

func kindMatches(ev *models.EngagementEvent, kind models.EventKind) bool {
	return kind == "" || ev.Kind == kind
}
