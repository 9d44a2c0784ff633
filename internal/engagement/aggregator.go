package engagement

import (
	"context"
	"time"

	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/models"
)

// Aggregator owns the derived counters. Counts only go up, once per
// accepted event; unique and recent figures are scans over the ledger.
type Aggregator struct {
	ledger       ledger.Store
	counters     Counters
	recentWindow time.Duration
	now          func() time.Time
}

func NewAggregator(store ledger.Store, counters Counters, recentWindow time.Duration, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	if recentWindow <= 0 {
		recentWindow = 24 * time.Hour
	}
	return &Aggregator{ledger: store, counters: counters, recentWindow: recentWindow, now: now}
}

// OnEventAccepted folds one ledger event into the post counters and the
// owner's totals, returning the post's updated engagement
func (a *Aggregator) OnEventAccepted(ctx context.Context, ev *models.EngagementEvent) (models.PostEngagement, error) {
	return a.counters.Apply(ctx, ev)
}

// GetPostEngagement returns the live counters, zero-valued for unknown posts
func (a *Aggregator) GetPostEngagement(ctx context.Context, postID string) (models.PostEngagement, error) {
	return a.counters.PostEngagement(ctx, postID)
}

// GetUniqueViewers counts distinct viewers across the post's retained views
func (a *Aggregator) GetUniqueViewers(ctx context.Context, postID string) (int, error) {
	events, err := a.ledger.QueryByPost(ctx, postID)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	for _, ev := range events {
		if ev.Kind == models.KindView {
			seen[ev.ActorID] = struct{}{}
		}
	}
	return len(seen), nil
}

// MaxRecentWindowHours caps the trailing window of GetRecentViews
const MaxRecentWindowHours = 366 * 24

// GetRecentViews counts views in the trailing windowHours. A non-positive
// window uses the configured default; larger windows are clamped to
// MaxRecentWindowHours.
func (a *Aggregator) GetRecentViews(ctx context.Context, postID string, windowHours int) (int, error) {
	window := a.recentWindow
	if windowHours > 0 {
		window = time.Duration(min(windowHours, MaxRecentWindowHours)) * time.Hour
	}

	events, err := a.ledger.QueryRecent(ctx, postID, a.now().Add(-window))
	if err != nil {
		return 0, err
	}

	n := 0
	for _, ev := range events {
		if ev.Kind == models.KindView {
			n++
		}
	}
	return n, nil
}
