package engagement

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/models"
)

// Decision is the guard's verdict. Rejection is set when Allowed is false.
type Decision struct {
	Allowed   bool
	Rejection *Rejection
}

var allow = Decision{Allowed: true}

func deny(r *Rejection) Decision {
	return Decision{Rejection: r}
}

// Guard enforces the stateful rules: view cooldowns, the per-user view rate
// limit and endorsement uniqueness. It keeps no state of its own; every
// answer comes from the ledger.
type Guard struct {
	ledger     ledger.Store
	cooldown   time.Duration
	rateLimit  int
	rateWindow time.Duration
	now        func() time.Time
}

// NewGuard creates a guard over store using cfg's limits
func NewGuard(store ledger.Store, cfg config.Engagement, now func() time.Time) *Guard {
	if now == nil {
		now = time.Now
	}
	return &Guard{
		ledger:     store,
		cooldown:   cfg.ViewCooldown,
		rateLimit:  cfg.ViewRateLimit,
		rateWindow: cfg.ViewRateWindow,
		now:        now,
	}
}

// CanRecordView allows a view unless userID's last view of postID is younger
// than the cooldown. A view exactly one cooldown later is allowed.
func (g *Guard) CanRecordView(ctx context.Context, postID, userID string) (Decision, error) {
	last, err := g.ledger.LastEvent(ctx, userID, postID, models.KindView)
	if err != nil {
		return Decision{}, err
	}
	if last == nil {
		return allow, nil
	}

	elapsed := g.now().Sub(last.OccurredAt)
	if elapsed >= g.cooldown {
		return allow, nil
	}

	remaining := g.cooldown - elapsed
	minutes := int(math.Ceil(remaining.Minutes()))
	r := reject(ReasonViewCooldown, fmt.Sprintf("View already counted. Can count again in %d minutes.", minutes))
	r.RetryAfter = remaining
	return deny(r), nil
}

// CheckRateLimit allows a view while userID has fewer than the limit of
// views across all posts in the trailing window.
func (g *Guard) CheckRateLimit(ctx context.Context, userID string) (Decision, error) {
	now := g.now()
	since := now.Add(-g.rateWindow)

	count, err := g.ledger.CountByUserSince(ctx, userID, models.KindView, since)
	if err != nil {
		return Decision{}, err
	}
	if count < int64(g.rateLimit) {
		return allow, nil
	}

	r := reject(ReasonRateLimited, "You're viewing too fast. Please try again later.")
	r.RetryAfter = g.rateLimitRetryAfter(ctx, userID, since, now)
	return deny(r), nil
}

// rateLimitRetryAfter returns when enough views age out of the window for
// one more to fit. Falls back to the whole window if the scan fails.
func (g *Guard) rateLimitRetryAfter(ctx context.Context, userID string, since, now time.Time) time.Duration {
	views, err := g.ledger.QueryByUser(ctx, userID, models.KindView)
	if err != nil {
		return g.rateWindow
	}

	var inWindow []time.Time
	for _, v := range views {
		if !v.OccurredAt.Before(since) {
			inWindow = append(inWindow, v.OccurredAt)
		}
	}
	if len(inWindow) < g.rateLimit {
		return time.Second
	}
	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Before(inWindow[j]) })

	frees := inWindow[len(inWindow)-g.rateLimit].Add(g.rateWindow)
	if wait := frees.Sub(now); wait > 0 {
		return wait
	}
	return time.Second
}

// CanEndorse allows an endorsement unless userID owns the post or has
// endorsed it before. Uniqueness is permanent.
func (g *Guard) CanEndorse(ctx context.Context, postID, userID, postOwnerID string) (Decision, error) {
	if userID == postOwnerID {
		return deny(reject(ReasonSelfEndorsement, "You can't endorse your own work")), nil
	}

	prior, err := g.ledger.LastEvent(ctx, userID, postID, models.KindEndorsement)
	if err != nil {
		return Decision{}, err
	}
	if prior != nil {
		return deny(reject(ReasonAlreadyEndorsed, "You already endorsed this post")), nil
	}
	return allow, nil
}
