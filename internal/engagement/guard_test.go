package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/models"
)

func newTestGuard(cfg config.Engagement) (*Guard, *ledger.MemoryStore, *fakeClock) {
	store := ledger.NewMemoryStore()
	clock := newFakeClock()
	return NewGuard(store, cfg, clock.Now), store, clock
}

func TestGuard_ViewCooldown(t *testing.T) {
	g, store, clock := newTestGuard(config.DefaultEngagement())
	ctx := context.Background()

	d, err := g.CanRecordView(ctx, "p1", "viewer")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = store.Append(ctx, models.NewViewEvent("p1", "owner", "viewer", "", clock.Now()))
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	d, err = g.CanRecordView(ctx, "p1", "viewer")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonViewCooldown, d.Rejection.Reason)
	assert.Equal(t, "View already counted. Can count again in 20 minutes.", d.Rejection.Message)
	assert.Equal(t, 20*time.Minute, d.Rejection.RetryAfter)

	// Other posts and other viewers are unaffected
	d, err = g.CanRecordView(ctx, "p2", "viewer")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	d, err = g.CanRecordView(ctx, "p1", "someone-else")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGuard_ViewCooldownRoundsMinutesUp(t *testing.T) {
	g, store, clock := newTestGuard(config.DefaultEngagement())
	ctx := context.Background()
	_, err := store.Append(ctx, models.NewViewEvent("p1", "owner", "viewer", "", clock.Now()))
	require.NoError(t, err)

	clock.Advance(29*time.Minute + 30*time.Second)
	d, err := g.CanRecordView(ctx, "p1", "viewer")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, "View already counted. Can count again in 1 minutes.", d.Rejection.Message)
}

func TestGuard_ViewCooldownBoundaryIsInclusive(t *testing.T) {
	g, store, clock := newTestGuard(config.DefaultEngagement())
	ctx := context.Background()
	_, err := store.Append(ctx, models.NewViewEvent("p1", "owner", "viewer", "", clock.Now()))
	require.NoError(t, err)

	clock.Advance(30*time.Minute - time.Nanosecond)
	d, err := g.CanRecordView(ctx, "p1", "viewer")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	clock.Advance(time.Nanosecond)
	d, err = g.CanRecordView(ctx, "p1", "viewer")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGuard_RateLimit(t *testing.T) {
	cfg := config.DefaultEngagement()
	cfg.ViewRateLimit = 3
	g, store, clock := newTestGuard(cfg)
	ctx := context.Background()

	for i, post := range []string{"p1", "p2", "p3"} {
		d, err := g.CheckRateLimit(ctx, "viewer")
		require.NoError(t, err)
		require.True(t, d.Allowed, "view %d should be allowed", i+1)
		_, err = store.Append(ctx, models.NewViewEvent(post, "owner", "viewer", "", clock.Now()))
		require.NoError(t, err)
		clock.Advance(10 * time.Minute)
	}

	d, err := g.CheckRateLimit(ctx, "viewer")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonRateLimited, d.Rejection.Reason)
	assert.Equal(t, "You're viewing too fast. Please try again later.", d.Rejection.Message)
	// Oldest view was 30 minutes ago; it leaves the hour window in 30 minutes
	assert.Equal(t, 30*time.Minute, d.Rejection.RetryAfter)

	clock.Advance(31 * time.Minute)
	d, err = g.CheckRateLimit(ctx, "viewer")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestGuard_CanEndorse(t *testing.T) {
	g, store, clock := newTestGuard(config.DefaultEngagement())
	ctx := context.Background()

	d, err := g.CanEndorse(ctx, "p1", "owner", "owner")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonSelfEndorsement, d.Rejection.Reason)

	d, err = g.CanEndorse(ctx, "p1", "fan", "owner")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	_, err = store.Append(ctx, models.NewEndorsementEvent("p1", "fan", "owner", "great", clock.Now()))
	require.NoError(t, err)

	// Uniqueness never expires
	clock.Advance(365 * 24 * time.Hour)
	d, err = g.CanEndorse(ctx, "p1", "fan", "owner")
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, ReasonAlreadyEndorsed, d.Rejection.Reason)
	assert.Equal(t, "You already endorsed this post", d.Rejection.Message)

	d, err = g.CanEndorse(ctx, "p2", "fan", "owner")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
