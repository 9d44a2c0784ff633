package retention

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
	"github.com/zfogg/showcase/backend/internal/models"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", os.DevNull)
	os.Exit(m.Run())
}

var now = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	old := now.Add(-31 * 24 * time.Hour)
	events := []*models.EngagementEvent{
		models.NewViewEvent("p1", "owner", "a", "", old),
		models.NewShareEvent("p1", "owner", "a", models.PlatformLink, old),
		models.NewEndorsementEvent("p1", "a", "owner", "still counts", old),
		models.NewViewEvent("p1", "owner", "b", "", now.Add(-time.Hour)),
	}
	for _, ev := range events {
		_, err := store.Append(ctx, ev)
		require.NoError(t, err)
	}
}

func TestSweepOnce_PurgesViewsAndSharesOnly(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store)

	s := NewSweeper(store, 30*24*time.Hour, time.Hour, func() time.Time { return now })
	purged, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	remaining, err := store.QueryByPost(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, models.KindEndorsement, remaining[0].Kind)
	assert.Equal(t, "b", remaining[1].ActorID)

	// A second sweep finds nothing new
	purged, err = s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, purged)
}

func TestSweeper_StartRunsImmediately(t *testing.T) {
	store := ledger.NewMemoryStore()
	seed(t, store)

	s := NewSweeper(store, 30*24*time.Hour, time.Hour, func() time.Time { return now })
	s.Start()

	assert.Eventually(t, func() bool { return store.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
}
