package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: databases are per connection
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.EngagementEvent{}))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func stores(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"gorm":   func(t *testing.T) Store { return NewGormStore(setupTestDB(t)) },
	}
}

func appendAll(t *testing.T, s Store, events ...*models.EngagementEvent) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		id, err := s.Append(context.Background(), ev)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestStore_AppendAssignsOrderedIDs(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ids := appendAll(t, s,
				models.NewViewEvent("post-1", "owner", "viewer-a", "", base),
				models.NewViewEvent("post-1", "owner", "viewer-b", "", base.Add(time.Minute)),
				models.NewShareEvent("post-1", "owner", "viewer-a", models.PlatformLink, base.Add(2*time.Minute)),
			)

			for _, id := range ids {
				assert.Len(t, id, 26)
			}

			events, err := s.QueryByPost(context.Background(), "post-1")
			require.NoError(t, err)
			require.Len(t, events, 3)
			for i, ev := range events {
				assert.Equal(t, ids[i], ev.ID)
			}
			assert.Equal(t, models.KindShare, events[2].Kind)
			assert.Equal(t, models.PlatformLink, events[2].Platform)
		})
	}
}

func TestStore_AppendKeepsExplicitID(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ev := models.NewViewEvent("post-1", "owner", "viewer", "", base)
			ev.ID = NewEventID()
			want := ev.ID

			id, err := s.Append(context.Background(), ev)
			require.NoError(t, err)
			assert.Equal(t, want, id)
		})
	}
}

func TestStore_QueryByUser(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			appendAll(t, s,
				models.NewViewEvent("post-1", "owner", "alice", "", base),
				models.NewViewEvent("post-2", "owner", "alice", "", base),
				models.NewEndorsementEvent("post-1", "alice", "owner", "great", base),
				models.NewViewEvent("post-1", "owner", "bob", "", base),
			)

			all, err := s.QueryByUser(context.Background(), "alice", "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			views, err := s.QueryByUser(context.Background(), "alice", models.KindView)
			require.NoError(t, err)
			assert.Len(t, views, 2)

			none, err := s.QueryByUser(context.Background(), "carol", "")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_QueryRecentBoundary(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			appendAll(t, s,
				models.NewViewEvent("post-1", "owner", "a", "", base.Add(-25*time.Hour)),
				models.NewViewEvent("post-1", "owner", "b", "", base.Add(-24*time.Hour)),
				models.NewViewEvent("post-1", "owner", "c", "", base.Add(-time.Hour)),
				models.NewViewEvent("post-2", "owner", "d", "", base),
			)

			recent, err := s.QueryRecent(context.Background(), "post-1", base.Add(-24*time.Hour))
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "b", recent[0].ActorID)
			assert.Equal(t, "c", recent[1].ActorID)

			since, err := s.QuerySince(context.Background(), base.Add(-24*time.Hour))
			require.NoError(t, err)
			assert.Len(t, since, 3)
		})
	}
}

func TestStore_LastEvent(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()

			last, err := s.LastEvent(ctx, "alice", "post-1", models.KindView)
			require.NoError(t, err)
			assert.Nil(t, last)

			appendAll(t, s,
				models.NewViewEvent("post-1", "owner", "alice", "", base),
				models.NewViewEvent("post-1", "owner", "alice", "", base.Add(40*time.Minute)),
				models.NewViewEvent("post-2", "owner", "alice", "", base.Add(50*time.Minute)),
			)

			last, err = s.LastEvent(ctx, "alice", "post-1", models.KindView)
			require.NoError(t, err)
			require.NotNil(t, last)
			assert.True(t, last.OccurredAt.Equal(base.Add(40*time.Minute)))

			last, err = s.LastEvent(ctx, "alice", "post-1", models.KindEndorsement)
			require.NoError(t, err)
			assert.Nil(t, last)
		})
	}
}

func TestStore_CountByUserSince(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			for i := 0; i < 5; i++ {
				appendAll(t, s, models.NewViewEvent("post-1", "owner", "alice", "", base.Add(time.Duration(i)*20*time.Minute)))
			}
			appendAll(t, s, models.NewShareEvent("post-1", "owner", "alice", models.PlatformOther, base.Add(90*time.Minute)))

			n, err := s.CountByUserSince(context.Background(), "alice", models.KindView, base.Add(40*time.Minute))
			require.NoError(t, err)
			assert.Equal(t, int64(3), n)

			n, err = s.CountByUserSince(context.Background(), "alice", "", base)
			require.NoError(t, err)
			assert.Equal(t, int64(6), n)
		})
	}
}

func TestStore_PurgeBefore(t *testing.T) {
	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			ctx := context.Background()
			old := base.Add(-40 * 24 * time.Hour)
			appendAll(t, s,
				models.NewViewEvent("post-1", "owner", "a", "", old),
				models.NewShareEvent("post-1", "owner", "a", models.PlatformWhatsApp, old),
				models.NewEndorsementEvent("post-1", "a", "owner", "solid work", old),
				models.NewViewEvent("post-1", "owner", "b", "", base),
			)

			purged, err := s.PurgeBefore(ctx, base.Add(-30*24*time.Hour), models.KindView, models.KindShare)
			require.NoError(t, err)
			assert.Equal(t, int64(2), purged)

			events, err := s.QueryByPost(ctx, "post-1")
			require.NoError(t, err)
			require.Len(t, events, 2)
			assert.Equal(t, models.KindEndorsement, events[0].Kind)
			assert.Equal(t, "b", events[1].ActorID)

			// Indexes are rebuilt after a purge
			last, err := s.LastEvent(ctx, "a", "post-1", models.KindEndorsement)
			require.NoError(t, err)
			require.NotNil(t, last)
			assert.Equal(t, "solid work", last.Message)
		})
	}
}

func TestGormStore_ClosedDatabaseIsUnavailable(t *testing.T) {
	db := setupTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	s := NewGormStore(db)
	_, err = s.Append(context.Background(), models.NewViewEvent("post-1", "owner", "a", "", base))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.LastEvent(context.Background(), "a", "post-1", models.KindView)
	assert.ErrorIs(t, err, ErrUnavailable)
}
