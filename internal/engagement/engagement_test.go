package engagement

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.Initialize("error", os.DevNull)
	os.Exit(m.Run())
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClock is a settable time source shared by the guard, aggregator and service
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: t0}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	svc      *Service
	clock    *fakeClock
	dir      *identity.StaticDirectory
	store    *ledger.MemoryStore
	counters *MemoryCounters
}

func newTestEnv(t *testing.T, cfg config.Engagement) *testEnv {
	t.Helper()
	env := &testEnv{
		clock:    newFakeClock(),
		dir:      identity.NewStaticDirectory(),
		store:    ledger.NewMemoryStore(),
		counters: NewMemoryCounters(),
	}

	svc, err := NewService(Dependencies{
		Ledger:   env.store,
		Counters: env.counters,
		Posts:    env.dir,
		Clock:    env.clock.Now,
		Config:   cfg,
	})
	require.NoError(t, err)
	env.svc = svc
	return env
}

func as(userID string) context.Context {
	return identity.WithUser(context.Background(), userID)
}
