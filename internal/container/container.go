// Package container wires the engagement engine for the server and CLI.
// It selects the storage driver, owns the fan-out and tears everything down
// in reverse order.
package container

import (
	"context"
	"strings"
	"sync"

	"github.com/zfogg/showcase/backend/internal/cache"
	"github.com/zfogg/showcase/backend/internal/config"
	"github.com/zfogg/showcase/backend/internal/database"
	"github.com/zfogg/showcase/backend/internal/engagement"
	"github.com/zfogg/showcase/backend/internal/fanout"
	"github.com/zfogg/showcase/backend/internal/identity"
	"github.com/zfogg/showcase/backend/internal/leaderboard"
	"github.com/zfogg/showcase/backend/internal/ledger"
	"github.com/zfogg/showcase/backend/internal/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Container holds all application dependencies
type Container struct {
	cfg *config.Config

	// Core infrastructure; db is nil for the memory driver, cache when Redis is off
	db    *gorm.DB
	cache *cache.RedisClient

	// Engagement storage
	ledger   ledger.Store
	counters engagement.Counters
	posts    identity.PostDirectory
	users    identity.UserDirectory
	static   *identity.StaticDirectory // memory driver only

	broadcaster *fanout.Broadcaster
	service     *engagement.Service
	ranker      *leaderboard.Ranker

	// Lifecycle hooks
	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates a new empty container
func New(cfg *config.Config) *Container {
	return &Container{
		cfg:          cfg,
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// Build creates a container with storage, fan-out, the optional Redis relay,
// the engagement service and the leaderboard ranker. On error everything
// already started is cleaned up.
func Build(cfg *config.Config) (*Container, error) {
	c := New(cfg)
	if err := c.initStorage(); err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}

	c.broadcaster = fanout.NewBroadcaster(cfg.Engagement.FanoutBuffer)
	c.broadcaster.Start()
	c.OnCleanup(c.broadcaster.Stop)

	c.initRelay()

	svc, err := engagement.NewService(engagement.Dependencies{
		Ledger:      c.ledger,
		Counters:    c.counters,
		Posts:       c.posts,
		Broadcaster: c.broadcaster,
		Config:      cfg.Engagement,
	})
	if err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}
	c.service = svc
	c.ranker = leaderboard.NewRanker(c.counters, c.ledger, c.users, nil)

	if err := c.Validate(); err != nil {
		_ = c.Cleanup(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Container) initStorage() error {
	if c.cfg.StoreDriver == config.DriverMemory {
		c.static = identity.NewStaticDirectory()
		c.ledger = ledger.NewMemoryStore()
		c.counters = engagement.NewMemoryCounters()
		c.posts = c.static
		c.users = c.static
		logger.Log.Warn("Using in-memory engagement store; data is lost on restart")
		return nil
	}

	db, err := database.Open(c.cfg)
	if err != nil {
		return err
	}
	c.db = db
	c.OnCleanup(func(context.Context) error { return database.Close(db) })

	if err := database.Migrate(db); err != nil {
		return err
	}

	dir := identity.NewGormDirectory(db)
	c.ledger = ledger.NewGormStore(db)
	c.counters = engagement.NewGormCounters(db)
	c.posts = dir
	c.users = dir
	return nil
}

// initRelay publishes accepted events to Redis when it is configured.
// Redis is optional: a failed connection is logged and skipped.
func (c *Container) initRelay() {
	if c.cfg.RedisHost == "" {
		return
	}

	client, err := cache.NewRedisClient(c.cfg.RedisHost, c.cfg.RedisPort, c.cfg.RedisPassword)
	if err != nil {
		logger.Log.Warn("Redis unavailable, cross-process relay disabled",
			zap.String("addr", c.cfg.RedisAddr()),
			zap.Error(err))
		return
	}
	c.cache = client
	c.OnCleanup(func(context.Context) error { return client.Close() })

	relay := fanout.NewRedisRelay(client, fanout.DefaultChannel)
	c.broadcaster.Subscribe(relay.Listener())
}

// Config returns the configuration the container was built from
func (c *Container) Config() *config.Config {
	return c.cfg
}

// DB returns the database connection, or nil for the memory driver
func (c *Container) DB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Cache returns the Redis client, or nil when Redis is off
func (c *Container) Cache() *cache.RedisClient {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache
}

func (c *Container) Ledger() ledger.Store {
	return c.ledger
}

// StaticDirectory returns the in-memory directory, or nil for database drivers
func (c *Container) StaticDirectory() *identity.StaticDirectory {
	return c.static
}

func (c *Container) Service() *engagement.Service {
	return c.service
}

func (c *Container) Ranker() *leaderboard.Ranker {
	return c.ranker
}

// OnCleanup registers a cleanup function to be called during shutdown.
// Cleanup functions are called in LIFO order.
func (c *Container) OnCleanup(fn func(context.Context) error) *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
	return c
}

// Cleanup performs graceful shutdown of all registered services. Every
// function runs even if an earlier one fails; the first error is returned.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	funcs := c.cleanupFuncs
	c.cleanupFuncs = nil
	c.mu.Unlock()

	var first error
	for i := len(funcs) - 1; i >= 0; i-- {
		if err := funcs[i](ctx); err != nil {
			logger.Log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Validate checks that all required dependencies are registered
func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	missingDeps := []string{}
	if c.ledger == nil {
		missingDeps = append(missingDeps, "ledger store")
	}
	if c.counters == nil {
		missingDeps = append(missingDeps, "engagement counters")
	}
	if c.posts == nil {
		missingDeps = append(missingDeps, "post directory")
	}
	if c.service == nil {
		missingDeps = append(missingDeps, "engagement service")
	}
	if c.ranker == nil {
		missingDeps = append(missingDeps, "leaderboard ranker")
	}

	if len(missingDeps) > 0 {
		return &MissingDependenciesError{Deps: missingDeps}
	}
	return nil
}

// MissingDependenciesError lists the engine parts Build did not wire
type MissingDependenciesError struct {
	Deps []string
}

func (e *MissingDependenciesError) Error() string {
	return "container: engine not wired, missing " + strings.Join(e.Deps, ", ")
}
