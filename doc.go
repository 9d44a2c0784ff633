// Package backend provides the Showcase engagement service.

// Showcase turns views, shares and endorsements of workers' posts into
// deduplicated, rate-limited counters, a reputation score and a leaderboard.
// The code is organized into subpackages:

// - internal/engagement: validator, cooldown guard, aggregator and the service
// - internal/ledger: append-only event store (gorm and in-memory)
// - internal/leaderboard: score ranking over totals or ledger windows
// - internal/fanout: bounded update broadcaster and the Redis relay
// - internal/retention: periodic purge of old view and share events
// - internal/identity: request identity, session tokens, post/user directories
// - internal/handlers: HTTP request handlers for all API endpoints
// - internal/websocket: WebSocket server for live engagement updates
// - internal/middleware: auth, rate limiting, logging, metrics, tracing
// - internal/container: wiring shared by cmd/server and cmd/cli
// - internal/database: database connection and migrations
// - internal/seed: demo data generation

// See the individual package documentation for detailed API reference.
package backend
