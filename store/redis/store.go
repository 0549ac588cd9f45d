// Package redis implements the duplicate-run guard on Redis so that guard
// claims are shared across orchestrator processes. Claims are plain string
// keys written with SET NX and a TTL, so a crashed run's claim expires on
// its own instead of wedging the source.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	g := redisstore.New(client)
//	if err := g.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adwire/conveyor/engine"
)

// Compile-time interface check.
var _ engine.Guard = (*Guard)(nil)

// Option configures the Guard.
type Option func(*Guard)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) { g.logger = l }
}

// WithOwner tags every claim with an owner token, so operators can see
// which process holds a guard.
func WithOwner(owner string) Option {
	return func(g *Guard) { g.owner = owner }
}

// Guard implements engine.Guard backed by Redis.
type Guard struct {
	client redis.Cmdable
	logger *slog.Logger
	owner  string
}

// New creates a new Redis-backed guard. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Guard {
	g := &Guard{client: client, logger: slog.Default(), owner: "conveyor"}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Client returns the underlying Redis client.
func (g *Guard) Client() redis.Cmdable { return g.client }

// Ping verifies the Redis connection is alive.
func (g *Guard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// AcquireRun claims key for ttl with an atomic SET NX. A false return
// means another run holds the claim and it has not expired yet.
func (g *Guard) AcquireRun(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, guardKey(key), g.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("conveyor/redis: acquire run setnx: %w", err)
	}
	return ok, nil
}

// ReleaseRun drops the claim on key. Releasing an unheld or expired key is
// a no-op.
func (g *Guard) ReleaseRun(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, guardKey(key)).Err(); err != nil {
		return fmt.Errorf("conveyor/redis: release run del: %w", err)
	}
	return nil
}
