package cache

import (
	"context"
	"time"
)

// Store is a key-value store for serialized response entries. Implementations
// own concurrency safety and eviction; callers must not assume anything about
// entry lifetime beyond the TTL hint passed to Set.
type Store interface {
	// Get retrieves a value. The bool reports whether the key was present
	// and unexpired.
	Get(ctx context.Context, key string) (bool, []byte, error)

	// Set stores a value with a TTL. If ttl <= 0, the store's configured
	// default TTL is used.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error

	// Delete removes a key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)

	// Close shuts down the store.
	Close() error
}

// DefaultTTL is the fallback TTL used when Set is called with ttl <= 0.
const DefaultTTL = 5 * time.Minute

// DefaultQueryTimeout is the per-operation timeout for store backends that
// perform I/O (SQLite, Redis, LevelDB). Prevents indefinite hangs on slow or
// unresponsive storage.
const DefaultQueryTimeout = 5 * time.Second

// config holds the resolved configuration for a Store implementation.
type config struct {
	defaultTTL    time.Duration
	queryTimeout  time.Duration
	sweepInterval time.Duration
	prefix        string
}

// Option configures a Store implementation.
type Option func(*config)

func defaultConfig() config {
	return config{
		defaultTTL:    DefaultTTL,
		queryTimeout:  DefaultQueryTimeout,
		sweepInterval: time.Minute,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithDefaultTTL sets the TTL used when Set is called with ttl <= 0.
// Defaults to DefaultTTL (5 minutes).
func WithDefaultTTL(d time.Duration) Option {
	return func(c *config) { c.defaultTTL = d }
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed stores.
// Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithSweepInterval sets the interval for background expired entry cleanup.
// Applies to the InMemory, SQLite and LevelDB backends. Defaults to 1 minute.
func WithSweepInterval(d time.Duration) Option {
	return func(c *config) { c.sweepInterval = d }
}

// WithPrefix sets a key prefix for namespacing. Applies to the Redis backend.
// Defaults to empty (no prefix).
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}
