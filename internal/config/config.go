// Package config defines the engine configuration and its loading hooks.
package config

import (
	"runtime"
	"strings"
	"time"
)

// Supported store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Supported idempotency ledger backends.
const (
	DedupeMemory = "memory"
	DedupeRedis  = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory projection queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of projection workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the in-memory idempotency ledger.
	DedupeSize int `koanf:"dedupe_size"`

	// DedupeBackend is memory or redis.
	DedupeBackend string `koanf:"dedupe_backend"`

	// RedisURL is used when DedupeBackend is redis, e.g. redis://localhost:6379/0.
	RedisURL string `koanf:"redis_url"`

	// DedupeTTLSeconds expires ledger keys in redis. Zero keeps them forever.
	DedupeTTLSeconds int `koanf:"dedupe_ttl_seconds"`

	// StoreBackend is memory, postgres or sqlite.
	StoreBackend string `koanf:"store_backend"`

	// DatabaseURL is the DSN for the SQL store backends.
	DatabaseURL string `koanf:"database_url"`

	// ShardCount configures the number of shards in the memory store.
	ShardCount int `koanf:"shard_count"`

	// ShortlistCap is the number of trainers a client may keep shortlisted at once.
	ShortlistCap int `koanf:"shortlist_cap"`

	// ProjectorMaxRetries bounds journey reprojection attempts.
	ProjectorMaxRetries int `koanf:"projector_max_retries"`

	// ProjectorInitialBackoffMS is the first retry delay of the projector.
	ProjectorInitialBackoffMS int `koanf:"projector_initial_backoff_ms"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:                  "info",
		LogFormat:                 "text",
		Addr:                      ":9080",
		QueueSize:                 10_000,
		WorkerCount:               runtime.NumCPU() * 2,
		DedupeSize:                500_000,
		DedupeBackend:             DedupeMemory,
		DedupeTTLSeconds:          7 * 24 * 3600,
		StoreBackend:              StoreMemory,
		ShardCount:                16,
		ShortlistCap:              4,
		ProjectorMaxRetries:       5,
		ProjectorInitialBackoffMS: 50,
	}
}

// DedupeTTL returns the redis ledger expiry as a duration.
func (c *Config) DedupeTTL() time.Duration {
	return time.Duration(c.DedupeTTLSeconds) * time.Second
}

// ProjectorInitialBackoff returns the first projector retry delay.
func (c *Config) ProjectorInitialBackoff() time.Duration {
	return time.Duration(c.ProjectorInitialBackoffMS) * time.Millisecond
}

// Validate checks that the configuration can be used to start the engine.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	if c.QueueSize <= 0 {
		return invalid("queue_size must be positive")
	}
	if c.WorkerCount <= 0 {
		return invalid("worker_count must be positive")
	}
	if c.ShortlistCap <= 0 {
		return invalid("shortlist_cap must be positive")
	}
	if c.ProjectorMaxRetries <= 0 {
		return invalid("projector_max_retries must be positive")
	}
	switch strings.ToLower(c.StoreBackend) {
	case StoreMemory:
	case StorePostgres, StoreSQLite:
		if c.DatabaseURL == "" {
			return invalid("database_url is required for store_backend " + c.StoreBackend)
		}
	default:
		return invalid("unknown store_backend " + c.StoreBackend)
	}
	switch strings.ToLower(c.DedupeBackend) {
	case DedupeMemory:
	case DedupeRedis:
		if c.RedisURL == "" {
			return invalid("redis_url is required for dedupe_backend redis")
		}
	default:
		return invalid("unknown dedupe_backend " + c.DedupeBackend)
	}
	return nil
}
