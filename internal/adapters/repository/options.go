package repository

import "time"

const (
	defaultShardCount            = 16
	defaultMetricsUpdateInterval = 10 * time.Second
)

type storeConfig struct {
	shardCount            int
	metricsUpdateInterval time.Duration
	maxOpenConns          int
}

func newStoreConfig(opts []Option) storeConfig {
	c := storeConfig{
		shardCount:            defaultShardCount,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Option configures a store.
type Option func(*storeConfig)

// WithShardCount sets the number of lock shards of the memory store.
func WithShardCount(n int) Option {
	return func(c *storeConfig) {
		if n > 0 {
			c.shardCount = n
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(c *storeConfig) {
		if interval > 0 {
			c.metricsUpdateInterval = interval
		}
	}
}

// WithMaxOpenConns caps the SQL connection pool.
func WithMaxOpenConns(n int) Option {
	return func(c *storeConfig) {
		if n > 0 {
			c.maxOpenConns = n
		}
	}
}
