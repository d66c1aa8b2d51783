// Package redisledger is a Redis-backed idempotency ledger shared by every
// engine replica. Keys expire after a TTL so the ledger stays bounded.
package redisledger

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/okian/coachmatch/internal/domain/dedupe"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

const (
	defaultTTL    = 7 * 24 * time.Hour
	defaultPrefix = "coachmatch:dedupe:"
)

// ErrConnect is returned when the ledger cannot reach Redis at startup.
var ErrConnect = errors.New("redis ledger unreachable")

var _ dedupe.Deduper = (*Ledger)(nil)

// Ledger implements dedupe.Deduper with SET NX EX.
//
// Redis errors fail open: the key is treated as unseen and the transition
// runs. Rule-level idempotency (no_change) still protects the record.
type Ledger struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger logger.Logger

	recorded atomic.Int64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithTTL sets how long a key is remembered.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithPrefix sets the key namespace.
func WithPrefix(prefix string) Option {
	return func(l *Ledger) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg
		}
	}
}

// New wraps an existing client.
func New(client *redis.Client, opts ...Option) *Ledger {
	l := &Ledger{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("redis-ledger")
	}
	return l
}

// Dial parses a redis:// URL, checks the connection and returns the ledger.
func Dial(ctx context.Context, url string, opts ...Option) (*Ledger, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
	return New(client, opts...), nil
}

// SeenAndRecord reports whether key was recorded before, recording it if not.
func (l *Ledger) SeenAndRecord(ctx context.Context, key string) bool {
	ok, err := l.client.SetNX(ctx, l.prefix+key, 1, l.ttl).Result()
	if err != nil {
		l.fail(ctx, "setnx", key, err)
		return false
	}
	if ok {
		l.recorded.Add(1)
	}
	return !ok
}

// Unrecord forgets key so an upstream retry is processed again.
func (l *Ledger) Unrecord(ctx context.Context, key string) {
	n, err := l.client.Del(ctx, l.prefix+key).Result()
	if err != nil {
		l.fail(ctx, "del", key, err)
		return
	}
	if n > 0 {
		l.recorded.Add(-1)
	}
}

// Size returns the number of keys this process recorded and still holds.
// Expired keys and keys written by other replicas are not counted.
func (l *Ledger) Size() int64 {
	return l.recorded.Load()
}

// Close releases the client.
func (l *Ledger) Close() error {
	return l.client.Close()
}

func (l *Ledger) fail(ctx context.Context, op, key string, err error) {
	metrics.RecordErrorByComponent("redis_ledger", op)
	l.logger.Warn(ctx, "idempotency ledger unavailable, failing open",
		logger.String("op", op),
		logger.String("key", key),
		logger.Error(err),
	)
}
