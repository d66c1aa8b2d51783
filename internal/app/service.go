// Package service provides the engagement lifecycle service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"io"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/coachmatch/internal/adapters/mq/queue"
	workerpool "github.com/okian/coachmatch/internal/adapters/mq/worker"
	repository "github.com/okian/coachmatch/internal/adapters/repository"
	"github.com/okian/coachmatch/internal/domain/dedupe"
	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/journey"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

const (
	defaultQueueSize          = 10_000
	defaultDedupeSize         = 50_000
	defaultShardCount         = 16
	defaultProjectorRetries   = 5
	defaultProjectorBackoff   = 50 * time.Millisecond
	defaultCapacityLockStripe = 64
	stopTimeout               = 10 * time.Second
)

// Service runs the engagement lifecycle: inbound events go through the
// transition authority and land in the store, and wind-down transitions fan
// out to the journey projector through the queue and worker pool.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	deduper    dedupe.Deduper
	jobQueue   *eventqueue.InMemoryQueue
	projector  *journey.Projector
	workerPool *workerpool.Pool
	guard      *engagement.CapacityGuard
	locks      *stripedLock

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	shardCount       int
	shortlistCap     int
	projectorRetries int
	projectorBackoff time.Duration
	now              func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of projector workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the projection queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the in-memory idempotency ledger. It is
// ignored when a deduper is supplied with WithDeduper.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShardCount sets the shard count of the default in-memory store.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithShortlistCap sets how many trainers a client may shortlist at once.
func WithShortlistCap(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.shortlistCap = limit
		}
	}
}

// WithProjectorRetry bounds reprojection attempts and sets the first backoff delay.
func WithProjectorRetry(maxTries int, initial time.Duration) Option {
	return func(s *Service) {
		if maxTries > 0 {
			s.projectorRetries = maxTries
		}
		if initial > 0 {
			s.projectorBackoff = initial
		}
	}
}

// WithStore replaces the default in-memory store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDeduper replaces the default in-memory idempotency ledger.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        defaultQueueSize,
		dedupeSize:       defaultDedupeSize,
		shardCount:       defaultShardCount,
		shortlistCap:     engagement.DefaultShortlistCap,
		projectorRetries: defaultProjectorRetries,
		projectorBackoff: defaultProjectorBackoff,
		now:              time.Now,
		locks:            newStripedLock(defaultCapacityLockStripe),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("engagement-service")
	}

	s.logger.Info(ctx, "starting engagement service...")

	// Workers and the store's metrics loop outlive the start request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.store == nil {
		s.store = repository.NewMemoryStore(runCtx, repository.WithShardCount(s.shardCount))
		s.logger.Info(ctx, "using in-memory engagement store", logger.Int("shards", s.shardCount))
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}

	s.guard = engagement.NewCapacityGuard(s.store, s.shortlistCap)
	s.projector = journey.NewProjector(s.store)
	s.jobQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.jobQueue, s.projector,
		workerpool.WithRetry(s.projectorRetries, s.projectorBackoff),
	)
	s.workerPool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "engagement service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("shortlistCap", s.shortlistCap),
	)

	return nil
}

// Stop drains pending projections and releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping engagement service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := s.workerPool.Shutdown(shutdownCtx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}

	if s.cancel != nil {
		s.cancel()
	}

	if err := s.store.Close(); err != nil {
		s.logger.Error(ctx, "closing engagement store failed", logger.Error(err))
	}
	if c, ok := s.deduper.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Error(ctx, "closing idempotency ledger failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "engagement service stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"shortlistCap": s.shortlistCap,
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		total := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["engagements"] = total
		stats["dedupeEntries"] = s.deduper.Size()
		stats["projectionsProcessed"] = s.workerPool.Processed()
		stats["projectionsFailed"] = s.workerPool.Failed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateEngagementsTotal(total)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

// components returns the running dependencies, or ErrNotStarted.
func (s *Service) components() (*runtimeDeps, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return &runtimeDeps{
		store:    s.store,
		deduper:  s.deduper,
		guard:    s.guard,
		jobQueue: s.jobQueue,
	}, nil
}

type runtimeDeps struct {
	store    repository.Store
	deduper  dedupe.Deduper
	guard    *engagement.CapacityGuard
	jobQueue *eventqueue.InMemoryQueue
}
