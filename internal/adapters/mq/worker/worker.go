// Package worker runs journey reprojections off the transition path.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/okian/coachmatch/internal/adapters/mq/queue"
	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/journey"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	defaultMaxTries         = 5
	defaultInitialInterval  = 50 * time.Millisecond
	defaultMaxInterval      = 2 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Reprojector recomputes one client's journey.
type Reprojector interface {
	Reproject(ctx context.Context, clientID string) (journey.Outcome, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes projection jobs.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

type counters struct {
	processed atomic.Int64
	failed    atomic.Int64
}

// InMemoryWorker retries each job with exponential backoff and then gives up;
// a failed projection never reaches back into the transition that queued it.
type InMemoryWorker struct {
	queue     Queue
	projector Reprojector
	name      string

	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration

	counters *counters

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, projector Reprojector, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:           q,
		projector:       projector,
		name:            "worker",
		maxTries:        defaultMaxTries,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		counters:        &counters{},
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
		logger:          logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.processJob(ctx, job); err != nil {
				w.logger.Error(ctx, "journey projection failed",
					logger.String("job_id", job.JobID),
					logger.String("client_id", job.ClientID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialInterval
	b.MaxInterval = w.maxInterval
	return b
}

// processJob reprojects one client, retrying transient failures.
func (w *InMemoryWorker) processJob(ctx context.Context, job Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	defer func() {
		ms := float64(time.Since(start).Microseconds()) / 1000
		metrics.RecordWorkerProcessingLatency(ms)
		metrics.RecordProjectorLatency(ms)
	}()

	outcome, err := backoff.Retry(ctx,
		func() (journey.Outcome, error) {
			return w.projector.Reproject(ctx, job.ClientID)
		},
		backoff.WithBackOff(w.backOff()),
		backoff.WithMaxTries(w.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RecordProjectorRetry()
			w.logger.Warn(ctx, "retrying journey projection",
				logger.String("client_id", job.ClientID),
				logger.Duration("backoff", next),
				logger.Error(err),
			)
		}),
	)
	if err != nil {
		w.counters.failed.Add(1)
		metrics.RecordProjectorRun("failed")
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "projector_failure")
		metrics.RecordErrorByType("projector_failure", "high")
		return fmt.Errorf("%w: client %s: %w", engagement.ErrProjectorFailure, job.ClientID, err)
	}

	w.counters.processed.Add(1)
	metrics.RecordProjectorRun(string(outcome))
	if outcome == journey.OutcomeDemoted {
		metrics.RecordJourneyDemotion()
		w.logger.Info(ctx, "journey demoted",
			logger.String("client_id", job.ClientID),
			logger.String("cause", job.Cause),
			logger.String("stage", string(journey.StageExploringCoaches)),
		)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	counters *counters
	logger   logger.Logger
}

// NewPool creates a pool of workerCount workers. Options apply to every worker.
func NewPool(workerCount int, q Queue, projector Reprojector, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		counters: &counters{},
		logger:   logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)), withCounters(p.counters))
		p.workers[i] = NewInMemoryWorker(q, projector, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the number of jobs that completed.
func (p *Pool) Processed() int64 { return p.counters.processed.Load() }

// Failed returns the number of jobs that exhausted their retries.
func (p *Pool) Failed() int64 { return p.counters.failed.Load() }

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	return nil
}
