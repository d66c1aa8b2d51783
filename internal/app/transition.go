package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/coachmatch/internal/adapters/mq/queue"
	repository "github.com/okian/coachmatch/internal/adapters/repository"
	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

// maxAttempts is the first write plus one retry after a version conflict.
const maxAttempts = 2

// Result is the outcome of one lifecycle event.
type Result struct {
	Pair    engagement.Pair
	Origin  engagement.Origin
	From    engagement.Stage
	Stage   engagement.Stage
	Applied bool
	Reason  engagement.Reason
}

func resultOf(ev engagement.Event, d engagement.Decision) Result {
	return Result{Pair: ev.Pair, Origin: ev.Origin, From: d.From, Stage: d.To, Applied: d.Applied, Reason: d.Reason}
}

// Transition runs ev through the transition authority and persists the
// result. Rule rejections are reported in the Result, not as errors. An
// error means the store failed or the pair kept changing underneath us
// (ErrConcurrencyConflict), and the caller may retry.
func (s *Service) Transition(ctx context.Context, ev engagement.Event) (Result, error) {
	if err := ev.Pair.Validate(); err != nil {
		return Result{}, err
	}
	deps, err := s.components()
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	defer func() {
		metrics.RecordTransitionLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	// Count-then-write of the shortlist cap must not interleave for one client.
	if ev.Kind == engagement.EventShortlist {
		unlock := s.locks.lock(ev.Pair.ClientID)
		defer unlock()
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		d, err := s.attempt(ctx, deps, ev)
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt < maxAttempts {
				metrics.RecordConcurrencyRetry()
				s.logger.Debug(ctx, "version conflict, retrying transition",
					logger.String("pair", ev.Pair.String()),
					logger.String("event", string(ev.Kind)),
				)
			}
			continue
		}
		if err != nil {
			metrics.RecordErrorByComponent("transition", "store")
			return Result{Pair: ev.Pair, Origin: ev.Origin}, fmt.Errorf("transition %s on %s: %w", ev.Kind, ev.Pair, err)
		}
		s.after(ctx, deps, ev, d)
		return resultOf(ev, d), nil
	}

	metrics.RecordConcurrencyFailure()
	metrics.RecordErrorByType("concurrency_conflict", "warning")
	s.logger.Warn(ctx, "transition lost the race twice",
		logger.String("pair", ev.Pair.String()),
		logger.String("event", string(ev.Kind)),
	)
	return Result{Pair: ev.Pair, Origin: ev.Origin}, fmt.Errorf("%w: %s on %s", engagement.ErrConcurrencyConflict, ev.Kind, ev.Pair)
}

// attempt is one read-decide-write round.
func (s *Service) attempt(ctx context.Context, deps *runtimeDeps, ev engagement.Event) (engagement.Decision, error) {
	current, err := deps.store.Get(ctx, ev.Pair)
	exists := true
	switch {
	case errors.Is(err, repository.ErrNotFound):
		exists = false
	case err != nil:
		return engagement.Decision{}, err
	}

	d := engagement.Decide(current, exists, ev, s.now())
	if !d.Applied {
		return d, nil
	}

	var expected int64
	if exists {
		expected = current.Version
	}

	if d.NeedsCapacity {
		if capped, ok := deps.store.(repository.CappedStore); ok {
			return s.saveWithinCap(ctx, capped, deps.guard.Limit(), d, expected)
		}
		ok, err := deps.guard.CanShortlist(ctx, ev.Pair.ClientID)
		if err != nil {
			return engagement.Decision{}, err
		}
		if !ok {
			return d.Reject(engagement.ReasonCapacityExceeded), nil
		}
	}

	saved, err := deps.store.Save(ctx, d.Record, expected)
	if err != nil {
		return engagement.Decision{}, err
	}
	d.Record = saved
	return d, nil
}

// saveWithinCap lets the store count and write in one step, which holds the
// cap across replicas sharing a database.
func (s *Service) saveWithinCap(ctx context.Context, store repository.CappedStore, limit int, d engagement.Decision, expected int64) (engagement.Decision, error) {
	saved, err := store.SaveWithinCap(ctx, d.Record, expected, limit)
	switch {
	case errors.Is(err, engagement.ErrCapacityExceeded):
		return d.Reject(engagement.ReasonCapacityExceeded), nil
	case err != nil:
		return engagement.Decision{}, err
	}
	d.Record = saved
	return d, nil
}

// after records the outcome and runs the side effects of an applied rule.
func (s *Service) after(ctx context.Context, deps *runtimeDeps, ev engagement.Event, d engagement.Decision) {
	if !d.Applied {
		metrics.RecordTransitionRejected(string(d.Event), string(d.Reason))
		switch d.Reason {
		case engagement.ReasonInvalidTransition:
			s.logger.Debug(ctx, "transition rejected",
				logger.String("pair", ev.Pair.String()),
				logger.String("event", string(ev.Kind)),
				logger.String("stage", string(d.From)),
			)
		case engagement.ReasonCapacityExceeded:
			metrics.RecordCapacityRejection()
			s.logger.Info(ctx, "shortlist capacity reached",
				logger.String("client_id", ev.Pair.ClientID),
				logger.String("trainer_id", ev.Pair.TrainerID),
				logger.String("actor", ev.Actor),
				logger.Int("limit", deps.guard.Limit()),
			)
		}
		return
	}

	metrics.RecordTransitionApplied(string(d.Event), string(d.To))
	s.logger.Debug(ctx, "transition applied",
		logger.String("pair", ev.Pair.String()),
		logger.String("event", string(ev.Kind)),
		logger.String("from", string(d.From)),
		logger.String("to", string(d.To)),
		logger.String("origin", string(ev.Origin)),
		logger.String("actor", ev.Actor),
		logger.Int64("version", d.Record.Version),
	)

	if d.TriggersProjection {
		s.projectAfter(ctx, deps, ev)
	}
}

// projectAfter hands the client's journey to the projector workers. A full
// queue drops the job; the transition itself already succeeded.
func (s *Service) projectAfter(ctx context.Context, deps *runtimeDeps, ev engagement.Event) {
	job := eventqueue.Job{
		JobID:     uuid.NewString(),
		ClientID:  ev.Pair.ClientID,
		TrainerID: ev.Pair.TrainerID,
		Cause:     string(ev.Kind),
	}
	if deps.jobQueue.Enqueue(context.WithoutCancel(ctx), job) {
		return
	}
	metrics.RecordProjectorDropped()
	s.logger.Error(ctx, "journey projection dropped",
		logger.String("job_id", job.JobID),
		logger.String("client_id", job.ClientID),
		logger.String("cause", job.Cause),
		logger.Error(eventqueue.ErrQueueFull),
	)
}
