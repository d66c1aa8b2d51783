package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/coachmatch/internal/adapters/mq/queue"
	worker "github.com/okian/coachmatch/internal/adapters/mq/worker"
	"github.com/okian/coachmatch/internal/domain/journey"
	logging "github.com/okian/coachmatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 16)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

// mockProjector fails the first failures calls per client, then succeeds.
type mockProjector struct {
	mu       sync.Mutex
	failures map[string]int
	calls    map[string]int
	outcome  journey.Outcome
	err      error
}

func newMockProjector() *mockProjector {
	return &mockProjector{
		failures: make(map[string]int),
		calls:    make(map[string]int),
		outcome:  journey.OutcomeDemoted,
		err:      errors.New("store unavailable"),
	}
}

func (m *mockProjector) Reproject(_ context.Context, clientID string) (journey.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[clientID]++
	if m.failures[clientID] > 0 {
		m.failures[clientID]--
		return "", m.err
	}
	return m.outcome, nil
}

func (m *mockProjector) callsFor(clientID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[clientID]
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker with a fast retry policy", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		p := newMockProjector()
		w := worker.NewInMemoryWorker(q, p, worker.WithName("test"), worker.WithRetry(3, time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job succeeds first time", func() {
			q.jobs <- queue.Job{JobID: "j1", ClientID: "c1"}

			convey.Convey("Then the projector runs once", func() {
				convey.So(waitFor(func() bool { return p.callsFor("c1") == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the projector fails transiently", func() {
			p.mu.Lock()
			p.failures["c2"] = 2
			p.mu.Unlock()
			q.jobs <- queue.Job{JobID: "j2", ClientID: "c2"}

			convey.Convey("Then it is retried until it succeeds", func() {
				convey.So(waitFor(func() bool { return p.callsFor("c2") == 3 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the projector keeps failing", func() {
			p.mu.Lock()
			p.failures["c3"] = 100
			p.mu.Unlock()
			q.jobs <- queue.Job{JobID: "j3", ClientID: "c3"}

			convey.Convey("Then it gives up after the configured attempts", func() {
				convey.So(waitFor(func() bool { return p.callsFor("c3") == 3 }), convey.ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)
				convey.So(p.callsFor("c3"), convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When shutting down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it should stop gracefully", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool over a real queue", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		p := newMockProjector()
		p.failures["flaky"] = 1
		p.failures["broken"] = 100
		pool := worker.NewPool(4, q, p, worker.WithRetry(2, time.Millisecond))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When jobs for several clients are queued", func() {
			for _, id := range []string{"a", "b", "flaky", "broken"} {
				convey.So(q.Enqueue(ctx, queue.Job{JobID: "job-" + id, ClientID: id}), convey.ShouldBeTrue)
			}

			convey.Convey("Then successes and failures are counted", func() {
				convey.So(waitFor(func() bool { return pool.Processed() == 3 && pool.Failed() == 1 }), convey.ShouldBeTrue)
				convey.So(pool.Size(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the pool shuts down", func() {
			err := pool.Shutdown(context.Background())

			convey.Convey("Then the queue is closed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})
}
