package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if !q.Enqueue(ctx, Job{JobID: "job1", ClientID: "client1", Cause: "request_declined"}) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	j := <-q.Dequeue(ctx)
	if j.JobID != "job1" || j.ClientID != "client1" {
		t.Errorf("unexpected job %+v", j)
	}
	if j.QueuedAt.IsZero() {
		t.Error("expected enqueue time to be stamped")
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !q.Enqueue(ctx, Job{JobID: fmt.Sprintf("job%d", i)}) {
			t.Fatalf("enqueue %d should succeed", i)
		}
	}
	if q.Enqueue(ctx, Job{JobID: "overflow"}) {
		t.Error("expected enqueue to fail when full")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	const producers, perProducer = 8, 50
	q := NewInMemoryQueue(WithCapacity(producers * perProducer))
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(ctx, Job{JobID: fmt.Sprintf("p%d-%d", p, i)})
			}
		}(p)
	}
	wg.Wait()

	if l := q.Len(ctx); l != producers*perProducer {
		t.Fatalf("expected %d jobs, got %d", producers*perProducer, l)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, Job{JobID: "pending"})
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, Job{JobID: "late"}) {
		t.Error("expected enqueue after close to fail")
	}

	ch := q.Dequeue(ctx)
	select {
	case j, ok := <-ch:
		if !ok || j.JobID != "pending" {
			t.Fatalf("expected pending job to drain, got %+v ok=%v", j, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out draining queue")
	}
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected dequeue channel to close")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for close")
	}
}
