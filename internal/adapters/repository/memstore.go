package repository

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/journey"
	"github.com/okian/coachmatch/pkg/metrics"
)

// shard holds every record and the journey of the clients hashed to it, so
// client-scoped reads take a single lock.
type shard struct {
	mu       sync.RWMutex
	clients  map[string]map[string]engagement.Record // client -> trainer -> record
	journeys map[string]journey.Journey
}

// MemoryStore is an in-process Store sharded by client id.
type MemoryStore struct {
	shards []*shard
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates the store and starts its metrics updater, which
// stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	cfg := newStoreConfig(opts)
	s := &MemoryStore{
		shards: make([]*shard, cfg.shardCount),
		done:   make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			clients:  make(map[string]map[string]engagement.Record),
			journeys: make(map[string]journey.Journey),
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	go s.startMetricsUpdater(ctx, cfg.metricsUpdateInterval)
	return s
}

func (s *MemoryStore) shardFor(clientID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Get returns the record for a pair.
func (s *MemoryStore) Get(ctx context.Context, p engagement.Pair) (engagement.Record, error) {
	defer observeQuery(time.Now())
	sh := s.shardFor(p.ClientID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	rec, ok := sh.clients[p.ClientID][p.TrainerID]
	if !ok {
		return engagement.Record{}, ErrNotFound
	}
	return rec, nil
}

// Save writes rec if the stored version still equals expected.
func (s *MemoryStore) Save(ctx context.Context, rec engagement.Record, expected int64) (engagement.Record, error) {
	defer observeUpdate(time.Now())
	sh := s.shardFor(rec.ClientID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.save(rec, expected)
}

// SaveWithinCap counts the client's shortlisted records and writes rec under
// the same shard lock.
func (s *MemoryStore) SaveWithinCap(ctx context.Context, rec engagement.Record, expected int64, limit int) (engagement.Record, error) {
	defer observeUpdate(time.Now())
	sh := s.shardFor(rec.ClientID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	n := 0
	for _, r := range sh.clients[rec.ClientID] {
		if r.Stage == engagement.StageShortlisted {
			n++
		}
	}
	if n >= limit {
		return engagement.Record{}, engagement.ErrCapacityExceeded
	}
	return sh.save(rec, expected)
}

// save writes rec with compare-and-swap. The caller holds sh.mu.
func (sh *shard) save(rec engagement.Record, expected int64) (engagement.Record, error) {
	trainers := sh.clients[rec.ClientID]
	cur, exists := trainers[rec.TrainerID]
	switch {
	case !exists && expected != 0, exists && cur.Version != expected:
		return engagement.Record{}, ErrVersionConflict
	}
	if trainers == nil {
		trainers = make(map[string]engagement.Record)
		sh.clients[rec.ClientID] = trainers
	}
	if exists {
		rec.CreatedAt = cur.CreatedAt
	}
	rec.Version = expected + 1
	trainers[rec.TrainerID] = rec
	return rec, nil
}

// ListByClient returns the client's records ordered by trainer id.
func (s *MemoryStore) ListByClient(ctx context.Context, clientID string) ([]engagement.Record, error) {
	defer observeQuery(time.Now())
	sh := s.shardFor(clientID)
	sh.mu.RLock()
	out := make([]engagement.Record, 0, len(sh.clients[clientID]))
	for _, rec := range sh.clients[clientID] {
		out = append(out, rec)
	}
	sh.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].TrainerID < out[j].TrainerID })
	return out, nil
}

// ListByTrainer scans every shard for the trainer's records.
func (s *MemoryStore) ListByTrainer(ctx context.Context, trainerID string) ([]engagement.Record, error) {
	defer observeQuery(time.Now())
	var out []engagement.Record
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, trainers := range sh.clients {
			if rec, ok := trainers[trainerID]; ok {
				out = append(out, rec)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out, nil
}

// CountByStage counts the client's records in stage.
func (s *MemoryStore) CountByStage(ctx context.Context, clientID string, stage engagement.Stage) (int, error) {
	defer observeQuery(time.Now())
	sh := s.shardFor(clientID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	n := 0
	for _, rec := range sh.clients[clientID] {
		if rec.Stage == stage {
			n++
		}
	}
	return n, nil
}

// HasActiveEngagement reports whether any of the client's records is active.
func (s *MemoryStore) HasActiveEngagement(ctx context.Context, clientID string) (bool, error) {
	defer observeQuery(time.Now())
	sh := s.shardFor(clientID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	for _, rec := range sh.clients[clientID] {
		if rec.Stage.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

// GetJourney returns the client's stored journey.
func (s *MemoryStore) GetJourney(ctx context.Context, clientID string) (journey.Journey, bool, error) {
	sh := s.shardFor(clientID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	j, ok := sh.journeys[clientID]
	return j, ok, nil
}

// SaveJourney writes j if the stored version still equals expected.
func (s *MemoryStore) SaveJourney(ctx context.Context, j journey.Journey, expected int64) error {
	defer observeUpdate(time.Now())
	sh := s.shardFor(j.ClientID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cur, exists := sh.journeys[j.ClientID]
	if (!exists && expected != 0) || (exists && cur.Version != expected) {
		return ErrVersionConflict
	}
	j.Version = expected + 1
	sh.journeys[j.ClientID] = j
	return nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count(ctx context.Context) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, trainers := range sh.clients {
			n += len(trainers)
		}
		sh.mu.RUnlock()
	}
	return n
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	s.cancel()
	<-s.done
	return nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateEngagementsTotal(s.Count(ctx))
		}
	}
}

func observeQuery(start time.Time) {
	metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
}

func observeUpdate(start time.Time) {
	metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
}
