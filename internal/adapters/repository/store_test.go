package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/journey"
)

var t0 = time.Date(2025, 5, 2, 10, 30, 0, 0, time.UTC)

// eachStore runs fn against every Store implementation.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		s := NewMemoryStore(context.Background(), WithShardCount(4))
		defer func() { _ = s.Close() }()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQL(context.Background(), DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		defer func() { _ = s.Close() }()
		fn(t, s)
	})
}

func newRecord(client, trainer string, stage engagement.Stage) engagement.Record {
	return engagement.Record{
		ClientID:  client,
		TrainerID: trainer,
		Stage:     stage,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
}

func TestStore_GetMissing(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		_, err := s.Get(context.Background(), engagement.Pair{ClientID: "c", TrainerID: "t"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if !errors.Is(err, engagement.ErrUnknownPair) {
			t.Fatalf("expected ErrUnknownPair, got %v", err)
		}
	})
}

func TestStore_InsertAndUpdate(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		p := engagement.Pair{ClientID: "c1", TrainerID: "t1"}

		saved, err := s.Save(ctx, newRecord("c1", "t1", engagement.StageLiked), 0)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		if saved.Version != 1 {
			t.Fatalf("expected version 1, got %d", saved.Version)
		}

		got, err := s.Get(ctx, p)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Stage != engagement.StageLiked || got.Version != 1 {
			t.Fatalf("unexpected record %+v", got)
		}
		if !got.CreatedAt.Equal(t0) {
			t.Fatalf("created_at not preserved: %v", got.CreatedAt)
		}

		stamp := t0.Add(time.Hour)
		got.Stage = engagement.StageDiscoveryCompleted
		got.UpdatedAt = stamp
		got.DiscoveryCompletedAt = &stamp
		got.Notes = "great fit"
		saved, err = s.Save(ctx, got, 1)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if saved.Version != 2 {
			t.Fatalf("expected version 2, got %d", saved.Version)
		}

		got, err = s.Get(ctx, p)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.DiscoveryCompletedAt == nil || !got.DiscoveryCompletedAt.Equal(stamp) {
			t.Fatalf("discovery_completed_at not stored: %v", got.DiscoveryCompletedAt)
		}
		if got.Notes != "great fit" {
			t.Fatalf("notes not stored: %q", got.Notes)
		}
	})
}

func TestStore_VersionConflicts(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Save(ctx, newRecord("c1", "t1", engagement.StageLiked), 0); err != nil {
			t.Fatalf("insert: %v", err)
		}

		if _, err := s.Save(ctx, newRecord("c1", "t1", engagement.StageShortlisted), 0); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("double insert: expected conflict, got %v", err)
		}
		if _, err := s.Save(ctx, newRecord("c1", "t1", engagement.StageShortlisted), 7); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("stale version: expected conflict, got %v", err)
		}
		if _, err := s.Save(ctx, newRecord("c1", "t2", engagement.StageShortlisted), 1); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("update of missing row: expected conflict, got %v", err)
		}

		got, _ := s.Get(ctx, engagement.Pair{ClientID: "c1", TrainerID: "t1"})
		if got.Stage != engagement.StageLiked {
			t.Fatalf("conflicting writes must not change the row, got %s", got.Stage)
		}
	})
}

func TestStore_ConcurrentCASHasOneWinner(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if _, err := s.Save(ctx, newRecord("c1", "t1", engagement.StageDiscoveryCallBooked), 0); err != nil {
			t.Fatalf("insert: %v", err)
		}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for _, st := range []engagement.Stage{engagement.StageShortlisted, engagement.StageDeclined, engagement.StageDiscoveryCompleted} {
			wg.Add(1)
			go func(st engagement.Stage) {
				defer wg.Done()
				if _, err := s.Save(ctx, newRecord("c1", "t1", st), 1); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(st)
		}
		wg.Wait()

		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}
	})
}

func TestStore_Listings(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		seed := []engagement.Record{
			newRecord("c1", "t2", engagement.StageShortlisted),
			newRecord("c1", "t1", engagement.StageShortlisted),
			newRecord("c1", "t3", engagement.StageDeclined),
			newRecord("c2", "t1", engagement.StageLiked),
		}
		for _, r := range seed {
			if _, err := s.Save(ctx, r, 0); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}

		byClient, err := s.ListByClient(ctx, "c1")
		if err != nil {
			t.Fatalf("list by client: %v", err)
		}
		if len(byClient) != 3 || byClient[0].TrainerID != "t1" || byClient[2].TrainerID != "t3" {
			t.Fatalf("unexpected client listing %+v", byClient)
		}

		byTrainer, err := s.ListByTrainer(ctx, "t1")
		if err != nil {
			t.Fatalf("list by trainer: %v", err)
		}
		if len(byTrainer) != 2 || byTrainer[0].ClientID != "c1" || byTrainer[1].ClientID != "c2" {
			t.Fatalf("unexpected trainer listing %+v", byTrainer)
		}

		n, err := s.CountByStage(ctx, "c1", engagement.StageShortlisted)
		if err != nil || n != 2 {
			t.Fatalf("expected 2 shortlisted, got %d (%v)", n, err)
		}

		empty, err := s.ListByClient(ctx, "nobody")
		if err != nil || len(empty) != 0 {
			t.Fatalf("expected empty listing, got %v (%v)", empty, err)
		}

		if c := s.Count(ctx); c != 4 {
			t.Fatalf("expected 4 records, got %d", c)
		}
	})
}

func TestStore_HasActiveEngagement(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, r := range []engagement.Record{
			newRecord("c1", "t1", engagement.StageDeclined),
			newRecord("c1", "t2", engagement.StageBrowsing),
			newRecord("c1", "t3", engagement.StageUnmatched),
			newRecord("c1", "t4", engagement.StageDeclinedDismissed),
			newRecord("c2", "t1", engagement.StageDiscoveryCallBooked),
		} {
			if _, err := s.Save(ctx, r, 0); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}

		active, err := s.HasActiveEngagement(ctx, "c1")
		if err != nil || active {
			t.Fatalf("c1 should have no active engagement, got %v (%v)", active, err)
		}
		active, err = s.HasActiveEngagement(ctx, "c2")
		if err != nil || !active {
			t.Fatalf("c2 should have an active engagement, got %v (%v)", active, err)
		}
	})
}

func TestStore_Journeys(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if _, ok, err := s.GetJourney(ctx, "c1"); ok || err != nil {
			t.Fatalf("expected no journey, got ok=%v err=%v", ok, err)
		}

		j := journey.Journey{ClientID: "c1", Stage: journey.StageShortlisting, UpdatedAt: t0}
		if err := s.SaveJourney(ctx, j, 0); err != nil {
			t.Fatalf("insert journey: %v", err)
		}
		if err := s.SaveJourney(ctx, j, 0); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected conflict on double insert, got %v", err)
		}

		got, ok, err := s.GetJourney(ctx, "c1")
		if err != nil || !ok || got.Version != 1 || got.Stage != journey.StageShortlisting {
			t.Fatalf("unexpected journey %+v ok=%v err=%v", got, ok, err)
		}

		got.Stage = journey.StageExploringCoaches
		if err := s.SaveJourney(ctx, got, 1); err != nil {
			t.Fatalf("update journey: %v", err)
		}
		got, _, _ = s.GetJourney(ctx, "c1")
		if got.Stage != journey.StageExploringCoaches || got.Version != 2 {
			t.Fatalf("unexpected journey after update %+v", got)
		}
	})
}

func TestOpenSQL_UnknownDriver(t *testing.T) {
	if _, err := OpenSQL(context.Background(), "mysql", "dsn"); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("expected ErrUnknownDriver, got %v", err)
	}
}

func TestStore_SaveWithinCap(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		capped, ok := s.(CappedStore)
		if !ok {
			t.Fatalf("%T does not implement CappedStore", s)
		}

		for _, trainer := range []string{"t1", "t2"} {
			if _, err := capped.SaveWithinCap(ctx, newRecord("c1", trainer, engagement.StageShortlisted), 0, 2); err != nil {
				t.Fatalf("shortlist %s: %v", trainer, err)
			}
		}

		_, err := capped.SaveWithinCap(ctx, newRecord("c1", "t3", engagement.StageShortlisted), 0, 2)
		if !errors.Is(err, engagement.ErrCapacityExceeded) {
			t.Fatalf("expected ErrCapacityExceeded, got %v", err)
		}
		if _, err := s.Get(ctx, engagement.Pair{ClientID: "c1", TrainerID: "t3"}); !errors.Is(err, ErrNotFound) {
			t.Fatalf("rejected record was written: %v", err)
		}

		if _, err := capped.SaveWithinCap(ctx, newRecord("c2", "t3", engagement.StageShortlisted), 0, 2); err != nil {
			t.Fatalf("other client: %v", err)
		}

		_, err = capped.SaveWithinCap(ctx, newRecord("c2", "t3", engagement.StageShortlisted), 0, 2)
		if !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict on stale insert, got %v", err)
		}
	})
}

func TestStore_SaveWithinCapConcurrent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		capped := s.(CappedStore)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			applied int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				rec := newRecord("c-race", "t"+string(rune('a'+i)), engagement.StageShortlisted)
				if _, err := capped.SaveWithinCap(ctx, rec, 0, 4); err == nil {
					mu.Lock()
					applied++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()

		if applied != 4 {
			t.Fatalf("expected 4 shortlists admitted, got %d", applied)
		}
		n, err := s.CountByStage(ctx, "c-race", engagement.StageShortlisted)
		if err != nil || n != 4 {
			t.Fatalf("expected 4 stored shortlists, got %d (%v)", n, err)
		}
	})
}
