// Package repository persists engagement records and client journeys. Writes
// are compare-and-swap on a per-record version; nothing is ever deleted.
package repository

import (
	"context"

	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/journey"
)

// Store is the engagement store. Save and SaveJourney are the only writes.
type Store interface {
	// Get returns the record for a pair, or ErrNotFound.
	Get(ctx context.Context, p engagement.Pair) (engagement.Record, error)

	// Save writes rec if the stored version equals expected. expected == 0
	// means the pair must not exist yet. The returned record carries the new
	// version. A mismatch returns ErrVersionConflict.
	Save(ctx context.Context, rec engagement.Record, expected int64) (engagement.Record, error)

	// ListByClient returns every record of a client ordered by trainer id.
	ListByClient(ctx context.Context, clientID string) ([]engagement.Record, error)

	// ListByTrainer returns every record of a trainer ordered by client id.
	ListByTrainer(ctx context.Context, trainerID string) ([]engagement.Record, error)

	// CountByStage counts a client's records in stage.
	CountByStage(ctx context.Context, clientID string, stage engagement.Stage) (int, error)

	// HasActiveEngagement reports whether any of the client's records is active.
	HasActiveEngagement(ctx context.Context, clientID string) (bool, error)

	// GetJourney returns the client's journey, ok=false when none is stored.
	GetJourney(ctx context.Context, clientID string) (journey.Journey, bool, error)

	// SaveJourney writes j with the same compare-and-swap rules as Save.
	SaveJourney(ctx context.Context, j journey.Journey, expected int64) error

	// Count returns the number of stored engagement records.
	Count(ctx context.Context) int

	Close() error
}

// CappedStore writes a record moving into shortlisted only while the client
// holds fewer than limit shortlisted records, counting and writing
// atomically. It returns engagement.ErrCapacityExceeded when the client is full.
type CappedStore interface {
	SaveWithinCap(ctx context.Context, rec engagement.Record, expected int64, limit int) (engagement.Record, error)
}

var (
	_ CappedStore             = (*MemoryStore)(nil)
	_ CappedStore             = (*SQLStore)(nil)
	_ Store                   = (*MemoryStore)(nil)
	_ Store                   = (*SQLStore)(nil)
	_ journey.Store           = Store(nil)
	_ engagement.StageCounter = Store(nil)
)
