package engagement

import (
	"context"
	"fmt"
)

// DefaultShortlistCap is the number of trainers a client may shortlist at once.
const DefaultShortlistCap = 4

// StageCounter counts a client's records in a given stage.
type StageCounter interface {
	CountByStage(ctx context.Context, clientID string, stage Stage) (int, error)
}

// CapacityGuard enforces the per-client shortlist cap.
type CapacityGuard struct {
	counter StageCounter
	limit   int
}

// NewCapacityGuard returns a guard with the given cap. A non-positive limit
// falls back to DefaultShortlistCap.
func NewCapacityGuard(counter StageCounter, limit int) *CapacityGuard {
	if limit <= 0 {
		limit = DefaultShortlistCap
	}
	return &CapacityGuard{counter: counter, limit: limit}
}

// Limit returns the configured cap.
func (g *CapacityGuard) Limit() int { return g.limit }

// CanShortlist reports whether the client has room for one more shortlisted trainer.
func (g *CapacityGuard) CanShortlist(ctx context.Context, clientID string) (bool, error) {
	n, err := g.counter.CountByStage(ctx, clientID, StageShortlisted)
	if err != nil {
		return false, fmt.Errorf("count shortlisted for %s: %w", clientID, err)
	}
	return n < g.limit, nil
}
