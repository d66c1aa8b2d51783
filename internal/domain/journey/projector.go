package journey

import (
	"context"
	"fmt"
	"time"
)

// Outcome describes what a reprojection did.
type Outcome string

const (
	// OutcomeDemoted means the client went back to exploring_coaches.
	OutcomeDemoted Outcome = "demoted"
	// OutcomeActive means another engagement is still in flight.
	OutcomeActive Outcome = "active"
	// OutcomeOutOfBand means the journey is not owned by engagements right now.
	OutcomeOutOfBand Outcome = "out_of_band"
)

// Store is what the projector needs from persistence.
type Store interface {
	// HasActiveEngagement reports whether any of the client's pairs is active.
	HasActiveEngagement(ctx context.Context, clientID string) (bool, error)
	// GetJourney returns the stored journey, with ok=false when there is none.
	GetJourney(ctx context.Context, clientID string) (Journey, bool, error)
	// SaveJourney writes j if the stored version still equals expected.
	SaveJourney(ctx context.Context, j Journey, expected int64) error
}

// Project is the pure demotion rule.
func Project(current Stage, hasActive bool) (Stage, Outcome) {
	if hasActive {
		return current, OutcomeActive
	}
	if !current.InEngagementBand() {
		return current, OutcomeOutOfBand
	}
	return StageExploringCoaches, OutcomeDemoted
}

// Projector recomputes journeys after engagements wind down.
type Projector struct {
	store Store
	now   func() time.Time
}

// NewProjector returns a projector over store.
func NewProjector(store Store) *Projector {
	return &Projector{store: store, now: time.Now}
}

// Reproject runs one attempt for clientID. Callers own retries.
func (p *Projector) Reproject(ctx context.Context, clientID string) (Outcome, error) {
	j, ok, err := p.store.GetJourney(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("get journey %s: %w", clientID, err)
	}
	if !ok {
		j = Initial(clientID)
	}
	if !j.Stage.InEngagementBand() {
		return OutcomeOutOfBand, nil
	}

	active, err := p.store.HasActiveEngagement(ctx, clientID)
	if err != nil {
		return "", fmt.Errorf("check active engagements %s: %w", clientID, err)
	}

	next, outcome := Project(j.Stage, active)
	if outcome != OutcomeDemoted {
		return outcome, nil
	}

	expected := j.Version
	j.Stage = next
	j.UpdatedAt = p.now().UTC()
	if err := p.store.SaveJourney(ctx, j, expected); err != nil {
		return "", fmt.Errorf("save journey %s: %w", clientID, err)
	}
	return OutcomeDemoted, nil
}
