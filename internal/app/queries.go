package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	repository "github.com/okian/coachmatch/internal/adapters/repository"
	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/journey"
	"github.com/okian/coachmatch/pkg/logger"
)

// ErrMissingClientID is returned by client-scoped queries called with an empty id.
var ErrMissingClientID = errors.New("client_id is required")

// GetStage returns the stage of a pair. A pair that was never stored is browsing.
func (s *Service) GetStage(ctx context.Context, p engagement.Pair) (engagement.Stage, error) {
	rec, err := s.GetEngagement(ctx, p)
	if err != nil {
		return "", err
	}
	return rec.Stage, nil
}

// GetEngagement returns the record of a pair, or a browsing placeholder with
// version 0 when the pair was never stored.
func (s *Service) GetEngagement(ctx context.Context, p engagement.Pair) (engagement.Record, error) {
	if err := p.Validate(); err != nil {
		return engagement.Record{}, err
	}
	deps, err := s.components()
	if err != nil {
		return engagement.Record{}, err
	}
	rec, err := deps.store.Get(ctx, p)
	if errors.Is(err, repository.ErrNotFound) {
		return engagement.Browsing(p), nil
	}
	if err != nil {
		return engagement.Record{}, fmt.Errorf("get engagement %s: %w", p, err)
	}
	return rec, nil
}

// ListEngagementsForClient returns every stored engagement of a client.
func (s *Service) ListEngagementsForClient(ctx context.Context, clientID string) ([]engagement.Record, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrMissingClientID
	}
	deps, err := s.components()
	if err != nil {
		return nil, err
	}
	return deps.store.ListByClient(ctx, clientID)
}

// ListEngagementsForTrainer returns every stored engagement of a trainer.
func (s *Service) ListEngagementsForTrainer(ctx context.Context, trainerID string) ([]engagement.Record, error) {
	if strings.TrimSpace(trainerID) == "" {
		return nil, engagement.ErrInvalidPair
	}
	deps, err := s.components()
	if err != nil {
		return nil, err
	}
	return deps.store.ListByTrainer(ctx, trainerID)
}

// GetJourneyStage returns the client's journey. A client with no stored
// journey is still at profile_setup.
func (s *Service) GetJourneyStage(ctx context.Context, clientID string) (journey.Journey, error) {
	if strings.TrimSpace(clientID) == "" {
		return journey.Journey{}, ErrMissingClientID
	}
	deps, err := s.components()
	if err != nil {
		return journey.Journey{}, err
	}
	j, ok, err := deps.store.GetJourney(ctx, clientID)
	if err != nil {
		return journey.Journey{}, fmt.Errorf("get journey %s: %w", clientID, err)
	}
	if !ok {
		return journey.Initial(clientID), nil
	}
	return j, nil
}

// SetJourneyStage records a journey stage decided outside the lifecycle
// engine, such as onboarding or payment flows. It uses the same
// compare-and-swap and single retry as engagement transitions.
func (s *Service) SetJourneyStage(ctx context.Context, clientID string, stage journey.Stage) (journey.Journey, error) {
	if _, err := journey.ParseStage(string(stage)); err != nil {
		return journey.Journey{}, err
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		current, err := s.GetJourneyStage(ctx, clientID)
		if err != nil {
			return journey.Journey{}, err
		}
		if current.Stage == stage {
			return current, nil
		}
		deps, err := s.components()
		if err != nil {
			return journey.Journey{}, err
		}

		next := current
		next.Stage = stage
		next.UpdatedAt = s.now().UTC()
		err = deps.store.SaveJourney(ctx, next, current.Version)
		if errors.Is(err, repository.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return journey.Journey{}, fmt.Errorf("save journey %s: %w", clientID, err)
		}
		next.Version = current.Version + 1
		s.logger.Info(ctx, "journey stage set",
			logger.String("client_id", clientID),
			logger.String("from", string(current.Stage)),
			logger.String("to", string(stage)),
		)
		return next, nil
	}
	return journey.Journey{}, fmt.Errorf("%w: journey %s", engagement.ErrConcurrencyConflict, clientID)
}
