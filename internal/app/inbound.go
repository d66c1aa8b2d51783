package service

import (
	"context"
	"errors"

	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/inbound"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

// translator is any collaborator payload that maps to a lifecycle event.
type translator interface {
	Translate() (engagement.Event, error)
}

// OnDiscoveryCallEvent handles a discovery-call lifecycle notification.
func (s *Service) OnDiscoveryCallEvent(ctx context.Context, call inbound.DiscoveryCall) (Result, error) {
	return s.handle(ctx, inbound.SourceDiscoveryCall, call.Pair, call)
}

// OnSelectionRequestEvent handles a coach-selection-request notification.
func (s *Service) OnSelectionRequestEvent(ctx context.Context, req inbound.SelectionRequest) (Result, error) {
	return s.handle(ctx, inbound.SourceSelectionRequest, req.Pair, req)
}

// OnWaitlistEvent handles a waitlist join or leave.
func (s *Service) OnWaitlistEvent(ctx context.Context, entry inbound.WaitlistEntry) (Result, error) {
	return s.handle(ctx, "waitlist", entry.Pair, entry)
}

// OnEngagementActivated handles the verified start of a paid engagement.
func (s *Service) OnEngagementActivated(ctx context.Context, a inbound.Activation) (Result, error) {
	return s.handle(ctx, inbound.SourceEngagement, a.Pair, a)
}

// OnManualAction handles a button pressed in one of the UI surfaces. Dismiss
// reads the stored stage to choose between the declined dismissal and a
// plain removal.
func (s *Service) OnManualAction(ctx context.Context, action inbound.ManualAction) (Result, error) {
	if action.Action == inbound.ActionDismiss {
		rec, err := s.GetEngagement(ctx, action.Pair)
		if err != nil {
			return Result{Pair: action.Pair, Origin: engagement.OriginUser}, err
		}
		action.WasDeclined = rec.Stage == engagement.StageDeclined || rec.Stage == engagement.StageDeclinedDismissed
	}
	return s.handle(ctx, "manual", action.Pair, action)
}

// OnManualDismiss removes a pair from the client's view. A declined pair is
// archived as declined_dismissed; any other pair goes back to browsing.
func (s *Service) OnManualDismiss(ctx context.Context, p engagement.Pair, wasDeclined bool) (Result, error) {
	return s.dispatch(ctx, "manual", inbound.ManualDismiss(p, wasDeclined))
}

func (s *Service) handle(ctx context.Context, source string, p engagement.Pair, t translator) (Result, error) {
	ev, err := t.Translate()
	if errors.Is(err, inbound.ErrIgnored) {
		metrics.RecordTransitionRejected(source, string(engagement.ReasonIgnored))
		// Only collaborator notifications are ever ignored.
		return s.unchanged(ctx, p, engagement.OriginAutomated, engagement.ReasonIgnored), nil
	}
	if err != nil {
		return Result{Pair: p}, err
	}
	return s.dispatch(ctx, source, ev)
}

// dispatch checks the idempotency ledger before running the transition. A
// key seen before short-circuits without touching the store; a key whose
// transition failed is forgotten again so the upstream retry gets through.
func (s *Service) dispatch(ctx context.Context, source string, ev engagement.Event) (Result, error) {
	if err := ev.Pair.Validate(); err != nil {
		return Result{}, err
	}
	deps, err := s.components()
	if err != nil {
		return Result{}, err
	}

	if ev.Key != "" && deps.deduper.SeenAndRecord(ctx, ev.Key) {
		metrics.RecordEventDuplicate(source)
		s.logger.Debug(ctx, "duplicate notification skipped",
			logger.String("key", ev.Key),
			logger.String("pair", ev.Pair.String()),
		)
		return s.unchanged(ctx, ev.Pair, ev.Origin, engagement.ReasonDuplicate), nil
	}

	res, err := s.Transition(ctx, ev)
	if err != nil && ev.Key != "" {
		deps.deduper.Unrecord(ctx, ev.Key)
	}
	return res, err
}

// unchanged reports an event that ran no transition, with the pair's current
// stage. Stage is left empty when the store cannot be read.
func (s *Service) unchanged(ctx context.Context, p engagement.Pair, origin engagement.Origin, reason engagement.Reason) Result {
	res := Result{Pair: p, Origin: origin, Reason: reason}
	if p.Validate() != nil {
		return res
	}
	rec, err := s.GetEngagement(ctx, p)
	if err != nil {
		s.logger.Warn(ctx, "current stage unavailable",
			logger.String("pair", p.String()),
			logger.String("reason", string(reason)),
			logger.Error(err),
		)
		return res
	}
	res.From, res.Stage = rec.Stage, rec.Stage
	return res
}
