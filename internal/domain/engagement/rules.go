package engagement

import "time"

// Reason explains the outcome of a transition attempt.
type Reason string

const (
	ReasonApplied           Reason = "applied"
	ReasonNoChange          Reason = "no_change"
	ReasonInvalidTransition Reason = "invalid_transition"
	ReasonCapacityExceeded  Reason = "capacity_exceeded"
	ReasonDuplicate         Reason = "duplicate"
	ReasonIgnored           Reason = "ignored"
)

// Effect is a side effect attached to a rule.
type Effect uint8

const (
	// EffectCapacity gates the rule on the shortlist capacity guard.
	EffectCapacity Effect = 1 << iota
	// EffectDiscoveryCompleted stamps discovery_completed_at the first time.
	EffectDiscoveryCompleted
	// EffectProject schedules a journey reprojection for the client.
	EffectProject
)

// Rule maps an event on any of the From stages to the To stage.
type Rule struct {
	Event   EventKind
	From    []Stage
	To      Stage
	Effects Effect
}

func (r Rule) has(e Effect) bool { return r.Effects&e != 0 }

func (r Rule) appliesTo(s Stage) bool {
	for _, f := range r.From {
		if f == s {
			return true
		}
	}
	return false
}

func except(excluded ...Stage) []Stage {
	out := make([]Stage, 0, len(AllStages))
next:
	for _, s := range AllStages {
		for _, x := range excluded {
			if s == x {
				continue next
			}
		}
		out = append(out, s)
	}
	return out
}

func preMatch() []Stage {
	var out []Stage
	for _, s := range AllStages {
		if s.IsPreMatch() {
			out = append(out, s)
		}
	}
	return out
}

// Rules is the complete transition table. Events not listed for a stage are
// rejected as invalid transitions. A rule whose target is the current stage
// is a no-op, which keeps re-delivered events idempotent.
var Rules = []Rule{
	{Event: EventView, From: []Stage{StageBrowsing, StageLiked}, To: StageLiked},
	{Event: EventLike, From: []Stage{StageBrowsing, StageLiked}, To: StageLiked},
	{Event: EventShortlist, From: []Stage{StageBrowsing, StageLiked, StageShortlisted}, To: StageShortlisted, Effects: EffectCapacity},
	{Event: EventCallBooked, From: []Stage{StageShortlisted, StageDiscoveryCallBooked}, To: StageDiscoveryCallBooked},
	// A cancelled call returns the pair to shortlisted without consulting the
	// capacity guard, so a client may briefly hold more than the cap.
	{Event: EventCallCancelled, From: []Stage{StageDiscoveryCallBooked}, To: StageShortlisted, Effects: EffectProject},
	{
		Event:   EventCallCompleted,
		From:    except(StageMatched, StageActiveClient, StageDeclined, StageDeclinedDismissed, StageUnmatched),
		To:      StageDiscoveryCompleted,
		Effects: EffectDiscoveryCompleted,
	},
	{
		Event:   EventRequestDeclined,
		From:    except(StageActiveClient, StageDeclinedDismissed, StageUnmatched),
		To:      StageDeclined,
		Effects: EffectProject,
	},
	{Event: EventDismiss, From: []Stage{StageDeclined, StageDeclinedDismissed}, To: StageDeclinedDismissed},
	{Event: EventRemove, From: except(StageDeclined, StageDeclinedDismissed, StageActiveClient), To: StageBrowsing},
	{Event: EventRequestAccepted, From: append(preMatch(), StageMatched), To: StageMatched},
	{Event: EventEngagementActivated, From: []Stage{StageMatched, StageActiveClient}, To: StageActiveClient},
	{Event: EventUnmatch, From: []Stage{StageMatched, StageUnmatched}, To: StageUnmatched, Effects: EffectProject},
}

// RuleFor looks up the rule for an event on the given stage.
func RuleFor(from Stage, ev EventKind) (Rule, bool) {
	for _, r := range Rules {
		if r.Event == ev && r.appliesTo(from) {
			return r, true
		}
	}
	return Rule{}, false
}

// Decision is the authority's verdict on one event.
type Decision struct {
	Event   EventKind
	From    Stage
	To      Stage
	Applied bool
	Reason  Reason

	// Record is the state to write when Applied is true.
	Record Record

	// NeedsCapacity is set when the write must first pass the shortlist guard.
	NeedsCapacity bool

	// TriggersProjection is set when the client's journey must be recomputed
	// after the write.
	TriggersProjection bool
}

// Reject turns the decision into a no-op with the given reason.
func (d Decision) Reject(reason Reason) Decision {
	return Decision{Event: d.Event, From: d.From, To: d.From, Reason: reason}
}

// Decide applies the rule table to the current record. exists is false when
// the pair has never been stored, in which case current is ignored and the
// pair is treated as browsing. Timestamps come from the event when it carries
// one, else from now. Decide never touches Version; the store bumps it on write.
func Decide(current Record, exists bool, ev Event, now time.Time) Decision {
	if !exists {
		current = Browsing(ev.Pair)
	}
	from := current.Stage
	d := Decision{Event: ev.Kind, From: from, To: from}

	rule, ok := RuleFor(from, ev.Kind)
	if !ok {
		d.Reason = ReasonInvalidTransition
		return d
	}
	if rule.To == from {
		d.Reason = ReasonNoChange
		return d
	}
	if ev.Origin == OriginAutomated && from.IsTerminal() {
		d.Reason = ReasonInvalidTransition
		return d
	}

	at := ev.StampTime(now)
	next := current
	if !exists {
		next.CreatedAt = at
	}
	next.Stage = rule.To
	next.UpdatedAt = at
	if rule.has(EffectDiscoveryCompleted) && next.DiscoveryCompletedAt == nil {
		stamp := at
		next.DiscoveryCompletedAt = &stamp
	}
	if ev.Note != "" {
		next.Notes = ev.Note
	}

	d.To = rule.To
	d.Applied = true
	d.Reason = ReasonApplied
	d.Record = next
	d.NeedsCapacity = rule.has(EffectCapacity)
	d.TriggersProjection = rule.has(EffectProject)
	return d
}
