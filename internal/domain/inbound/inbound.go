// Package inbound translates collaborator notifications into lifecycle events.
package inbound

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/coachmatch/internal/domain/engagement"
)

// Sources used as the first segment of idempotency keys.
const (
	SourceDiscoveryCall    = "discovery_call"
	SourceSelectionRequest = "selection_request"
	SourceEngagement       = "engagement"
)

var (
	// ErrIgnored marks a notification that has no lifecycle meaning.
	ErrIgnored = errors.New("notification ignored")
	// ErrUnknownStatus marks a status or action outside the collaborator's vocabulary.
	ErrUnknownStatus = errors.New("unknown status")
)

// Key builds the idempotency key for a terminal status of an upstream entity.
func Key(source, entityID, status string) string {
	return source + ":" + entityID + ":" + status
}

// DiscoveryCallStatus is the lifecycle of a discovery call.
type DiscoveryCallStatus string

const (
	CallScheduled   DiscoveryCallStatus = "scheduled"
	CallRescheduled DiscoveryCallStatus = "rescheduled"
	CallCompleted   DiscoveryCallStatus = "completed"
	CallCancelled   DiscoveryCallStatus = "cancelled"
)

// DiscoveryCall is a discovery-call lifecycle notification.
type DiscoveryCall struct {
	CallID     string
	Pair       engagement.Pair
	Status     DiscoveryCallStatus
	OccurredAt time.Time
}

// Translate maps the notification to a lifecycle event. Only the terminal
// statuses carry an idempotency key; scheduling is a no-op when repeated.
func (c DiscoveryCall) Translate() (engagement.Event, error) {
	ev := engagement.Event{Pair: c.Pair, Origin: engagement.OriginAutomated, OccurredAt: c.OccurredAt}
	switch c.Status {
	case CallScheduled, CallRescheduled:
		ev.Kind = engagement.EventCallBooked
	case CallCompleted:
		ev.Kind = engagement.EventCallCompleted
		ev.Key = Key(SourceDiscoveryCall, c.CallID, string(c.Status))
	case CallCancelled:
		ev.Kind = engagement.EventCallCancelled
		ev.Key = Key(SourceDiscoveryCall, c.CallID, string(c.Status))
	default:
		return engagement.Event{}, fmt.Errorf("%w: discovery call %q", ErrUnknownStatus, c.Status)
	}
	return ev, nil
}

// SelectionStatus is the lifecycle of a coach selection request.
type SelectionStatus string

const (
	SelectionPending              SelectionStatus = "pending"
	SelectionAccepted             SelectionStatus = "accepted"
	SelectionDeclined             SelectionStatus = "declined"
	SelectionAlternativeSuggested SelectionStatus = "alternative_suggested"
)

// SelectionRequest is a coach-selection-request lifecycle notification.
type SelectionRequest struct {
	RequestID   string
	Pair        engagement.Pair
	Status      SelectionStatus
	RespondedAt time.Time
}

// Translate maps the notification to a lifecycle event.
func (r SelectionRequest) Translate() (engagement.Event, error) {
	ev := engagement.Event{Pair: r.Pair, Origin: engagement.OriginAutomated, OccurredAt: r.RespondedAt}
	switch r.Status {
	case SelectionAccepted:
		ev.Kind = engagement.EventRequestAccepted
	case SelectionDeclined:
		ev.Kind = engagement.EventRequestDeclined
	case SelectionPending, SelectionAlternativeSuggested:
		return engagement.Event{}, ErrIgnored
	default:
		return engagement.Event{}, fmt.Errorf("%w: selection request %q", ErrUnknownStatus, r.Status)
	}
	ev.Key = Key(SourceSelectionRequest, r.RequestID, string(r.Status))
	return ev, nil
}

// WaitlistAction is a waitlist change.
type WaitlistAction string

const (
	WaitlistJoin  WaitlistAction = "join"
	WaitlistLeave WaitlistAction = "leave"
)

// WaitlistEntry is a waitlist join or leave notification.
type WaitlistEntry struct {
	Pair       engagement.Pair
	Action     WaitlistAction
	Note       string
	OccurredAt time.Time
}

// Translate maps a join to a like carrying the note. Leaving a waitlist does
// not change the engagement.
func (w WaitlistEntry) Translate() (engagement.Event, error) {
	switch w.Action {
	case WaitlistJoin:
		return engagement.Event{
			Kind:       engagement.EventLike,
			Pair:       w.Pair,
			Origin:     engagement.OriginAutomated,
			Note:       w.Note,
			OccurredAt: w.OccurredAt,
		}, nil
	case WaitlistLeave:
		return engagement.Event{}, ErrIgnored
	default:
		return engagement.Event{}, fmt.Errorf("%w: waitlist %q", ErrUnknownStatus, w.Action)
	}
}

// Activation signals that a matched engagement was paid for and started.
type Activation struct {
	EngagementID string
	Pair         engagement.Pair
	OccurredAt   time.Time
}

// Translate maps the activation to a lifecycle event.
func (a Activation) Translate() (engagement.Event, error) {
	return engagement.Event{
		Kind:       engagement.EventEngagementActivated,
		Pair:       a.Pair,
		Origin:     engagement.OriginAutomated,
		Key:        Key(SourceEngagement, a.EngagementID, "activated"),
		OccurredAt: a.OccurredAt,
	}, nil
}
