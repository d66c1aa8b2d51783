package engagement

import (
	"strings"
	"time"
)

// EventKind is the generic vocabulary every adapter translates into.
type EventKind string

const (
	EventView                EventKind = "view"
	EventLike                EventKind = "like"
	EventShortlist           EventKind = "shortlist"
	EventRemove              EventKind = "remove"
	EventDismiss             EventKind = "dismiss"
	EventCallBooked          EventKind = "call_booked"
	EventCallCancelled       EventKind = "call_cancelled"
	EventCallCompleted       EventKind = "call_completed"
	EventRequestAccepted     EventKind = "request_accepted"
	EventRequestDeclined     EventKind = "request_declined"
	EventEngagementActivated EventKind = "engagement_activated"
	EventUnmatch             EventKind = "unmatch"
)

// Origin tells whether an event came from an automated collaborator or a person.
type Origin string

const (
	OriginAutomated Origin = "automated"
	OriginUser      Origin = "user"
)

// Pair identifies one client-trainer engagement.
type Pair struct {
	ClientID  string `json:"client_id"`
	TrainerID string `json:"trainer_id"`
}

// Validate rejects pairs with a missing side.
func (p Pair) Validate() error {
	if strings.TrimSpace(p.ClientID) == "" || strings.TrimSpace(p.TrainerID) == "" {
		return ErrInvalidPair
	}
	return nil
}

func (p Pair) String() string { return p.ClientID + "/" + p.TrainerID }

// Event is a normalised request to move a pair through the lifecycle.
type Event struct {
	Kind   EventKind
	Pair   Pair
	Origin Origin

	// Key is the idempotency key, "<source>:<entity id>:<status>". Empty for
	// events that are safe to re-apply, such as manual actions.
	Key string

	// Note is copied onto the record when the event is applied.
	Note string

	// Actor is the role that pressed the button for user events.
	Actor string

	// OccurredAt is when the collaborator says it happened. Zero means now.
	OccurredAt time.Time
}

// StampTime returns the time to record for the event: OccurredAt when set
// and not ahead of now, otherwise now.
func (e Event) StampTime(now time.Time) time.Time {
	if e.OccurredAt.IsZero() || e.OccurredAt.After(now) {
		return now.UTC()
	}
	return e.OccurredAt.UTC()
}
