package inbound

import (
	"fmt"
	"time"

	"github.com/okian/coachmatch/internal/domain/engagement"
)

// ManualActionKind is a button a person pressed.
type ManualActionKind string

const (
	ActionView      ManualActionKind = "view"
	ActionLike      ManualActionKind = "like"
	ActionShortlist ManualActionKind = "shortlist"
	ActionRemove    ManualActionKind = "remove"
	ActionDismiss   ManualActionKind = "dismiss"
	ActionUnmatch   ManualActionKind = "unmatch"
)

// ActorRole is who pressed it.
type ActorRole string

const (
	RoleClient  ActorRole = "client"
	RoleTrainer ActorRole = "trainer"
	RoleAdmin   ActorRole = "admin"
)

// ManualAction is a user-initiated change from one of the UI surfaces.
type ManualAction struct {
	Pair       engagement.Pair
	Action     ManualActionKind
	ActorRole  ActorRole
	OccurredAt time.Time

	// WasDeclined is filled in by the service for dismiss from the stored stage.
	WasDeclined bool
}

// Translate maps the action to a lifecycle event. Dismiss goes through
// ManualDismiss. An empty role is read as the client.
func (m ManualAction) Translate() (engagement.Event, error) {
	role := m.ActorRole
	switch role {
	case "":
		role = RoleClient
	case RoleClient, RoleTrainer, RoleAdmin:
	default:
		return engagement.Event{}, fmt.Errorf("%w: actor role %q", ErrUnknownStatus, role)
	}

	var kind engagement.EventKind
	switch m.Action {
	case ActionView:
		kind = engagement.EventView
	case ActionLike:
		kind = engagement.EventLike
	case ActionShortlist:
		kind = engagement.EventShortlist
	case ActionRemove:
		kind = engagement.EventRemove
	case ActionUnmatch:
		kind = engagement.EventUnmatch
	case ActionDismiss:
		kind = ManualDismiss(m.Pair, m.WasDeclined).Kind
	default:
		return engagement.Event{}, fmt.Errorf("%w: manual action %q", ErrUnknownStatus, m.Action)
	}
	return engagement.Event{
		Kind:       kind,
		Pair:       m.Pair,
		Origin:     engagement.OriginUser,
		Actor:      string(role),
		OccurredAt: m.OccurredAt,
	}, nil
}

// ManualDismiss picks between the two ways a pair leaves the client's view:
// a declined pair becomes declined_dismissed, anything else goes back to browsing.
func ManualDismiss(p engagement.Pair, wasDeclined bool) engagement.Event {
	kind := engagement.EventRemove
	if wasDeclined {
		kind = engagement.EventDismiss
	}
	return engagement.Event{Kind: kind, Pair: p, Origin: engagement.OriginUser}
}
