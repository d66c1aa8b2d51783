// Package engagement holds the client-trainer lifecycle: stages, events, the
// transition rule table and the shortlist capacity guard. Everything here is
// pure; persistence and fan-out live in the app and adapter layers.
package engagement

import "fmt"

// Stage is the lifecycle value of one client-trainer pair.
type Stage string

// Lifecycle stages. A pair without a record is StageBrowsing.
const (
	StageBrowsing            Stage = "browsing"
	StageLiked               Stage = "liked"
	StageShortlisted         Stage = "shortlisted"
	StageDiscoveryCallBooked Stage = "discovery_call_booked"
	StageDiscoveryInProgress Stage = "discovery_in_progress"
	StageDiscoveryCompleted  Stage = "discovery_completed"
	StageMatched             Stage = "matched"
	StageActiveClient        Stage = "active_client"
	StageDeclined            Stage = "declined"
	StageDeclinedDismissed   Stage = "declined_dismissed"
	StageUnmatched           Stage = "unmatched"
)

// AllStages lists every stage in funnel order.
var AllStages = []Stage{
	StageBrowsing,
	StageLiked,
	StageShortlisted,
	StageDiscoveryCallBooked,
	StageDiscoveryInProgress,
	StageDiscoveryCompleted,
	StageMatched,
	StageActiveClient,
	StageDeclined,
	StageDeclinedDismissed,
	StageUnmatched,
}

// ParseStage validates s against the stage enumeration.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown stage %q", s)
	}
	return st, nil
}

// Valid reports whether s is part of the enumeration.
func (s Stage) Valid() bool {
	for _, st := range AllStages {
		if st == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automatic event may move the pair on.
func (s Stage) IsTerminal() bool {
	switch s {
	case StageActiveClient, StageDeclinedDismissed, StageUnmatched:
		return true
	default:
		return false
	}
}

// IsActive reports whether the pair still counts toward the client's funnel.
func (s Stage) IsActive() bool {
	switch s {
	case StageBrowsing, StageDeclined, StageDeclinedDismissed, StageUnmatched:
		return false
	default:
		return true
	}
}

// IsPreMatch reports whether a selection request may still be accepted.
func (s Stage) IsPreMatch() bool {
	switch s {
	case StageBrowsing, StageLiked, StageShortlisted, StageDiscoveryCallBooked,
		StageDiscoveryInProgress, StageDiscoveryCompleted:
		return true
	default:
		return false
	}
}

func (s Stage) String() string { return string(s) }
