// Package journey derives a client's funnel position from all of their
// engagements.
package journey

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownStage is returned when a value is outside the journey enumeration.
var ErrUnknownStage = errors.New("unknown journey stage")

// Stage is the client-level funnel position.
type Stage string

const (
	StageProfileSetup       Stage = "profile_setup"
	StageExploringCoaches   Stage = "exploring_coaches"
	StageShortlisting       Stage = "shortlisting"
	StageDiscoveryScheduled Stage = "discovery_scheduled"
	StageDiscoveryCompleted Stage = "discovery_completed"
	StageCoachSelected      Stage = "coach_selected"
	StageConnected          Stage = "connected"
)

// Stages lists the journey in funnel order.
var Stages = []Stage{
	StageProfileSetup,
	StageExploringCoaches,
	StageShortlisting,
	StageDiscoveryScheduled,
	StageDiscoveryCompleted,
	StageCoachSelected,
	StageConnected,
}

// ParseStage validates s against the journey enumeration.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if st.Rank() < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
	}
	return st, nil
}

// Rank is the position of s in the funnel, or -1 when unknown.
func (s Stage) Rank() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// InEngagementBand reports whether the stage was reached through pairwise
// engagements, i.e. lies between shortlisting and coach_selected.
func (s Stage) InEngagementBand() bool {
	r := s.Rank()
	return r >= StageShortlisting.Rank() && r <= StageCoachSelected.Rank()
}

// Journey is the stored funnel position of one client.
type Journey struct {
	ClientID  string    `json:"client_id"`
	Stage     Stage     `json:"stage"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Initial is the journey of a client that never had one stored.
func Initial(clientID string) Journey {
	return Journey{ClientID: clientID, Stage: StageProfileSetup}
}
