// Package scenario drives a running coachmatch server through the lifecycle
// paths clients and trainers take and checks where each pair ends up.
package scenario

import (
	"errors"
	"time"
)

// ErrFailed is returned by Run when at least one scenario did not end in
// the expected stages.
var ErrFailed = errors.New("scenario run failed")

// Config holds configuration for a scenario run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Rounds      int           // Times each scenario is repeated with fresh ids
	Workers     int           // Number of concurrent workers
	Timeout     time.Duration // HTTP request timeout
	JourneyWait time.Duration // How long to poll for the async journey projection
	Only        []string      // Scenario names to run; empty runs all
	Verbose     bool          // Log every step
}

// Stats holds run statistics.
type Stats struct {
	Runs      int
	Passed    int
	Failed    int
	Requests  int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Outcome is the result of one scenario run.
type Outcome struct {
	Scenario string
	ClientID string
	Requests int
	Err      error
}
