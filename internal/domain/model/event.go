// Package model contains domain models passed between layers.
package model

import "time"

// ProjectionJob asks the journey projector to recompute one client.
type ProjectionJob struct {
	JobID     string    // unique id for log correlation
	ClientID  string    // client whose journey is recomputed
	TrainerID string    // pair whose transition triggered the job
	Cause     string    // event kind that triggered the job
	QueuedAt  time.Time // enqueue time, for latency metrics
}
