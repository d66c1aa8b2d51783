// Package types contains the request and response shapes of the HTTP API.
package types

import "time"

// TransitionResponse is returned by every endpoint that may move a pair.
// Stage is the pair's stage after the event, including for duplicates and
// ignored notifications; it is omitted only when the store could not be read.
type TransitionResponse struct {
	ClientID  string `json:"client_id"`
	TrainerID string `json:"trainer_id"`
	Stage     string `json:"stage,omitempty"`
	Applied   bool   `json:"applied"`
	Reason    string `json:"reason"`
}

// StageResponse answers GET /engagements/{client_id}/{trainer_id}.
type StageResponse struct {
	ClientID  string `json:"client_id"`
	TrainerID string `json:"trainer_id"`
	Stage     string `json:"stage"`
}

// EngagementView is one row of a client or trainer listing.
type EngagementView struct {
	ClientID             string     `json:"client_id,omitempty"`
	TrainerID            string     `json:"trainer_id,omitempty"`
	Stage                string     `json:"stage"`
	Notes                string     `json:"notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	DiscoveryCompletedAt *time.Time `json:"discovery_completed_at,omitempty"`
}

// EngagementList wraps a listing.
type EngagementList struct {
	Items []EngagementView `json:"items"`
	Count int              `json:"count"`
}

// JourneyResponse answers GET /clients/{client_id}/journey.
type JourneyResponse struct {
	ClientID  string     `json:"client_id"`
	Stage     string     `json:"stage"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// DiscoveryCallRequest is POST /events/discovery-calls.
type DiscoveryCallRequest struct {
	CallID     string    `json:"call_id" validate:"required"`
	ClientID   string    `json:"client_id" validate:"required"`
	TrainerID  string    `json:"trainer_id" validate:"required"`
	Status     string    `json:"status" validate:"required,oneof=scheduled completed cancelled rescheduled"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SelectionRequestRequest is POST /events/selection-requests.
type SelectionRequestRequest struct {
	RequestID   string    `json:"request_id" validate:"required"`
	ClientID    string    `json:"client_id" validate:"required"`
	TrainerID   string    `json:"trainer_id" validate:"required"`
	Status      string    `json:"status" validate:"required,oneof=pending accepted declined alternative_suggested"`
	RespondedAt time.Time `json:"responded_at"`
}

// WaitlistRequest is POST /events/waitlist.
type WaitlistRequest struct {
	ClientID   string    `json:"client_id" validate:"required"`
	TrainerID  string    `json:"trainer_id" validate:"required"`
	Action     string    `json:"action" validate:"required,oneof=join leave"`
	Note       string    `json:"note,omitempty" validate:"max=2000"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ActivationRequest is POST /events/engagements.
type ActivationRequest struct {
	EngagementID string    `json:"engagement_id" validate:"required"`
	ClientID     string    `json:"client_id" validate:"required"`
	TrainerID    string    `json:"trainer_id" validate:"required"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ActionRequest is POST /actions.
type ActionRequest struct {
	ClientID   string    `json:"client_id" validate:"required"`
	TrainerID  string    `json:"trainer_id" validate:"required"`
	Action     string    `json:"action" validate:"required,oneof=view like shortlist remove dismiss unmatch"`
	ActorRole  string    `json:"actor_role" validate:"required,oneof=client trainer admin"`
	OccurredAt time.Time `json:"occurred_at"`
}

// JourneyUpdateRequest is PUT /clients/{client_id}/journey, used by onboarding flows.
type JourneyUpdateRequest struct {
	Stage string `json:"stage" validate:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
