package api

import (
	"context"
	"net/http"

	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/inbound"
	"github.com/okian/coachmatch/internal/domain/types"
)

// EventDependencies defines the interface for collaborator notifications.
type EventDependencies interface {
	OnDiscoveryCallEvent(ctx context.Context, call inbound.DiscoveryCall) (service.Result, error)
	OnSelectionRequestEvent(ctx context.Context, req inbound.SelectionRequest) (service.Result, error)
	OnWaitlistEvent(ctx context.Context, entry inbound.WaitlistEntry) (service.Result, error)
	OnEngagementActivated(ctx context.Context, a inbound.Activation) (service.Result, error)
}

// EventsHandler handles notifications from the discovery-call, selection,
// waitlist and payment subsystems. None of these are user-initiated, so rule
// rejections are reported in the body with status 200.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandleDiscoveryCall handles POST /events/discovery-calls.
func (h *EventsHandler) HandleDiscoveryCall(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_discovery_call"
	var req types.DiscoveryCallRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.OnDiscoveryCallEvent(r.Context(), inbound.DiscoveryCall{
		CallID:     req.CallID,
		Pair:       engagement.Pair{ClientID: req.ClientID, TrainerID: req.TrainerID},
		Status:     inbound.DiscoveryCallStatus(req.Status),
		OccurredAt: req.OccurredAt,
	})
	writeTransition(w, op, res, err)
}

// HandleSelectionRequest handles POST /events/selection-requests.
func (h *EventsHandler) HandleSelectionRequest(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_selection_request"
	var req types.SelectionRequestRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.OnSelectionRequestEvent(r.Context(), inbound.SelectionRequest{
		RequestID:   req.RequestID,
		Pair:        engagement.Pair{ClientID: req.ClientID, TrainerID: req.TrainerID},
		Status:      inbound.SelectionStatus(req.Status),
		RespondedAt: req.RespondedAt,
	})
	writeTransition(w, op, res, err)
}

// HandleWaitlist handles POST /events/waitlist.
func (h *EventsHandler) HandleWaitlist(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_waitlist"
	var req types.WaitlistRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.OnWaitlistEvent(r.Context(), inbound.WaitlistEntry{
		Pair:       engagement.Pair{ClientID: req.ClientID, TrainerID: req.TrainerID},
		Action:     inbound.WaitlistAction(req.Action),
		Note:       req.Note,
		OccurredAt: req.OccurredAt,
	})
	writeTransition(w, op, res, err)
}

// HandleActivation handles POST /events/engagements.
func (h *EventsHandler) HandleActivation(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_engagement_activation"
	var req types.ActivationRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.OnEngagementActivated(r.Context(), inbound.Activation{
		EngagementID: req.EngagementID,
		Pair:         engagement.Pair{ClientID: req.ClientID, TrainerID: req.TrainerID},
		OccurredAt:   req.OccurredAt,
	})
	writeTransition(w, op, res, err)
}
