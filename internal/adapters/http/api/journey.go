package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/coachmatch/internal/domain/journey"
	"github.com/okian/coachmatch/internal/domain/types"
)

// JourneyDependencies defines the client journey operations.
type JourneyDependencies interface {
	GetJourneyStage(ctx context.Context, clientID string) (journey.Journey, error)
	SetJourneyStage(ctx context.Context, clientID string, stage journey.Stage) (journey.Journey, error)
}

// JourneyHandler serves the client-level funnel position.
type JourneyHandler struct {
	deps JourneyDependencies
}

// NewJourneyHandler creates a new journey handler.
func NewJourneyHandler(deps JourneyDependencies) *JourneyHandler {
	return &JourneyHandler{deps: deps}
}

// HandleGetJourney handles GET /clients/{client_id}/journey.
func (h *JourneyHandler) HandleGetJourney(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_journey"
	j, err := h.deps.GetJourneyStage(r.Context(), chi.URLParam(r, "client_id"))
	if err != nil {
		writeQueryError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, journeyResponse(j))
}

// HandlePutJourney handles PUT /clients/{client_id}/journey.
func (h *JourneyHandler) HandlePutJourney(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_journey"
	var req types.JourneyUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	stage, err := journey.ParseStage(req.Stage)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	j, err := h.deps.SetJourneyStage(r.Context(), chi.URLParam(r, "client_id"), stage)
	if err != nil {
		writeQueryError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, journeyResponse(j))
}

func journeyResponse(j journey.Journey) types.JourneyResponse {
	resp := types.JourneyResponse{ClientID: j.ClientID, Stage: string(j.Stage)}
	if !j.UpdatedAt.IsZero() {
		t := j.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}
