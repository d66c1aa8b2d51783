package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/types"
)

// QueryDependencies defines the read side of the engagement store.
type QueryDependencies interface {
	GetStage(ctx context.Context, p engagement.Pair) (engagement.Stage, error)
	ListEngagementsForClient(ctx context.Context, clientID string) ([]engagement.Record, error)
	ListEngagementsForTrainer(ctx context.Context, trainerID string) ([]engagement.Record, error)
}

// EngagementsHandler serves stage lookups and listings.
type EngagementsHandler struct {
	deps QueryDependencies
}

// NewEngagementsHandler creates a new engagements handler.
func NewEngagementsHandler(deps QueryDependencies) *EngagementsHandler {
	return &EngagementsHandler{deps: deps}
}

// HandleGetStage handles GET /engagements/{client_id}/{trainer_id}. A pair
// that was never stored reads as browsing.
func (h *EngagementsHandler) HandleGetStage(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_stage"
	p := engagement.Pair{ClientID: chi.URLParam(r, "client_id"), TrainerID: chi.URLParam(r, "trainer_id")}
	stage, err := h.deps.GetStage(r.Context(), p)
	if err != nil {
		writeQueryError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, types.StageResponse{ClientID: p.ClientID, TrainerID: p.TrainerID, Stage: string(stage)})
}

// HandleListForClient handles GET /clients/{client_id}/engagements.
func (h *EngagementsHandler) HandleListForClient(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_client_engagements"
	recs, err := h.deps.ListEngagementsForClient(r.Context(), chi.URLParam(r, "client_id"))
	if err != nil {
		writeQueryError(w, op, err)
		return
	}
	items := make([]types.EngagementView, len(recs))
	for i, rec := range recs {
		items[i] = view(rec)
		items[i].ClientID = ""
	}
	writeJSON(w, http.StatusOK, types.EngagementList{Items: items, Count: len(items)})
}

// HandleListForTrainer handles GET /trainers/{trainer_id}/engagements.
func (h *EngagementsHandler) HandleListForTrainer(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_trainer_engagements"
	recs, err := h.deps.ListEngagementsForTrainer(r.Context(), chi.URLParam(r, "trainer_id"))
	if err != nil {
		writeQueryError(w, op, err)
		return
	}
	items := make([]types.EngagementView, len(recs))
	for i, rec := range recs {
		items[i] = view(rec)
		items[i].TrainerID = ""
	}
	writeJSON(w, http.StatusOK, types.EngagementList{Items: items, Count: len(items)})
}

func view(rec engagement.Record) types.EngagementView {
	return types.EngagementView{
		ClientID:             rec.ClientID,
		TrainerID:            rec.TrainerID,
		Stage:                string(rec.Stage),
		Notes:                rec.Notes,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
		DiscoveryCompletedAt: rec.DiscoveryCompletedAt,
	}
}
