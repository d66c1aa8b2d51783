package api

import (
	"context"
	"net/http"

	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/inbound"
	"github.com/okian/coachmatch/internal/domain/types"
)

// ActionDependencies defines the interface for user-initiated changes.
type ActionDependencies interface {
	OnManualAction(ctx context.Context, action inbound.ManualAction) (service.Result, error)
}

// ActionsHandler handles buttons pressed in the client and trainer UIs.
type ActionsHandler struct {
	deps ActionDependencies
}

// NewActionsHandler creates a new actions handler.
func NewActionsHandler(deps ActionDependencies) *ActionsHandler {
	return &ActionsHandler{deps: deps}
}

// HandleAction handles POST /actions.
func (h *ActionsHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_action"
	var req types.ActionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.OnManualAction(r.Context(), inbound.ManualAction{
		Pair:       engagement.Pair{ClientID: req.ClientID, TrainerID: req.TrainerID},
		Action:     inbound.ManualActionKind(req.Action),
		ActorRole:  inbound.ActorRole(req.ActorRole),
		OccurredAt: req.OccurredAt,
	})
	writeTransition(w, op, res, err)
}
