// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/domain/engagement"
	"github.com/okian/coachmatch/internal/domain/inbound"
	"github.com/okian/coachmatch/internal/domain/journey"
	"github.com/okian/coachmatch/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	EventDependencies
	ActionDependencies
	QueryDependencies
	JourneyDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	actionsHandler     *ActionsHandler
	engagementsHandler *EngagementsHandler
	journeyHandler     *JourneyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		actionsHandler:     NewActionsHandler(deps),
		engagementsHandler: NewEngagementsHandler(deps),
		journeyHandler:     NewJourneyHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Post("/events/discovery-calls", MetricsMiddleware(s.eventsHandler.HandleDiscoveryCall, "events_discovery_calls"))
	r.Post("/events/selection-requests", MetricsMiddleware(s.eventsHandler.HandleSelectionRequest, "events_selection_requests"))
	r.Post("/events/waitlist", MetricsMiddleware(s.eventsHandler.HandleWaitlist, "events_waitlist"))
	r.Post("/events/engagements", MetricsMiddleware(s.eventsHandler.HandleActivation, "events_engagements"))

	r.Post("/actions", MetricsMiddleware(s.actionsHandler.HandleAction, "actions"))

	r.Get("/engagements/{client_id}/{trainer_id}", MetricsMiddleware(s.engagementsHandler.HandleGetStage, "engagement_stage"))
	r.Get("/clients/{client_id}/engagements", MetricsMiddleware(s.engagementsHandler.HandleListForClient, "client_engagements"))
	r.Get("/trainers/{trainer_id}/engagements", MetricsMiddleware(s.engagementsHandler.HandleListForTrainer, "trainer_engagements"))

	r.Get("/clients/{client_id}/journey", MetricsMiddleware(s.journeyHandler.HandleGetJourney, "journey"))
	r.Put("/clients/{client_id}/journey", MetricsMiddleware(s.journeyHandler.HandlePutJourney, "journey"))
}

// NewRouter returns a router with the standard middleware stack and every
// business route registered.
func (s *Server) NewRouter(ctx context.Context) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	s.Register(ctx, r)
	return r
}

var validate = validator.New()

// decode reads a JSON body into v and validates its struct tags.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return validateStruct(v)
}

// validateStruct joins field errors into one readable message.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, ", "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, types.ErrorResponse{Error: code, Message: msg})
}

// writeTransition renders the outcome of a lifecycle event. Capacity
// rejections become 409 only for user-originated events; automated sources
// always get 200 with applied=false.
func writeTransition(w http.ResponseWriter, op string, res service.Result, err error) {
	switch {
	case err == nil:
	case errors.Is(err, engagement.ErrConcurrencyConflict):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "concurrency_conflict", WrapKind(op, ErrUnavailable, err))
		return
	case errors.Is(err, engagement.ErrInvalidPair), errors.Is(err, inbound.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
		return
	}

	if res.Origin == engagement.OriginUser && errors.Is(engagement.ReasonError(res.Reason), engagement.ErrCapacityExceeded) {
		writeJSON(w, http.StatusConflict, types.ErrorResponse{
			Error:   string(engagement.ReasonCapacityExceeded),
			Message: ErrCapacity.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, types.TransitionResponse{
		ClientID:  res.Pair.ClientID,
		TrainerID: res.Pair.TrainerID,
		Stage:     string(res.Stage),
		Applied:   res.Applied,
		Reason:    string(res.Reason),
	})
}

// writeQueryError maps errors from read endpoints.
func writeQueryError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, engagement.ErrInvalidPair),
		errors.Is(err, service.ErrMissingClientID),
		errors.Is(err, journey.ErrUnknownStage):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, engagement.ErrConcurrencyConflict), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
	}
}
