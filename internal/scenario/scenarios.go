package scenario

import (
	"fmt"
	"net/http"

	"github.com/okian/coachmatch/internal/domain/types"
)

// Request is one call against the API.
type Request struct {
	Method string
	Path   string
	Body   any
}

// Expect describes the response of a single request. Empty fields are not checked.
type Expect struct {
	Status  int
	Stage   string
	Reason  string
	Applied *bool
}

// Step is either one request checked against Expect, or a batch of
// requests sent at once and checked by how many were applied and how many
// were rejected for capacity.
type Step struct {
	Name         string
	Requests     []Request
	Expect       Expect
	WantApplied  int
	WantRejected int
}

// Check is a stage the pair must hold once every step has run.
type Check struct {
	TrainerID string
	Stage     string
}

// Script is a scenario instantiated for one client.
type Script struct {
	Steps []Step
	// Stages are read back through GET /engagements.
	Stages []Check
	// Shortlisted is the number of shortlisted pairs the client must hold.
	Shortlisted int
	// Journey is polled until it matches, since projection is asynchronous.
	Journey string
}

// Scenario builds a script for a fresh client id.
type Scenario struct {
	Name  string
	Build func(clientID string) Script
}

var (
	yes = true
	no  = false
)

func action(clientID, trainerID, kind string) Request {
	return Request{Method: http.MethodPost, Path: "/actions", Body: types.ActionRequest{
		ClientID: clientID, TrainerID: trainerID, Action: kind, ActorRole: "client",
	}}
}

func call(clientID, trainerID, callID, status string) Request {
	return Request{Method: http.MethodPost, Path: "/events/discovery-calls", Body: types.DiscoveryCallRequest{
		CallID: callID, ClientID: clientID, TrainerID: trainerID, Status: status,
	}}
}

func selection(clientID, trainerID, requestID, status string) Request {
	return Request{Method: http.MethodPost, Path: "/events/selection-requests", Body: types.SelectionRequestRequest{
		RequestID: requestID, ClientID: clientID, TrainerID: trainerID, Status: status,
	}}
}

func activation(clientID, trainerID, engagementID string) Request {
	return Request{Method: http.MethodPost, Path: "/events/engagements", Body: types.ActivationRequest{
		EngagementID: engagementID, ClientID: clientID, TrainerID: trainerID,
	}}
}

func setJourney(clientID, stage string) Request {
	return Request{Method: http.MethodPut, Path: "/clients/" + clientID + "/journey", Body: types.JourneyUpdateRequest{Stage: stage}}
}

func moved(name string, r Request, stage string) Step {
	return Step{Name: name, Requests: []Request{r}, Expect: Expect{Status: http.StatusOK, Stage: stage, Applied: &yes}}
}

// All returns every built-in scenario.
func All() []Scenario {
	return []Scenario{
		{Name: "happy_path", Build: happyPath},
		{Name: "shortlist_capacity", Build: shortlistCapacity},
		{Name: "cancel_rebook", Build: cancelRebook},
		{Name: "redelivery", Build: redelivery},
		{Name: "decline_demotes", Build: declineDemotes},
		{Name: "stray_cancel", Build: strayCancel},
	}
}

// Select filters All by name. Unknown names are an error.
func Select(names []string) ([]Scenario, error) {
	all := All()
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Scenario, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	out := make([]Scenario, 0, len(names))
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			return nil, fmt.Errorf("unknown scenario %q", n)
		}
		out = append(out, s)
	}
	return out, nil
}

func happyPath(c string) Script {
	t := "trainer-1"
	return Script{
		Steps: []Step{
			moved("like", action(c, t, "like"), "liked"),
			moved("shortlist", action(c, t, "shortlist"), "shortlisted"),
			moved("call scheduled", call(c, t, c+"-call", "scheduled"), "discovery_call_booked"),
			moved("call completed", call(c, t, c+"-call", "completed"), "discovery_completed"),
			moved("request accepted", selection(c, t, c+"-req", "accepted"), "matched"),
			moved("engagement activated", activation(c, t, c+"-eng"), "active_client"),
		},
		Stages: []Check{{TrainerID: t, Stage: "active_client"}},
	}
}

func shortlistCapacity(c string) Script {
	batch := make([]Request, 0, 5)
	for i := 1; i <= 5; i++ {
		batch = append(batch, action(c, fmt.Sprintf("trainer-%d", i), "shortlist"))
	}
	return Script{
		Steps: []Step{
			{Name: "five shortlists at once", Requests: batch, WantApplied: 4, WantRejected: 1},
		},
		Shortlisted: 4,
	}
}

func cancelRebook(c string) Script {
	t := "trainer-1"
	return Script{
		Steps: []Step{
			moved("shortlist", action(c, t, "shortlist"), "shortlisted"),
			moved("call scheduled", call(c, t, c+"-call-a", "scheduled"), "discovery_call_booked"),
			moved("call cancelled", call(c, t, c+"-call-a", "cancelled"), "shortlisted"),
			moved("call rebooked", call(c, t, c+"-call-b", "scheduled"), "discovery_call_booked"),
		},
		Stages: []Check{{TrainerID: t, Stage: "discovery_call_booked"}},
	}
}

func redelivery(c string) Script {
	t := "trainer-1"
	return Script{
		Steps: []Step{
			moved("shortlist", action(c, t, "shortlist"), "shortlisted"),
			moved("call scheduled", call(c, t, c+"-call", "scheduled"), "discovery_call_booked"),
			moved("call completed", call(c, t, c+"-call", "completed"), "discovery_completed"),
			{
				Name:     "call completed redelivered",
				Requests: []Request{call(c, t, c+"-call", "completed")},
				Expect:   Expect{Status: http.StatusOK, Reason: "duplicate", Applied: &no},
			},
		},
		Stages: []Check{{TrainerID: t, Stage: "discovery_completed"}},
	}
}

func declineDemotes(c string) Script {
	t := "trainer-1"
	return Script{
		Steps: []Step{
			{Name: "journey at discovery_completed", Requests: []Request{setJourney(c, "discovery_completed")}, Expect: Expect{Status: http.StatusOK}},
			moved("shortlist", action(c, t, "shortlist"), "shortlisted"),
			moved("call scheduled", call(c, t, c+"-call", "scheduled"), "discovery_call_booked"),
			moved("call completed", call(c, t, c+"-call", "completed"), "discovery_completed"),
			moved("request declined", selection(c, t, c+"-req", "declined"), "declined"),
			moved("dismiss", action(c, t, "dismiss"), "declined_dismissed"),
		},
		Stages:  []Check{{TrainerID: t, Stage: "declined_dismissed"}},
		Journey: "exploring_coaches",
	}
}

func strayCancel(c string) Script {
	t := "trainer-1"
	return Script{
		Steps: []Step{
			moved("like", action(c, t, "like"), "liked"),
			{
				Name:     "cancel without booking",
				Requests: []Request{call(c, t, c+"-call", "cancelled")},
				Expect:   Expect{Status: http.StatusOK, Reason: "invalid_transition", Applied: &no},
			},
		},
		Stages: []Check{{TrainerID: t, Stage: "liked"}},
	}
}
