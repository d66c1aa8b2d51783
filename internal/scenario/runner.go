package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/okian/coachmatch/internal/domain/types"
	"github.com/okian/coachmatch/pkg/logger"
)

const (
	defaultJourneyWait = 5 * time.Second
	journeyPollStart   = 20 * time.Millisecond
	percentMultiplier  = 100
)

// Run checks service health, then runs every selected scenario Rounds
// times with fresh client ids across Workers goroutines.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Named("scenario")
	stats := &Stats{StartTime: time.Now()}

	scenarios, err := Select(cfg.Only)
	if err != nil {
		return nil, err
	}
	workers := max(cfg.Workers, 1)
	rounds := max(cfg.Rounds, 1)

	log.Info(ctx, "starting scenario run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("scenarios", len(scenarios)),
		logger.Int("rounds", rounds),
		logger.Int("workers", workers),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := client.checkHealth(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	jobs := make(chan Scenario, workers*2)
	outcomes := make(chan Outcome, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sc := range jobs {
				outcomes <- runOne(ctx, client, cfg, sc)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for range rounds {
			for _, sc := range scenarios {
				select {
				case <-ctx.Done():
					return
				case jobs <- sc:
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for out := range outcomes {
		stats.Runs++
		stats.Requests += out.Requests
		if out.Err != nil {
			stats.Failed++
			log.Error(ctx, "scenario failed",
				logger.String("scenario", out.Scenario),
				logger.String("client_id", out.ClientID),
				logger.Error(out.Err),
			)
			continue
		}
		if cfg.Verbose {
			log.Info(ctx, "scenario passed",
				logger.String("scenario", out.Scenario),
				logger.String("client_id", out.ClientID),
			)
		}
	}
	stats.Passed = stats.Runs - stats.Failed
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	if stats.Failed > 0 {
		return stats, fmt.Errorf("%w: %d of %d runs", ErrFailed, stats.Failed, stats.Runs)
	}
	return stats, nil
}

// runOne plays a scenario for a new client and verifies the end state.
func runOne(ctx context.Context, client *HTTPClient, cfg *Config, sc Scenario) Outcome {
	clientID := "client-" + uuid.NewString()
	out := Outcome{Scenario: sc.Name, ClientID: clientID}
	script := sc.Build(clientID)

	for _, step := range script.Steps {
		n, err := runStep(ctx, client, step)
		out.Requests += n
		if err != nil {
			out.Err = fmt.Errorf("step %q: %w", step.Name, err)
			return out
		}
	}

	for _, check := range script.Stages {
		out.Requests++
		got, err := client.stage(ctx, clientID, check.TrainerID)
		if err != nil {
			out.Err = err
			return out
		}
		if got != check.Stage {
			out.Err = fmt.Errorf("trainer %s: stage %s, want %s", check.TrainerID, got, check.Stage)
			return out
		}
	}

	out.Requests++
	if err := checkShortlisted(ctx, client, clientID, script.Shortlisted); err != nil {
		out.Err = err
		return out
	}

	if script.Journey != "" {
		polls, err := awaitJourney(ctx, client, clientID, script.Journey, cfg.JourneyWait)
		out.Requests += polls
		if err != nil {
			out.Err = err
		}
	}
	return out
}

// runStep sends the step's requests and returns how many were sent.
func runStep(ctx context.Context, client *HTTPClient, step Step) (int, error) {
	if len(step.Requests) == 1 {
		status, body, err := client.do(ctx, step.Requests[0].Method, step.Requests[0].Path, step.Requests[0].Body)
		if err != nil {
			return 1, err
		}
		return 1, verify(step.Expect, status, body)
	}

	type reply struct {
		status int
		body   []byte
		err    error
	}
	replies := make([]reply, len(step.Requests))
	var wg sync.WaitGroup
	for i, req := range step.Requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, body, err := client.do(ctx, req.Method, req.Path, req.Body)
			replies[i] = reply{status: status, body: body, err: err}
		}()
	}
	wg.Wait()

	var applied, rejected int
	for _, r := range replies {
		if r.err != nil {
			return len(replies), r.err
		}
		switch r.status {
		case http.StatusOK:
			var resp types.TransitionResponse
			if err := json.Unmarshal(r.body, &resp); err != nil {
				return len(replies), fmt.Errorf("decode transition: %w", err)
			}
			if resp.Applied {
				applied++
			}
		case http.StatusConflict:
			rejected++
		default:
			return len(replies), fmt.Errorf("unexpected status %d: %s", r.status, r.body)
		}
	}
	if applied != step.WantApplied || rejected != step.WantRejected {
		return len(replies), fmt.Errorf("applied %d rejected %d, want %d and %d",
			applied, rejected, step.WantApplied, step.WantRejected)
	}
	return len(replies), nil
}

// verify compares a single response with its expectation.
func verify(want Expect, status int, body []byte) error {
	if want.Status != 0 && status != want.Status {
		return fmt.Errorf("status %d, want %d: %s", status, want.Status, body)
	}
	if status != http.StatusOK || (want.Stage == "" && want.Reason == "" && want.Applied == nil) {
		return nil
	}
	var resp types.TransitionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode transition: %w", err)
	}
	if want.Stage != "" && resp.Stage != want.Stage {
		return fmt.Errorf("stage %s, want %s (reason %s)", resp.Stage, want.Stage, resp.Reason)
	}
	if want.Reason != "" && resp.Reason != want.Reason {
		return fmt.Errorf("reason %s, want %s", resp.Reason, want.Reason)
	}
	if want.Applied != nil && resp.Applied != *want.Applied {
		return fmt.Errorf("applied %t, want %t", resp.Applied, *want.Applied)
	}
	return nil
}

func checkShortlisted(ctx context.Context, client *HTTPClient, clientID string, want int) error {
	status, body, err := client.do(ctx, http.MethodGet, "/clients/"+clientID+"/engagements", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("list engagements: status %d: %s", status, body)
	}
	var list types.EngagementList
	if err := json.Unmarshal(body, &list); err != nil {
		return fmt.Errorf("decode engagements: %w", err)
	}
	got := 0
	for _, item := range list.Items {
		if item.Stage == "shortlisted" {
			got++
		}
	}
	if got != want {
		return fmt.Errorf("shortlisted %d, want %d", got, want)
	}
	return nil
}

var errJourneyPending = errors.New("journey not projected yet")

// awaitJourney polls the journey with exponential backoff until it reaches
// want or wait elapses.
func awaitJourney(ctx context.Context, client *HTTPClient, clientID, want string, wait time.Duration) (int, error) {
	if wait <= 0 {
		wait = defaultJourneyWait
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = journeyPollStart

	polls := 0
	last, err := backoff.Retry(ctx, func() (string, error) {
		polls++
		got, err := client.journey(ctx, clientID)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		if got != want {
			return got, errJourneyPending
		}
		return got, nil
	}, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(wait))
	if errors.Is(err, errJourneyPending) {
		return polls, fmt.Errorf("journey %s, want %s after %s", last, want, wait)
	}
	return polls, err
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var passRate float64
	if stats.Runs > 0 {
		passRate = float64(stats.Passed) / float64(stats.Runs) * percentMultiplier
	}
	log.Info(ctx, "final statistics",
		logger.Int("runs", stats.Runs),
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
		logger.Int("requests", stats.Requests),
		logger.Duration("duration", stats.Duration),
		logger.Float64("passRate", passRate),
	)
}
