package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/coachmatch/internal/domain/types"
)

// HTTPClient wraps http.Client with the service base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// do sends body as JSON (when non-nil) and returns the status and raw response.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// stage reads the current stage of a pair.
func (c *HTTPClient) stage(ctx context.Context, clientID, trainerID string) (string, error) {
	status, data, err := c.do(ctx, http.MethodGet, "/engagements/"+clientID+"/"+trainerID, nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("get stage: status %d: %s", status, data)
	}
	var resp types.StageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode stage: %w", err)
	}
	return resp.Stage, nil
}

// journey reads the journey stage of a client.
func (c *HTTPClient) journey(ctx context.Context, clientID string) (string, error) {
	status, data, err := c.do(ctx, http.MethodGet, "/clients/"+clientID+"/journey", nil)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("get journey: status %d: %s", status, data)
	}
	var resp types.JourneyResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("decode journey: %w", err)
	}
	return resp.Stage, nil
}

// checkHealth verifies the service is reachable.
func (c *HTTPClient) checkHealth(ctx context.Context) error {
	status, _, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("health check failed with status: %d", status)
	}
	return nil
}
