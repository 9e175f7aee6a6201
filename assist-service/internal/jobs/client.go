package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Hajira-org/hajira-chat/assist-service/internal/domain"
)

const availablePath = "/api/jobs/available"

// Lister fetches the jobs visible to the caller identified by authorization.
type Lister interface {
	Available(ctx context.Context, authorization string) ([]domain.Job, error)
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the job board REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

// Available forwards the caller's Authorization header unchanged.
func (c *Client) Available(ctx context.Context, authorization string) ([]domain.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+availablePath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authorization)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jobs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jobs api returned status %d", resp.StatusCode)
	}

	var out domain.JobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode jobs response: %w", err)
	}
	return out.Jobs, nil
}
