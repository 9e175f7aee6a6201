// Package completion calls the assist service: typing suggestions and the
// AI assistant.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Hajira-org/hajira-chat/pkg/wire"
)

const (
	SuggestPath = "/api/suggest"
	ChatPath    = "/api/ai-chat"
)

var ErrNoBaseURL = errors.New("completion: base url is required")

// StatusError is returned when the assist service answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("assist service returned status: %d", e.StatusCode)
	}
	return fmt.Sprintf("assist service returned status %d: %s", e.StatusCode, e.Message)
}

// Config for the assist service client.
type Config struct {
	BaseURL string `mapstructure:"base_url"`
	// Timeout of zero leaves requests bounded only by their context.
	Timeout time.Duration `mapstructure:"timeout"`
	// AuthToken, when set, is sent as a bearer token so the assistant can
	// look up jobs on the caller's behalf.
	AuthToken string `mapstructure:"auth_token"`
}

// Client wraps the assist service HTTP API.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a new assist service client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNoBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Suggest asks for a continuation of the draft in req.Text. An empty string
// with a nil error means the service had nothing to offer.
func (c *Client) Suggest(ctx context.Context, req wire.SuggestRequest) (string, error) {
	if req.History == nil {
		req.History = []wire.Message{}
	}

	var resp wire.SuggestResponse
	if err := c.post(ctx, SuggestPath, req, &resp, func() string { return resp.Error }); err != nil {
		return "", err
	}
	return resp.Suggestion, nil
}

// Chat sends one assistant question with its bounded history and returns
// the reply text as given, possibly empty.
func (c *Client) Chat(ctx context.Context, req wire.ChatRequest) (string, error) {
	if req.History == nil {
		req.History = []wire.Turn{}
	}

	var resp wire.ChatResponse
	if err := c.post(ctx, ChatPath, req, &resp, func() string { return resp.Response }); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// post sends body as JSON and decodes the reply into out. On a non-2xx
// status the body is still decoded when possible and reason extracts the
// service's message from it.
func (c *Client) post(ctx context.Context, path string, body, out interface{}, reason func() string) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, out) == nil {
			statusErr.Message = reason()
		}
		return statusErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
