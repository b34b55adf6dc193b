// Package relay provides the client for the external chat completion endpoint.
//
// It sends the latest user utterance plus a bounded conversation window to
// POST /api/chat, enforces a client-side timeout with cancellation, and
// distinguishes transport failures from empty completions so the engine can
// pick the right fallback message.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zenoccaz/chatlead/internal/models"
)

// Client configuration constants
const (
	// DefaultTimeout bounds each completion request. The upstream can be very
	// slow on cold start, so the budget is generous.
	DefaultTimeout = 60 * time.Second
	// HistoryWindow is the number of trailing conversation entries sent with
	// each request to bound payload size and API cost.
	HistoryWindow = 6
)

// ErrEmptyResponse is returned when the endpoint answered 2xx but carried no
// usable completion text.
var ErrEmptyResponse = errors.New("completion endpoint returned an empty response")

// Opts holds configuration options for the relay client.
type Opts struct {
	Endpoint     string
	SystemPrompt string
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Option configures relay client construction.
type Option func(*Opts)

// WithEndpoint sets the completion endpoint URL.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithSystemPrompt overrides the system prompt sent with each request.
func WithSystemPrompt(prompt string) Option {
	return func(o *Opts) { o.SystemPrompt = prompt }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client calls the external completion endpoint.
type Client struct {
	endpoint     string
	systemPrompt string
	timeout      time.Duration
	httpClient   *http.Client
}

// NewClient creates a relay client based on provided options.
func NewClient(opts ...Option) *Client {
	cfg := Opts{
		SystemPrompt: DefaultSystemPrompt,
		Timeout:      DefaultTimeout,
		HTTPClient:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("relay.NewClient: created", "endpoint", cfg.Endpoint, "timeout", cfg.Timeout)
	return &Client{
		endpoint:     cfg.Endpoint,
		systemPrompt: cfg.SystemPrompt,
		timeout:      cfg.Timeout,
		httpClient:   cfg.HTTPClient,
	}
}

// Converse sends the user message plus the trailing conversation window to the
// completion endpoint and returns the assistant reply. The request is
// cancelled once the timeout budget is exhausted.
func (c *Client) Converse(ctx context.Context, message string, window []models.ConversationEntry) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("completion endpoint not configured")
	}

	history := window
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}

	body, err := json.Marshal(models.ChatRequest{
		Message:             message,
		SystemPrompt:        c.systemPrompt,
		ConversationHistory: history,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("relay.Converse: sending request", "endpoint", c.endpoint, "historyLen", len(history))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Error("relay.Converse: request failed", "error", err, "endpoint", c.endpoint)
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("relay.Converse: non-2xx status", "status", resp.StatusCode, "endpoint", c.endpoint)
		return "", fmt.Errorf("completion endpoint returned status %d", resp.StatusCode)
	}

	var chatResp models.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		slog.Error("relay.Converse: malformed response body", "error", err)
		return "", fmt.Errorf("malformed completion response: %w", err)
	}
	if chatResp.Response == "" {
		slog.Warn("relay.Converse: empty completion", "endpoint", c.endpoint)
		return "", ErrEmptyResponse
	}

	slog.Debug("relay.Converse: received reply", "length", len(chatResp.Response))
	return chatResp.Response, nil
}
