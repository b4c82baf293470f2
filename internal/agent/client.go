package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/vampirenirmal/raylm/internal/core"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ChatClient is the AI-facing boundary: a single-turn chat exchange with a
// system role, a user role and a model identifier.
type ChatClient interface {
	Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat completions gateway.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

// WithBaseURL points the client at a gateway endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithRetry bounds the transport retry loop.
func WithRetry(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit throttles outgoing requests.
func WithRateLimit(requestsPerMinute, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

// WithLogger configures a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With("component", "ai_client")
	}
}

// NewClient creates a gateway client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		maxRetries: 3,
		retryDelay: time.Second,
		limiter:    rate.NewLimiter(rate.Limit(1), 1),
		logger:     slog.Default().With("component", "ai_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chat performs one request/response exchange, retrying with exponential
// backoff on the closed set of retryable error kinds. Non-retryable errors
// (auth, malformed request) fail immediately.
func (c *Client) Chat(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.retryDelay * time.Duration(1<<(attempt-1))
			c.logger.Warn("retrying AI request",
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		start := time.Now()
		response, err := c.doRequest(ctx, model, systemPrompt, userPrompt)
		if err == nil {
			c.logger.Debug("AI request completed",
				"model", model,
				"attempt", attempt,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_length", len(response))
			return response, nil
		}

		lastErr = err
		if !core.IsRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) doRequest(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		// Connection-level failures are assumed transient.
		return "", fmt.Errorf("%w: %v", core.ErrTransient, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %v", core.ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, respBody)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", core.ErrEmptyResponse
	}
	return parsed.Choices[0].Message.Content, nil
}

// classifyStatus maps an HTTP status to the transport error taxonomy. The
// classification happens once, here; retry policy is a property of the error
// kind.
func classifyStatus(status int, body []byte) error {
	detail := fmt.Sprintf("status %d: %s", status, truncate(string(body), 200))
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", core.ErrRateLimited, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", core.ErrAuthFailed, detail)
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", core.ErrMalformedRequest, detail)
	case status >= 500:
		return fmt.Errorf("%w: %s", core.ErrServerError, detail)
	default:
		return fmt.Errorf("API error: %s", detail)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
