// Package llm provides the completion-service client used by enrichment.
//
// The client speaks the OpenAI-compatible chat completions protocol over
// plain HTTP. It performs exactly one request per Complete call; retry
// policy belongs to the caller. Transient provider failures (timeouts,
// 429, 5xx) are marked with retry.Transient so callers can distinguish
// them from permanent errors.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/mailsense/internal/config"
	"github.com/fyrsmithlabs/mailsense/internal/retry"
)

// ErrMissingAPIKey indicates the completion-service credential is absent.
// This is a fatal configuration error, never a retryable one.
var ErrMissingAPIKey = errors.New("completion service API key required")

// Rate limiter defaults: 50 requests per minute.
const (
	defaultRateLimit = 50.0 / 60.0
	defaultBurst     = 5
)

// Request is a single completion call.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Client issues completion requests.
type Client interface {
	// Complete sends one request and returns the raw text response.
	Complete(ctx context.Context, req Request) (string, error)

	// Model returns the configured model identifier.
	Model() string
}

// HTTPClient is the OpenAI-compatible chat completions implementation.
type HTTPClient struct {
	model      string
	apiKey     string `json:"-"` // Never serialize API keys
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPClient creates a completion client from config.
// Returns ErrMissingAPIKey immediately if no credential is configured.
func NewHTTPClient(cfg config.LLMConfig) (*HTTPClient, error) {
	if !cfg.APIKey.IsSet() {
		return nil, ErrMissingAPIKey
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &HTTPClient{
		model:   cfg.Model,
		apiKey:  cfg.APIKey.Value(),
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

// Model returns the configured model identifier.
func (c *HTTPClient) Model() string {
	return c.model
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends one chat completion request.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	// Scrub secrets before anything leaves the process.
	messages = append(messages, chatMessage{Role: "user", Content: ScrubSecrets(req.Prompt)})

	body := chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", retry.Transient(fmt.Errorf("completion request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", retry.Transient(fmt.Errorf("rate limited (429)"))
	}
	if resp.StatusCode >= 500 {
		return "", retry.Transient(fmt.Errorf("server error (%d): %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from API")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Ensure interface is implemented.
var _ Client = (*HTTPClient)(nil)
