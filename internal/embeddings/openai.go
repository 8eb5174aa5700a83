package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/mailsense/internal/config"
	"github.com/fyrsmithlabs/mailsense/internal/retry"
)

// Rate limiter defaults: 100 embedding requests per minute.
const (
	embedRateLimit = 100.0 / 60.0
	embedBurst     = 10
)

// OpenAIEmbedder speaks the OpenAI-compatible embeddings protocol.
// One HTTP request per call; retry policy belongs to the caller. Transient
// failures are marked with retry.Transient.
type OpenAIEmbedder struct {
	model      string
	apiKey     string `json:"-"` // Never serialize API keys
	baseURL    string
	dimension  int
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *Metrics
}

// NewOpenAIEmbedder creates an embedder from config.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("%w: API key required for openai provider", ErrInvalidConfig)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}

	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIEmbedder{
		model:     cfg.Model,
		apiKey:    cfg.APIKey.Value(),
		baseURL:   cfg.BaseURL,
		dimension: cfg.VectorSize,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(embedRateLimit), embedBurst),
		metrics: NewMetrics(nil),
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

type embedAPIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// EmbedDocuments generates embeddings for multiple texts.
func (e *OpenAIEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var embErr error
	defer func() {
		e.metrics.RecordGeneration(ctx, e.model, "embed_documents", time.Since(start), len(texts), embErr)
	}()

	if len(texts) == 0 {
		embErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, embErr
	}

	vectors, err := e.embed(ctx, texts)
	embErr = err
	return vectors, err
}

// EmbedQuery generates an embedding for a single query text.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	var embErr error
	defer func() {
		e.metrics.RecordGeneration(ctx, e.model, "embed_query", time.Since(start), 1, embErr)
	}()

	if text == "" {
		embErr = fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
		return nil, embErr
	}

	vectors, err := e.embed(ctx, []string{text})
	if err != nil {
		embErr = err
		return nil, err
	}
	return vectors[0], nil
}

func (e *OpenAIEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	jsonData, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.Transient(fmt.Errorf("embedding request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retry.Transient(fmt.Errorf("rate limited (429)"))
	}
	if resp.StatusCode >= 500 {
		return nil, retry.Transient(fmt.Errorf("server error (%d): %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode != http.StatusOK {
		var errResp embedAPIError
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, respBody)
	}

	var embedResp embedResponse
	if err := json.Unmarshal(respBody, &embedResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(embedResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embedResp.Data))
	}

	// The API does not guarantee response order; index is authoritative.
	vectors := make([][]float32, len(texts))
	for _, d := range embedResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimension returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Close releases resources held by the embedder.
func (e *OpenAIEmbedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
