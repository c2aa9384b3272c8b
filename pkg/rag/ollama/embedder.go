// Package ollama provides a dense embedder backed by the Ollama HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jllopis/bestrag/pkg/errors"
	"github.com/jllopis/bestrag/pkg/resilience"
)

// Embedder implements rag.DenseEmbedder using Ollama.
type Embedder struct {
	baseURL string
	model   string
	client  *http.Client
	retry   resilience.RetryConfig
}

// NewEmbedder creates a new Ollama Embedder.
func NewEmbedder(baseURL, model string, timeout time.Duration) *Embedder {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Embedder{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
		retry:   resilience.DefaultRetryConfig(),
	}
}

// WithRetry replaces the default retry policy.
func (e *Embedder) WithRetry(rc resilience.RetryConfig) *Embedder {
	e.retry = rc
	return e
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// EmbedDense converts a text string into a pooled vector.
func (e *Embedder) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	req := embeddingRequest{
		Model:  e.model,
		Prompt: text,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	var vec []float32
	err = e.retry.Do(ctx, func() error {
		var embedErr error
		vec, embedErr = e.embedOnce(ctx, body)
		return embedErr
	})
	return vec, err
}

func (e *Embedder) embedOnce(ctx context.Context, body []byte) ([]float32, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeModelUnavailable, "ollama embedding api call failed", err).
			WithContext("model", e.model)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeModelUnavailable,
			fmt.Sprintf("ollama api returned status %d", resp.StatusCode), nil).
			WithContext("model", e.model)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, errors.New(errors.CodeModelUnavailable, "failed to decode embedding response", err)
	}

	// Convert float64 to float32
	vec := make([]float32, len(embResp.Embedding))
	for i, v := range embResp.Embedding {
		vec[i] = float32(v)
	}

	return vec, nil
}
