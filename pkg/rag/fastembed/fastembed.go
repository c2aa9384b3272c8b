// Package fastembed provides dense and late-interaction embedders backed
// by a FastEmbed-style HTTP embedding server. The server exposes two JSON
// endpoints: POST /embed returns one pooled vector per document, and
// POST /embed_late returns one vector per token per document.
package fastembed

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

// Client implements rag.DenseEmbedder and rag.LateEmbedder against one
// embedding server.
type Client struct {
	baseURL    string
	denseModel string
	lateModel  string
	client     *http.Client
	retry      resilience.RetryConfig
}

// New creates a fastembed client.
func New(baseURL, denseModel, lateModel string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		denseModel: denseModel,
		lateModel:  lateModel,
		client:     &http.Client{Timeout: timeout},
		retry:      resilience.DefaultRetryConfig(),
	}
}

// WithRetry replaces the default retry policy.
func (c *Client) WithRetry(rc resilience.RetryConfig) *Client {
	c.retry = rc
	return c
}

type embedRequest struct {
	Model     string   `json:"model"`
	Documents []string `json:"documents"`
}

type denseResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type lateResponse struct {
	Embeddings [][][]float32 `json:"embeddings"`
}

// EmbedDense returns the pooled embedding for text.
func (c *Client) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	var resp denseResponse
	if err := c.post(ctx, "/embed", c.denseModel, text, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != 1 || len(resp.Embeddings[0]) == 0 {
		return nil, errors.New(errors.CodeModelUnavailable, "embedding server returned no dense vector", nil).
			WithContext("model", c.denseModel)
	}
	return resp.Embeddings[0], nil
}

// EmbedLate returns one vector per token of text.
func (c *Client) EmbedLate(ctx context.Context, text string) ([][]float32, error) {
	var resp lateResponse
	if err := c.post(ctx, "/embed_late", c.lateModel, text, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != 1 || len(resp.Embeddings[0]) == 0 {
		return nil, errors.New(errors.CodeModelUnavailable, "embedding server returned no token vectors", nil).
			WithContext("model", c.lateModel)
	}
	return resp.Embeddings[0], nil
}

func (c *Client) post(ctx context.Context, path, model, text string, out interface{}) error {
	body, err := json.Marshal(embedRequest{Model: model, Documents: []string{text}})
	if err != nil {
		return fmt.Errorf("failed to marshal embed request: %w", err)
	}

	return c.retry.Do(ctx, func() error {
		return c.postOnce(ctx, path, model, body, out)
	})
}

func (c *Client) postOnce(ctx context.Context, path, model string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.New(errors.CodeModelUnavailable, "embedding server unreachable", err).
			WithContext("model", model)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.CodeModelUnavailable,
			fmt.Sprintf("embedding server returned status %d", resp.StatusCode), nil).
			WithContext("model", model)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(errors.CodeModelUnavailable, "failed to decode embedding response", err)
	}
	return nil
}
