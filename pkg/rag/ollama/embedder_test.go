package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jllopis/bestrag/pkg/errors"
	"github.com/jllopis/bestrag/pkg/resilience"
)

func TestEmbedDense(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model != "test-model" {
			t.Errorf("unexpected model %q", req.Model)
		}
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewEmbedder(srv.URL, "test-model", 5*time.Second)
	vec, err := e.EmbedDense(context.Background(), "hello")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dims, got %d", len(vec))
	}
	if vec[1] != float32(0.2) {
		t.Errorf("unexpected value %v", vec[1])
	}
}

func TestEmbedDenseServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewEmbedder(srv.URL, "missing-model", 5*time.Second).
		WithRetry(resilience.DefaultRetryConfig().WithMaxAttempts(1))
	if _, err := e.EmbedDense(context.Background(), "hello"); !errors.HasCode(err, errors.CodeModelUnavailable) {
		t.Fatalf("expected MODEL_UNAVAILABLE, got %v", err)
	}
}
