package rag

import (
	"context"
	"strings"

	"github.com/jllopis/bestrag/pkg/errors"
)

// VectorStore defines the contract with the external vector database.
// Implementations own the connection and the collection lifecycle; the
// client holds no copy of stored state.
type VectorStore interface {
	// EnsureCollection creates the collection with the hybrid three-field
	// schema if absent, or verifies the existing schema. Idempotent.
	EnsureCollection(ctx context.Context, schema Schema) error
	// Upsert writes points, overwriting any point with the same ID.
	Upsert(ctx context.Context, points []Point) error
	// Query issues one hybrid ranking request and returns matches ordered
	// by non-increasing score, at most q.Limit of them.
	Query(ctx context.Context, q HybridQuery) ([]SearchResult, error)
	// Count returns the number of points in the collection.
	Count(ctx context.Context) (uint64, error)
	// DeleteByFilename removes every point ingested from the named file.
	DeleteByFilename(ctx context.Context, filename string) error
}

// DenseEmbedder produces a fixed-dimension pooled embedding.
type DenseEmbedder interface {
	EmbedDense(ctx context.Context, text string) ([]float32, error)
}

// SparseEmbedder produces a term-index to weight mapping.
type SparseEmbedder interface {
	EmbedSparse(ctx context.Context, text string) (SparseVector, error)
}

// LateEmbedder produces one vector per token for late-interaction scoring.
type LateEmbedder interface {
	EmbedLate(ctx context.Context, text string) ([][]float32, error)
}

// HybridEmbedder composes the three embedding models. All three are
// required; Embed fails if any backend fails.
type HybridEmbedder struct {
	Dense  DenseEmbedder
	Sparse SparseEmbedder
	Late   LateEmbedder
}

// Embed returns all three representations of text. Empty or
// whitespace-only input fails with INVALID_INPUT.
func (e *HybridEmbedder) Embed(ctx context.Context, text string) (HybridVector, error) {
	if strings.TrimSpace(text) == "" {
		return HybridVector{}, errors.New(errors.CodeInvalidInput, "text must not be empty", nil)
	}

	dense, err := e.Dense.EmbedDense(ctx, text)
	if err != nil {
		return HybridVector{}, err
	}
	sparse, err := e.Sparse.EmbedSparse(ctx, text)
	if err != nil {
		return HybridVector{}, err
	}
	late, err := e.Late.EmbedLate(ctx, text)
	if err != nil {
		return HybridVector{}, err
	}

	return HybridVector{Dense: dense, Sparse: sparse, Late: late}, nil
}

// Validate checks a hybrid vector against the collection schema. A write
// is accepted only when all three fields are present and dimensioned
// consistently.
func (v HybridVector) Validate(schema Schema) error {
	if uint64(len(v.Dense)) != schema.DenseSize {
		return errors.New(errors.CodeInvalidInput, "dense vector dimension mismatch", nil).
			WithContext("got", len(v.Dense)).
			WithContext("want", schema.DenseSize)
	}
	if v.Sparse.IsZero() || len(v.Sparse.Indices) != len(v.Sparse.Values) {
		return errors.New(errors.CodeInvalidInput, "sparse vector missing or inconsistent", nil)
	}
	if len(v.Late) == 0 {
		return errors.New(errors.CodeInvalidInput, "late-interaction vectors missing", nil)
	}
	for _, tok := range v.Late {
		if uint64(len(tok)) != schema.LateSize {
			return errors.New(errors.CodeInvalidInput, "late-interaction token dimension mismatch", nil).
				WithContext("got", len(tok)).
				WithContext("want", schema.LateSize)
		}
	}
	return nil
}
