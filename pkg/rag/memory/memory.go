// Package memory provides an in-process VectorStore satisfying the same
// contract as the Qdrant-backed store. It exists so the client can be
// exercised in tests and demos without a running vector database; the
// fusion mirrors the production query plan (dense and sparse recall,
// late-interaction rerank).
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/jllopis/bestrag/pkg/errors"
	"github.com/jllopis/bestrag/pkg/rag"
)

// Store is an in-memory rag.VectorStore. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	created bool
	schema  rag.Schema
	points  map[string]rag.Point
}

// New creates an empty store.
func New() *Store {
	return &Store{points: make(map[string]rag.Point)}
}

// EnsureCollection records the schema on first call and verifies it on
// subsequent calls.
func (s *Store) EnsureCollection(_ context.Context, schema rag.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		s.created = true
		s.schema = schema
		return nil
	}
	if s.schema != schema {
		return errors.New(errors.CodeSchemaMismatch, "collection exists with a different schema", nil).
			WithContext("existing", s.schema).
			WithContext("requested", schema)
	}
	return nil
}

// Upsert writes points, overwriting by ID. Points must satisfy the
// collection schema.
func (s *Store) Upsert(_ context.Context, points []rag.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.created {
		return errors.New(errors.CodeNotFound, "collection does not exist", nil)
	}
	for _, p := range points {
		if err := p.Vectors.Validate(s.schema); err != nil {
			return err
		}
	}
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

// Query recalls candidates by dense cosine and sparse dot product, then
// reranks the union by late-interaction MaxSim.
func (s *Store) Query(_ context.Context, q rag.HybridQuery) ([]rag.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.created {
		return nil, errors.New(errors.CodeNotFound, "collection does not exist", nil)
	}
	if q.Limit == 0 {
		return nil, errors.New(errors.CodeInvalidInput, "limit must be positive", nil)
	}
	prefetch := q.PrefetchLimit
	if prefetch == 0 {
		prefetch = q.Limit
	}

	type scored struct {
		id    string
		score float64
	}

	var dense, sparse []scored
	for id, p := range s.points {
		dense = append(dense, scored{id, cosine(q.Vectors.Dense, p.Vectors.Dense)})
		sparse = append(sparse, scored{id, sparseDot(q.Vectors.Sparse, p.Vectors.Sparse)})
	}
	sort.Slice(dense, func(i, j int) bool { return dense[i].score > dense[j].score })
	sort.Slice(sparse, func(i, j int) bool { return sparse[i].score > sparse[j].score })

	candidates := make(map[string]struct{})
	for i, c := range dense {
		if uint64(i) >= prefetch {
			break
		}
		candidates[c.id] = struct{}{}
	}
	for i, c := range sparse {
		if uint64(i) >= prefetch {
			break
		}
		candidates[c.id] = struct{}{}
	}

	reranked := make([]scored, 0, len(candidates))
	for id := range candidates {
		reranked = append(reranked, scored{id, maxSim(q.Vectors.Late, s.points[id].Vectors.Late)})
	}
	sort.Slice(reranked, func(i, j int) bool {
		if reranked[i].score != reranked[j].score {
			return reranked[i].score > reranked[j].score
		}
		return reranked[i].id < reranked[j].id
	})

	if uint64(len(reranked)) > q.Limit {
		reranked = reranked[:q.Limit]
	}
	results := make([]rag.SearchResult, len(reranked))
	for i, c := range reranked {
		results[i] = rag.SearchResult{
			ID:      c.id,
			Score:   float32(c.score),
			Payload: s.points[c.id].Payload,
		}
	}
	return results, nil
}

// Count returns the number of stored points.
func (s *Store) Count(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.points)), nil
}

// DeleteByFilename removes every point whose payload filename matches.
func (s *Store) DeleteByFilename(_ context.Context, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.points {
		if p.Payload[rag.PayloadKeyFilename] == filename {
			delete(s.points, id)
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sparseDot(a, b rag.SparseVector) float64 {
	weights := make(map[uint32]float64, len(a.Indices))
	for i, idx := range a.Indices {
		weights[idx] = float64(a.Values[i])
	}
	var dot float64
	for i, idx := range b.Indices {
		if w, ok := weights[idx]; ok {
			dot += w * float64(b.Values[i])
		}
	}
	return dot
}

// maxSim sums, over query tokens, the maximum dot product against any
// document token.
func maxSim(query, doc [][]float32) float64 {
	var total float64
	for _, q := range query {
		best := math.Inf(-1)
		for _, d := range doc {
			var dot float64
			for i := 0; i < len(q) && i < len(d); i++ {
				dot += float64(q[i]) * float64(d[i])
			}
			if dot > best {
				best = dot
			}
		}
		if !math.IsInf(best, -1) {
			total += best
		}
	}
	return total
}
