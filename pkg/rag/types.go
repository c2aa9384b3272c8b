// Package rag implements a hybrid storage-and-retrieval client for PDF
// documents: per-page dense, sparse, and late-interaction embeddings are
// written to a vector database collection and queried with a single hybrid
// ranking request.
package rag

import (
	"strconv"

	"github.com/google/uuid"
)

// Named vector fields of the collection schema. Every point carries all
// three; the names are fixed at collection creation.
const (
	VectorNameDense  = "dense-vector"
	VectorNameLate   = "output-token-embeddings"
	VectorNameSparse = "sparse"
)

// Payload keys stored with every point.
const (
	PayloadKeyText     = "text"
	PayloadKeyPage     = "page_number"
	PayloadKeyFilename = "filename"
)

// SparseVector maps term indices to weights. Indices are unique and sorted
// ascending.
type SparseVector struct {
	Indices []uint32 `json:"indices"`
	Values  []float32 `json:"values"`
}

// IsZero reports whether the sparse vector carries no terms.
func (v SparseVector) IsZero() bool {
	return len(v.Indices) == 0
}

// HybridVector bundles the three vector representations of one text unit.
type HybridVector struct {
	Dense  []float32    `json:"dense"`
	Sparse SparseVector `json:"sparse"`
	Late   [][]float32  `json:"late"`
}

// Point is the atomic unit of stored content: one page of one document,
// its three vectors, and its payload metadata.
type Point struct {
	ID      string                 `json:"id"`
	Vectors HybridVector           `json:"vectors"`
	Payload map[string]interface{} `json:"payload"`
}

// Schema fixes the vector dimensions of a collection. Distance is cosine
// for both dense fields; the late-interaction field compares with MaxSim.
type Schema struct {
	DenseSize uint64 `json:"dense_size"`
	LateSize  uint64 `json:"late_size"`
}

// SearchResult is one ranked match from a hybrid query.
type SearchResult struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

// HybridQuery carries the embedded query and result bounds. PrefetchLimit
// bounds the candidate sets recalled per representation before the
// late-interaction rerank.
type HybridQuery struct {
	Vectors       HybridVector
	Limit         uint64
	PrefetchLimit uint64
}

// pointNamespace scopes deterministic point IDs to this client. Any UUID
// works as long as it never changes; changing it would break re-ingestion
// idempotency for existing collections.
var pointNamespace = uuid.MustParse("8d4a9f50-33ba-45e7-9c3b-a28fbcfbfbd1")

// PointID derives the deterministic ID for a (filename, page) unit.
// Re-ingesting the same document page always yields the same ID, so
// upserts overwrite instead of duplicating.
func PointID(filename string, page int) string {
	return uuid.NewSHA1(pointNamespace, []byte(filename+":"+strconv.Itoa(page))).String()
}
