// Package bm25 provides a local, deterministic sparse embedder. Term
// weights follow the BM25 formula with document-frequency handling left
// to the vector database, which computes IDF over the collection at query
// time. Term indices are FNV-1a hashes of the lowercased token, so no
// vocabulary needs to be built or shared.
package bm25

import (
	"context"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"

	"github.com/jllopis/bestrag/pkg/errors"
	"github.com/jllopis/bestrag/pkg/rag"
)

const (
	defaultK1     = 1.2
	defaultB      = 0.75
	defaultAvgLen = 256.0
)

// Embedder implements rag.SparseEmbedder.
type Embedder struct {
	k1           float64
	b            float64
	avgLen       float64
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// Option configures the embedder.
type Option func(*Embedder)

// WithParameters overrides the BM25 k1 and b constants.
func WithParameters(k1, b float64) Option {
	return func(e *Embedder) {
		if k1 > 0 {
			e.k1 = k1
		}
		if b >= 0 && b <= 1 {
			e.b = b
		}
	}
}

// WithAverageLength overrides the assumed average document length in tokens.
func WithAverageLength(avg float64) Option {
	return func(e *Embedder) {
		if avg > 0 {
			e.avgLen = avg
		}
	}
}

// NewEmbedder creates a BM25 sparse embedder with default parameters.
func NewEmbedder(opts ...Option) *Embedder {
	e := &Embedder{
		k1:           defaultK1,
		b:            defaultB,
		avgLen:       defaultAvgLen,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedSparse computes the sparse vector for text. Identical input always
// yields an identical vector. Text with no tokens at all fails with
// INVALID_INPUT; text consisting only of stopwords falls back to the
// unfiltered tokens so every embeddable page produces a non-zero vector.
func (e *Embedder) EmbedSparse(_ context.Context, text string) (rag.SparseVector, error) {
	tokens := e.tokenize(text)
	if len(tokens) == 0 {
		return rag.SparseVector{}, errors.New(errors.CodeInvalidInput, "no tokens in text", nil)
	}

	filtered := tokens[:0:0]
	for _, tok := range tokens {
		if _, isStop := e.stopwords[tok]; isStop {
			continue
		}
		filtered = append(filtered, tok)
	}
	if len(filtered) == 0 {
		filtered = tokens
	}

	tf := make(map[uint32]float64, len(filtered))
	for _, tok := range filtered {
		tf[hashToken(tok)]++
	}

	docLen := float64(len(filtered))
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	values := make([]float32, len(indices))
	norm := e.k1 * (1 - e.b + e.b*docLen/e.avgLen)
	for i, idx := range indices {
		f := tf[idx]
		values[i] = float32(f * (e.k1 + 1) / (f + norm))
	}

	return rag.SparseVector{Indices: indices, Values: values}, nil
}

func (e *Embedder) tokenize(text string) []string {
	return e.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func hashToken(tok string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(tok))
	return h.Sum32()
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for",
		"if", "in", "into", "is", "it", "its", "no", "not", "of", "on",
		"or", "such", "that", "the", "their", "then", "there", "these",
		"they", "this", "to", "was", "were", "will", "with", "we", "you",
		"your", "from", "has", "have", "had", "he", "she", "his", "her",
		"i", "me", "my", "our", "us", "what", "which", "who", "whom",
		"been", "do", "does", "did", "so", "can", "could", "would",
		"should", "than", "too", "very", "s", "t", "just", "about",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
