// Package vector holds embeddings of text in memory and answers nearest
// neighbor queries by exhaustive cosine similarity.
package vector

import (
	"context"
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/m-mizutani/goerr/v2"
)

var ErrDimensionMismatch = goerr.New("embedding dimension mismatch")

// Embedder converts text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// EmbedFunc adapts a plain function to Embedder
type EmbedFunc func(ctx context.Context, text string) ([]float64, error)

func (f EmbedFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// Index is an append-only list of embeddings paired with caller metadata.
// embeddings[i] always belongs to metadata[i].
type Index struct {
	embedder   Embedder
	embeddings [][]float64
	metadata   []map[string]any
}

// Result is one scored entry returned by Query
type Result struct {
	Score    float64
	Metadata map[string]any
}

// Record returns the metadata merged with a "score" key
func (r *Result) Record() map[string]any {
	rec := make(map[string]any, len(r.Metadata)+1)
	maps.Copy(rec, r.Metadata)
	rec["score"] = r.Score
	return rec
}

func New(embedder Embedder) *Index {
	return &Index{embedder: embedder}
}

// Len returns the number of stored entries
func (x *Index) Len() int {
	return len(x.embeddings)
}

// Add embeds text and appends it with metadata. A nil metadata is stored as an
// empty map. Embedding failures are returned as is.
func (x *Index) Add(ctx context.Context, text string, metadata map[string]any) error {
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return goerr.Wrap(err, "failed to embed text")
	}

	if len(x.embeddings) > 0 && len(vec) != len(x.embeddings[0]) {
		return goerr.Wrap(ErrDimensionMismatch, "embedding does not match index dimension",
			goerr.V("expected", len(x.embeddings[0])),
			goerr.V("actual", len(vec)))
	}

	stored := maps.Clone(metadata)
	if stored == nil {
		stored = map[string]any{}
	}

	x.embeddings = append(x.embeddings, slices.Clone(vec))
	x.metadata = append(x.metadata, stored)
	return nil
}

// Query embeds text and returns up to topK entries ordered by cosine
// similarity, highest first. Entries with equal similarity keep their
// insertion order.
func (x *Index) Query(ctx context.Context, text string, topK int) ([]*Result, error) {
	query, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}

	if len(x.embeddings) > 0 && len(query) != len(x.embeddings[0]) {
		return nil, goerr.Wrap(ErrDimensionMismatch, "query does not match index dimension",
			goerr.V("expected", len(x.embeddings[0])),
			goerr.V("actual", len(query)))
	}

	results := make([]*Result, 0, len(x.embeddings))
	for i, vec := range x.embeddings {
		results = append(results, &Result{
			Score:    CosineSimilarity(vec, query),
			Metadata: maps.Clone(x.metadata[i]),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < 0 {
		topK = 0
	}
	if topK < len(results) {
		results = results[:topK]
	}

	return results, nil
}

// CosineSimilarity returns dot(a, b) / (|a| * |b|). It is 0 when either vector
// has zero norm or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
