// Package vector provides vector indexes for chunk similarity search.
package vector

import "context"

// VectorIndex defines vector storage and similarity search.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	// Search returns at most k hits ordered by descending score.
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Size() int
	Type() string
	Close() error
}

// VectorResult is a single vector search hit; ID is a chunk ID.
type VectorResult struct {
	ID    string
	Score float64 // cosine similarity for normalized vectors
}
