package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
)

var errNoEmbeddingFunc = errors.New("chromem index accepts precomputed embeddings only")

// ChromemIndex stores vectors in an in-memory chromem-go collection.
// Zero vectors are skipped on Add because chromem normalizes every vector.
type ChromemIndex struct {
	dimensions int
	collection *chromem.Collection
}

// NewChromemIndex creates a chromem-backed index with its own in-memory database.
func NewChromemIndex(dimensions int) (*ChromemIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	db := chromem.NewDB()
	embed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, errNoEmbeddingFunc
	}
	collection, err := db.GetOrCreateCollection("chunks", nil, embed)
	if err != nil {
		return nil, fmt.Errorf("creating chromem collection: %w", err)
	}
	return &ChromemIndex{dimensions: dimensions, collection: collection}, nil
}

// Type returns the index type identifier.
func (c *ChromemIndex) Type() string {
	return string(IndexTypeChromem)
}

// Add stores vectors under the given IDs.
func (c *ChromemIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	docs := make([]chromem.Document, 0, len(ids))
	for i, id := range ids {
		if len(vectors[i]) != c.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), c.dimensions)
		}
		if IsZero(vectors[i]) {
			continue
		}
		emb := make([]float32, c.dimensions)
		copy(emb, vectors[i])
		docs = append(docs, chromem.Document{ID: id, Embedding: emb, Content: id})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding chromem documents: %w", err)
	}
	return nil
}

// Search returns the top-k vectors by cosine similarity.
func (c *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error) {
	if len(query) != c.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), c.dimensions)
	}
	n := c.collection.Count()
	if k <= 0 || n == 0 || IsZero(query) {
		return nil, nil
	}
	// chromem rejects nResults above the collection size.
	if k > n {
		k = n
	}
	hits, err := c.collection.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying chromem: %w", err)
	}
	results := make([]*VectorResult, len(hits))
	for i, h := range hits {
		results[i] = &VectorResult{ID: h.ID, Score: float64(h.Similarity)}
	}
	return results, nil
}

// Remove deletes vectors by ID.
func (c *ChromemIndex) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("deleting chromem documents: %w", err)
	}
	return nil
}

// Size returns the number of stored vectors.
func (c *ChromemIndex) Size() int {
	return c.collection.Count()
}

// Close is a no-op; the database lives in memory.
func (c *ChromemIndex) Close() error {
	return nil
}
