// Package keyword provides chunk-level keyword (BM25) indexing and search.
package keyword

import (
	"context"

	"github.com/hyperjump/kotae/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// PhraseBoost multiplies the score of chunks containing the query as a phrase.
	// Values <= 1 disable the phrase pass.
	PhraseBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Defaults to 2.
	Fuzziness int
}

// KeywordIndex defines keyword search over document chunks.
type KeywordIndex interface {
	IndexChunks(ctx context.Context, chunks []*models.DocumentChunk) error
	// Search returns chunk hits restricted to one document, best first.
	Search(ctx context.Context, docID, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	DeleteDocument(ctx context.Context, docID string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit; ID is a chunk ID.
type KeywordResult struct {
	ID    string
	Score float64
}
