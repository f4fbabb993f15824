package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

const (
	minCandidates      = 20
	candidateFactor    = 5
	keywordBatchSize   = 500
	keywordPhraseBoost = 1.5
)

// ChunkHit is one retrieved chunk with its fused and component scores.
type ChunkHit struct {
	ChunkID       string
	Content       string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// Engine runs hybrid (keyword + semantic) chunk search scoped to one document
// and serves document full text for summary retrieval.
type Engine struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectors      *vector.Set
	keywordIndex keyword.KeywordIndex
	pipeline     config.PipelineConfig
	maxSummary   int
	logger       *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(
	storage storage.Storage,
	embedder embedding.Embedder,
	vectors *vector.Set,
	keywordIndex keyword.KeywordIndex,
	cfg *config.Config,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		storage:      storage,
		embedder:     embedder,
		vectors:      vectors,
		keywordIndex: keywordIndex,
		pipeline:     cfg.Pipeline,
		maxSummary:   cfg.Corpus.MaxSummaryChars,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search returns the text of up to k chunks of docID most relevant to query,
// most relevant first. No match is an empty result, not an error.
func (e *Engine) Search(ctx context.Context, docID, query string, k int) ([]string, error) {
	hits, err := e.SearchChunks(ctx, docID, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Content
	}
	return texts, nil
}

// SearchChunks is Search with scores.
func (e *Engine) SearchChunks(ctx context.Context, docID, query string, k int) ([]*ChunkHit, error) {
	if k <= 0 {
		return nil, nil
	}
	candidates := k * candidateFactor
	if candidates < minCandidates {
		candidates = minCandidates
	}

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if e.pipeline.KeywordWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := e.keywordIndex.Search(ctx, docID, query, candidates, &keyword.SearchOptions{PhraseBoost: keywordPhraseBoost})
			if err == nil && len(results) == 0 {
				// Misspelled names in a sub-question still deserve a keyword match.
				results, err = e.keywordIndex.Search(ctx, docID, query, candidates, &keyword.SearchOptions{FuzzyEnabled: true})
			}
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	if e.pipeline.SemanticWeight > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queryEmbedding, err := e.embedder.Embed(ctx, query)
			if err != nil {
				errChan <- fmt.Errorf("embedding failed: %w", err)
				return
			}
			if vector.IsZero(queryEmbedding) {
				return
			}
			results, err := e.vectors.Search(ctx, docID, queryEmbedding, candidates)
			if err != nil {
				errChan <- fmt.Errorf("vector search failed: %w", err)
				return
			}
			semanticResults = results
		}()
	}

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}

	fused := Fuse(
		NormalizeKeywordScores(keywordResults),
		NormalizeSemanticScores(semanticResults),
		e.pipeline.KeywordWeight,
		e.pipeline.SemanticWeight,
	)

	hits := make([]*ChunkHit, 0, k)
	for _, f := range fused {
		if len(hits) == k {
			break
		}
		chunk, err := e.storage.GetChunk(ctx, f.ChunkID)
		if err != nil {
			e.logger.Debug("search hit without stored chunk", zap.String("chunk_id", f.ChunkID), zap.Error(err))
			continue
		}
		hits = append(hits, &ChunkHit{
			ChunkID:       f.ChunkID,
			Content:       chunk.Content,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
		})
	}
	return hits, nil
}

// FullText returns docID's stored text clipped to the configured summary limit.
func (e *Engine) FullText(ctx context.Context, docID string) (string, error) {
	doc, err := e.storage.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	return utils.Clip(doc.Content, e.maxSummary), nil
}

// AddChunks makes stored chunks searchable: vectors go to the document's index,
// text to the keyword index.
func (e *Engine) AddChunks(ctx context.Context, docID string, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
		vecs[i] = ch.Embedding
	}
	if err := e.vectors.Add(ctx, docID, ids, vecs); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := e.keywordIndex.IndexChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to index keywords: %w", err)
	}
	return nil
}

// RemoveDocument makes docID unsearchable.
func (e *Engine) RemoveDocument(ctx context.Context, docID string) error {
	if err := e.keywordIndex.DeleteDocument(ctx, docID); err != nil {
		return fmt.Errorf("failed to delete from keyword index: %w", err)
	}
	if err := e.vectors.RemoveDocument(docID); err != nil {
		return fmt.Errorf("failed to delete from vector index: %w", err)
	}
	return nil
}

// Rebuild loads every stored chunk embedding into the vector indexes, and
// re-populates the keyword index when it is empty. Chunks whose stored
// embedding does not match the embedder's dimensions are re-embedded.
// Returns the number of chunks loaded.
func (e *Engine) Rebuild(ctx context.Context) (int, error) {
	kwCount, err := e.keywordIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("keyword doc count: %w", err)
	}
	reindexKeyword := kwCount == 0
	dims := e.vectors.Dimensions()

	var (
		n         int
		reembed   int
		kwPending []*models.DocumentChunk
	)
	flushKeyword := func() error {
		if len(kwPending) == 0 {
			return nil
		}
		err := e.keywordIndex.IndexChunks(ctx, kwPending)
		kwPending = kwPending[:0]
		return err
	}
	err = e.storage.ForEachChunk(ctx, func(ch *models.DocumentChunk) error {
		emb := ch.Embedding
		if len(emb) != dims {
			fresh, embErr := e.embedder.Embed(ctx, ch.Content)
			if embErr != nil {
				return fmt.Errorf("re-embedding chunk %s: %w", ch.ID, embErr)
			}
			emb = fresh
			reembed++
		}
		if err := e.vectors.Add(ctx, ch.DocumentID, []string{ch.ID}, [][]float32{emb}); err != nil {
			return err
		}
		if reindexKeyword {
			kwPending = append(kwPending, ch)
			if len(kwPending) >= keywordBatchSize {
				if err := flushKeyword(); err != nil {
					return err
				}
			}
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("rebuilding indexes: %w", err)
	}
	if err := flushKeyword(); err != nil {
		return n, fmt.Errorf("rebuilding keyword index: %w", err)
	}
	e.logger.Info("search indexes rebuilt",
		zap.Int("chunks", n),
		zap.Int("reembedded", reembed),
		zap.Bool("keyword_reindexed", reindexKeyword),
		zap.String("vector_index_type", e.vectors.Type()),
	)
	return n, nil
}

// VectorIndexSize returns the number of vectors across documents.
func (e *Engine) VectorIndexSize() int {
	return e.vectors.Size()
}

// VectorIndexType returns the configured vector index type.
func (e *Engine) VectorIndexType() string {
	return e.vectors.Type()
}

// IndexedDocuments returns IDs of documents with searchable vectors.
func (e *Engine) IndexedDocuments() []string {
	return e.vectors.Documents()
}
