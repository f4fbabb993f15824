package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/kotae/internal/models"
)

const (
	fieldDocumentID = "document_id"
	fieldContent    = "content"
	// deleteBatchSize bounds how many chunk IDs one delete pass collects.
	deleteBatchSize = 1000
)

// chunkDoc is the shape stored in Bleve for each chunk.
type chunkDoc struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
}

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates an
// in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so city and
	// proper names match exactly.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldContent, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldDocumentID, bleve.NewKeywordFieldMapping())
	chunkIndexMapping := bleve.NewNumericFieldMapping()
	chunkIndexMapping.Index = false
	docMapping.AddFieldMappingsAt("chunk_index", chunkIndexMapping)
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// IndexChunks indexes chunks in one batch. Existing chunk IDs are overwritten.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := batch.Index(ch.ID, chunkDoc{
			DocumentID: ch.DocumentID,
			Content:    ch.Content,
			ChunkIndex: ch.ChunkIndex,
		}); err != nil {
			return fmt.Errorf("batch index %s: %w", ch.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs a match query over the chunks of docID. Multi-term queries are
// ranked by BM25 score times squared term coverage, so chunks matching every
// term outrank partial matches; phrase matches get opts.PhraseBoost.
func (b *BleveIndex) Search(ctx context.Context, docID, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	phraseBoost := 1.0
	fuzzy := false
	fuzziness := 2
	if opts != nil {
		if opts.PhraseBoost > 0 {
			phraseBoost = opts.PhraseBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	reqSize := limit * 4
	if reqSize < 50 {
		reqSize = 50
	}
	hits, err := b.searchInDocument(ctx, docID, b.buildTextQuery(query, fuzzy, fuzziness), reqSize)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	terms := tokenizeQuery(query)
	coverage := map[string]int{}
	if len(terms) > 1 {
		coverage = b.termCoverage(ctx, docID, terms, reqSize, fuzzy, fuzziness)
	}
	phrase := map[string]bool{}
	if phraseBoost > 1 && len(terms) > 1 {
		phraseQuery := bleve.NewMatchPhraseQuery(query)
		phraseQuery.SetField(fieldContent)
		if phraseHits, err := b.searchInDocument(ctx, docID, phraseQuery, reqSize); err == nil {
			for id := range phraseHits {
				phrase[id] = true
			}
		}
	}

	out := make([]*KeywordResult, 0, len(hits))
	for id, score := range hits {
		if len(terms) > 1 {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			score *= c * c
		}
		if phrase[id] {
			score *= phraseBoost
		}
		out = append(out, &KeywordResult{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// searchInDocument runs q restricted to docID's chunks and returns scores by chunk ID.
func (b *BleveIndex) searchInDocument(ctx context.Context, docID string, q blevequery.Query, size int) (map[string]float64, error) {
	filter := bleve.NewTermQuery(docID)
	filter.SetField(fieldDocumentID)
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(filter, q))
	req.Size = size
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	scores := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

func (b *BleveIndex) buildTextQuery(query string, fuzzy bool, fuzziness int) blevequery.Query {
	if !fuzzy {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldContent)
		return mq
	}
	return buildFuzzyQuery(query, fuzziness)
}

// termCoverage counts how many query terms each chunk of docID matches.
func (b *BleveIndex) termCoverage(ctx context.Context, docID string, terms []string, size int, fuzzy bool, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		hits, err := b.searchInDocument(ctx, docID, b.buildTextQuery(term, fuzzy, fuzziness), size)
		if err != nil {
			continue
		}
		for id := range hits {
			coverage[id]++
		}
	}
	return coverage
}

// tokenizeQuery splits query into lowercase terms with surrounding punctuation removed.
func tokenizeQuery(query string) []string {
	words := strings.Fields(strings.ToLower(query))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if w != "" {
			terms = append(terms, w)
		}
	}
	return terms
}

// buildFuzzyQuery ORs a FuzzyQuery per term over the content field.
func buildFuzzyQuery(query string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(query)
	if len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldContent)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(fieldContent)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// DeleteDocument removes every chunk of docID.
func (b *BleveIndex) DeleteDocument(ctx context.Context, docID string) error {
	for {
		q := bleve.NewTermQuery(docID)
		q.SetField(fieldDocumentID)
		req := bleve.NewSearchRequest(q)
		req.Size = deleteBatchSize
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return fmt.Errorf("Bleve search failed: %w", err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve delete batch failed: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index. Closing twice is a no-op.
func (b *BleveIndex) Close() error {
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}
