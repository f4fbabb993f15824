// Package indexer stores corpus documents and makes them searchable.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"go.uber.org/zap"
)

// Sink receives stored chunks and makes them searchable.
type Sink interface {
	AddChunks(ctx context.Context, docID string, chunks []*models.DocumentChunk) error
	RemoveDocument(ctx context.Context, docID string) error
}

// Indexer stores documents, chunks and embeds them, and hands the chunks to a Sink.
type Indexer struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	sink      Sink
	chunker   *Chunker
	extractor *extract.Extractor
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. extractor may be nil; files are then read as plain text.
func NewIndexer(
	storage storage.Storage,
	embedder embedding.Embedder,
	sink Sink,
	cfg *config.CorpusConfig,
	extractor *extract.Extractor,
	opts ...IndexerOption,
) *Indexer {
	idx := &Indexer{
		storage:   storage,
		embedder:  embedder,
		sink:      sink,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexDocument stores input and makes it searchable, replacing any document
// with the same ID. Chunks are embedded before anything is written, and a
// failure after the document row is stored removes it again, so a document
// is never left stored without its chunks.
func (idx *Indexer) IndexDocument(ctx context.Context, input *models.DocumentInput) error {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return errors.New("document id is required")
	}
	title := input.Title
	if title == "" {
		title = id
	}
	doc := &models.Document{
		ID:       id,
		Title:    title,
		Content:  Preprocess(input.Content),
		Metadata: input.Metadata,
	}
	chunks := idx.chunker.Chunk(doc.ID, doc.Content)
	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Content
		}
		embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		for i := range chunks {
			chunks[i].Embedding = embeddings[i]
		}
	}

	if err := idx.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	if len(chunks) == 0 {
		idx.logger.Debug("indexer stored empty document", zap.String("id", id))
		return nil
	}
	if err := idx.storeChunks(ctx, doc.ID, chunks); err != nil {
		if rbErr := idx.DeleteDocument(ctx, id); rbErr != nil {
			idx.logger.Error("failed to roll back partially indexed document", zap.String("id", id), zap.Error(rbErr))
		}
		return err
	}
	idx.logger.Debug("indexer document indexed", zap.String("id", id), zap.Int("chunks", len(chunks)))
	return nil
}

func (idx *Indexer) storeChunks(ctx context.Context, docID string, chunks []*models.DocumentChunk) error {
	if err := idx.storage.BatchCreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return idx.sink.AddChunks(ctx, docID, chunks)
}

const (
	metaKeySourcePath  = "source_path"
	metaKeySourceMtime = "source_mtime"
	metaKeySourceSize  = "source_size"
)

// DocumentID returns the corpus identifier for a file: its base name without
// extension, so "data/Toronto.txt" is "Toronto".
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IndexFile extracts and indexes the file at path under DocumentID(path).
// It reports skipped=true when the stored copy has the same mtime and size.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (skipped bool, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}
	docID := DocumentID(absPath)
	if idx.unchanged(ctx, absPath, docID, info) {
		idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		return true, nil
	}
	text, err := idx.extractContent(absPath)
	if err != nil {
		return false, fmt.Errorf("extract content: %w", err)
	}
	input := &models.DocumentInput{
		ID:      docID,
		Title:   filepath.Base(absPath),
		Content: text,
		Metadata: map[string]interface{}{
			metaKeySourcePath:  absPath,
			metaKeySourceMtime: strconv.FormatInt(info.ModTime().UnixNano(), 10),
			metaKeySourceSize:  strconv.FormatInt(info.Size(), 10),
		},
	}
	if err := idx.IndexDocument(ctx, input); err != nil {
		return false, err
	}
	return false, nil
}

// unchanged reports whether docID was indexed from absPath with the same mtime
// and size, and has its chunks stored.
func (idx *Indexer) unchanged(ctx context.Context, absPath, docID string, info os.FileInfo) bool {
	doc, err := idx.storage.GetDocument(ctx, docID)
	if err != nil || doc.Metadata == nil {
		return false
	}
	if doc.Metadata[metaKeySourcePath] != absPath {
		return false
	}
	if strings.TrimSpace(doc.Content) != "" {
		chunks, err := idx.storage.GetChunksByDocumentID(ctx, docID)
		if err != nil || len(chunks) == 0 {
			return false
		}
	}
	// Stored as strings: UnixNano does not survive a JSON float64.
	return metadataInt64(doc.Metadata, metaKeySourceMtime) == info.ModTime().UnixNano() &&
		metadataInt64(doc.Metadata, metaKeySourceSize) == info.Size()
}

func metadataInt64(m map[string]interface{}, key string) int64 {
	switch n := m[key].(type) {
	case string:
		x, _ := strconv.ParseInt(n, 10, 64)
		return x
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// CorpusReport summarizes an IndexCorpus run. Failed maps document IDs to the error text.
type CorpusReport struct {
	Indexed []string          `json:"indexed"`
	Skipped []string          `json:"skipped"`
	Missing []string          `json:"missing"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// IndexCorpus indexes the named documents from dir. For each name the first
// existing "<dir>/<name><ext>" in exts order is used; names with no file are
// reported missing. Per-document failures are collected, not returned.
func (idx *Indexer) IndexCorpus(ctx context.Context, dir string, names, exts []string) (*CorpusReport, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat corpus directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	report := &CorpusReport{Failed: map[string]string{}}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		path := findDocumentFile(dir, name, exts)
		if path == "" {
			report.Missing = append(report.Missing, name)
			idx.logger.Warn("corpus document not found", zap.String("document", name), zap.String("dir", dir))
			continue
		}
		skipped, err := idx.IndexFile(ctx, path)
		switch {
		case err != nil:
			report.Failed[name] = err.Error()
			idx.logger.Error("failed to index corpus document", zap.String("document", name), zap.Error(err))
		case skipped:
			report.Skipped = append(report.Skipped, name)
		default:
			report.Indexed = append(report.Indexed, name)
		}
	}
	return report, nil
}

func findDocumentFile(dir, name string, exts []string) string {
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		path := filepath.Join(dir, name+ext)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path
		}
	}
	return ""
}

func (idx *Indexer) extractContent(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// DeleteDocument removes a document from the sink and from storage.
// Deleting an unknown document is not an error.
func (idx *Indexer) DeleteDocument(ctx context.Context, id string) error {
	if err := idx.sink.RemoveDocument(ctx, id); err != nil {
		return err
	}
	if err := idx.storage.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// RemoveFile deletes the document indexed from path. A document indexed from
// another file (e.g. a .md next to a removed .txt) is left alone.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (removed bool, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	docID := DocumentID(absPath)
	doc, err := idx.storage.GetDocument(ctx, docID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if doc.Metadata[metaKeySourcePath] != absPath {
		return false, nil
	}
	if err := idx.DeleteDocument(ctx, docID); err != nil {
		return false, err
	}
	return true, nil
}
