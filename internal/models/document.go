// Package models defines core data structures for corpus documents and answer requests.
package models

import "time"

// Document represents one corpus entry. ID is the document identifier the
// decomposer plans against (for example "Toronto").
type Document struct {
	ID        string                 `json:"id" db:"id"`
	Title     string                 `json:"title" db:"title"`
	Content   string                 `json:"content" db:"content"`
	Metadata  map[string]interface{} `json:"metadata" db:"metadata"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt time.Time              `json:"updated_at" db:"updated_at"`
}

// DocumentChunk is a window of a document's text with its embedding.
type DocumentChunk struct {
	ID         string    `json:"id" db:"id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"embedding"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for creating or replacing a document.
type DocumentInput struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentSummary is the listing view of a corpus document.
type DocumentSummary struct {
	ID      string `json:"id"`
	Indexed bool   `json:"indexed"`
	Chunks  int    `json:"chunks"`
	Chars   int    `json:"chars"`
}

// DocumentDetail is a stored document with its chunks.
type DocumentDetail struct {
	*Document
	Chunks []*DocumentChunk `json:"chunks"`
}
