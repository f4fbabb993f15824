package indexer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/kotae/internal/models"
)

// Chunker splits text into overlapping word windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap, in words.
// A non-positive size yields one chunk per document.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into DocumentChunks. IDs are "<docID>_<index>_<random>"
// so replaced documents never reuse a chunk ID.
func (c *Chunker) Chunk(docID, text string) []*models.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	size := c.chunkSize
	if size <= 0 {
		size = len(words)
	}
	step := size - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []*models.DocumentChunk
	for i := 0; i < len(words); i += step {
		end := min(i+size, len(words))
		index := len(chunks)
		chunks = append(chunks, &models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d_%s", docID, index, uuid.New().String()[:8]),
			DocumentID: docID,
			Content:    strings.Join(words[i:end], " "),
			ChunkIndex: index,
		})
		if end >= len(words) {
			break
		}
	}
	return chunks
}
