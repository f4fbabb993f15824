package vector

import (
	"context"
	"sort"
	"sync"
)

// Set holds one VectorIndex per document so searches never cross documents.
// Indexes are created lazily with the configured type and dimensions.
type Set struct {
	indexType  string
	dimensions int
	mu         sync.RWMutex
	indexes    map[string]VectorIndex
}

// NewSet validates the index type and returns an empty set.
func NewSet(indexType string, dimensions int) (*Set, error) {
	probe, err := NewVectorIndex(indexType, dimensions)
	if err != nil {
		return nil, err
	}
	_ = probe.Close()
	if indexType == "" {
		indexType = string(IndexTypeMemory)
	}
	return &Set{
		indexType:  indexType,
		dimensions: dimensions,
		indexes:    make(map[string]VectorIndex),
	}, nil
}

// Add stores vectors for docID, creating its index on first use.
func (s *Set) Add(ctx context.Context, docID string, ids []string, vectors [][]float32) error {
	s.mu.Lock()
	idx, ok := s.indexes[docID]
	if !ok {
		var err error
		idx, err = NewVectorIndex(s.indexType, s.dimensions)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.indexes[docID] = idx
	}
	s.mu.Unlock()
	return idx.Add(ctx, ids, vectors)
}

// Search queries docID's index. A document without an index yields no hits.
func (s *Set) Search(ctx context.Context, docID string, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	idx, ok := s.indexes[docID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return idx.Search(ctx, query, k)
}

// RemoveDocument drops docID's index.
func (s *Set) RemoveDocument(docID string) error {
	s.mu.Lock()
	idx, ok := s.indexes[docID]
	delete(s.indexes, docID)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return idx.Close()
}

// Documents returns the IDs of documents with an index, sorted.
func (s *Set) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.indexes))
	for id := range s.indexes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size returns the total number of vectors across documents.
func (s *Set) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int
	for _, idx := range s.indexes {
		n += idx.Size()
	}
	return n
}

// Type returns the index type used for every document.
func (s *Set) Type() string {
	return s.indexType
}

// Dimensions returns the vector dimension.
func (s *Set) Dimensions() int {
	return s.dimensions
}

// Close closes every index.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, idx := range s.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.indexes, id)
	}
	return firstErr
}
