// Package embedding provides text embedding backends and caching.
package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/kotae/internal/config"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// New builds the embedder named by cfg.Provider, wrapped in an LRU cache when
// cfg.CacheSize is positive.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	var base Embedder
	switch cfg.Provider {
	case "hash", "":
		base = NewHashEmbedder(cfg.Dimensions)
	case "openai":
		remote, err := NewRemoteEmbedder(cfg.BaseURL, cfg.Model, cfg.APIKey, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		base = remote
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, openai)", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(base, cfg.CacheSize), nil
	}
	return base, nil
}
