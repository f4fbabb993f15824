package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/kotae/internal/vector"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// RemoteEmbedder calls an OpenAI-compatible embeddings endpoint through langchaingo.
// Returned vectors are normalized to unit length.
type RemoteEmbedder struct {
	embedder   embeddings.Embedder
	dimensions int
}

// NewRemoteEmbedder creates an embedder for the given endpoint and model.
// dimensions must match what the model returns; mismatches fail at embed time.
func NewRemoteEmbedder(baseURL, model, apiKey string, dimensions int) (*RemoteEmbedder, error) {
	if model == "" {
		return nil, errors.New("embedding model is required")
	}
	if apiKey == "" {
		// OpenAI-compatible local servers (TEI, vLLM) ignore the token but the client requires one.
		apiKey = "unused"
	}
	opts := []openai.Option{
		openai.WithEmbeddingModel(model),
		openai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}
	e, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return newRemoteEmbedder(e, dimensions), nil
}

func newRemoteEmbedder(e embeddings.Embedder, dimensions int) *RemoteEmbedder {
	return &RemoteEmbedder{embedder: e, dimensions: dimensions}
}

// Embed embeds a single query text.
func (r *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := r.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if err := r.checkDims(v); err != nil {
		return nil, err
	}
	return vector.Normalize(v), nil
}

// EmbedBatch embeds documents in one request.
func (r *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vs, err := r.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(vs) != len(texts) {
		return nil, fmt.Errorf("embedding documents: got %d vectors for %d texts", len(vs), len(texts))
	}
	for _, v := range vs {
		if err := r.checkDims(v); err != nil {
			return nil, err
		}
		vector.Normalize(v)
	}
	return vs, nil
}

func (r *RemoteEmbedder) checkDims(v []float32) error {
	if r.dimensions > 0 && len(v) != r.dimensions {
		return fmt.Errorf("embedding dimension mismatch: got %d, expected %d", len(v), r.dimensions)
	}
	return nil
}

// Dimensions returns the configured embedding dimension.
func (r *RemoteEmbedder) Dimensions() int {
	return r.dimensions
}

// Close is a no-op.
func (r *RemoteEmbedder) Close() error {
	return nil
}
