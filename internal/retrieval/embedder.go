package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient is the slice of the gateway client the embedder needs.
type EmbeddingClient interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder wraps an embedding gateway with a fixed model and expected
// dimensionality. All failures, including wrong-sized vectors, surface as
// ErrEmbeddingUnavailable so callers can treat the gateway as a single
// all-or-nothing capability.
type Embedder struct {
	client EmbeddingClient
	model  string
	dims   int
}

// NewEmbedder creates an Embedder using the given client and model name.
// dims is the vector length the model is expected to produce; pass 0 to
// skip the check.
func NewEmbedder(client EmbeddingClient, model string, dims int) *Embedder {
	return &Embedder{client: client, model: model, dims: dims}
}

// Model returns the embedding model identifier, stored alongside every chunk.
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if e.dims > 0 && len(vec) != e.dims {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, want %d",
			ErrEmbeddingUnavailable, e.model, len(vec), e.dims)
	}
	return vec, nil
}

// EmbedBatch returns embedding vectors for multiple texts concurrently.
// Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the gateway.

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
