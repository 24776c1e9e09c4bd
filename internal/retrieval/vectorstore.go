package retrieval

import (
	"context"
	"errors"
)

// ErrEmbeddingUnavailable is returned when the embedding gateway is
// unreachable or produces malformed output (including a vector of the wrong
// dimensionality). Ingestion and search abort on it; nothing is written.
var ErrEmbeddingUnavailable = errors.New("embedding gateway unavailable")

// ErrInvalidTopK is returned for non-positive top-K values.
var ErrInvalidTopK = errors.New("top_k must be a positive integer")

// VectorStore is the interface for vector similarity search backends.
// The current implementation scans SQLite with brute-force cosine similarity,
// which is fine at demo-clinic scale; an ANN-backed implementation can slot
// in behind the same interface later.
//
// Every search is scoped to a clinic and an embedding model: chunks written
// under a different model are invisible, so vectors from incompatible
// embedding spaces are never compared.
type VectorStore interface {
	// Search returns the top-K chunks of the clinic most similar to vector,
	// best match first.
	Search(ctx context.Context, clinicID, model string, vector []float32, topK int) ([]ScoredChunk, error)

	// Count returns the number of chunks stored for the clinic under the model.
	Count(ctx context.Context, clinicID, model string) (int, error)
}

// ScoredChunk is a retrieved knowledge fragment with its similarity score.
type ScoredChunk struct {
	ID         string
	DocumentID string
	Content    string
	Score      float32
}
