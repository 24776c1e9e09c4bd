package retrieval

import (
	"context"
)

// DefaultTopK is the number of chunks returned when the caller does not ask
// for a specific count.
const DefaultTopK = 3

// Retriever combines embedding and vector search to answer clinic-scoped
// knowledge queries.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds the query and returns the clinic's top-K most similar chunks,
// best match first. A clinic with no chunks yields an empty result, not an
// error. topK must be positive; ErrInvalidTopK otherwise.
func (r *Retriever) Search(ctx context.Context, clinicID, query string, topK int) ([]ScoredChunk, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	return r.store.Search(ctx, clinicID, r.embedder.Model(), vec, topK)
}

// Contents extracts just the chunk texts in ranked order.
func Contents(chunks []ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Content
	}
	return out
}
