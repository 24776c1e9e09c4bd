// Package ingest turns raw knowledge text into embedded, searchable chunks.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura/internal/retrieval"
	"github.com/auralabs/aura/internal/storage"
)

// DocumentStore persists a document and its chunks atomically.
type DocumentStore interface {
	SaveDocument(doc storage.Document, chunks []storage.Chunk) error
}

// ContentEmbedder generates embeddings for text segments.
type ContentEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Result reports what an ingestion call produced.
type Result struct {
	DocumentID string
	ChunkCount int
}

// Pipeline splits raw text into line chunks, embeds them, and stores the
// document with all chunks in a single transaction. Ingestion is
// all-or-nothing: an embedding failure aborts the call with nothing written.
type Pipeline struct {
	store    DocumentStore
	embedder ContentEmbedder
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline with the given dependencies.
func NewPipeline(store DocumentStore, embedder ContentEmbedder) *Pipeline {
	return &Pipeline{
		store:    store,
		embedder: embedder,
		logger:   slog.Default(),
	}
}

// SplitSegments breaks raw text into trimmed, non-empty line segments.
// No sentence-boundary detection; one line is one chunk.
func SplitSegments(raw string) []string {
	var segments []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			segments = append(segments, line)
		}
	}
	return segments
}

// Ingest embeds and stores rawText as chunks of a new document for the
// clinic. Text with no non-blank lines still creates a document row and
// returns ChunkCount 0. There is no embedding cache: re-ingesting identical
// text re-embeds and re-stores it.
func (p *Pipeline) Ingest(ctx context.Context, clinicID, title, sourceURI, rawText string) (Result, error) {
	if sourceURI == "" {
		sourceURI = "inline"
	}

	segments := SplitSegments(rawText)

	vectors, err := p.embedder.EmbedBatch(ctx, segments)
	if err != nil {
		return Result{}, fmt.Errorf("embedding %d segments: %w", len(segments), err)
	}

	now := time.Now().UTC()
	doc := storage.Document{
		ID:        uuid.New().String(),
		ClinicID:  clinicID,
		Title:     title,
		SourceURI: sourceURI,
		CreatedAt: now,
	}

	chunks := make([]storage.Chunk, len(segments))
	for i, segment := range segments {
		chunks[i] = storage.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			ClinicID:   clinicID,
			Content:    segment,
			Embedding:  retrieval.EncodeVector(vectors[i]),
			Model:      p.embedder.Model(),
			CreatedAt:  now,
		}
	}

	if err := p.store.SaveDocument(doc, chunks); err != nil {
		return Result{}, fmt.Errorf("saving document: %w", err)
	}

	p.logger.Info("ingested document",
		"doc_id", doc.ID, "clinic_id", clinicID, "chunks", len(chunks))

	return Result{DocumentID: doc.ID, ChunkCount: len(chunks)}, nil
}
