package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/auralabs/aura/internal/retrieval"
)

type ingestRequest struct {
	ClinicID string `json:"clinic_id"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	Text     string `json:"text"`
}

type ingestResponse struct {
	DocID  string `json:"doc_id"`
	Chunks int    `json:"chunks"`
}

func handleKnowledgeIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ingestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ClinicID == "" {
			req.ClinicID = deps.ClinicID
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		result, err := deps.Ingester.Ingest(r.Context(), req.ClinicID, req.Title, req.Source, req.Text)
		if errors.Is(err, retrieval.ErrEmbeddingUnavailable) {
			httpError(w, http.StatusBadGateway, "api_error", "embedding gateway unavailable")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to ingest document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ingestResponse{
			DocID:  result.DocumentID,
			Chunks: result.ChunkCount,
		})
	}
}

type searchRequest struct {
	ClinicID string `json:"clinic_id"`
	Query    string `json:"query"`
	TopK     int    `json:"top_k"`
}

func handleKnowledgeSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.ClinicID == "" {
			req.ClinicID = deps.ClinicID
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.TopK < 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "top_k must be a positive integer")
			return
		}
		if req.TopK == 0 {
			req.TopK = retrieval.DefaultTopK
		}

		chunks, err := deps.Searcher.Search(r.Context(), req.ClinicID, req.Query, req.TopK)
		if errors.Is(err, retrieval.ErrEmbeddingUnavailable) {
			httpError(w, http.StatusBadGateway, "api_error", "embedding gateway unavailable")
			return
		}
		if errors.Is(err, retrieval.ErrInvalidTopK) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "top_k must be a positive integer")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}

		results := retrieval.Contents(chunks)
		if results == nil {
			results = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	}
}
