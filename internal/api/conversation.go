package api

import (
	"encoding/json"
	"net/http"

	"github.com/auralabs/aura/internal/router"
	"github.com/auralabs/aura/internal/storage"
)

type simMessageRequest struct {
	ClinicID       string `json:"clinic_id"`
	ContactName    string `json:"contact_name"`
	Text           string `json:"text"`
	ConversationID string `json:"conversation_id"`
}

type simMessageResponse struct {
	ConversationID string `json:"conversation_id"`
	Intent         string `json:"intent"`
	Response       string `json:"response"`
	LatencyMS      int64  `json:"latency_ms"`
}

func handleSimMessage(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req simMessageRequest
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
		if req.ContactName == "" {
			req.ContactName = "sim"
		}

		result, err := deps.Router.Route(r.Context(), router.Turn{
			ClinicID:       req.ClinicID,
			ContactName:    req.ContactName,
			Text:           req.Text,
			ConversationID: req.ConversationID,
			Channel:        storage.ChannelSim,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to route message: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(simMessageResponse{
			ConversationID: result.ConversationID,
			Intent:         string(result.Intent),
			Response:       result.Response,
			LatencyMS:      result.Latency.Milliseconds(),
		})
	}
}
