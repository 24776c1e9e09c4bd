package api

import (
	"encoding/json"
	"net/http"

	"github.com/auralabs/aura/internal/whatsapp"
)

// handleWebhookVerify implements the Cloud API subscription handshake:
// Meta calls GET with hub.* query params and expects the raw challenge back.
func handleWebhookVerify(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mode := q.Get("hub.mode")
		token := q.Get("hub.verify_token")
		challenge := q.Get("hub.challenge")

		if !whatsapp.VerifyWebhook(mode, token, deps.VerifyToken) {
			httpError(w, http.StatusForbidden, "invalid_request_error", "webhook verification failed")
			return
		}

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(challenge))
	}
}

// handleWebhookDelivery acknowledges the delivery as soon as its messages are
// queued. Routing and the reply happen on the worker, never on this request.
func handleWebhookDelivery(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var env whatsapp.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		queued, err := deps.Bridge.HandleInbound(&env)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue messages: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "received",
			"queued": queued,
		})
	}
}

type sendMessageRequest struct {
	To          string       `json:"to"`
	Message     string       `json:"message"`
	MessageType string       `json:"message_type"`
	Buttons     []sendButton `json:"buttons"`
	Language    string       `json:"language"`
}

type sendButton struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// handleWhatsAppSend dispatches on message_type: "text" (the default) sends a
// plain message, "interactive" a quick-reply button message with message as
// the body, and "template" a pre-approved template named by message.
func handleWhatsAppSend(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.To == "" || req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "to and message are required")
			return
		}
		if req.MessageType == "" {
			req.MessageType = "text"
		}

		var result whatsapp.SendResult
		switch req.MessageType {
		case "text":
			result = deps.Sender.SendText(r.Context(), req.To, req.Message)
		case "interactive":
			if len(req.Buttons) == 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "buttons are required for interactive messages")
				return
			}
			buttons := make([]whatsapp.Button, len(req.Buttons))
			for i, b := range req.Buttons {
				buttons[i] = whatsapp.Button{ID: b.ID, Title: b.Title}
			}
			result = deps.Sender.SendInteractiveButtons(r.Context(), req.To, req.Message, buttons)
		case "template":
			language := req.Language
			if language == "" {
				language = "es"
			}
			result = deps.Sender.SendTemplate(r.Context(), req.To, req.Message, language)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unsupported message_type %q", req.MessageType)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}
