// Package api exposes the HTTP surface: knowledge ingestion and search,
// the simulated conversation channel, and the WhatsApp webhook.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/auralabs/aura/internal/ingest"
	"github.com/auralabs/aura/internal/retrieval"
	"github.com/auralabs/aura/internal/router"
	"github.com/auralabs/aura/internal/whatsapp"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Ingester runs the synchronous ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, clinicID, title, sourceURI, rawText string) (ingest.Result, error)
}

// KnowledgeSearcher serves similarity queries over the knowledge base.
type KnowledgeSearcher interface {
	Search(ctx context.Context, clinicID, query string, topK int) ([]retrieval.ScoredChunk, error)
}

// TurnRouter routes an inbound turn to a response.
type TurnRouter interface {
	Route(ctx context.Context, turn router.Turn) (router.Result, error)
}

// WebhookBridge queues inbound WhatsApp envelopes for async processing.
type WebhookBridge interface {
	HandleInbound(env *whatsapp.Envelope) (int, error)
}

// MessageSender delivers outbound WhatsApp messages.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) whatsapp.SendResult
	SendInteractiveButtons(ctx context.Context, to, body string, buttons []whatsapp.Button) whatsapp.SendResult
	SendTemplate(ctx context.Context, to, name, languageCode string) whatsapp.SendResult
}

// AppDeps carries the wired dependencies for the HTTP handler.
type AppDeps struct {
	Ingester    Ingester
	Searcher    KnowledgeSearcher
	Router      TurnRouter
	Bridge      WebhookBridge
	Sender      MessageSender
	ClinicID    string
	VerifyToken string
}

// NewAppHandler returns the full HTTP API.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Post("/knowledge/ingest", handleKnowledgeIngest(deps))
	r.Post("/knowledge/search", handleKnowledgeSearch(deps))
	r.Post("/sim/message", handleSimMessage(deps))
	r.Get("/whatsapp/webhook", handleWebhookVerify(deps))
	r.Post("/whatsapp/webhook", handleWebhookDelivery(deps))
	r.Post("/whatsapp/send", handleWhatsAppSend(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
