// Package router turns one inbound conversation turn into a response:
// classify the intent, pick a strategy, answer, and log both directions.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura/internal/intent"
	"github.com/auralabs/aura/internal/retrieval"
	"github.com/auralabs/aura/internal/storage"
)

// Canned responses for the demo clinic. Slot offers stand in for a real
// calendar-availability lookup; the services answer covers a clinic whose
// knowledge base is still empty.
const (
	slotsResponse  = "Tengo estos cupos: hoy 18:00 o mañana 11:30. ¿Cuál prefieres?"
	fallbackAnswer = "Según nuestros servicios: Depilación láser axilas $29.990, duración 20 min. Promos: 2x1 axilas+bozo hasta 30/09."
)

const answerPrompt = `You are the virtual assistant of a clinic. Answer the customer's question briefly and in the customer's language, using only the context below. If the context does not cover the question, invite the customer to ask about services, prices, or booking an appointment.

Context:
%s

Question: %s`

// Classifier labels a conversation turn.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Label
}

// Searcher retrieves a clinic's most relevant knowledge chunks for a query.
type Searcher interface {
	Search(ctx context.Context, clinicID, query string, topK int) ([]retrieval.ScoredChunk, error)
}

// Completer is the slice of the LLM gateway used for answer synthesis.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// ConversationStore persists contacts, conversations, and the message audit log.
type ConversationStore interface {
	CreateContact(c storage.Contact) error
	CreateConversation(cv storage.Conversation) error
	AppendMessage(m storage.Message) error
}

// Turn is one inbound message to route.
type Turn struct {
	ClinicID       string
	ContactName    string
	ContactPhone   string // set for channels addressed by phone number
	Text           string
	ConversationID string // empty mints a new conversation
	Channel        string // storage.ChannelSim when empty
}

// Result is the routed outcome of a turn.
type Result struct {
	ConversationID string
	Intent         intent.Label
	Response       string
	Latency        time.Duration
}

// Router routes conversation turns to a response strategy.
type Router struct {
	classifier Classifier
	retriever  Searcher
	llm        Completer
	chatModel  string
	store      ConversationStore
	topK       int
	logger     *slog.Logger
}

// New creates a Router. topK bounds how many knowledge chunks feed answer
// synthesis; values <= 0 fall back to retrieval.DefaultTopK.
func New(classifier Classifier, retriever Searcher, llm Completer, chatModel string, store ConversationStore, topK int) *Router {
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}
	return &Router{
		classifier: classifier,
		retriever:  retriever,
		llm:        llm,
		chatModel:  chatModel,
		store:      store,
		topK:       topK,
		logger:     slog.Default(),
	}
}

// Route handles one turn. The turn is stateless: nothing from prior turns
// feeds classification or retrieval.
func (r *Router) Route(ctx context.Context, turn Turn) (Result, error) {
	start := time.Now()

	convID, err := r.resolveConversation(turn)
	if err != nil {
		return Result{}, err
	}

	label := r.classifier.Classify(ctx, turn.Text)

	var response string
	var sourceChunks int
	switch label {
	case intent.Scheduling:
		response = slotsResponse
	default: // pricing and general-faq both answer from the knowledge base
		response, sourceChunks = r.answer(ctx, turn.ClinicID, turn.Text)
	}

	r.logTurn(turn, convID, label, response, sourceChunks)

	return Result{
		ConversationID: convID,
		Intent:         label,
		Response:       response,
		Latency:        time.Since(start),
	}, nil
}

// resolveConversation reuses the supplied conversation id verbatim, or mints
// a new contact + conversation pair for a first turn.
func (r *Router) resolveConversation(turn Turn) (string, error) {
	if turn.ConversationID != "" {
		return turn.ConversationID, nil
	}

	channel := turn.Channel
	if channel == "" {
		channel = storage.ChannelSim
	}

	now := time.Now().UTC()
	contact := storage.Contact{
		ID:        uuid.New().String(),
		ClinicID:  turn.ClinicID,
		Name:      turn.ContactName,
		Phone:     turn.ContactPhone,
		CreatedAt: now,
	}
	if err := r.store.CreateContact(contact); err != nil {
		return "", fmt.Errorf("creating contact: %w", err)
	}

	conv := storage.Conversation{
		ID:        uuid.New().String(),
		ClinicID:  turn.ClinicID,
		ContactID: contact.ID,
		Channel:   channel,
		CreatedAt: now,
	}
	if err := r.store.CreateConversation(conv); err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	return conv.ID, nil
}

// answer retrieves the clinic's top chunks and synthesizes a reply. Both
// retrieval and synthesis degrade to the static services answer: a canned
// reply beats a broken turn.
func (r *Router) answer(ctx context.Context, clinicID, question string) (string, int) {
	chunks, err := r.retriever.Search(ctx, clinicID, question, r.topK)
	if err != nil {
		r.logger.Warn("retrieval failed, using fallback answer", "error", err)
		return fallbackAnswer, 0
	}
	if len(chunks) == 0 {
		return fallbackAnswer, 0
	}

	prompt := fmt.Sprintf(answerPrompt,
		strings.Join(retrieval.Contents(chunks), "\n"), question)
	reply, err := r.llm.Complete(ctx, r.chatModel, prompt)
	if err != nil {
		r.logger.Warn("answer synthesis failed, using fallback answer", "error", err)
		return fallbackAnswer, 0
	}
	return strings.TrimSpace(reply), len(chunks)
}

// logTurn appends the inbound and outbound message rows. Audit failures are
// logged but do not fail the turn.
func (r *Router) logTurn(turn Turn, convID string, label intent.Label, response string, sourceChunks int) {
	now := time.Now().UTC()

	inbound := storage.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		ClinicID:       turn.ClinicID,
		Direction:      storage.DirectionInbound,
		Sender:         turn.ContactName,
		Text:           turn.Text,
		Intent:         string(label),
		CreatedAt:      now,
	}
	if err := r.store.AppendMessage(inbound); err != nil {
		r.logger.Error("appending inbound message", "conversation_id", convID, "error", err)
	}

	payload, _ := json.Marshal(map[string]any{"source_chunks": sourceChunks})
	outbound := storage.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		ClinicID:       turn.ClinicID,
		Direction:      storage.DirectionOutbound,
		Sender:         "aura",
		Text:           response,
		Intent:         string(label),
		PayloadJSON:    string(payload),
		CreatedAt:      now,
	}
	if err := r.store.AppendMessage(outbound); err != nil {
		r.logger.Error("appending outbound message", "conversation_id", convID, "error", err)
	}
}
