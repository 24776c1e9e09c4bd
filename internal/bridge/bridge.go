// Package bridge connects the WhatsApp channel to the conversation router.
// Webhook deliveries are acknowledged immediately and queued as durable jobs;
// a background worker routes each message and sends the reply.
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/auralabs/aura/internal/storage"
	"github.com/auralabs/aura/internal/whatsapp"
)

// JobTypeInbound tags queued webhook messages in the jobs table.
const JobTypeInbound = "whatsapp_inbound"

// JobQueue enqueues durable jobs for later processing.
type JobQueue interface {
	EnqueueJob(job storage.Job) error
}

// inboundPayload is the job body for one inbound WhatsApp text message.
type inboundPayload struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
}

// Bridge fans webhook envelopes into the job queue.
type Bridge struct {
	queue    JobQueue
	clinicID string
	logger   *slog.Logger
}

// New creates a Bridge that queues inbound messages for the given clinic.
func New(queue JobQueue, clinicID string) *Bridge {
	return &Bridge{
		queue:    queue,
		clinicID: clinicID,
		logger:   slog.Default(),
	}
}

// HandleInbound enqueues one job per text message in the envelope and
// returns how many were queued. Redelivered messages are recognized by
// their provider id and skipped; the webhook caller never sees them as
// errors.
func (b *Bridge) HandleInbound(env *whatsapp.Envelope) (int, error) {
	queued := 0
	for _, msg := range env.TextMessages() {
		payload, err := json.Marshal(inboundPayload{
			From:      msg.From,
			Text:      msg.Text.Body,
			MessageID: msg.ID,
		})
		if err != nil {
			return queued, fmt.Errorf("encoding payload: %w", err)
		}

		err = b.queue.EnqueueJob(storage.Job{
			ID:          uuid.New().String(),
			Type:        JobTypeInbound,
			DedupKey:    msg.ID,
			PayloadJSON: string(payload),
		})
		if errors.Is(err, storage.ErrDuplicateJob) {
			b.logger.Info("skipping redelivered message", "message_id", msg.ID)
			continue
		}
		if err != nil {
			return queued, fmt.Errorf("enqueueing message %s: %w", msg.ID, err)
		}
		queued++
	}
	return queued, nil
}
