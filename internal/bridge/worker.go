package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/auralabs/aura/internal/router"
	"github.com/auralabs/aura/internal/storage"
	"github.com/auralabs/aura/internal/whatsapp"
)

// JobStore abstracts the job queue and conversation lookup the worker needs.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	LatestConversation(clinicID, phone, channel string) (string, error)
}

// TurnRouter routes an inbound turn to a response.
type TurnRouter interface {
	Route(ctx context.Context, turn router.Turn) (router.Result, error)
}

// Sender delivers outbound WhatsApp messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) whatsapp.SendResult
}

// Worker processes whatsapp_inbound jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	router   TurnRouter
	sender   Sender
	clinicID string
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, turns TurnRouter, sender Sender, clinicID string, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		router:   turns,
		sender:   sender,
		clinicID: clinicID,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single inbound job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobTypeInbound})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload inboundPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	// A conversation is minted only on a contact's first turn; later turns
	// from the same phone continue the latest one.
	convID, err := w.store.LatestConversation(w.clinicID, payload.From, storage.ChannelWhatsApp)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("resolving conversation for %s: %w", payload.From, err)
	}

	result, err := w.router.Route(ctx, router.Turn{
		ClinicID:       w.clinicID,
		ContactName:    payload.From,
		ContactPhone:   payload.From,
		Text:           payload.Text,
		ConversationID: convID,
		Channel:        storage.ChannelWhatsApp,
	})
	if err != nil {
		return fmt.Errorf("routing message %s: %w", payload.MessageID, err)
	}

	sent := w.sender.SendText(ctx, payload.From, result.Response)
	if !sent.Success {
		return fmt.Errorf("sending reply for %s: %s", payload.MessageID, sent.Error)
	}

	w.logger.Info("delivered reply",
		"message_id", payload.MessageID,
		"conversation_id", result.ConversationID,
		"intent", result.Intent,
		"outbound_id", sent.MessageID,
	)
	return nil
}
