package bridge

import (
	"encoding/json"
	"testing"

	"github.com/auralabs/aura/internal/storage"
	"github.com/auralabs/aura/internal/whatsapp"
)

type mockQueue struct {
	jobs     []storage.Job
	seenKeys map[string]bool
	err      error
}

func (m *mockQueue) EnqueueJob(job storage.Job) error {
	if m.err != nil {
		return m.err
	}
	if m.seenKeys == nil {
		m.seenKeys = map[string]bool{}
	}
	if job.DedupKey != "" && m.seenKeys[job.DedupKey] {
		return storage.ErrDuplicateJob
	}
	m.seenKeys[job.DedupKey] = true
	m.jobs = append(m.jobs, job)
	return nil
}

func envelopeWith(msgs ...whatsapp.InboundMessage) *whatsapp.Envelope {
	return &whatsapp.Envelope{
		Object: "whatsapp_business_account",
		Entry: []whatsapp.Entry{{
			ID: "entry-1",
			Changes: []whatsapp.Change{{
				Field: "messages",
				Value: whatsapp.ChangeValue{Messages: msgs},
			}},
		}},
	}
}

func textMessage(id, from, body string) whatsapp.InboundMessage {
	return whatsapp.InboundMessage{
		From: from,
		ID:   id,
		Type: "text",
		Text: whatsapp.InboundText{Body: body},
	}
}

func TestHandleInboundEnqueuesTextMessages(t *testing.T) {
	queue := &mockQueue{}
	b := New(queue, "clinic-1")

	env := envelopeWith(
		textMessage("wamid.A", "56912345678", "hola, precios?"),
		whatsapp.InboundMessage{From: "56912345678", ID: "wamid.B", Type: "image"},
	)

	queued, err := b.HandleInbound(env)
	if err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	if queued != 1 {
		t.Fatalf("queued = %d, want 1", queued)
	}
	if len(queue.jobs) != 1 {
		t.Fatalf("stored jobs = %d, want 1", len(queue.jobs))
	}

	job := queue.jobs[0]
	if job.Type != JobTypeInbound {
		t.Errorf("job type = %q, want %q", job.Type, JobTypeInbound)
	}
	if job.DedupKey != "wamid.A" {
		t.Errorf("dedup key = %q, want wamid.A", job.DedupKey)
	}

	var payload inboundPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.From != "56912345678" || payload.Text != "hola, precios?" || payload.MessageID != "wamid.A" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestHandleInboundSkipsRedelivery(t *testing.T) {
	queue := &mockQueue{}
	b := New(queue, "clinic-1")

	env := envelopeWith(textMessage("wamid.A", "56912345678", "hola"))

	if queued, err := b.HandleInbound(env); err != nil || queued != 1 {
		t.Fatalf("first delivery: queued=%d err=%v", queued, err)
	}
	queued, err := b.HandleInbound(env)
	if err != nil {
		t.Fatalf("redelivery must not error: %v", err)
	}
	if queued != 0 {
		t.Errorf("redelivery queued = %d, want 0", queued)
	}
	if len(queue.jobs) != 1 {
		t.Errorf("stored jobs = %d, want 1", len(queue.jobs))
	}
}

func TestHandleInboundQueueFailure(t *testing.T) {
	queue := &mockQueue{err: errTest}
	b := New(queue, "clinic-1")

	env := envelopeWith(textMessage("wamid.A", "56912345678", "hola"))
	if _, err := b.HandleInbound(env); err == nil {
		t.Fatal("expected error from queue failure")
	}
}
