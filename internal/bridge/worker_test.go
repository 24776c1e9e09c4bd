package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auralabs/aura/internal/router"
	"github.com/auralabs/aura/internal/storage"
	"github.com/auralabs/aura/internal/whatsapp"
)

var errTest = errors.New("boom")

type mockJobStore struct {
	job           *storage.Job
	claimErr      error
	completed     []string
	failed        []string
	failMsgs      []string
	conversations map[string]string // phone -> latest conversation id
	lookupErr     error
}

func (m *mockJobStore) ClaimNextJob(types []string) (*storage.Job, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	job := m.job
	m.job = nil
	return job, nil
}

func (m *mockJobStore) CompleteJob(id string) error {
	m.completed = append(m.completed, id)
	return nil
}

func (m *mockJobStore) FailJob(id string, errMsg string) error {
	m.failed = append(m.failed, id)
	m.failMsgs = append(m.failMsgs, errMsg)
	return nil
}

func (m *mockJobStore) LatestConversation(clinicID, phone, channel string) (string, error) {
	if m.lookupErr != nil {
		return "", m.lookupErr
	}
	id, ok := m.conversations[phone]
	if !ok {
		return "", storage.ErrNotFound
	}
	return id, nil
}

type mockRouter struct {
	result router.Result
	err    error
	turns  []router.Turn
}

func (m *mockRouter) Route(ctx context.Context, turn router.Turn) (router.Result, error) {
	m.turns = append(m.turns, turn)
	if m.err != nil {
		return router.Result{}, m.err
	}
	return m.result, nil
}

type mockSender struct {
	result whatsapp.SendResult
	to     []string
	bodies []string
}

func (m *mockSender) SendText(ctx context.Context, to, body string) whatsapp.SendResult {
	m.to = append(m.to, to)
	m.bodies = append(m.bodies, body)
	return m.result
}

func inboundJob(t *testing.T) *storage.Job {
	t.Helper()
	return &storage.Job{
		ID:          "job-1",
		Type:        JobTypeInbound,
		DedupKey:    "wamid.A",
		PayloadJSON: `{"from":"56912345678","text":"hola, precios?","message_id":"wamid.A"}`,
	}
}

func TestRunOnceRoutesAndReplies(t *testing.T) {
	store := &mockJobStore{job: inboundJob(t)}
	turns := &mockRouter{result: router.Result{ConversationID: "conv-1", Response: "respuesta"}}
	sender := &mockSender{result: whatsapp.SendResult{Success: true, MessageID: "wamid.OUT"}}

	w := NewWorker(store, turns, sender, "clinic-1", time.Millisecond)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}

	if len(turns.turns) != 1 {
		t.Fatalf("routed turns = %d, want 1", len(turns.turns))
	}
	turn := turns.turns[0]
	if turn.ClinicID != "clinic-1" || turn.ContactName != "56912345678" || turn.Text != "hola, precios?" {
		t.Errorf("turn = %+v", turn)
	}
	if turn.Channel != storage.ChannelWhatsApp {
		t.Errorf("channel = %q, want %q", turn.Channel, storage.ChannelWhatsApp)
	}
	if turn.ContactPhone != "56912345678" {
		t.Errorf("contact phone = %q, want the sender number", turn.ContactPhone)
	}
	if turn.ConversationID != "" {
		t.Errorf("first turn must mint a conversation, got id %q", turn.ConversationID)
	}

	if len(sender.bodies) != 1 || sender.bodies[0] != "respuesta" {
		t.Errorf("sent bodies = %v", sender.bodies)
	}
	if len(store.completed) != 1 || store.completed[0] != "job-1" {
		t.Errorf("completed = %v", store.completed)
	}
	if len(store.failed) != 0 {
		t.Errorf("failed = %v", store.failed)
	}
}

func TestRunOnceContinuesExistingConversation(t *testing.T) {
	store := &mockJobStore{
		job:           inboundJob(t),
		conversations: map[string]string{"56912345678": "conv-9"},
	}
	turns := &mockRouter{result: router.Result{ConversationID: "conv-9", Response: "respuesta"}}
	sender := &mockSender{result: whatsapp.SendResult{Success: true, MessageID: "wamid.OUT"}}

	w := NewWorker(store, turns, sender, "clinic-1", time.Millisecond)
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(turns.turns) != 1 {
		t.Fatalf("routed turns = %d, want 1", len(turns.turns))
	}
	if turns.turns[0].ConversationID != "conv-9" {
		t.Errorf("conversation id = %q, want conv-9", turns.turns[0].ConversationID)
	}
}

func TestRunOnceConversationLookupFailureFailsJob(t *testing.T) {
	store := &mockJobStore{job: inboundJob(t), lookupErr: errTest}
	turns := &mockRouter{}
	w := NewWorker(store, turns, &mockSender{}, "clinic-1", time.Millisecond)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}
	if len(store.failed) != 1 {
		t.Errorf("failed = %v", store.failed)
	}
	if len(turns.turns) != 0 {
		t.Errorf("routing should not run, got %d turns", len(turns.turns))
	}
}

func TestRunOnceNoJob(t *testing.T) {
	store := &mockJobStore{}
	w := NewWorker(store, &mockRouter{}, &mockSender{}, "clinic-1", time.Millisecond)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("expected no job to be processed")
	}
}

func TestRunOnceRoutingFailureFailsJob(t *testing.T) {
	store := &mockJobStore{job: inboundJob(t)}
	turns := &mockRouter{err: errTest}
	sender := &mockSender{}

	w := NewWorker(store, turns, sender, "clinic-1", time.Millisecond)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}
	if len(store.failed) != 1 || store.failed[0] != "job-1" {
		t.Errorf("failed = %v", store.failed)
	}
	if len(sender.bodies) != 0 {
		t.Errorf("no reply should be sent, got %v", sender.bodies)
	}
}

func TestRunOnceSendFailureFailsJob(t *testing.T) {
	store := &mockJobStore{job: inboundJob(t)}
	turns := &mockRouter{result: router.Result{ConversationID: "conv-1", Response: "respuesta"}}
	sender := &mockSender{result: whatsapp.SendResult{Error: "unexpected status 500"}}

	w := NewWorker(store, turns, sender, "clinic-1", time.Millisecond)
	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}
	if len(store.failed) != 1 {
		t.Fatalf("failed = %v", store.failed)
	}
	if len(store.completed) != 0 {
		t.Errorf("completed = %v", store.completed)
	}
}

func TestRunOnceBadPayloadFailsJob(t *testing.T) {
	store := &mockJobStore{job: &storage.Job{ID: "job-2", Type: JobTypeInbound, PayloadJSON: "{"}}
	w := NewWorker(store, &mockRouter{}, &mockSender{}, "clinic-1", time.Millisecond)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !done {
		t.Fatal("expected a job to be processed")
	}
	if len(store.failed) != 1 || store.failed[0] != "job-2" {
		t.Errorf("failed = %v", store.failed)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := &mockJobStore{}
	w := NewWorker(store, &mockRouter{}, &mockSender{}, "clinic-1", time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
