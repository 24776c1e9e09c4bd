package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendText(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT1"}]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "token-123", "555000111")
	result := client.SendText(context.Background(), "56912345678", "hola")

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.MessageID != "wamid.OUT1" {
		t.Errorf("message id = %q, want wamid.OUT1", result.MessageID)
	}
	if gotPath != "/555000111/messages" {
		t.Errorf("path = %q, want /555000111/messages", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody["to"] != "56912345678" || gotBody["type"] != "text" {
		t.Errorf("unexpected request body: %v", gotBody)
	}
	text, ok := gotBody["text"].(map[string]any)
	if !ok || text["body"] != "hola" {
		t.Errorf("text payload = %v", gotBody["text"])
	}
}

func TestSendTextUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := New(srv.URL, "bad-token", "555000111")
	result := client.SendText(context.Background(), "56912345678", "hola")

	if result.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Error, "401") {
		t.Errorf("error = %q, want status code mention", result.Error)
	}
}

func TestSendTextUnreachable(t *testing.T) {
	client := New("http://127.0.0.1:1", "token", "555000111")
	result := client.SendText(context.Background(), "56912345678", "hola")
	if result.Success {
		t.Fatal("expected failure for unreachable host")
	}
	if result.Error == "" {
		t.Error("expected error description")
	}
}

func TestSendInteractiveButtons(t *testing.T) {
	var gotBody sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT2"}]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "token", "555000111")
	result := client.SendInteractiveButtons(context.Background(), "56912345678", "¿Cuál prefieres?", []Button{
		{ID: "slot-1", Title: "Hoy 18:00"},
		{ID: "slot-2", Title: "Mañana 11:30"},
	})

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if gotBody.Type != "interactive" || gotBody.Interactive == nil {
		t.Fatalf("unexpected request: %+v", gotBody)
	}
	if len(gotBody.Interactive.Action.Buttons) != 2 {
		t.Fatalf("buttons = %d, want 2", len(gotBody.Interactive.Action.Buttons))
	}
	if gotBody.Interactive.Action.Buttons[0].Reply.ID != "slot-1" {
		t.Errorf("first button = %+v", gotBody.Interactive.Action.Buttons[0])
	}
}

func TestSendTemplate(t *testing.T) {
	var gotBody sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		w.Write([]byte(`{"messages":[{"id":"wamid.OUT3"}]}`))
	}))
	defer srv.Close()

	client := New(srv.URL, "token", "555000111")
	result := client.SendTemplate(context.Background(), "56912345678", "hello_world", "es")

	if !result.Success {
		t.Fatalf("expected success, got %q", result.Error)
	}
	if gotBody.Template == nil || gotBody.Template.Name != "hello_world" || gotBody.Template.Language.Code != "es" {
		t.Errorf("template payload = %+v", gotBody.Template)
	}
}
