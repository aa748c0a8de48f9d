package notion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

func TestName(t *testing.T) {
	if got := New("db-1").Name(); got != "notion" {
		t.Fatalf("Name() = %q, want \"notion\"", got)
	}
}

func TestFormatPayload_SetsParentDatabaseID(t *testing.T) {
	payload, err := New("db-123").FormatPayload(webhook.Event{InvocationID: "inv-1", ExternalAgentID: "agent-1", Status: "success", ExecutionTimeMs: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req, ok := payload.(createPageRequest)
	if !ok {
		t.Fatalf("payload is not createPageRequest")
	}
	if req.Parent.DatabaseID != "db-123" {
		t.Fatalf("Parent.DatabaseID = %q, want \"db-123\"", req.Parent.DatabaseID)
	}
	if req.Properties["Status"].Select.Name != "success" {
		t.Fatalf("Status select = %q, want \"success\"", req.Properties["Status"].Select.Name)
	}
	if req.Properties["Agent"].RichText[0].Text.Content != "agent-1" {
		t.Fatalf("Agent rich_text = %q, want \"agent-1\"", req.Properties["Agent"].RichText[0].Text.Content)
	}
	if *req.Properties["Duration Ms"].Number != 42 {
		t.Fatalf("Duration Ms = %d, want 42", *req.Properties["Duration Ms"].Number)
	}
}

func TestDeliver_SetsNotionVersionAndAuthHeaders(t *testing.T) {
	var gotVersion, gotAuth string
	var decoded createPageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("Notion-Version")
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&decoded)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New("db-1")
	payload, _ := a.FormatPayload(webhook.Event{InvocationID: "inv-1"})
	result := a.Deliver(context.Background(), srv.URL, "secret-token", payload)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if gotVersion != apiVersion {
		t.Fatalf("Notion-Version = %q, want %q", gotVersion, apiVersion)
	}
	if gotAuth != "Bearer secret-token" {
		t.Fatalf("Authorization = %q, want \"Bearer secret-token\"", gotAuth)
	}
	if decoded.Parent.DatabaseID != "db-1" {
		t.Fatalf("decoded database id = %q, want \"db-1\"", decoded.Parent.DatabaseID)
	}
}

func TestDeliver_NoAuthHeaderWhenSecretEmpty(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New("db-1")
	payload, _ := a.FormatPayload(webhook.Event{})
	if result := a.Deliver(context.Background(), srv.URL, "", payload); result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if gotAuth != "" {
		t.Fatalf("expected no Authorization header when secret is empty, got %q", gotAuth)
	}
}
