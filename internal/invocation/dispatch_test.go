package invocation

import (
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/keystore"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

func testAgent(webhookURL string) *model.ExternalAgent {
	url := webhookURL
	return &model.ExternalAgent{ID: uuid.New(), WebhookURL: &url}
}

func TestDispatch_RejectsAgentWithNoWebhookURL(t *testing.T) {
	d := NewDispatcher(nil)
	agent := &model.ExternalAgent{ID: uuid.New()}

	if _, err := d.Dispatch(context.Background(), agent, []byte(`{}`)); err == nil {
		t.Fatal("expected an error for an agent with no webhook URL configured")
	}
}

func TestDispatch_PostsPayloadAndReturnsResponseBody(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	d := NewDispatcher(nil)
	agent := testAgent(srv.URL)

	result, err := d.Dispatch(context.Background(), agent, []byte(`{"hello":"world"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", result.StatusCode)
	}
	if string(result.Body) != `{"ok":true}` {
		t.Fatalf("Body = %q, want %q", result.Body, `{"ok":true}`)
	}
	if gotContentType != "application/json" {
		t.Fatalf("Content-Type sent = %q, want application/json", gotContentType)
	}
	if string(gotBody) != `{"hello":"world"}` {
		t.Fatalf("body sent = %q, want %q", gotBody, `{"hello":"world"}`)
	}
}

func TestDispatch_AttachesBearerAuthFromDecryptedCredentials(t *testing.T) {
	cipher, err := keystore.NewCipher(hex.EncodeToString(make([]byte, 32)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	encrypted, err := cipher.Encrypt([]byte("super-secret-token"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(cipher)
	agent := testAgent(srv.URL)
	agent.AuthType = "bearer"
	agent.EncryptedCredentials = encrypted

	if _, err := d.Dispatch(context.Background(), agent, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer super-secret-token" {
		t.Fatalf("Authorization header = %q, want %q", gotAuth, "Bearer super-secret-token")
	}
}

func TestDispatch_AttachesAPIKeyHeaderFromDecryptedCredentials(t *testing.T) {
	cipher, err := keystore.NewCipher(hex.EncodeToString(make([]byte, 32)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	encrypted, err := cipher.Encrypt([]byte("my-api-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(cipher)
	agent := testAgent(srv.URL)
	agent.AuthType = "api_key"
	agent.EncryptedCredentials = encrypted

	if _, err := d.Dispatch(context.Background(), agent, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "my-api-key" {
		t.Fatalf("X-Api-Key header = %q, want %q", gotKey, "my-api-key")
	}
}

func TestDispatch_NoAuthHeaderWhenCredentialsEmpty(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("X-Api-Key")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(nil)
	agent := testAgent(srv.URL)

	if _, err := d.Dispatch(context.Background(), agent, []byte(`{}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "" || gotKey != "" {
		t.Fatalf("expected no auth headers, got Authorization=%q X-Api-Key=%q", gotAuth, gotKey)
	}
}

func TestBreakerFor_ReturnsSameBreakerForSameAgentAndDistinctForAnother(t *testing.T) {
	d := NewDispatcher(nil)

	cb1a := d.breakerFor("agent-1")
	cb1b := d.breakerFor("agent-1")
	cb2 := d.breakerFor("agent-2")

	if cb1a != cb1b {
		t.Fatal("expected the same breaker instance for repeated calls with the same agent id")
	}
	if cb1a == cb2 {
		t.Fatal("expected a distinct breaker instance for a different agent id")
	}
}
