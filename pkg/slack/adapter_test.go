package slack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	goslack "github.com/slack-go/slack"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

func TestName(t *testing.T) {
	if got := New().Name(); got != "slack" {
		t.Fatalf("Name() = %q, want \"slack\"", got)
	}
}

func TestFormatPayload_ColorByStatus(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"success", "#36a64f"},
		{"", "#36a64f"},
		{"failed", "#d13438"},
		{"pending", "#ffb900"},
	}
	for _, c := range cases {
		payload, err := New().FormatPayload(webhook.Event{Status: c.status})
		if err != nil {
			t.Fatalf("status %q: unexpected error: %v", c.status, err)
		}
		msg, ok := payload.(goslack.Msg)
		if !ok {
			t.Fatalf("status %q: payload is not goslack.Msg", c.status)
		}
		if got := msg.Attachments[0].Color; got != c.want {
			t.Fatalf("status %q: color = %q, want %q", c.status, got, c.want)
		}
	}
}

func TestFormatPayload_ErrorContextBlockOnlyWhenErrorMessageSet(t *testing.T) {
	withErr, err := New().FormatPayload(webhook.Event{Status: "failed", ErrorMessage: "boom"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasContextBlock(t, withErr.(goslack.Msg)) {
		t.Fatal("expected a context block when ErrorMessage is set")
	}

	withoutErr, err := New().FormatPayload(webhook.Event{Status: "success"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasContextBlock(t, withoutErr.(goslack.Msg)) {
		t.Fatal("expected no context block when ErrorMessage is empty")
	}
}

func TestFormatPayload_ActionBlockOnlyWhenStudioBaseURLSet(t *testing.T) {
	with, err := New().FormatPayload(webhook.Event{StudioBaseURL: "https://studio.example.com", InvocationID: "inv-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasActionBlock(t, with.(goslack.Msg)) {
		t.Fatal("expected an action block when StudioBaseURL is set")
	}

	without, err := New().FormatPayload(webhook.Event{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasActionBlock(t, without.(goslack.Msg)) {
		t.Fatal("expected no action block when StudioBaseURL is empty")
	}
}

// hasBlockType marshals msg and checks the raw JSON for a block of the given
// type, avoiding a dependency on goslack's internal block-type constant names.
func hasBlockType(t *testing.T, msg goslack.Msg, want string) bool {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshaling message: %v", err)
	}
	return bytes.Contains(body, []byte(`"type":"`+want+`"`))
}

func hasContextBlock(t *testing.T, msg goslack.Msg) bool { return hasBlockType(t, msg, "context") }
func hasActionBlock(t *testing.T, msg goslack.Msg) bool  { return hasBlockType(t, msg, "actions") }

func TestDeliver_SignsRequestWhenSecretProvided(t *testing.T) {
	const secret = "shh-its-a-secret"
	var gotBody []byte
	var gotSig, gotTS string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Slack-Signature")
		gotTS = r.Header.Get("X-Slack-Request-Timestamp")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New()
	payload, err := a.FormatPayload(webhook.Event{Status: "success"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result := a.Deliver(context.Background(), srv.URL, secret, payload)
	if result.Err != nil {
		t.Fatalf("unexpected delivery error: %v", result.Err)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("StatusCode = %d, want 200", result.StatusCode)
	}
	if gotTS == "" {
		t.Fatal("expected X-Slack-Request-Timestamp header to be set")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + gotTS + ":" + string(gotBody)))
	wantSig := "v0=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != wantSig {
		t.Fatalf("signature mismatch: got %q want %q", gotSig, wantSig)
	}

	var decoded goslack.Msg
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("delivered body did not decode as a Slack message: %v", err)
	}
}

func TestDeliver_NoSignatureWhenSecretEmpty(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Slack-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New()
	payload, _ := a.FormatPayload(webhook.Event{})
	if result := a.Deliver(context.Background(), srv.URL, "", payload); result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if gotSig != "" {
		t.Fatalf("expected no signature header when secret is empty, got %q", gotSig)
	}
}
