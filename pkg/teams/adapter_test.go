package teams

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

func TestName(t *testing.T) {
	if got := New().Name(); got != "teams" {
		t.Fatalf("Name() = %q, want \"teams\"", got)
	}
}

func TestFormatPayload_ThemeColorByStatus(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"success", "0076D7"},
		{"failed", "D13438"},
		{"pending", "FFB900"},
		{"unknown", "FFB900"},
	}
	for _, c := range cases {
		payload, err := New().FormatPayload(webhook.Event{Status: c.status})
		if err != nil {
			t.Fatalf("status %q: unexpected error: %v", c.status, err)
		}
		cd, ok := payload.(card)
		if !ok {
			t.Fatalf("status %q: payload is not card", c.status)
		}
		if cd.ThemeColor != c.want {
			t.Fatalf("status %q: ThemeColor = %q, want %q", c.status, cd.ThemeColor, c.want)
		}
	}
}

func TestFormatPayload_ActionOnlyWhenStudioBaseURLSet(t *testing.T) {
	with, _ := New().FormatPayload(webhook.Event{StudioBaseURL: "https://studio.example.com", InvocationID: "inv-1"})
	c := with.(card)
	if len(c.PotentialAction) != 1 {
		t.Fatalf("expected one potential action, got %d", len(c.PotentialAction))
	}
	wantURI := "https://studio.example.com/external-agents/invocations/inv-1"
	if got := c.PotentialAction[0].Targets[0].URI; got != wantURI {
		t.Fatalf("action URI = %q, want %q", got, wantURI)
	}

	without, _ := New().FormatPayload(webhook.Event{})
	if len(without.(card).PotentialAction) != 0 {
		t.Fatal("expected no potential action when StudioBaseURL is empty")
	}
}

func TestFormatPayload_OptionalFacts(t *testing.T) {
	withBoth, _ := New().FormatPayload(webhook.Event{CompletedAt: "done", ErrorMessage: "boom"})
	if !hasFact(withBoth.(card), "Completed At") || !hasFact(withBoth.(card), "Error") {
		t.Fatal("expected both optional facts when both fields are set")
	}

	withNeither, _ := New().FormatPayload(webhook.Event{})
	if hasFact(withNeither.(card), "Completed At") || hasFact(withNeither.(card), "Error") {
		t.Fatal("expected neither optional fact when both fields are empty")
	}
}

func hasFact(c card, name string) bool {
	for _, f := range c.Sections[0].Facts {
		if f.Name == name {
			return true
		}
	}
	return false
}

func TestDeliver_PostsJSONBody(t *testing.T) {
	var decoded card
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&decoded)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := New()
	payload, _ := a.FormatPayload(webhook.Event{Status: "success"})
	result := a.Deliver(context.Background(), srv.URL, "", payload)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if decoded.Type != "MessageCard" {
		t.Fatalf("decoded @type = %q, want MessageCard", decoded.Type)
	}
}
