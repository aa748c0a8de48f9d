package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

func TestName(t *testing.T) {
	if got := New().Name(); got != "discord" {
		t.Fatalf("Name() = %q, want \"discord\"", got)
	}
}

func TestFormatPayload_ColorByStatus(t *testing.T) {
	cases := []struct {
		status string
		want   int
	}{
		{"success", 0x2ECC71},
		{"", 0x2ECC71},
		{"failed", 0xE74C3C},
		{"pending", 0xF1C40F},
	}
	for _, c := range cases {
		payload, err := New().FormatPayload(webhook.Event{Status: c.status})
		if err != nil {
			t.Fatalf("status %q: unexpected error: %v", c.status, err)
		}
		params, ok := payload.(*discordgo.WebhookParams)
		if !ok {
			t.Fatalf("status %q: payload is not *discordgo.WebhookParams", c.status)
		}
		if got := params.Embeds[0].Color; got != c.want {
			t.Fatalf("status %q: color = %#x, want %#x", c.status, got, c.want)
		}
	}
}

func TestFormatPayload_ErrorFieldOnlyWhenErrorMessageSet(t *testing.T) {
	withErr, _ := New().FormatPayload(webhook.Event{ErrorMessage: "boom"})
	if !hasField(withErr.(*discordgo.WebhookParams), "Error") {
		t.Fatal("expected an Error field when ErrorMessage is set")
	}

	withoutErr, _ := New().FormatPayload(webhook.Event{})
	if hasField(withoutErr.(*discordgo.WebhookParams), "Error") {
		t.Fatal("expected no Error field when ErrorMessage is empty")
	}
}

func TestFormatPayload_CompletedAtFieldOnlyWhenSet(t *testing.T) {
	with, _ := New().FormatPayload(webhook.Event{CompletedAt: "2026-01-01T00:00:00Z"})
	if !hasField(with.(*discordgo.WebhookParams), "Completed At") {
		t.Fatal("expected a Completed At field when CompletedAt is set")
	}

	without, _ := New().FormatPayload(webhook.Event{})
	if hasField(without.(*discordgo.WebhookParams), "Completed At") {
		t.Fatal("expected no Completed At field when CompletedAt is empty")
	}
}

func hasField(params *discordgo.WebhookParams, name string) bool {
	for _, f := range params.Embeds[0].Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func TestDeliver_PostsJSONBody(t *testing.T) {
	var gotContentType string
	var decoded discordgo.WebhookParams

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&decoded)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := New()
	payload, _ := a.FormatPayload(webhook.Event{Status: "success", ExternalAgentID: "agent-1"})
	result := a.Deliver(context.Background(), srv.URL, "", payload)
	if result.Err != nil {
		t.Fatalf("unexpected delivery error: %v", result.Err)
	}
	if result.StatusCode != http.StatusNoContent {
		t.Fatalf("StatusCode = %d, want 204", result.StatusCode)
	}
	if gotContentType != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", gotContentType)
	}
	if len(decoded.Embeds) != 1 {
		t.Fatalf("expected exactly one embed, got %d", len(decoded.Embeds))
	}
}
