package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

func TestSubscribed_EmptyFilterMatchesEverything(t *testing.T) {
	hook := &model.Webhook{}
	if !subscribed(hook, "completed") {
		t.Fatal("expected an empty EventFilter to match any status")
	}
}

func TestSubscribed_WildcardMatchesEverything(t *testing.T) {
	hook := &model.Webhook{EventFilter: []string{"*"}}
	if !subscribed(hook, "failed") {
		t.Fatal("expected a \"*\" filter entry to match any status")
	}
}

func TestSubscribed_ExplicitFilterOnlyMatchesListedStatuses(t *testing.T) {
	hook := &model.Webhook{EventFilter: []string{"completed", "failed"}}
	if !subscribed(hook, "completed") {
		t.Fatal("expected \"completed\" to match")
	}
	if subscribed(hook, "pending") {
		t.Fatal("expected \"pending\" not to match when absent from the filter")
	}
}

func TestEventName_PrefixesStatus(t *testing.T) {
	e := Event{Status: "completed"}
	if got := e.EventName(); got != "invocation.completed" {
		t.Fatalf("EventName() = %q, want \"invocation.completed\"", got)
	}
}

func TestEventFromInvocation_CopiesScalarFields(t *testing.T) {
	agentID := uuid.New()
	invID := uuid.New()
	execMs := int64(123)
	completedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	invokedAt := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)

	inv := &model.ExternalAgentInvocation{
		ID:              invID,
		ExternalAgentID: agentID,
		Status:          model.InvocationStatus("completed"),
		ExecutionTimeMs: &execMs,
		InvokedAt:       invokedAt,
		CompletedAt:     &completedAt,
	}

	event := eventFromInvocation(inv)
	if event.InvocationID != invID.String() {
		t.Fatalf("InvocationID = %q, want %q", event.InvocationID, invID.String())
	}
	if event.ExternalAgentID != agentID.String() {
		t.Fatalf("ExternalAgentID = %q, want %q", event.ExternalAgentID, agentID.String())
	}
	if event.Status != "completed" {
		t.Fatalf("Status = %q, want \"completed\"", event.Status)
	}
	if event.ExecutionTimeMs != 123 {
		t.Fatalf("ExecutionTimeMs = %d, want 123", event.ExecutionTimeMs)
	}
	if event.InvokedAt != invokedAt.Format(time.RFC3339) {
		t.Fatalf("InvokedAt = %q, want %q", event.InvokedAt, invokedAt.Format(time.RFC3339))
	}
	if event.CompletedAt != completedAt.Format(time.RFC3339) {
		t.Fatalf("CompletedAt = %q, want %q", event.CompletedAt, completedAt.Format(time.RFC3339))
	}
}

func TestEventFromInvocation_DecodesJSONPayloads(t *testing.T) {
	inv := &model.ExternalAgentInvocation{
		RequestPayload:  json.RawMessage(`{"prompt":"hi"}`),
		ResponsePayload: json.RawMessage(`{"answer":"hello"}`),
	}
	event := eventFromInvocation(inv)
	if event.RequestPayload["prompt"] != "hi" {
		t.Fatalf("RequestPayload[\"prompt\"] = %v, want \"hi\"", event.RequestPayload["prompt"])
	}
	if event.ResponsePayload["answer"] != "hello" {
		t.Fatalf("ResponsePayload[\"answer\"] = %v, want \"hello\"", event.ResponsePayload["answer"])
	}
}

func TestEventFromInvocation_MalformedPayloadLeavesFieldNil(t *testing.T) {
	inv := &model.ExternalAgentInvocation{RequestPayload: json.RawMessage(`not-json`)}
	event := eventFromInvocation(inv)
	if event.RequestPayload != nil {
		t.Fatalf("expected nil RequestPayload for malformed JSON, got %v", event.RequestPayload)
	}
}

func TestBreakerFor_ReturnsSameBreakerForSameWebhookAndDistinctForAnother(t *testing.T) {
	d := NewDispatcher(nil, nil, nil)
	id1, id2 := uuid.New(), uuid.New()

	cb1a := d.breakerFor(id1)
	cb1b := d.breakerFor(id1)
	cb2 := d.breakerFor(id2)

	if cb1a != cb1b {
		t.Fatal("expected the same circuit breaker instance across repeated calls for the same webhook id")
	}
	if cb1a == cb2 {
		t.Fatal("expected distinct circuit breakers for distinct webhook ids")
	}
}
