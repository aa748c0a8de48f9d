// Package webhook fans a terminal invocation out to every subscribed
// consumer, formatted by the platform-specific adapter (spec.md §4.8).
package webhook

import "context"

// Payload is what FormatPayload produces and Deliver sends; adapters decide
// its concrete shape (a JSON-encodable struct for Slack, Discord, Teams and
// Notion, a MarkdownV2 text string for Telegram).
type Payload any

// DeliverResult reports one delivery attempt's outcome.
type DeliverResult struct {
	StatusCode int
	Err        error
}

// Adapter is the polymorphic shape every platform implements: turn an
// invocation into a platform payload, then ship it.
type Adapter interface {
	Name() string
	FormatPayload(event Event) (Payload, error)
	Deliver(ctx context.Context, url, secret string, payload Payload) DeliverResult
}

// Event is the terminal-invocation view handed to FormatPayload. It mirrors
// the subset of model.ExternalAgentInvocation every adapter needs without
// importing the model package's full surface into pkg/*.
type Event struct {
	InvocationID    string
	ExternalAgentID string
	Status          string
	ExecutionTimeMs int64
	ErrorMessage    string
	InvokedAt       string
	CompletedAt     string
	RequestPayload  map[string]any
	ResponsePayload map[string]any
	StudioBaseURL   string
}
