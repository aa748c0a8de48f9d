// Package teams formats and delivers terminal invocation events as
// Microsoft Teams MessageCard (legacy connector card) payloads via an
// incoming webhook URL.
//
// No Teams SDK exists among the vendored examples; this adapter talks the
// wire format directly with encoding/json and net/http, the same documented
// stdlib exception internal/keystore takes for AES-GCM.
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

var themeColors = map[string]string{
	"success": "0076D7",
	"failed":  "D13438",
	"pending": "FFB900",
}

type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type action struct {
	Type    string         `json:"@type"`
	Name    string         `json:"name"`
	Targets []actionTarget `json:"targets"`
}

type actionTarget struct {
	OS  string `json:"os"`
	URI string `json:"uri"`
}

type section struct {
	ActivityTitle    string `json:"activityTitle"`
	ActivitySubtitle string `json:"activitySubtitle"`
	Facts            []fact `json:"facts"`
}

type card struct {
	Type        string    `json:"@type"`
	Context     string    `json:"@context"`
	ThemeColor  string    `json:"themeColor"`
	Summary     string    `json:"summary"`
	Sections    []section `json:"sections"`
	PotentialAction []action `json:"potentialAction,omitempty"`
}

// Adapter formats invocation events as Teams MessageCard payloads.
type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *Adapter) Name() string { return "teams" }

func (a *Adapter) FormatPayload(event webhook.Event) (webhook.Payload, error) {
	color, ok := themeColors[event.Status]
	if !ok {
		color = themeColors["pending"]
	}

	facts := []fact{
		{Name: "Agent ID", Value: event.ExternalAgentID},
		{Name: "Invocation ID", Value: event.InvocationID},
		{Name: "Status", Value: strings.ToUpper(event.Status)},
		{Name: "Execution Time", Value: fmt.Sprintf("%dms", event.ExecutionTimeMs)},
		{Name: "Invoked At", Value: event.InvokedAt},
	}
	if event.CompletedAt != "" {
		facts = append(facts, fact{Name: "Completed At", Value: event.CompletedAt})
	}
	if event.ErrorMessage != "" {
		facts = append(facts, fact{Name: "Error", Value: event.ErrorMessage})
	}

	c := card{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: color,
		Summary:    fmt.Sprintf("Agent Invocation %s", strings.ToUpper(event.Status)),
		Sections: []section{{
			ActivityTitle:    "External Agent Invocation",
			ActivitySubtitle: fmt.Sprintf("Status: %s", strings.ToUpper(event.Status)),
			Facts:            facts,
		}},
	}

	if event.StudioBaseURL != "" {
		c.PotentialAction = []action{{
			Type: "OpenUri",
			Name: "View Invocation",
			Targets: []actionTarget{{
				OS:  "default",
				URI: fmt.Sprintf("%s/external-agents/invocations/%s", event.StudioBaseURL, event.InvocationID),
			}},
		}}
	}

	return c, nil
}

func (a *Adapter) Deliver(ctx context.Context, url, secret string, payload webhook.Payload) webhook.DeliverResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("teams: encoding payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("teams: building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("teams: delivering: %w", err)}
	}
	defer resp.Body.Close()
	return webhook.DeliverResult{StatusCode: resp.StatusCode}
}
