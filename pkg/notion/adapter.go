// Package notion formats and delivers terminal invocation events as Notion
// database page creations.
//
// No Notion SDK exists among the vendored examples; this adapter talks the
// REST API directly with encoding/json and net/http, the same documented
// stdlib exception pkg/teams takes.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

const apiVersion = "2022-06-28"

type createPageRequest struct {
	Parent     parent              `json:"parent"`
	Properties map[string]property `json:"properties"`
}

type parent struct {
	DatabaseID string `json:"database_id"`
}

type property struct {
	Title    []richText    `json:"title,omitempty"`
	Select   *selectOption `json:"select,omitempty"`
	RichText []richText    `json:"rich_text,omitempty"`
	Number   *int64        `json:"number,omitempty"`
}

type selectOption struct {
	Name string `json:"name"`
}

type richText struct {
	Text textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
}

// Adapter formats invocation events as Notion "create page" requests. The
// target database_id is the one given to New, written into the payload's
// parent by FormatPayload; url passed to Deliver is the endpoint the payload
// is POSTed to.
type Adapter struct {
	client     *http.Client
	databaseID string
}

func New(databaseID string) *Adapter {
	return &Adapter{client: &http.Client{Timeout: 30 * time.Second}, databaseID: databaseID}
}

func (a *Adapter) Name() string { return "notion" }

func (a *Adapter) FormatPayload(event webhook.Event) (webhook.Payload, error) {
	executionTime := event.ExecutionTimeMs
	req := createPageRequest{
		Parent: parent{DatabaseID: a.databaseID},
		Properties: map[string]property{
			"Name":       {Title: []richText{{Text: textContent{Content: "Invocation " + event.InvocationID}}}},
			"Agent":      {RichText: []richText{{Text: textContent{Content: event.ExternalAgentID}}}},
			"Status":     {Select: &selectOption{Name: event.Status}},
			"Duration Ms": {Number: &executionTime},
		},
	}
	return req, nil
}

func (a *Adapter) Deliver(ctx context.Context, url, secret string, payload webhook.Payload) webhook.DeliverResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("notion: encoding payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("notion: building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", apiVersion)
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("notion: delivering: %w", err)}
	}
	defer resp.Body.Close()
	return webhook.DeliverResult{StatusCode: resp.StatusCode}
}
