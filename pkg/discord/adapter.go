// Package discord formats and delivers terminal invocation events as
// Discord embeds via an incoming webhook URL.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

const maxEmbedFields = 25

// Adapter formats invocation events as Discord embeds.
type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) FormatPayload(event webhook.Event) (webhook.Payload, error) {
	color := 0x2ECC71
	switch event.Status {
	case "failed":
		color = 0xE74C3C
	case "pending":
		color = 0xF1C40F
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Agent", Value: event.ExternalAgentID, Inline: true},
		{Name: "Status", Value: event.Status, Inline: true},
		{Name: "Execution Time", Value: fmt.Sprintf("%dms", event.ExecutionTimeMs), Inline: true},
		{Name: "Invoked At", Value: event.InvokedAt, Inline: true},
	}
	if event.CompletedAt != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Completed At", Value: event.CompletedAt, Inline: true})
	}
	if event.ErrorMessage != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Error", Value: event.ErrorMessage})
	}
	if len(fields) > maxEmbedFields {
		fields = fields[:maxEmbedFields]
	}

	embed := &discordgo.MessageEmbed{
		Title:  "External Agent Invocation",
		Color:  color,
		Fields: fields,
	}

	webhookParams := &discordgo.WebhookParams{Embeds: []*discordgo.MessageEmbed{embed}}
	return webhookParams, nil
}

func (a *Adapter) Deliver(ctx context.Context, url, secret string, payload webhook.Payload) webhook.DeliverResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("discord: encoding payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("discord: building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("discord: delivering: %w", err)}
	}
	defer resp.Body.Close()
	return webhook.DeliverResult{StatusCode: resp.StatusCode}
}
