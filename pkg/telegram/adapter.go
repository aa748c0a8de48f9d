// Package telegram formats and delivers terminal invocation events as
// Telegram Bot API sendMessage calls.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

// escapeChars is every character MarkdownV2 requires escaped outside code
// spans (spec.md §4.8).
const escapeChars = "_*[]()~`>#+-=|{}.!"

// Adapter formats invocation events as Telegram MarkdownV2 messages. url
// passed to Deliver is the full Bot API sendMessage endpoint
// (https://api.telegram.org/bot<token>/sendMessage); secret is unused since
// Telegram authenticates via the token embedded in the URL, not a header.
type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *Adapter) Name() string { return "telegram" }

func (a *Adapter) FormatPayload(event webhook.Event) (webhook.Payload, error) {
	var b strings.Builder
	b.WriteString("*External Agent Invocation*\n")
	fmt.Fprintf(&b, "Agent: `%s`\n", escape(event.ExternalAgentID))
	fmt.Fprintf(&b, "Status: %s\n", escape(strings.ToUpper(event.Status)))
	fmt.Fprintf(&b, "Execution time: %dms\n", event.ExecutionTimeMs)
	fmt.Fprintf(&b, "Invoked at: %s\n", escape(event.InvokedAt))
	if event.CompletedAt != "" {
		fmt.Fprintf(&b, "Completed at: %s\n", escape(event.CompletedAt))
	}
	if event.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", escape(event.ErrorMessage))
	}
	return b.String(), nil
}

func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(escapeChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Deliver posts text to the Bot API's sendMessage endpoint. chatID is
// encoded in the url's query (?chat_id=...) by the caller since the
// webhook.Adapter interface doesn't carry a destination chat.
func (a *Adapter) Deliver(ctx context.Context, endpoint, secret string, payload webhook.Payload) webhook.DeliverResult {
	text, ok := payload.(string)
	if !ok {
		return webhook.DeliverResult{Err: fmt.Errorf("telegram: payload is not text")}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("telegram: invalid endpoint: %w", err)}
	}
	q := u.Query()
	q.Set("text", text)
	q.Set("parse_mode", tgbotapi.ModeMarkdownV2)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("telegram: building request: %w", err)}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("telegram: delivering: %w", err)}
	}
	defer resp.Body.Close()
	return webhook.DeliverResult{StatusCode: resp.StatusCode}
}
