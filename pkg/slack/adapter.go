// Package slack formats and delivers terminal invocation events as Slack
// Block Kit messages.
package slack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/integrum-global/kaizen-studio/internal/webhook"
)

// Adapter formats invocation events as Slack Block Kit payloads and posts
// them to an incoming webhook URL.
type Adapter struct {
	client *http.Client
}

func New() *Adapter {
	return &Adapter{client: &http.Client{Timeout: 30 * time.Second}}
}

func (a *Adapter) Name() string { return "slack" }

func (a *Adapter) FormatPayload(event webhook.Event) (webhook.Payload, error) {
	color := "#36a64f"
	switch event.Status {
	case "failed":
		color = "#d13438"
	case "pending":
		color = "#ffb900"
	}

	header := goslack.NewHeaderBlock(goslack.NewTextBlockObject(goslack.PlainTextType, "External Agent Invocation", false, false))
	fields := []*goslack.TextBlockObject{
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Agent:*\n%s", event.ExternalAgentID), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Status:*\n%s", event.Status), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Execution Time:*\n%dms", event.ExecutionTimeMs), false, false),
		goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Invoked At:*\n%s", event.InvokedAt), false, false),
	}
	section := goslack.NewSectionBlock(nil, fields, nil)
	divider := goslack.NewDividerBlock()

	blocks := []goslack.Block{header, section, divider}
	if event.ErrorMessage != "" {
		blocks = append(blocks, goslack.NewContextBlock("",
			goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Error:* %s", event.ErrorMessage), false, false)))
	}
	if event.StudioBaseURL != "" {
		linkURL := fmt.Sprintf("%s/external-agents/invocations/%s", event.StudioBaseURL, event.InvocationID)
		button := goslack.NewButtonBlockElement("view_invocation", event.InvocationID,
			goslack.NewTextBlockObject(goslack.PlainTextType, "View Invocation", false, false))
		button.URL = linkURL
		blocks = append(blocks, goslack.NewActionBlock("invocation_actions", button))
	}

	msg := goslack.Msg{Attachments: []goslack.Attachment{{Color: color, Blocks: goslack.Blocks{BlockSet: blocks}}}}
	return msg, nil
}

func (a *Adapter) Deliver(ctx context.Context, url, secret string, payload webhook.Payload) webhook.DeliverResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("slack: encoding payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("slack: building request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		sign(req.Header, secret, body)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return webhook.DeliverResult{Err: fmt.Errorf("slack: delivering: %w", err)}
	}
	defer resp.Body.Close()
	return webhook.DeliverResult{StatusCode: resp.StatusCode}
}

// sign attaches X-Slack-Signature/X-Slack-Request-Timestamp headers computed
// with Slack's v0 request-signing scheme (HMAC-SHA256 over "v0:<ts>:<body>"),
// so a receiver can verify deliveries the same way Slack requests are
// verified.
func sign(h http.Header, secret string, body []byte) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	base := "v0:" + ts + ":" + string(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	sig := "v0=" + hex.EncodeToString(mac.Sum(nil))

	h.Set("X-Slack-Request-Timestamp", ts)
	h.Set("X-Slack-Signature", sig)
}
