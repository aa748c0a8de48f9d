package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// deliverTimeout bounds one delivery attempt (spec.md §4.8).
const deliverTimeout = 30 * time.Second

// Dispatcher fans a terminal invocation out to every active webhook
// subscribed for its org, retrying each delivery independently. Deliveries
// are never on the request path: Enqueue only starts a goroutine, matching
// spec.md §5's "audit and lineage writes ... must not delay [the response]".
type Dispatcher struct {
	db       *db.Queries
	adapters map[model.AgentPlatform]Adapter
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[uuid.UUID]*gobreaker.CircuitBreaker[DeliverResult]
}

func NewDispatcher(queries *db.Queries, logger *slog.Logger, adapters map[model.AgentPlatform]Adapter) *Dispatcher {
	return &Dispatcher{
		db:       queries,
		adapters: adapters,
		logger:   logger,
		breakers: make(map[uuid.UUID]*gobreaker.CircuitBreaker[DeliverResult]),
	}
}

// Enqueue fans out a terminal invocation to every webhook subscribed for its
// org, detached from the caller's context so a client disconnect doesn't cut
// deliveries short (spec.md §5 cancellation rule).
func (d *Dispatcher) Enqueue(ctx context.Context, inv *model.ExternalAgentInvocation) {
	detached := context.WithoutCancel(ctx)
	go d.fanOut(detached, inv)
}

func (d *Dispatcher) fanOut(ctx context.Context, inv *model.ExternalAgentInvocation) {
	hooks, err := d.db.ListWebhooksForOrg(ctx, inv.OrgID)
	if err != nil {
		d.logger.Error("webhook: listing subscriptions", "error", err, "invocation_id", inv.ID)
		return
	}

	event := eventFromInvocation(inv)
	for _, hook := range hooks {
		if !subscribed(hook, string(inv.Status)) {
			continue
		}
		d.deliverOne(ctx, hook, event, inv.ID)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, hook *model.Webhook, event Event, invocationID uuid.UUID) {
	adapter, ok := d.adapters[hook.Platform]
	if !ok {
		d.logger.Warn("webhook: no adapter for platform", "platform", hook.Platform)
		return
	}

	payload, err := adapter.FormatPayload(event)
	if err != nil {
		d.logger.Error("webhook: formatting payload", "error", err, "platform", hook.Platform)
		return
	}

	cb := d.breakerFor(hook.ID)
	started := time.Now()

	operation := func() (DeliverResult, error) {
		return cb.Execute(func() (DeliverResult, error) {
			dctx, cancel := context.WithTimeout(ctx, deliverTimeout)
			defer cancel()
			res := adapter.Deliver(dctx, hook.URL, hook.Secret, payload)
			if res.Err != nil {
				return res, res.Err
			}
			if res.StatusCode >= 500 {
				return res, fmt.Errorf("webhook: upstream returned %d", res.StatusCode)
			}
			return res, nil
		})
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 500 * time.Millisecond
	boff.Multiplier = 2
	boff.MaxInterval = 10 * time.Second

	result, err := backoff.Retry(ctx, operation, backoff.WithBackOff(boff), backoff.WithMaxTries(3))
	latency := time.Since(started).Milliseconds()

	delivery := &model.WebhookDelivery{
		ID:           uuid.New(),
		WebhookID:    hook.ID,
		InvocationID: invocationID,
		Event:        string(event.EventName()),
		LatencyMs:    &latency,
		Attempt:      1,
		Success:      err == nil && result.StatusCode < 400,
	}
	if result.StatusCode != 0 {
		status := result.StatusCode
		delivery.StatusCode = &status
	}
	if err != nil {
		errMsg := err.Error()
		delivery.Error = &errMsg
	}
	if delivery.Success {
		now := time.Now()
		delivery.DeliveredAt = &now
	}

	if dbErr := d.db.CreateWebhookDelivery(ctx, delivery); dbErr != nil {
		d.logger.Error("webhook: recording delivery", "error", dbErr)
	}
}

func (d *Dispatcher) breakerFor(webhookID uuid.UUID) *gobreaker.CircuitBreaker[DeliverResult] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[webhookID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[DeliverResult](gobreaker.Settings{
		Name:        "webhook:" + webhookID.String(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	d.breakers[webhookID] = cb
	return cb
}

func subscribed(hook *model.Webhook, status string) bool {
	if len(hook.EventFilter) == 0 {
		return true
	}
	for _, e := range hook.EventFilter {
		if e == status || e == "*" {
			return true
		}
	}
	return false
}

func (e Event) EventName() string {
	return "invocation." + e.Status
}

func eventFromInvocation(inv *model.ExternalAgentInvocation) Event {
	event := Event{
		InvocationID:    inv.ID.String(),
		ExternalAgentID: inv.ExternalAgentID.String(),
		Status:          string(inv.Status),
		InvokedAt:       inv.InvokedAt.Format(time.RFC3339),
	}
	if inv.ExecutionTimeMs != nil {
		event.ExecutionTimeMs = *inv.ExecutionTimeMs
	}
	if inv.CompletedAt != nil {
		event.CompletedAt = inv.CompletedAt.Format(time.RFC3339)
	}
	if len(inv.RequestPayload) > 0 {
		var m map[string]any
		if json.Unmarshal(inv.RequestPayload, &m) == nil {
			event.RequestPayload = m
		}
	}
	if len(inv.ResponsePayload) > 0 {
		var m map[string]any
		if json.Unmarshal(inv.ResponsePayload, &m) == nil {
			event.ResponsePayload = m
		}
	}
	return event
}
