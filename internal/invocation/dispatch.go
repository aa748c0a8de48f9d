package invocation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/integrum-global/kaizen-studio/internal/keystore"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// DispatchTimeout is the default upstream call budget (spec.md §4.7 step 8).
const DispatchTimeout = 30 * time.Second

// DispatchResult carries what the pipeline needs to complete the invocation row.
type DispatchResult struct {
	StatusCode int
	Body       []byte
}

// Dispatcher sends the invocation payload to an external agent's endpoint.
// One circuit breaker per agent ID guards against hammering a consistently
// failing upstream.
type Dispatcher struct {
	client   *http.Client
	cipher   *keystore.Cipher
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[DispatchResult]
}

func NewDispatcher(cipher *keystore.Cipher) *Dispatcher {
	return &Dispatcher{
		client:   &http.Client{Timeout: DispatchTimeout},
		cipher:   cipher,
		breakers: make(map[string]*gobreaker.CircuitBreaker[DispatchResult]),
	}
}

func (d *Dispatcher) breakerFor(agentID string) *gobreaker.CircuitBreaker[DispatchResult] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[agentID]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker[DispatchResult](gobreaker.Settings{
		Name:        "external-agent:" + agentID,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	d.breakers[agentID] = cb
	return cb
}

// Dispatch sends payload to agent's endpoint, decrypting its stored
// credentials and attaching them per AuthType. Upstream dispatch is never
// retried once a request has begun (spec.md §5 idempotency note); the
// backoff loop here only covers transport-level connection failures before
// any bytes reach the agent, not HTTP error responses.
func (d *Dispatcher) Dispatch(ctx context.Context, agent *model.ExternalAgent, payload []byte) (DispatchResult, error) {
	if agent.WebhookURL == nil || *agent.WebhookURL == "" {
		return DispatchResult{}, fmt.Errorf("invocation: agent %s has no endpoint configured", agent.ID)
	}

	cb := d.breakerFor(agent.ID.String())

	operation := func() (DispatchResult, error) {
		return cb.Execute(func() (DispatchResult, error) {
			return d.send(ctx, agent, payload)
		})
	}

	boff := backoff.NewExponentialBackOff()
	boff.InitialInterval = 200 * time.Millisecond
	boff.Multiplier = 2
	boff.MaxInterval = 2 * time.Second

	result, err := backoff.Retry(ctx, operation, backoff.WithBackOff(boff), backoff.WithMaxTries(2))
	if err != nil {
		return DispatchResult{}, fmt.Errorf("invocation: dispatching to agent %s: %w", agent.ID, err)
	}
	return result, nil
}

func (d *Dispatcher) send(ctx context.Context, agent *model.ExternalAgent, payload []byte) (DispatchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, *agent.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return DispatchResult{}, backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if agent.EncryptedCredentials != "" && d.cipher != nil {
		creds, err := d.cipher.Decrypt(agent.EncryptedCredentials)
		if err != nil {
			return DispatchResult{}, backoff.Permanent(fmt.Errorf("decrypting credentials: %w", err))
		}
		switch agent.AuthType {
		case "bearer":
			req.Header.Set("Authorization", "Bearer "+string(creds))
		case "api_key":
			req.Header.Set("X-Api-Key", string(creds))
		case "basic":
			req.Header.Set("Authorization", "Basic "+string(creds))
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		// Only a failed dial is retried: past it the request may already
		// have reached the agent.
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return DispatchResult{}, err
		}
		return DispatchResult{}, backoff.Permanent(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return DispatchResult{}, backoff.Permanent(fmt.Errorf("reading response: %w", err))
	}

	return DispatchResult{StatusCode: resp.StatusCode, Body: body}, nil
}
