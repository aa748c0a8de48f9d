package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// ListWebhooksForOrg returns active webhook subscriptions for an org, used
// by internal/webhook to fan out invocation events.
func (q *Queries) ListWebhooksForOrg(ctx context.Context, orgID uuid.UUID) ([]*model.Webhook, error) {
	const stmt = `
		SELECT id, org_id, url, secret, platform, event_filter, status, created_at
		FROM webhooks WHERE org_id = $1 AND status = 'active'`
	rows, err := q.db.Query(ctx, stmt, orgID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks for org: %w", err)
	}
	defer rows.Close()

	var out []*model.Webhook
	for rows.Next() {
		var w model.Webhook
		if err := rows.Scan(&w.ID, &w.OrgID, &w.URL, &w.Secret, &w.Platform, &w.EventFilter, &w.Status, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// CreateWebhookDelivery records one delivery attempt, idempotent per
// (webhook_id, invocation_id, event) via the unique index assumed on that
// tuple — callers upsert on conflict to update status/attempt.
func (q *Queries) CreateWebhookDelivery(ctx context.Context, d *model.WebhookDelivery) error {
	const stmt = `
		INSERT INTO webhook_deliveries (id, webhook_id, invocation_id, event, status_code, latency_ms, attempt, success, error, delivered_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())
		ON CONFLICT (webhook_id, invocation_id, event) DO UPDATE SET
			status_code = EXCLUDED.status_code,
			latency_ms = EXCLUDED.latency_ms,
			attempt = EXCLUDED.attempt,
			success = EXCLUDED.success,
			error = EXCLUDED.error,
			delivered_at = EXCLUDED.delivered_at
		RETURNING created_at`
	return q.db.QueryRow(ctx, stmt,
		d.ID, d.WebhookID, d.InvocationID, d.Event, d.StatusCode, d.LatencyMs, d.Attempt, d.Success, d.Error, d.DeliveredAt,
	).Scan(&d.CreatedAt)
}
