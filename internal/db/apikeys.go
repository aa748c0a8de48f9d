package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/model"
)

// CreateAPIKey inserts a new API key row. Callers supply the bcrypt hash of
// the already-generated plaintext key; the plaintext itself is never stored.
func (q *Queries) CreateAPIKey(ctx context.Context, k *model.APIKey) error {
	const stmt = `
		INSERT INTO api_keys (id, org_id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING created_at`
	return q.db.QueryRow(ctx, stmt,
		k.ID, k.OrgID, k.Name, k.KeyHash, k.KeyPrefix, k.Scopes, k.RateLimit, k.ExpiresAt, k.Status,
	).Scan(&k.CreatedAt)
}

// GetAPIKeysByPrefix returns every active key sharing the supplied prefix so
// the caller can bcrypt-compare the full key against each candidate. Prefix
// collisions are possible (8 chars incl. "sk_live_") so this is never a
// single-row lookup.
func (q *Queries) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	const stmt = `
		SELECT id, org_id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, status, last_used_at, created_at
		FROM api_keys WHERE key_prefix = $1 AND status = $2`
	rows, err := q.db.Query(ctx, stmt, prefix, model.APIKeyActive)
	if err != nil {
		return nil, fmt.Errorf("get api keys by prefix: %w", err)
	}
	defer rows.Close()

	var out []*model.APIKey
	for rows.Next() {
		var k model.APIKey
		if err := rows.Scan(
			&k.ID, &k.OrgID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes, &k.RateLimit, &k.ExpiresAt, &k.Status,
			&k.LastUsedAt, &k.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, &k)
	}
	return out, rows.Err()
}

// UpdateAPIKeyLastUsed stamps last_used_at; called fire-and-forget after a
// successful authentication so it never delays the request.
func (q *Queries) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID, when time.Time) error {
	const stmt = `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	_, err := q.db.Exec(ctx, stmt, id, when)
	return err
}

// RevokeAPIKey transitions a key to revoked. Revocation is terminal: a
// revoked key is never resurrected.
func (q *Queries) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	const stmt = `UPDATE api_keys SET status = $2 WHERE id = $1`
	_, err := q.db.Exec(ctx, stmt, id, model.APIKeyRevoked)
	return err
}
