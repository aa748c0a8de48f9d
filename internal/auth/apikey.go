package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/integrum-global/kaizen-studio/internal/db"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

const apiKeyPrefix = "sk_live_"

// APIKeyAuthenticator validates "sk_live_..." keys against api_keys.
type APIKeyAuthenticator struct {
	DB db.DBTX
}

// APIKeyResult holds the resolved identity data from an API key lookup.
type APIKeyResult struct {
	APIKeyID uuid.UUID
	OrgID    uuid.UUID
	Role     model.Role
	Scopes   []string
}

// GenerateAPIKey creates a new "sk_live_<24+ urlsafe random chars>" key
// (spec.md §6) and its bcrypt hash. The plaintext is returned to the caller
// exactly once; only the hash and the 8-char prefix are persisted.
func GenerateAPIKey() (plaintext, hash, prefix string, err error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", "", "", fmt.Errorf("auth: generating API key: %w", err)
	}
	plaintext = apiKeyPrefix + base64.RawURLEncoding.EncodeToString(raw)
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("auth: hashing API key: %w", err)
	}
	return plaintext, string(hashed), plaintext[:8], nil
}

// Authenticate looks up every active key sharing rawKey's 8-char prefix and
// bcrypt-compares each candidate, since bcrypt hashes of the same input
// differ per call and a hash can't be looked up directly.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, rawKey string) (*APIKeyResult, error) {
	if len(rawKey) < 8 {
		return nil, fmt.Errorf("auth: malformed API key")
	}

	q := db.New(a.DB)
	candidates, err := q.GetAPIKeysByPrefix(ctx, rawKey[:8])
	if err != nil {
		return nil, fmt.Errorf("auth: looking up API key: %w", err)
	}

	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(rawKey)) != nil {
			continue
		}
		if k.ExpiresAt != nil && k.ExpiresAt.Before(time.Now()) {
			return nil, fmt.Errorf("auth: API key expired at %s", k.ExpiresAt)
		}

		go func(id uuid.UUID) {
			_ = q.UpdateAPIKeyLastUsed(context.Background(), id, time.Now())
		}(k.ID)

		return &APIKeyResult{
			APIKeyID: k.ID,
			OrgID:    k.OrgID,
			Role:     model.RoleDeveloperM,
			Scopes:   k.Scopes,
		}, nil
	}

	return nil, fmt.Errorf("auth: no matching API key")
}
