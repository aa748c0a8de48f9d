package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/integrum-global/kaizen-studio/internal/keystore"
	"github.com/integrum-global/kaizen-studio/internal/model"
)

// Claims is the payload of a Kaizen Studio access token.
type Claims struct {
	jwt.RegisteredClaims
	OrgID string     `json:"org_id"`
	Role  model.Role `json:"role"`
}

// TokenIssuer mints and verifies RS256 access/refresh tokens.
type TokenIssuer struct {
	keys        *keystore.JWTKeys
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

func NewTokenIssuer(keys *keystore.JWTKeys, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{keys: keys, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// IssueAccessToken mints a 15-minute (by default) RS256 access token.
func (t *TokenIssuer) IssueAccessToken(userID, orgID uuid.UUID, role model.Role) (string, error) {
	if t.keys.PrivateKey == nil {
		return "", fmt.Errorf("auth: no private key configured, cannot issue tokens")
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
		OrgID: orgID.String(),
		Role:  role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(t.keys.PrivateKey)
}

// IssueRefreshToken mints a 7-day (by default) RS256 refresh token and
// returns it with its jti. No jti is persisted and nothing checks one for
// revocation: a refresh token is honored until it expires.
func (t *TokenIssuer) IssueRefreshToken(userID uuid.UUID) (string, string, error) {
	if t.keys.PrivateKey == nil {
		return "", "", fmt.Errorf("auth: no private key configured, cannot issue tokens")
	}
	now := time.Now()
	jti := uuid.NewString()
	claims := &jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(t.refreshTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(t.keys.PrivateKey)
	return signed, jti, err
}

// Verify parses and validates rawToken, pinning the signing algorithm to
// RS256 so a token signed with HMAC or "none" is never accepted even if an
// attacker controls the alg header (classic algorithm-confusion class of
// bug).
func (t *TokenIssuer) Verify(rawToken string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(rawToken, claims, func(tok *jwt.Token) (any, error) {
		return t.keys.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil {
		return nil, fmt.Errorf("auth: verifying token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("auth: token is not valid")
	}
	return claims, nil
}
