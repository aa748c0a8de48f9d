// Package keystore loads the RS256 signing key pair used for JWTs and the
// symmetric keys used to encrypt external-agent and connector credentials at
// rest (spec.md §6 "Environment variables read at startup").
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
)

// JWTKeys holds the RS256 key pair used to sign and verify access tokens.
// PrivateKey is nil when the process only verifies tokens (no private PEM
// configured).
type JWTKeys struct {
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// LoadJWTKeys parses RS256 key material from PEM-encoded strings. privatePEM
// may be empty for a process that only verifies tokens.
func LoadJWTKeys(privatePEM, publicPEM string) (*JWTKeys, error) {
	if publicPEM == "" {
		return nil, fmt.Errorf("keystore: JWT public key is required")
	}

	pubBlock, _ := pem.Decode([]byte(publicPEM))
	if pubBlock == nil {
		return nil, fmt.Errorf("keystore: failed to decode JWT public key PEM")
	}
	pubAny, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keystore: parsing JWT public key: %w", err)
	}
	pub, ok := pubAny.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("keystore: JWT public key is not RSA")
	}

	keys := &JWTKeys{PublicKey: pub}

	if privatePEM != "" {
		privBlock, _ := pem.Decode([]byte(privatePEM))
		if privBlock == nil {
			return nil, fmt.Errorf("keystore: failed to decode JWT private key PEM")
		}
		priv, err := x509.ParsePKCS1PrivateKey(privBlock.Bytes)
		if err != nil {
			privAny, err2 := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
			if err2 != nil {
				return nil, fmt.Errorf("keystore: parsing JWT private key: %w", err)
			}
			rsaPriv, ok := privAny.(*rsa.PrivateKey)
			if !ok {
				return nil, fmt.Errorf("keystore: JWT private key is not RSA")
			}
			priv = rsaPriv
		}
		keys.PrivateKey = priv
	}

	return keys, nil
}

// Cipher performs AES-256-GCM encryption of credentials at rest using a
// 32-byte key, configured as either hex or base64 in the environment.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher decodes key (hex or standard base64) and builds an AES-256-GCM
// AEAD. The key must decode to exactly 32 bytes.
func NewCipher(key string) (*Cipher, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("keystore: encryption key must be 32 bytes, got %d", len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("keystore: constructing AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keystore: constructing GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

func decodeKey(key string) ([]byte, error) {
	if raw, err := hex.DecodeString(key); err == nil {
		return raw, nil
	}
	if raw, err := base64.StdEncoding.DecodeString(key); err == nil {
		return raw, nil
	}
	return nil, fmt.Errorf("keystore: key is neither valid hex nor base64")
}

// Encrypt seals plaintext, returning base64(nonce || ciphertext || tag).
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("keystore: generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. A failure here must always surface as an internal
// error, never as a 403 — spec.md §7 treats secret-decryption failure as a
// fail-closed 500 case, distinct from an authorization denial.
func (c *Cipher) Decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("keystore: decoding ciphertext: %w", err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize {
		return nil, fmt.Errorf("keystore: ciphertext too short")
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("keystore: decryption failed: %w", err)
	}
	return plaintext, nil
}
