package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	// OpaqueTokenBytes is the default entropy of verification and reset tokens.
	OpaqueTokenBytes = 32
	apiKeySecretBytes = 24
)

// NewOpaqueToken returns n random bytes encoded as lowercase hex.
func NewOpaqueToken(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("invalid token length")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Digest returns the SHA-256 hex digest of token.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DigestEqual compares two hex digests in constant time.
func DigestEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NewAPIKey returns "<prefix>_<48 hex chars>".
func NewAPIKey(prefix string) (string, error) {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "_")
	if prefix == "" {
		return "", errors.New("api key prefix required")
	}
	secret, err := NewOpaqueToken(apiKeySecretBytes)
	if err != nil {
		return "", err
	}
	return prefix + "_" + secret, nil
}
