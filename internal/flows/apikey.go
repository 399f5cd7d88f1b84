package flows

import (
	"context"
	"net"
	"strings"
	"time"
)

// APIKeyRejection classifies why a presented API key was refused.
type APIKeyRejection int

const (
	APIKeyAccepted APIKeyRejection = iota
	APIKeyMissing
	APIKeyNotFound
	APIKeyExpired
	APIKeyOwnerInactive
	APIKeyPermissionDenied
	APIKeyIPNotAllowed
	APIKeyDomainNotAllowed
	APIKeyLookupFailed
)

// APIKeyCandidate is the stored key as seen by the validation flow.
type APIKeyCandidate struct {
	ID             string
	AccountID      string
	Active         bool
	ExpiresAt      *time.Time
	Permissions    []string
	AllowedIPs     []string
	AllowedDomains []string
}

// APIKeyOwner is the owning account's state.
type APIKeyOwner struct {
	Found  bool
	Active bool
	Banned bool
}

// APIKeyCheck carries the request-specific constraints.
type APIKeyCheck struct {
	Permission   string
	ClientIP     string
	ClientDomain string
}

// APIKeyDeps captures API key validation dependencies. LookupKey returns a
// nil candidate and nil error when no key has the digest.
type APIKeyDeps struct {
	Now         func() time.Time
	Digest      func(string) string
	LookupKey   func(ctx context.Context, digest string) (*APIKeyCandidate, error)
	LookupOwner func(ctx context.Context, accountID string) (APIKeyOwner, error)
	RecordUsage func(ctx context.Context, keyID string, at time.Time) error
	Warn        func(string, ...any)
}

// APIKeyResult carries the accepted key or the rejection reason.
type APIKeyResult struct {
	Rejection APIKeyRejection
	Err       error
	Key       *APIKeyCandidate
}

// RunAPIKeyValidation applies the checks in a fixed order and stops at the
// first failure: existence and active flag, expiry, owner state, permission,
// IP allow-list, then domain allow-list. Accepted keys get their usage
// recorded; a failure to record is only reported through Warn.
func RunAPIKeyValidation(ctx context.Context, plaintext string, check APIKeyCheck, deps APIKeyDeps) APIKeyResult {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return APIKeyResult{Rejection: APIKeyMissing}
	}

	key, err := deps.LookupKey(ctx, deps.Digest(plaintext))
	if err != nil {
		return APIKeyResult{Rejection: APIKeyLookupFailed, Err: err}
	}
	if key == nil || !key.Active {
		return APIKeyResult{Rejection: APIKeyNotFound}
	}

	now := deps.Now()
	if key.ExpiresAt != nil && !now.Before(*key.ExpiresAt) {
		return APIKeyResult{Rejection: APIKeyExpired, Key: key}
	}

	owner, err := deps.LookupOwner(ctx, key.AccountID)
	if err != nil {
		return APIKeyResult{Rejection: APIKeyLookupFailed, Err: err, Key: key}
	}
	if !owner.Found || !owner.Active || owner.Banned {
		return APIKeyResult{Rejection: APIKeyOwnerInactive, Key: key}
	}

	if check.Permission != "" && !contains(key.Permissions, check.Permission) {
		return APIKeyResult{Rejection: APIKeyPermissionDenied, Key: key}
	}

	if len(key.AllowedIPs) > 0 && !MatchIP(key.AllowedIPs, check.ClientIP) {
		return APIKeyResult{Rejection: APIKeyIPNotAllowed, Key: key}
	}

	if len(key.AllowedDomains) > 0 && !MatchDomain(key.AllowedDomains, check.ClientDomain) {
		return APIKeyResult{Rejection: APIKeyDomainNotAllowed, Key: key}
	}

	if deps.RecordUsage != nil {
		if err := deps.RecordUsage(ctx, key.ID, now); err != nil && deps.Warn != nil {
			deps.Warn("authcore: api key usage recording failed", "key_id", key.ID, "error", err)
		}
	}

	return APIKeyResult{Rejection: APIKeyAccepted, Key: key}
}

// MatchIP reports whether ip equals one of allowed or falls inside an allowed CIDR.
func MatchIP(allowed []string, ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			if _, network, err := net.ParseCIDR(entry); err == nil && network.Contains(parsed) {
				return true
			}
			continue
		}
		if candidate := net.ParseIP(entry); candidate != nil && candidate.Equal(parsed) {
			return true
		}
	}
	return false
}

// MatchDomain reports whether domain is one of allowed or a subdomain of one.
// Matching is case-insensitive and respects label boundaries, so
// "evilexample.com" does not match "example.com". A port on domain is ignored.
func MatchDomain(allowed []string, domain string) bool {
	host := strings.ToLower(strings.TrimSpace(domain))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return false
	}
	for _, entry := range allowed {
		entry = strings.ToLower(strings.TrimSpace(entry))
		entry = strings.TrimPrefix(entry, "*.")
		entry = strings.TrimPrefix(entry, ".")
		entry = strings.TrimSuffix(entry, ".")
		if entry == "" {
			continue
		}
		if host == entry || strings.HasSuffix(host, "."+entry) {
			return true
		}
	}
	return false
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
