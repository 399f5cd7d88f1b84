package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/google/uuid"
)

func (e *Engine) apiKeysReady() bool {
	return e.ready() && e.apiKeys != nil
}

// CreateAPIKey generates a key for accountID. The returned Plaintext is the
// only copy; only its SHA-256 digest is stored.
func (e *Engine) CreateAPIKey(ctx context.Context, accountID string, req CreateAPIKeyRequest) (*CreatedAPIKey, error) {
	if !e.apiKeysReady() {
		return nil, ErrEngineNotReady
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate(req); err != nil {
		return nil, err
	}

	plaintext, err := internal.NewAPIKey(e.config.APIKey.prefix(e.config.Production))
	if err != nil {
		return nil, internalError(err)
	}

	now := e.now()
	perms := dedupe(req.Permissions)
	if len(perms) == 0 {
		perms = []string{PermissionRead}
	}
	key := &APIKey{
		ID:             uuid.NewString(),
		Name:           req.Name,
		Description:    req.Description,
		Digest:         internal.Digest(plaintext),
		AccountID:      accountID,
		Permissions:    perms,
		RateLimit:      req.RateLimit.apply(e.config.APIKey.DefaultRateLimit),
		Active:         true,
		AllowedIPs:     trimAll(req.AllowedIPs),
		AllowedDomains: normalizeDomains(req.AllowedDomains),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.ExpiresInDays > 0 {
		days := req.ExpiresInDays
		if days > e.config.APIKey.MaxExpiryDays {
			days = e.config.APIKey.MaxExpiryDays
		}
		exp := now.AddDate(0, 0, days)
		key.ExpiresAt = &exp
	}

	if err := e.apiKeys.CreateAPIKey(ctx, key); err != nil {
		return nil, internalError(err)
	}

	e.metricInc(MetricAPIKeyCreated)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionAPIKeyCreated,
		AccountID: accountID,
		Details:   "API key created: " + key.Name,
		Success:   true,
		Metadata:  map[string]string{"apiKeyId": key.ID},
	})

	return &CreatedAPIKey{Key: key, Plaintext: plaintext}, nil
}

// ValidateAPIKey runs the ordered API key checks and records usage on
// success. It does not apply the per-key rate limit; see AuthenticateAPIKey.
func (e *Engine) ValidateAPIKey(ctx context.Context, plaintext string, check APIKeyCheck) (*APIKey, *Account, error) {
	if !e.apiKeysReady() {
		return nil, nil, ErrEngineNotReady
	}
	if check.ClientIP == "" {
		check.ClientIP = ClientIPFromContext(ctx)
	}
	if check.ClientDomain == "" {
		check.ClientDomain = clientDomainFromContext(ctx)
	}

	var (
		key   *APIKey
		owner *Account
	)
	res := flows.RunAPIKeyValidation(ctx, plaintext, flows.APIKeyCheck{
		Permission:   check.Permission,
		ClientIP:     check.ClientIP,
		ClientDomain: check.ClientDomain,
	}, flows.APIKeyDeps{
		Now:    e.now,
		Digest: internal.Digest,
		LookupKey: func(ctx context.Context, digest string) (*flows.APIKeyCandidate, error) {
			k, err := e.apiKeys.GetAPIKeyByDigest(ctx, digest)
			if err != nil {
				if errors.Is(err, ErrRecordNotFound) {
					return nil, nil
				}
				return nil, err
			}
			key = k
			return &flows.APIKeyCandidate{
				ID:             k.ID,
				AccountID:      k.AccountID,
				Active:         k.Active,
				ExpiresAt:      k.ExpiresAt,
				Permissions:    k.Permissions,
				AllowedIPs:     k.AllowedIPs,
				AllowedDomains: k.AllowedDomains,
			}, nil
		},
		LookupOwner: func(ctx context.Context, accountID string) (flows.APIKeyOwner, error) {
			a, err := e.accounts.GetAccountByID(ctx, accountID)
			if err != nil {
				if errors.Is(err, ErrRecordNotFound) {
					return flows.APIKeyOwner{}, nil
				}
				return flows.APIKeyOwner{}, err
			}
			owner = a
			return flows.APIKeyOwner{Found: true, Active: a.Active, Banned: a.Banned}, nil
		},
		RecordUsage: e.apiKeys.RecordAPIKeyUsage,
		Warn:        e.warn,
	})

	switch res.Rejection {
	case flows.APIKeyAccepted:
		e.metricInc(MetricAPIKeyValidationSuccess)
		now := e.now()
		key.UsageCount++
		key.LastUsedAt = &now
		return key, owner, nil
	case flows.APIKeyLookupFailed:
		return nil, nil, internalError(res.Err)
	}

	e.metricInc(MetricAPIKeyValidationFailure)
	switch res.Rejection {
	case flows.APIKeyMissing:
		return nil, nil, ErrAPIKeyRequired
	case flows.APIKeyExpired:
		return nil, nil, ErrAPIKeyExpired
	case flows.APIKeyOwnerInactive:
		return nil, nil, ErrAPIKeyOwnerInactive
	case flows.APIKeyPermissionDenied:
		return nil, nil, derive(ErrAPIKeyPermission, fmt.Sprintf("API key does not have '%s' permission", check.Permission))
	case flows.APIKeyIPNotAllowed:
		return nil, nil, ErrAPIKeyIPNotAllowed
	case flows.APIKeyDomainNotAllowed:
		return nil, nil, ErrAPIKeyDomainNotAllowed
	default:
		return nil, nil, ErrAPIKeyInvalid
	}
}

// ListAPIKeys returns accountID's keys, newest first.
func (e *Engine) ListAPIKeys(ctx context.Context, accountID string) ([]APIKey, error) {
	if !e.apiKeysReady() {
		return nil, ErrEngineNotReady
	}
	keys, err := e.apiKeys.ListAPIKeys(ctx, accountID)
	if err != nil {
		return nil, internalError(err)
	}
	return keys, nil
}

// GetAPIKey returns one of accountID's keys. Keys owned by another account
// are reported as ErrAPIKeyNotFound.
func (e *Engine) GetAPIKey(ctx context.Context, accountID, keyID string) (*APIKey, error) {
	if !e.apiKeysReady() {
		return nil, ErrEngineNotReady
	}
	return e.ownedKey(ctx, accountID, keyID)
}

func (e *Engine) ownedKey(ctx context.Context, accountID, keyID string) (*APIKey, error) {
	if _, err := uuid.Parse(keyID); err != nil {
		return nil, ErrAPIKeyNotFound
	}
	key, err := e.apiKeys.GetAPIKey(ctx, keyID, accountID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, internalError(err)
	}
	return key, nil
}

// RevokeAPIKey deactivates a key. The record is kept for auditing.
func (e *Engine) RevokeAPIKey(ctx context.Context, accountID, keyID string) (*APIKey, error) {
	if !e.apiKeysReady() {
		return nil, ErrEngineNotReady
	}
	key, err := e.ownedKey(ctx, accountID, keyID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := e.apiKeys.RevokeAPIKey(ctx, key.ID, accountID, now); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, internalError(err)
	}
	key.Active = false
	key.UpdatedAt = now

	e.metricInc(MetricAPIKeyRevoked)
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionAPIKeyRevoked,
		AccountID: accountID,
		Details:   "API key revoked: " + key.Name,
		Success:   true,
		Metadata:  map[string]string{"apiKeyId": key.ID},
	})
	return key, nil
}

// DeleteAPIKey removes a key permanently.
func (e *Engine) DeleteAPIKey(ctx context.Context, accountID, keyID string) error {
	if !e.apiKeysReady() {
		return ErrEngineNotReady
	}
	key, err := e.ownedKey(ctx, accountID, keyID)
	if err != nil {
		return err
	}
	if err := e.apiKeys.DeleteAPIKey(ctx, key.ID, accountID); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return ErrAPIKeyNotFound
		}
		return internalError(err)
	}
	e.emitActivity(ctx, ActivityEvent{
		Action:    ActionAPIKeyRevoked,
		AccountID: accountID,
		Details:   "API key deleted: " + key.Name,
		Success:   true,
		Metadata:  map[string]string{"apiKeyId": key.ID},
	})
	return nil
}

// UpdateAPIKey applies a patch. Rate limit fields merge individually, so
// updating PerHour keeps the existing PerMinute and PerDay.
func (e *Engine) UpdateAPIKey(ctx context.Context, accountID, keyID string, req UpdateAPIKeyRequest) (*APIKey, error) {
	if !e.apiKeysReady() {
		return nil, ErrEngineNotReady
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	key, err := e.ownedKey(ctx, accountID, keyID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		key.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		key.Description = *req.Description
	}
	if req.Permissions != nil {
		key.Permissions = dedupe(req.Permissions)
	}
	if req.AllowedIPs != nil {
		key.AllowedIPs = trimAll(req.AllowedIPs)
	}
	if req.AllowedDomains != nil {
		key.AllowedDomains = normalizeDomains(req.AllowedDomains)
	}
	key.RateLimit = req.RateLimit.apply(key.RateLimit)
	key.UpdatedAt = e.now()

	if err := e.apiKeys.UpdateAPIKey(ctx, key); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, internalError(err)
	}
	return key, nil
}

// APIKeyStats summarises accountID's keys.
func (e *Engine) APIKeyStats(ctx context.Context, accountID string) (*APIKeyStats, error) {
	if !e.apiKeysReady() {
		return nil, ErrEngineNotReady
	}
	stats, err := e.apiKeys.APIKeyStats(ctx, accountID)
	if err != nil {
		return nil, internalError(err)
	}
	return &stats, nil
}

func dedupe(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func normalizeDomains(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if d := normalizeDomain(v); d != "" {
			out = append(out, d)
		}
	}
	return out
}
