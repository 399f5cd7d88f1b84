package authcore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// AuthenticateBearer verifies an access token and re-reads the account so
// that deletions, deactivations, bans and role changes apply immediately.
func (e *Engine) AuthenticateBearer(ctx context.Context, token string) (*Identity, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrAccessTokenMissing
	}

	payload, err := e.codec.VerifyAccess(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrAccessTokenExpired
		}
		return nil, ErrAccessTokenInvalid
	}

	acc, err := e.loadActiveAccount(ctx, payload.AccountID)
	if err != nil {
		return nil, err
	}
	return acc.identity(), nil
}

// APIKeyCheck carries the request constraints an API key must satisfy.
// Empty ClientIP and ClientDomain fall back to the values set on ctx.
type APIKeyCheck struct {
	Permission   string
	ClientIP     string
	ClientDomain string
}

// AuthenticateAPIKey validates key against check, enforces its per-key
// rate limit, and returns the owner's identity with the key's public info.
func (e *Engine) AuthenticateAPIKey(ctx context.Context, key string, check APIKeyCheck) (*Identity, *APIKeyInfo, error) {
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	k, owner, err := e.ValidateAPIKey(ctx, key, check)
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.checkAPIKeyRateLimit(ctx, k); err != nil {
		return nil, nil, err
	}
	info := &APIKeyInfo{
		ID:          k.ID,
		Name:        k.Name,
		Permissions: append([]string(nil), k.Permissions...),
	}
	return owner.identity(), info, nil
}
