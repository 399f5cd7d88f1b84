package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/internal/rate"
)

const (
	policyGeneral       = "general"
	policyAuth          = "auth"
	policyPasswordReset = "password_reset"
	policyAPIKey        = "apikey"
)

// RateLimitPolicy selects one of the configured fixed-window budgets.
type RateLimitPolicy int

const (
	// GeneralPolicy is the per-client budget for every API route.
	GeneralPolicy RateLimitPolicy = iota
	// AuthPolicy guards credential endpoints; callers count only failures.
	AuthPolicy
	// PasswordResetPolicy guards reset-link requests.
	PasswordResetPolicy
)

func (p RateLimitPolicy) String() string {
	switch p {
	case AuthPolicy:
		return policyAuth
	case PasswordResetPolicy:
		return policyPasswordReset
	default:
		return policyGeneral
	}
}

// RateLimitStatus describes the budget left after a check.
type RateLimitStatus struct {
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

func (e *Engine) policy(p RateLimitPolicy) (rate.Window, *AuthError) {
	switch p {
	case AuthPolicy:
		return windowOf(e.config.RateLimit.Auth), ErrTooManyAuthAttempts
	case PasswordResetPolicy:
		return windowOf(e.config.RateLimit.PasswordReset), ErrTooManyResetRequests
	default:
		return windowOf(e.config.RateLimit.General), ErrTooManyRequests
	}
}

// CheckRateLimit counts one request from subject against policy. It fails
// with a RateLimited AuthError carrying RetryAfter once the budget is spent.
// Redis failures are logged and the request is allowed.
func (e *Engine) CheckRateLimit(ctx context.Context, p RateLimitPolicy, subject string) (RateLimitStatus, error) {
	return e.rateLimit(ctx, p, subject)
}

// RefundRateLimit gives back one request counted by CheckRateLimit, for
// policies that keep only failed attempts.
func (e *Engine) RefundRateLimit(ctx context.Context, p RateLimitPolicy, subject string) {
	if e == nil || e.limiter == nil {
		return
	}
	w, _ := e.policy(p)
	if err := e.limiter.Refund(ctx, p.String(), subject, w); err != nil {
		e.warn("authcore: rate limit refund failed", "policy", p.String(), "error", err)
	}
}

func (e *Engine) rateLimit(ctx context.Context, p RateLimitPolicy, subject string) (RateLimitStatus, error) {
	if e == nil || e.limiter == nil {
		return RateLimitStatus{}, nil
	}
	w, limitErr := e.policy(p)

	d, err := e.limiter.Hit(ctx, p.String(), subject, w)
	if err != nil {
		e.warn("authcore: rate limiter unavailable", "policy", p.String(), "error", err)
		return RateLimitStatus{}, nil
	}

	status := RateLimitStatus{Limit: d.Limit, Remaining: d.Remaining, ResetIn: d.ResetIn}
	if !d.Allowed {
		e.metricInc(MetricRateLimitHit)
		return status, rateLimited(limitErr, d.ResetIn)
	}
	return status, nil
}

// checkAPIKeyRateLimit counts one request against every window of the key's limit.
func (e *Engine) checkAPIKeyRateLimit(ctx context.Context, key *APIKey) (RateLimitStatus, error) {
	if e.limiter == nil || !e.config.RateLimit.APIKeys {
		return RateLimitStatus{}, nil
	}
	d, err := e.limiter.HitAll(ctx, policyAPIKey, key.ID,
		rate.Window{Limit: key.RateLimit.PerMinute, Period: time.Minute},
		rate.Window{Limit: key.RateLimit.PerHour, Period: time.Hour},
		rate.Window{Limit: key.RateLimit.PerDay, Period: 24 * time.Hour},
	)
	if err != nil {
		e.warn("authcore: api key rate limiter unavailable", "key_id", key.ID, "error", err)
		return RateLimitStatus{}, nil
	}
	status := RateLimitStatus{Limit: d.Limit, Remaining: d.Remaining, ResetIn: d.ResetIn}
	if !d.Allowed {
		e.metricInc(MetricAPIKeyRateLimited)
		e.metricInc(MetricRateLimitHit)
		return status, rateLimited(ErrAPIKeyRateLimited, d.ResetIn)
	}
	return status, nil
}
