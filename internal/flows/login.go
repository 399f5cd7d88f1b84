package flows

import (
	"context"
	"time"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	LoginFailureInactive
	LoginFailureBanned
	LoginFailureLookup
	LoginFailureVerify
)

// LoginCandidate is the stored account as seen by the login flow.
type LoginCandidate struct {
	AccountID      string
	PasswordDigest string
	Active         bool
	Banned         bool
	BanReason      string
}

// LoginLimiter throttles failed attempts per subject. Take counts an attempt
// atomically before any password work, Refund returns an attempt that did not
// end in a credential failure, and Reset clears the budget after a success.
type LoginLimiter interface {
	Take(ctx context.Context, subject string) (retryAfter time.Duration, ok bool, err error)
	Refund(ctx context.Context, subject string) error
	Reset(ctx context.Context, subject string) error
}

// LoginDeps captures login flow dependencies. LookupAccount returns a nil
// candidate and nil error for unknown emails.
type LoginDeps struct {
	LookupAccount  func(ctx context.Context, email string) (*LoginCandidate, error)
	VerifyPassword func(plain, digest string) (bool, error)
	// DummyDigest is verified against for unknown emails so both failure
	// paths cost one hash comparison.
	DummyDigest string
	Limiter     LoginLimiter
	Warn        func(string, ...any)
}

// LoginResult carries the authenticated candidate or the failure reason.
type LoginResult struct {
	Failure    LoginFailureKind
	Err        error
	RetryAfter time.Duration
	Account    *LoginCandidate
}

// RunLogin checks credentials for email. The password is verified before any
// account-state check so that unknown emails and wrong passwords are
// indistinguishable. Every attempt is counted up front so concurrent guesses
// share one budget; only credential failures keep their count.
func RunLogin(ctx context.Context, email, password, limiterSubject string, deps LoginDeps) LoginResult {
	taken := false
	if deps.Limiter != nil {
		retry, ok, err := deps.Limiter.Take(ctx, limiterSubject)
		if err != nil && deps.Warn != nil {
			deps.Warn("authcore: login limiter unavailable", "error", err)
		}
		if err == nil && !ok {
			return LoginResult{Failure: LoginFailureRateLimited, RetryAfter: retry}
		}
		taken = err == nil
	}
	refund := func() {
		if !taken {
			return
		}
		if err := deps.Limiter.Refund(ctx, limiterSubject); err != nil && deps.Warn != nil {
			deps.Warn("authcore: login limiter refund failed", "error", err)
		}
	}

	candidate, err := deps.LookupAccount(ctx, email)
	if err != nil {
		refund()
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	digest := deps.DummyDigest
	if candidate != nil {
		digest = candidate.PasswordDigest
	}
	matched, verifyErr := deps.VerifyPassword(password, digest)
	if candidate == nil {
		matched = false
	}
	if verifyErr != nil && candidate != nil {
		refund()
		return LoginResult{Failure: LoginFailureVerify, Err: verifyErr}
	}
	if !matched {
		return LoginResult{Failure: LoginFailureInvalidCredentials, Account: candidate}
	}

	if !candidate.Active {
		refund()
		return LoginResult{Failure: LoginFailureInactive, Account: candidate}
	}
	if candidate.Banned {
		refund()
		return LoginResult{Failure: LoginFailureBanned, Account: candidate}
	}

	if taken {
		if err := deps.Limiter.Reset(ctx, limiterSubject); err != nil && deps.Warn != nil {
			deps.Warn("authcore: login limiter reset failed", "error", err)
		}
	}

	return LoginResult{Failure: LoginFailureNone, Account: candidate}
}
