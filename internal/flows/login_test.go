package flows

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingLimiter struct {
	mu       sync.Mutex
	failures int
	limit    int
	resets   int
	refunds  int
}

func (l *countingLimiter) Take(ctx context.Context, subject string) (time.Duration, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures++
	if l.failures > l.limit {
		return time.Minute, false, nil
	}
	return 0, true, nil
}

func (l *countingLimiter) Refund(ctx context.Context, subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failures > 0 {
		l.failures--
	}
	l.refunds++
	return nil
}

func (l *countingLimiter) Reset(ctx context.Context, subject string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = 0
	l.resets++
	return nil
}

func loginDeps(accounts map[string]*LoginCandidate, limiter LoginLimiter, verified *[]string) LoginDeps {
	return LoginDeps{
		LookupAccount: func(ctx context.Context, email string) (*LoginCandidate, error) {
			return accounts[email], nil
		},
		VerifyPassword: func(plain, digest string) (bool, error) {
			*verified = append(*verified, digest)
			return digest == "digest:"+plain, nil
		},
		DummyDigest: "dummy",
		Limiter:     limiter,
	}
}

func TestRunLoginUnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	var verified []string
	accounts := map[string]*LoginCandidate{
		"ann@x.io": {AccountID: "1", PasswordDigest: "digest:Secret1", Active: true},
	}
	deps := loginDeps(accounts, nil, &verified)

	unknown := RunLogin(context.Background(), "bob@x.io", "Secret1", "s", deps)
	wrong := RunLogin(context.Background(), "ann@x.io", "nope", "s", deps)

	if unknown.Failure != LoginFailureInvalidCredentials || wrong.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("expected invalid credentials for both, got %v and %v", unknown.Failure, wrong.Failure)
	}
	if len(verified) != 2 || verified[0] != "dummy" {
		t.Fatalf("expected a dummy verification for the unknown email, got %v", verified)
	}
}

func TestRunLoginChecksPasswordBeforeState(t *testing.T) {
	var verified []string
	accounts := map[string]*LoginCandidate{
		"off@x.io":    {AccountID: "1", PasswordDigest: "digest:Secret1", Active: false},
		"banned@x.io": {AccountID: "2", PasswordDigest: "digest:Secret1", Active: true, Banned: true},
	}
	deps := loginDeps(accounts, nil, &verified)

	if res := RunLogin(context.Background(), "off@x.io", "bad", "s", deps); res.Failure != LoginFailureInvalidCredentials {
		t.Fatalf("wrong password on inactive account must look like bad credentials, got %v", res.Failure)
	}
	if res := RunLogin(context.Background(), "off@x.io", "Secret1", "s", deps); res.Failure != LoginFailureInactive {
		t.Fatalf("expected inactive, got %v", res.Failure)
	}
	if res := RunLogin(context.Background(), "banned@x.io", "Secret1", "s", deps); res.Failure != LoginFailureBanned {
		t.Fatalf("expected banned, got %v", res.Failure)
	}
}

func TestRunLoginLimiterCountsOnlyFailures(t *testing.T) {
	var verified []string
	limiter := &countingLimiter{limit: 2}
	accounts := map[string]*LoginCandidate{
		"ann@x.io": {AccountID: "1", PasswordDigest: "digest:Secret1", Active: true},
	}
	deps := loginDeps(accounts, limiter, &verified)

	RunLogin(context.Background(), "ann@x.io", "bad", "s", deps)
	if res := RunLogin(context.Background(), "ann@x.io", "Secret1", "s", deps); res.Failure != LoginFailureNone {
		t.Fatalf("expected success, got %v", res.Failure)
	}
	if limiter.resets != 1 || limiter.failures != 0 {
		t.Fatalf("expected success to reset the limiter, got %+v", limiter)
	}

	RunLogin(context.Background(), "ann@x.io", "bad", "s", deps)
	RunLogin(context.Background(), "ann@x.io", "bad", "s", deps)
	res := RunLogin(context.Background(), "ann@x.io", "Secret1", "s", deps)
	if res.Failure != LoginFailureRateLimited || res.RetryAfter != time.Minute {
		t.Fatalf("expected rate limit after two failures, got %+v", res)
	}
}

func TestRunLoginRefundsStateRejections(t *testing.T) {
	var verified []string
	limiter := &countingLimiter{limit: 1}
	accounts := map[string]*LoginCandidate{
		"off@x.io": {AccountID: "1", PasswordDigest: "digest:Secret1", Active: false},
	}
	deps := loginDeps(accounts, limiter, &verified)

	for i := 0; i < 3; i++ {
		if res := RunLogin(context.Background(), "off@x.io", "Secret1", "s", deps); res.Failure != LoginFailureInactive {
			t.Fatalf("attempt %d: expected inactive, got %v", i, res.Failure)
		}
	}
	if limiter.failures != 0 || limiter.refunds != 3 {
		t.Fatalf("state rejections must not consume the budget, got %+v", limiter)
	}
}

func TestRunLoginConcurrentGuessesShareBudget(t *testing.T) {
	limiter := &countingLimiter{limit: 5}
	accounts := map[string]*LoginCandidate{
		"ann@x.io": {AccountID: "1", PasswordDigest: "digest:Secret1", Active: true},
	}
	var evaluated atomic.Int32
	deps := LoginDeps{
		LookupAccount: func(ctx context.Context, email string) (*LoginCandidate, error) {
			return accounts[email], nil
		},
		VerifyPassword: func(plain, digest string) (bool, error) {
			evaluated.Add(1)
			return digest == "digest:"+plain, nil
		},
		DummyDigest: "dummy",
		Limiter:     limiter,
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RunLogin(context.Background(), "ann@x.io", "guess", "s", deps)
		}()
	}
	wg.Wait()

	if got := evaluated.Load(); got != 5 {
		t.Fatalf("expected 5 password checks, got %d", got)
	}
}
