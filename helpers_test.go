package authcore_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentMail struct {
	Kind  string
	To    string
	Token string
}

// recordingNotifier keeps every email instead of sending it. Setting fail
// makes every send return an error.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (n *recordingNotifier) record(kind, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{Kind: kind, To: to, Token: token})
	if n.fail {
		return errors.New("smtp: connection refused")
	}
	return nil
}

func (n *recordingNotifier) SendVerification(ctx context.Context, to, name, token string) error {
	return n.record("verification", to, token)
}

func (n *recordingNotifier) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return n.record("password_reset", to, token)
}

func (n *recordingNotifier) SendPasswordChanged(ctx context.Context, to, name string) error {
	return n.record("password_changed", to, "")
}

func (n *recordingNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].Kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.sent {
		if m.Kind == kind {
			c++
		}
	}
	return c
}

// hookedAccounts runs a one-shot callback right after a token digest lookup
// returns, so a test can commit another write between the engine's read and
// its own write.
type hookedAccounts struct {
	*memory.Accounts

	mu    sync.Mutex
	hooks map[string]func()
}

func (h *hookedAccounts) after(lookup string, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hooks == nil {
		h.hooks = make(map[string]func())
	}
	h.hooks[lookup] = fn
}

func (h *hookedAccounts) fire(lookup string) {
	h.mu.Lock()
	fn := h.hooks[lookup]
	delete(h.hooks, lookup)
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *hookedAccounts) GetAccountByVerificationDigest(ctx context.Context, digest string, now time.Time) (*authcore.Account, error) {
	a, err := h.Accounts.GetAccountByVerificationDigest(ctx, digest, now)
	if err == nil {
		h.fire("verification")
	}
	return a, err
}

func (h *hookedAccounts) GetAccountByResetDigest(ctx context.Context, digest string, now time.Time) (*authcore.Account, error) {
	a, err := h.Accounts.GetAccountByResetDigest(ctx, digest, now)
	if err == nil {
		h.fire("reset")
	}
	return a, err
}

func (h *hookedAccounts) GetAccountByID(ctx context.Context, id string) (*authcore.Account, error) {
	a, err := h.Accounts.GetAccountByID(ctx, id)
	if err == nil {
		h.fire("id")
	}
	return a, err
}

type testEnv struct {
	engine     *authcore.Engine
	redis      *miniredis.Miniredis
	accounts   *hookedAccounts
	apiKeys    *memory.APIKeys
	activities *memory.Activities
	mail       *recordingNotifier
	clock      *testClock
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	cfg.Password.Argon2 = password.Argon2Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
	cfg.Password.BcryptCost = 4
	cfg.Mail.Async = false
	cfg.Activity.Async = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, mutate ...func(*authcore.Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	env := &testEnv{
		redis:      mr,
		accounts:   &hookedAccounts{Accounts: memory.NewAccounts()},
		apiKeys:    memory.NewAPIKeys(),
		activities: memory.NewActivities(),
		mail:       &recordingNotifier{},
		clock:      newTestClock(),
	}

	engine, err := authcore.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(env.accounts).
		WithAPIKeyStore(env.apiKeys).
		WithActivityStore(env.activities).
		WithNotifier(env.mail).
		WithClock(env.clock.Now).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

func clientCtx(ip string) context.Context {
	ctx := authcore.WithClientIP(context.Background(), ip)
	return authcore.WithUserAgent(ctx, "test-agent/1.0")
}

func (env *testEnv) register(t *testing.T, name, email, pass string) *authcore.AuthResult {
	t.Helper()
	res, err := env.engine.Register(clientCtx("10.0.0.1"), authcore.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return res
}

// promote writes role directly to the store, bypassing admin checks.
func (env *testEnv) promote(t *testing.T, id string, role authcore.Role) {
	t.Helper()
	ctx := context.Background()
	if err := env.accounts.PatchAccount(ctx, id, authcore.AccountPatch{Role: &role}); err != nil {
		t.Fatalf("PatchAccount failed: %v", err)
	}
}

func expectKind(t *testing.T, err error, want authcore.ErrorKind) *authcore.AuthError {
	t.Helper()
	ae, ok := authcore.AsAuthError(err)
	if !ok {
		t.Fatalf("expected *AuthError of kind %v, got %v", want, err)
	}
	if ae.Kind != want {
		t.Fatalf("expected kind %v, got %v (%s)", want, ae.Kind, ae.Message)
	}
	return ae
}
