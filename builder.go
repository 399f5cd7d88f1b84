package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder can be used for exactly one Build.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts      AccountStore
	apiKeys       APIKeyStore
	activityStore ActivityStore
	activitySink  ActivitySink
	notifier      Notifier
	hasher        password.Hasher
	now           func() time.Time
	logger        *slog.Logger

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the session ledger and rate limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(s AccountStore) *Builder {
	b.accounts = s
	return b
}

func (b *Builder) WithAPIKeyStore(s APIKeyStore) *Builder {
	b.apiKeys = s
	return b
}

// WithActivityStore enables the activity query operations. When no sink is
// configured and s also implements ActivitySink, events are written to s.
func (b *Builder) WithActivityStore(s ActivityStore) *Builder {
	b.activityStore = s
	return b
}

func (b *Builder) WithActivitySink(sink ActivitySink) *Builder {
	b.activitySink = sink
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithHasher replaces the hasher derived from Config.Password.
func (b *Builder) WithHasher(h password.Hasher) *Builder {
	b.hasher = h
	return b
}

// WithClock injects the time source used for token, session and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := jwt.NewCodec(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	hasher := b.hasher
	if hasher == nil {
		hasher, err = newHasher(cfg.Password)
		if err != nil {
			return nil, err
		}
	}
	dummy, err := hasher.Hash("authcore-dummy-" + internal.Digest(time.Now().String()))
	if err != nil {
		return nil, err
	}

	sink := b.activitySink
	if sink == nil {
		if s, ok := b.activityStore.(ActivitySink); ok {
			sink = s
		}
	}

	engine := &Engine{
		config:        cloneConfig(cfg),
		logger:        logger,
		now:           now,
		codec:         codec,
		ledger:        session.NewLedger(b.redis, cfg.Session.RedisPrefix, now),
		hasher:        hasher,
		accounts:      b.accounts,
		apiKeys:       b.apiKeys,
		activityStore: b.activityStore,
		activitySink:  sink,
		notifier:      b.notifier,
		metrics:       NewMetrics(cfg.Metrics),
	}
	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, cfg.RateLimit.RedisPrefix)
	}
	if cfg.Activity.Enabled && cfg.Activity.Async {
		engine.activity = newActivityDispatcher(cfg.Activity, sink)
	}

	engine.flows = flows.Deps{
		Login: flows.LoginDeps{
			VerifyPassword: hasher.Verify,
			DummyDigest:    dummy,
			Warn:           engine.warn,
		},
		Refresh: flows.RefreshDeps{
			Now:           now,
			VerifyRefresh: codec.VerifyRefresh,
			Digest:        internal.Digest,
			LoadAccount:   engine.payloadForRefresh,
			IssuePair:     engine.issuePair,
			ClientIP:      ClientIPFromContext,
			UserAgent:     userAgentFromContext,
			Ledger:        engine.ledger,
		},
	}
	if engine.limiter != nil {
		engine.flows.Login.Limiter = &loginLimiter{
			limiter: engine.limiter,
			window:  windowOf(cfg.RateLimit.Auth),
		}
	}

	b.built = true
	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	argon, err := password.NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	if cfg.Algorithm == "bcrypt" {
		return password.NewChain(bc, argon), nil
	}
	return password.NewChain(argon, bc), nil
}

func windowOf(w WindowConfig) rate.Window {
	return rate.Window{Limit: w.Limit, Period: w.Period}
}

// loginLimiter adapts rate.Limiter to the login flow. Attempts are counted
// before the password check and refunded when they were not credential failures.
type loginLimiter struct {
	limiter *rate.Limiter
	window  rate.Window
}

func (l *loginLimiter) Take(ctx context.Context, subject string) (time.Duration, bool, error) {
	d, err := l.limiter.Hit(ctx, policyAuth, subject, l.window)
	if err != nil {
		return 0, true, err
	}
	return d.ResetIn, d.Allowed, nil
}

func (l *loginLimiter) Refund(ctx context.Context, subject string) error {
	return l.limiter.Refund(ctx, policyAuth, subject, l.window)
}

func (l *loginLimiter) Reset(ctx context.Context, subject string) error {
	return l.limiter.Reset(ctx, policyAuth, subject, l.window)
}
