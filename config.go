package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/password"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override what the deployment needs; the Builder clones it so later changes
// to the caller's copy have no effect.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	Verification  VerificationConfig
	PasswordReset PasswordResetConfig
	APIKey        APIKeyConfig
	RateLimit     RateLimitConfig
	Activity      ActivityConfig
	Mail          MailConfig
	Metrics       MetricsConfig

	// Production switches API key prefixes to their live form.
	Production bool
	// DevelopmentMode exposes the cause of internal errors in HTTP responses.
	DevelopmentMode bool
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds the HS256 secrets and token lifetimes. The two secrets
// must differ so that a refresh token can never pass as an access token.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the Redis session ledger.
type SessionConfig struct {
	RedisPrefix string
	// PruneOnLogin removes expired sessions of an account on every login.
	PruneOnLogin bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing algorithm for new digests. Digests of
// the other algorithm are still verified, and rehashed on login when
// UpgradeOnLogin is set.
type PasswordConfig struct {
	Algorithm      string // "argon2id" (default) or "bcrypt"
	Argon2         password.Argon2Config
	BcryptCost     int
	UpgradeOnLogin bool
}

/*
====================================
VERIFICATION / RESET CONFIG
====================================
*/

// VerificationConfig controls email verification tokens.
type VerificationConfig struct {
	TTL          time.Duration
	TokenBytes   int
	SendOnSignup bool
}

// PasswordResetConfig controls password reset tokens.
type PasswordResetConfig struct {
	TTL        time.Duration
	TokenBytes int
}

/*
====================================
API KEY CONFIG
====================================
*/

// APIKeyConfig controls generated API keys. Empty prefixes fall back to
// bmc_live in production and bmc_test otherwise.
type APIKeyConfig struct {
	LivePrefix       string
	TestPrefix       string
	DefaultRateLimit RateLimit
	MaxExpiryDays    int
}

func (c APIKeyConfig) prefix(production bool) string {
	if production {
		return c.LivePrefix
	}
	return c.TestPrefix
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// WindowConfig is a request budget over a fixed period.
type WindowConfig struct {
	Limit  int
	Period time.Duration
}

// RateLimitConfig holds the fixed-window budgets enforced through Redis.
// Login throttling uses Auth and only counts failed attempts.
type RateLimitConfig struct {
	Enabled       bool
	RedisPrefix   string
	General       WindowConfig
	Auth          WindowConfig
	PasswordReset WindowConfig
	APIKeys       bool
}

/*
====================================
ACTIVITY / MAIL / METRICS CONFIG
====================================
*/

// ActivityConfig controls delivery of activity events to the configured sink.
// With Async unset, events are written on the calling goroutine.
type ActivityConfig struct {
	Enabled    bool
	Async      bool
	BufferSize int
	DropIfFull bool
}

// MailConfig controls notifier calls.
type MailConfig struct {
	Async   bool
	Timeout time.Duration
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a configuration with every section populated except
// the JWT secrets.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Leeway:     30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:  "acs",
			PruneOnLogin: true,
		},
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Argon2:         password.DefaultArgon2Config(),
			BcryptCost:     12,
			UpgradeOnLogin: true,
		},
		Verification: VerificationConfig{
			TTL:          time.Hour,
			TokenBytes:   32,
			SendOnSignup: true,
		},
		PasswordReset: PasswordResetConfig{
			TTL:        time.Hour,
			TokenBytes: 32,
		},
		APIKey: APIKeyConfig{
			LivePrefix:       "bmc_live",
			TestPrefix:       "bmc_test",
			DefaultRateLimit: DefaultAPIKeyRateLimit,
			MaxExpiryDays:    365,
		},
		RateLimit: RateLimitConfig{
			Enabled:       true,
			RedisPrefix:   "arl",
			General:       WindowConfig{Limit: 100, Period: 15 * time.Minute},
			Auth:          WindowConfig{Limit: 5, Period: 15 * time.Minute},
			PasswordReset: WindowConfig{Limit: 3, Period: time.Hour},
			APIKeys:       true,
		},
		Activity: ActivityConfig{
			Enabled:    true,
			Async:      true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Mail: MailConfig{
			Async:   true,
			Timeout: 30 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return ErrSigningKeyMissing
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("JWT AccessTTL must be shorter than RefreshTTL")
	}

	// Session
	if strings.TrimSpace(c.Session.RedisPrefix) == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}

	// Password
	switch c.Password.Algorithm {
	case "argon2id", "bcrypt":
	default:
		return errors.New("Password Algorithm must be argon2id or bcrypt")
	}

	// Tokens
	if c.Verification.TTL <= 0 {
		return errors.New("Verification TTL must be > 0")
	}
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if c.Verification.TokenBytes < 16 || c.PasswordReset.TokenBytes < 16 {
		return errors.New("token length must be at least 16 bytes")
	}

	// API keys
	if strings.TrimSpace(c.APIKey.prefix(c.Production)) == "" {
		return errors.New("APIKey prefix must not be empty")
	}
	if c.APIKey.MaxExpiryDays <= 0 {
		return errors.New("APIKey MaxExpiryDays must be > 0")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if strings.TrimSpace(c.RateLimit.RedisPrefix) == "" {
			return errors.New("RateLimit RedisPrefix must not be empty")
		}
		if c.RateLimit.RedisPrefix == c.Session.RedisPrefix {
			return errors.New("RateLimit and Session prefixes must differ")
		}
		for name, w := range map[string]WindowConfig{
			"General":       c.RateLimit.General,
			"Auth":          c.RateLimit.Auth,
			"PasswordReset": c.RateLimit.PasswordReset,
		} {
			if w.Limit <= 0 || w.Period <= 0 {
				return errors.New("RateLimit " + name + " window must have Limit > 0 and Period > 0")
			}
		}
	}

	// Activity
	if c.Activity.Enabled && c.Activity.Async && c.Activity.BufferSize <= 0 {
		return errors.New("Activity BufferSize must be > 0")
	}

	// Mail
	if c.Mail.Timeout < 0 {
		return errors.New("Mail Timeout must be >= 0")
	}

	return nil
}
