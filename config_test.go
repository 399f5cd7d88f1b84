package authcore

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("refresh-secret-0123456789abcdef")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secrets valid",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "same secrets invalid",
			mutate: func(c *Config) {
				c.JWT.RefreshSecret = c.JWT.AccessSecret
			},
			wantValid: false,
		},
		{
			name: "access ttl longer than refresh invalid",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 48 * time.Hour
				c.JWT.RefreshTTL = 24 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "zero refresh ttl invalid",
			mutate: func(c *Config) {
				c.JWT.RefreshTTL = 0
			},
			wantValid: false,
		},
		{
			name: "blank session prefix invalid",
			mutate: func(c *Config) {
				c.Session.RedisPrefix = "  "
			},
			wantValid: false,
		},
		{
			name: "bcrypt algorithm valid",
			mutate: func(c *Config) {
				c.Password.Algorithm = "bcrypt"
			},
			wantValid: true,
		},
		{
			name: "unknown algorithm invalid",
			mutate: func(c *Config) {
				c.Password.Algorithm = "md5"
			},
			wantValid: false,
		},
		{
			name: "short token invalid",
			mutate: func(c *Config) {
				c.PasswordReset.TokenBytes = 8
			},
			wantValid: false,
		},
		{
			name: "empty live prefix invalid in production",
			mutate: func(c *Config) {
				c.Production = true
				c.APIKey.LivePrefix = ""
			},
			wantValid: false,
		},
		{
			name: "empty live prefix ignored outside production",
			mutate: func(c *Config) {
				c.APIKey.LivePrefix = ""
			},
			wantValid: true,
		},
		{
			name: "shared redis prefixes invalid",
			mutate: func(c *Config) {
				c.RateLimit.RedisPrefix = c.Session.RedisPrefix
			},
			wantValid: false,
		},
		{
			name: "empty auth window invalid",
			mutate: func(c *Config) {
				c.RateLimit.Auth = WindowConfig{}
			},
			wantValid: false,
		},
		{
			name: "empty windows ignored when rate limiting is off",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.Auth = WindowConfig{}
			},
			wantValid: true,
		},
		{
			name: "async activity without buffer invalid",
			mutate: func(c *Config) {
				c.Activity.BufferSize = 0
			},
			wantValid: false,
		},
		{
			name: "sync activity without buffer valid",
			mutate: func(c *Config) {
				c.Activity.Async = false
				c.Activity.BufferSize = 0
			},
			wantValid: true,
		},
		{
			name: "negative mail timeout invalid",
			mutate: func(c *Config) {
				c.Mail.Timeout = -time.Second
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestConfigValidateMissingSecret(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrSigningKeyMissing) {
		t.Fatalf("expected ErrSigningKeyMissing, got %v", err)
	}
	if StatusCode(ErrSigningKeyMissing) != 500 {
		t.Fatalf("configuration errors must map to 500")
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'
	if bytes.Equal(clone.JWT.AccessSecret, cfg.JWT.AccessSecret) {
		t.Fatal("clone shares the secret buffer")
	}
}
