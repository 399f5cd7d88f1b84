package authcore_test

import (
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
)

func TestSecurityReport(t *testing.T) {
	env := newTestEnv(t, func(c *authcore.Config) {
		c.DevelopmentMode = true
	})
	r := env.engine.SecurityReport()

	if r.SigningAlgorithm != "HS256" || !r.SecretsDistinct {
		t.Fatalf("signing = %q distinct = %v", r.SigningAlgorithm, r.SecretsDistinct)
	}
	if r.AccessTTL != 15*time.Minute || r.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("ttls = %v/%v", r.AccessTTL, r.RefreshTTL)
	}
	if r.PasswordAlgorithm != "argon2id" || r.Argon2.Memory != 8*1024 {
		t.Fatalf("password = %q %+v", r.PasswordAlgorithm, r.Argon2)
	}
	if !r.RateLimitingActive || !r.APIKeyLimitsActive || !r.APIKeysActive {
		t.Fatalf("limits: %+v", r)
	}
	if !r.EmailDeliveryActive || !r.ActivityLogActive || !r.DetailedErrors {
		t.Fatalf("collaborators: %+v", r)
	}
	if r.ProductionMode {
		t.Fatal("test config is not production")
	}
}

func TestSecurityReportRateLimitDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *authcore.Config) {
		c.RateLimit.Enabled = false
	})
	r := env.engine.SecurityReport()
	if r.RateLimitingActive || r.APIKeyLimitsActive {
		t.Fatalf("rate limiting reported active: %+v", r)
	}

	var nilEngine *authcore.Engine
	if got := nilEngine.SecurityReport(); got != (authcore.SecurityReport{}) {
		t.Fatalf("nil engine report = %+v", got)
	}
}
