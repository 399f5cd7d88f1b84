package authcore

import "time"

// SecurityReport summarises the security posture of a built Engine. It holds
// no secrets and is meant for startup logs and health dashboards.
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	SecretsDistinct       bool
	PasswordAlgorithm     string
	Argon2                PasswordConfigReport
	BcryptCost            int
	PasswordUpgradeActive bool
	RateLimitingActive    bool
	APIKeyLimitsActive    bool
	EmailDeliveryActive   bool
	ActivityLogActive     bool
	APIKeysActive         bool
	DetailedErrors        bool
}

// PasswordConfigReport mirrors the Argon2 cost parameters.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	cfg := e.config
	return SecurityReport{
		ProductionMode:    cfg.Production,
		SigningAlgorithm:  "HS256",
		AccessTTL:         cfg.JWT.AccessTTL,
		RefreshTTL:        cfg.JWT.RefreshTTL,
		SecretsDistinct:   string(cfg.JWT.AccessSecret) != string(cfg.JWT.RefreshSecret),
		PasswordAlgorithm: cfg.Password.Algorithm,
		Argon2: PasswordConfigReport{
			Memory:      cfg.Password.Argon2.Memory,
			Time:        cfg.Password.Argon2.Time,
			Parallelism: cfg.Password.Argon2.Parallelism,
			SaltLength:  cfg.Password.Argon2.SaltLength,
			KeyLength:   cfg.Password.Argon2.KeyLength,
		},
		BcryptCost:            cfg.Password.BcryptCost,
		PasswordUpgradeActive: cfg.Password.UpgradeOnLogin,
		RateLimitingActive:    cfg.RateLimit.Enabled && e.limiter != nil,
		APIKeyLimitsActive:    cfg.RateLimit.Enabled && cfg.RateLimit.APIKeys && e.apiKeys != nil,
		EmailDeliveryActive:   e.notifier != nil,
		ActivityLogActive:     cfg.Activity.Enabled && e.activitySink != nil,
		APIKeysActive:         e.apiKeys != nil,
		DetailedErrors:        cfg.DevelopmentMode,
	}
}
