// Package config loads process configuration for the authcore binaries from
// the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/mail"
)

// Config holds process configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the API server listens on.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("development", "production", "test").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// TrustProxy honours X-Forwarded-* headers; enable only behind a proxy.
	TrustProxy bool `mapstructure:"TRUST_PROXY"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`
	DBMaxConns  int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	JWTSecret        string `mapstructure:"JWT_SECRET"`
	JWTRefreshSecret string `mapstructure:"JWT_REFRESH_SECRET"`
	// JWTExpire and JWTRefreshExpire are duration specs such as "15m" or "30d".
	JWTExpire        string `mapstructure:"JWT_EXPIRE"`
	JWTRefreshExpire string `mapstructure:"JWT_REFRESH_EXPIRE"`
	JWTIssuer        string `mapstructure:"JWT_ISSUER"`
	JWTAudience      string `mapstructure:"JWT_AUDIENCE"`

	PasswordAlgorithm string `mapstructure:"PASSWORD_ALGORITHM"`
	BcryptCost        int    `mapstructure:"BCRYPT_COST"`

	RateLimitEnabled bool `mapstructure:"RATE_LIMIT_ENABLED"`
	MetricsEnabled   bool `mapstructure:"METRICS_ENABLED"`

	// AppName is the product name shown in emails.
	AppName     string `mapstructure:"APP_NAME"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`
	// EmailHost empty means emails are logged instead of sent.
	EmailHost     string `mapstructure:"EMAIL_HOST"`
	EmailPort     int    `mapstructure:"EMAIL_PORT"`
	EmailUser     string `mapstructure:"EMAIL_USER"`
	EmailPass     string `mapstructure:"EMAIL_PASS"`
	EmailFrom     string `mapstructure:"EMAIL_FROM"`
	EmailFromName string `mapstructure:"EMAIL_FROM_NAME"`

	// KafkaBrokers is a comma-separated broker list; empty disables activity streaming.
	KafkaBrokers       string `mapstructure:"KAFKA_BROKERS"`
	ActivityKafkaTopic string `mapstructure:"ACTIVITY_KAFKA_TOPIC"`
	KafkaGroupID       string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint empty installs no-op telemetry providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file. A missing file is ignored;
// environment variables override it.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig()
	}

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":5000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TRUST_PROXY", false)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTO_MIGRATE", false)
	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("JWT_EXPIRE", "15m")
	v.SetDefault("JWT_REFRESH_EXPIRE", "30d")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "")
	v.SetDefault("PASSWORD_ALGORITHM", "argon2id")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("APP_NAME", "Backend Masterclass")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")
	v.SetDefault("EMAIL_HOST", "")
	v.SetDefault("EMAIL_PORT", 587)
	v.SetDefault("EMAIL_USER", "")
	v.SetDefault("EMAIL_PASS", "")
	v.SetDefault("EMAIL_FROM", "")
	v.SetDefault("EMAIL_FROM_NAME", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("ACTIVITY_KAFKA_TOPIC", "authcore-activity")
	v.SetDefault("KAFKA_GROUP_ID", "authcore-activity-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "authcore")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if _, err := jwt.ParseDurationSpec(cfg.JWTExpire); err != nil {
		return nil, fmt.Errorf("config: JWT_EXPIRE: %w", err)
	}
	if _, err := jwt.ParseDurationSpec(cfg.JWTRefreshExpire); err != nil {
		return nil, fmt.Errorf("config: JWT_REFRESH_EXPIRE: %w", err)
	}

	return &cfg, nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, "production")
}

// Engine converts c into an Engine configuration on top of authcore.DefaultConfig.
// Secrets are not checked here; the Engine builder rejects missing ones.
func (c *Config) Engine() (authcore.Config, error) {
	out := authcore.DefaultConfig()

	access, err := jwt.ParseDurationSpec(c.JWTExpire)
	if err != nil {
		return out, fmt.Errorf("config: JWT_EXPIRE: %w", err)
	}
	refresh, err := jwt.ParseDurationSpec(c.JWTRefreshExpire)
	if err != nil {
		return out, fmt.Errorf("config: JWT_REFRESH_EXPIRE: %w", err)
	}

	out.JWT.AccessSecret = []byte(c.JWTSecret)
	out.JWT.RefreshSecret = []byte(c.JWTRefreshSecret)
	out.JWT.AccessTTL = access
	out.JWT.RefreshTTL = refresh
	out.JWT.Issuer = c.JWTIssuer
	out.JWT.Audience = c.JWTAudience
	out.Password.Algorithm = c.PasswordAlgorithm
	out.Password.BcryptCost = c.BcryptCost
	out.RateLimit.Enabled = c.RateLimitEnabled
	out.Metrics.Enabled = c.MetricsEnabled
	out.Production = c.Production()
	out.DevelopmentMode = strings.EqualFold(c.Env, "development")
	return out, nil
}

// RedisOptions parses RedisURL.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("config: REDIS_URL: %w", err)
	}
	return opts, nil
}

// SMTPEnabled reports whether an SMTP relay is configured.
func (c *Config) SMTPEnabled() bool {
	return strings.TrimSpace(c.EmailHost) != ""
}

// SMTP returns the relay settings for mail.NewSMTPSender.
func (c *Config) SMTP() mail.SMTPConfig {
	from := c.EmailFrom
	if from == "" {
		from = c.EmailUser
	}
	name := c.EmailFromName
	if name == "" {
		name = c.AppName
	}
	return mail.SMTPConfig{
		Host:     c.EmailHost,
		Port:     c.EmailPort,
		Username: c.EmailUser,
		Password: c.EmailPass,
		From:     from,
		FromName: name,
		Timeout:  30 * time.Second,
	}
}

// Notifier returns the settings for mail.NewNotifier.
func (c *Config) Notifier(verificationTTL, resetTTL time.Duration) mail.NotifierConfig {
	return mail.NotifierConfig{
		FrontendURL:     c.FrontendURL,
		Product:         c.AppName,
		VerificationTTL: verificationTTL,
		ResetTTL:        resetTTL,
	}
}

// KafkaBrokersList returns broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
