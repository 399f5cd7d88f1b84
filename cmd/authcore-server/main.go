// authcore-server runs the authcore HTTP API.
//
// Configuration comes from the environment or .env (see internal/config).
// DATABASE_URL, REDIS_URL, JWT_SECRET and JWT_REFRESH_SECRET are required.
// With KAFKA_BROKERS set, activity events go to Kafka and
// authcore-activity-worker persists them; otherwise they are written to
// Postgres directly.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/httpapi"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/telemetry"
	"github.com/MrEthical07/authcore/mail"
	otelexport "github.com/MrEthical07/authcore/metrics/export/otel"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/sink/kafka"
	"github.com/MrEthical07/authcore/sink/otellog"
	"github.com/MrEthical07/authcore/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server: exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	if cfg.AutoMigrate {
		if err := postgres.Migrate(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, postgres.ErrNoChange) {
			return err
		}
		logger.Info("server: migrations applied")
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxConns,
		MaxIdleConns:    cfg.DBIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	stores := postgres.New(db)
	activities := stores.Activities.WithLogger(logger)

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	var sinks authcore.MultiSink
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		producer := kafka.NewProducer(brokers, cfg.ActivityKafkaTopic, logger)
		defer producer.Close()
		sinks = append(sinks, producer)
		logger.Info("server: streaming activity to kafka", "topic", cfg.ActivityKafkaTopic)
	} else {
		sinks = append(sinks, activities)
	}
	if cfg.OTLPEndpoint != "" {
		sinks = append(sinks, otellog.New(providers.LoggerProvider))
	}

	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}
	notifier, err := newNotifier(cfg, engineCfg, logger)
	if err != nil {
		return err
	}

	engine, err := authcore.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithAccountStore(stores.Accounts).
		WithAPIKeyStore(stores.APIKeys).
		WithActivityStore(activities).
		WithActivitySink(sinks).
		WithNotifier(notifier).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("server: security posture",
		"production", report.ProductionMode,
		"access_ttl", report.AccessTTL,
		"refresh_ttl", report.RefreshTTL,
		"password_algorithm", report.PasswordAlgorithm,
		"rate_limiting", report.RateLimitingActive,
		"email_delivery", report.EmailDeliveryActive,
		"detailed_errors", report.DetailedErrors,
	)
	if report.ProductionMode && report.DetailedErrors {
		logger.Warn("server: detailed errors are enabled in production")
	}

	var metrics http.Handler
	if cfg.MetricsEnabled {
		metrics = promexport.Handler(engine)
		exporter, err := otelexport.NewExporter(providers.MeterProvider.Meter("github.com/MrEthical07/authcore"), engine)
		if err != nil {
			return err
		}
		defer exporter.Close()
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			TrustProxy:     cfg.TrustProxy,
			TracerProvider: providers.TracerProvider,
			Metrics:        metrics,
			Logger:         logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newNotifier(cfg *config.Config, engineCfg authcore.Config, logger *slog.Logger) (*mail.Notifier, error) {
	var sender mail.Sender = mail.LogSender{Logger: logger, IncludeLinks: !cfg.Production()}
	if cfg.SMTPEnabled() {
		smtp, err := mail.NewSMTPSender(cfg.SMTP())
		if err != nil {
			return nil, err
		}
		sender = smtp
	} else {
		logger.Warn("server: EMAIL_HOST not set, emails will be logged")
	}
	return mail.NewNotifier(sender, cfg.Notifier(engineCfg.Verification.TTL, engineCfg.PasswordReset.TTL))
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Production() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
