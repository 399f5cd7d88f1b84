// authcore-activity-worker consumes activity events from Kafka and writes
// them to the Postgres activity log. Inserts are idempotent on event ID, so
// redelivery after a crash is harmless.
//
// Requires DATABASE_URL and KAFKA_BROKERS; ACTIVITY_KAFKA_TOPIC and
// KAFKA_GROUP_ID have defaults.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/sink/kafka"
	"github.com/MrEthical07/authcore/store/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "error", err)
		os.Exit(1)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) == 0 {
		logger.Error("worker: KAFKA_BROKERS is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns: cfg.DBMaxConns,
		MaxIdleConns: cfg.DBIdleConns,
	})
	if err != nil {
		logger.Error("worker: postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	activities := postgres.NewActivities(db, logger)

	consumer := kafka.NewConsumer(brokers, cfg.ActivityKafkaTopic, cfg.KafkaGroupID, logger)
	defer consumer.Close()

	logger.Info("worker: consuming activity events", "topic", cfg.ActivityKafkaTopic, "group", cfg.KafkaGroupID)
	if err := consumer.Run(ctx, activities.Insert); err != nil {
		logger.Error("worker: stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker: stopped")
}
