// Package main provides the archive worker entry point: it copies realtime row changes into ClickHouse.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Arrogantx/slapper/internal/config"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/retry"
	"github.com/Arrogantx/slapper/internal/storage"
	"github.com/Arrogantx/slapper/internal/worker"
)

// brokerSubscriber narrows the broker's concrete subscription to a realtime.Feed
type brokerSubscriber struct {
	broker *realtime.Broker
}

func (s brokerSubscriber) Subscribe(ctx context.Context, tables ...string) (realtime.Feed, error) {
	sub, err := s.broker.Subscribe(ctx, tables...)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithField("service", "archive-worker")

	logger.Info("Connecting to databases...")

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	retryCfg := retry.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.Archive.MaxRetries + 1

	archiver, err := worker.NewArchiveWorker(&worker.ArchiveWorkerConfig{
		Subscriber:    brokerSubscriber{broker: realtime.NewBroker(redis.Client(), logger)},
		Archive:       storage.NewEventArchive(clickhouse),
		BatchSize:     cfg.Archive.BatchSize,
		FlushInterval: cfg.Archive.FlushInterval,
		Retry:         retryCfg,
		Logger:        logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create archive worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := archiver.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start archive worker")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down archive worker...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := archiver.Stop(stopCtx); err != nil {
		logger.WithError(err).Error("Archive worker did not stop cleanly")
	}

	stats := archiver.Stats()
	logger.WithFields(map[string]interface{}{
		"archived": stats.Archived,
		"dropped":  stats.Dropped,
		"resyncs":  stats.Resyncs,
	}).Info("Archive worker exited")
}
