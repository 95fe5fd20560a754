package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Qdigital/rippled-database-stargate/internal/config"
	"github.com/Qdigital/rippled-database-stargate/internal/logging"
	"github.com/Qdigital/rippled-database-stargate/pkg/archive"
	"github.com/Qdigital/rippled-database-stargate/pkg/processor"
	"github.com/Qdigital/rippled-database-stargate/pkg/router"
	"github.com/Qdigital/rippled-database-stargate/pkg/storage"
	"github.com/Qdigital/rippled-database-stargate/pkg/xrpl"
)

const consumerName = "stargate-transactions"

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewDuckDB(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	nc, err := nats.Connect(cfg.NatsURL,
		nats.RetryOnFailedConnect(true), nats.MaxReconnects(-1))
	if err != nil {
		logger.Fatal("failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("failed to create JetStream context", zap.Error(err))
	}

	emitter, err := router.NewJetStreamEmitter(js)
	if err != nil {
		logger.Fatal("failed to create aggregation emitter", zap.Error(err))
	}

	var archiver processor.Archiver
	if cfg.ArchiveRawTransactions {
		writer, err := archive.NewWriter(ctx, cfg.Minio)
		if err != nil {
			logger.Fatal("failed to create archival writer", zap.Error(err))
		}
		archiver = writer
		logger.Info("raw transaction archival enabled",
			zap.String("bucket", cfg.Minio.Bucket))
	}

	proc := processor.New(
		storage.NewCoordinator(store),
		router.New(emitter, logger),
		archiver,
		logger)

	sub, err := js.Subscribe(cfg.TransactionSubject, func(msg *nats.Msg) {
		anchor := processor.NewNATSAnchor(msg)

		var tx xrpl.Transaction
		if err := json.Unmarshal(msg.Data, &tx); err != nil {
			logger.Error("undecodable transaction record discarded",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			if terr := msg.Term(); terr != nil {
				logger.Warn("failed to discard record", zap.Error(terr))
			}
			return
		}

		// Outcome reporting happens inside Process; errors here are
		// already logged and acked/nacked per record.
		_ = proc.Process(ctx, &tx, anchor)
	},
		nats.Durable(consumerName),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.AckWait(30*time.Second),
	)
	if err != nil {
		logger.Fatal("failed to subscribe to transaction feed",
			zap.String("subject", cfg.TransactionSubject),
			zap.Error(err))
	}

	logger.Info("stargate worker started",
		zap.String("subject", cfg.TransactionSubject),
		zap.String("database", cfg.DatabasePath))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()
	if err := sub.Drain(); err != nil {
		logger.Warn("failed to drain subscription", zap.Error(err))
	}
	logger.Info("stargate worker stopped")
}
