package main

import (
	"context"
	"flag"
	"log"
	"strconv"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Qdigital/rippled-database-stargate/internal/config"
	"github.com/Qdigital/rippled-database-stargate/internal/logging"
	"github.com/Qdigital/rippled-database-stargate/pkg/archive"
	"github.com/Qdigital/rippled-database-stargate/pkg/backfill"
	"github.com/Qdigital/rippled-database-stargate/pkg/history"
	"github.com/Qdigital/rippled-database-stargate/pkg/processor"
	"github.com/Qdigital/rippled-database-stargate/pkg/router"
	"github.com/Qdigital/rippled-database-stargate/pkg/storage"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	start := flag.Uint("start", uint(cfg.StartIndex), "first ledger index to replay (required)")
	stop := flag.String("stop", cfg.StopIndex, "last ledger index to replay, or \"validated\"")
	flag.Parse()

	if *start == 0 {
		log.Fatal("a start index is required")
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	store, err := storage.NewDuckDB(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	nc, err := nats.Connect(cfg.NatsURL)
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
	}

	source, err := history.Dial(ctx, cfg.RippledURL)
	if err != nil {
		logger.Fatal("failed to connect to rippled", zap.Error(err))
	}
	defer source.Close()

	proc := processor.New(
		storage.NewCoordinator(store),
		router.New(emitter, logger),
		archiver,
		logger)

	var opts []backfill.Option
	if *stop != config.StopValidated {
		stopIndex, err := strconv.ParseUint(*stop, 10, 32)
		if err != nil {
			logger.Fatal("invalid stop index", zap.String("stop", *stop), zap.Error(err))
		}
		opts = append(opts, backfill.WithStopIndex(uint32(stopIndex)))
	}

	driver := backfill.NewDriver(source, proc, uint32(*start), logger, opts...)
	if err := driver.Run(ctx); err != nil {
		logger.Fatal("backfill halted", zap.Error(err))
	}
}
