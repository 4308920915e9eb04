package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"confirmtx/internal/config"
	"confirmtx/internal/infrastructure/ethrpc"
	confirmkafka "confirmtx/internal/infrastructure/kafka"
	"confirmtx/internal/infrastructure/logging"
	"confirmtx/internal/infrastructure/storage"
	"confirmtx/internal/infrastructure/telemetry"
	"confirmtx/internal/interfaces/httpapi"

	"github.com/segmentio/kafka-go"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "logs/confirmd.log"
	}
	logWriter, err := logging.Init(logging.Config{
		Service:    "confirmd",
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       logFile,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
	} else if logWriter != nil {
		defer logWriter.Close()
	}

	store, err := storage.Open(cfg)
	if err != nil {
		slog.Error("db error", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracingConfig{
		ServiceName:    "confirmtx-confirmd",
		ServiceVersion: version,
		Endpoint:       cfg.OtelEndpoint,
	})
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracing(ctx); err != nil {
				slog.Warn("tracing shutdown error", "err", err)
			}
		}()
	}

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{URL: cfg.RPCURL})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	metrics := httpapi.NewMetrics()
	httpServer, err := httpapi.NewServer(cfg, store, rpcClient, metrics, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		slog.Error("http server error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		slog.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
			slog.Error("http server error", "err", err)
			cancel()
		}
	}()

	var wg sync.WaitGroup
	readers := make([]*kafka.Reader, 0, len(cfg.Networks))
	for _, network := range cfg.Networks {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    confirmkafka.TopicForNetwork(cfg.KafkaTopicPrefix, network),
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		readers = append(readers, reader)

		c := &consumer{
			reader:        reader,
			repo:          store,
			metrics:       metrics,
			network:       network,
			batchSize:     cfg.BatchSize,
			flushInterval: 500 * time.Millisecond,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("consumer stopped", "network", network, "err", err)
			}
		}()
	}

	slog.Info("approval streaming started", "networks", cfg.Networks, "group", cfg.KafkaGroupID)
	<-ctx.Done()
	for _, reader := range readers {
		_ = reader.Close()
	}
	wg.Wait()
}
