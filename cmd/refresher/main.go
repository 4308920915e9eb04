package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"confirmtx/internal/application"
	"confirmtx/internal/config"
	"confirmtx/internal/infrastructure/ethrpc"
	"confirmtx/internal/infrastructure/kafka"
	"confirmtx/internal/infrastructure/logging"
	"confirmtx/internal/infrastructure/storage"
	"confirmtx/internal/infrastructure/telemetry"
)

var version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = "logs/refresher.log"
	}
	logWriter, err := logging.Init(logging.Config{
		Service:    "refresher",
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

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{URL: cfg.RPCURL})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:     cfg.KafkaBrokers,
		TopicPrefix: cfg.KafkaTopicPrefix,
	})
	if err != nil {
		slog.Error("kafka error", "err", err)
		os.Exit(1)
	}
	defer producer.Close()

	shutdownTracing, err := telemetry.InitTracer(context.Background(), telemetry.TracingConfig{
		ServiceName:    "confirmtx-refresher",
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

	refresher, err := application.NewRefresher(rpcClient, producer, store, refreshObserver{}, application.RefresherConfig{
		SelectedAddress: cfg.SelectedAddress,
		PollInterval:    cfg.PollInterval,
	})
	if err != nil {
		slog.Error("refresher error", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("balance refresher started",
		"rpc", cfg.RPCURL,
		"poll", cfg.PollInterval,
		"selected", cfg.SelectedAddress,
	)
	if err := refresher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("refresher stopped", "err", err)
	}
}

type refreshObserver struct{}

func (refreshObserver) OnRefresh(network string, checked int, changed int) {
	if changed == 0 {
		slog.Debug("balances unchanged", "network", network, "checked", checked)
		return
	}
	slog.Info("balances refreshed",
		"network", network,
		"checked", checked,
		"changed", changed,
	)
}
