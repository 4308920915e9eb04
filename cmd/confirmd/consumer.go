package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"confirmtx/internal/application"
	"confirmtx/internal/infrastructure/telemetry"
	"confirmtx/internal/interfaces/httpapi"
	"confirmtx/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// consumer applies the approval events of one network topic to the store.
// Offsets are committed only after the batch holding them was applied.
type consumer struct {
	reader        messageReader
	repo          application.ApprovalRepository
	metrics       *httpapi.Metrics
	network       string
	batchSize     int
	flushInterval time.Duration
}

func (c *consumer) Run(ctx context.Context) error {
	batch := application.NewBatch()
	if c.batchSize <= 0 {
		c.batchSize = 100
	}
	if c.flushInterval <= 0 {
		c.flushInterval = 500 * time.Millisecond
	}

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, c.flushInterval)
		message, err := c.reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				c.flush(context.WithoutCancel(ctx), batch)
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				c.flush(ctx, batch)
				continue
			}
			c.metrics.IncKafkaFetchErr()
			slog.Error("kafka fetch error", "network", c.network, "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		c.metrics.ObserveKafkaMessage(message.Topic, message.Offset, message.Time)

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			// A poison message is skipped so it cannot block the partition.
			slog.Warn("message decode error", "network", c.network, "offset", message.Offset, "err", err)
			c.metrics.IncKafkaDecodeErr()
			_ = c.reader.CommitMessages(ctx, message)
			continue
		}
		if decoded.Network != "" && decoded.Network != c.network {
			slog.Warn("unexpected network on topic", "topic", message.Topic, "network", decoded.Network)
		}
		c.trace(ctx, message, decoded)

		batch.Add(decoded, message)
		if batch.Len() >= c.batchSize {
			c.flush(ctx, batch)
		}
	}
}

func (c *consumer) flush(ctx context.Context, batch *application.Batch) {
	size := batch.Len()
	if size == 0 {
		return
	}
	if err := batch.Flush(ctx, c.repo, c.reader); err != nil {
		c.metrics.IncKafkaApplyErr()
		slog.Error("batch flush error", "network", c.network, "size", size, "err", err)
		return
	}
	c.metrics.OnBatchFlushed(size)
}

func (c *consumer) trace(ctx context.Context, message kafka.Message, decoded streaming.Message) {
	messageCtx := telemetry.ConsumerContext(ctx, message, decoded.TraceID)
	_, span := otel.Tracer("confirmtx/confirmd").Start(messageCtx, "consume."+string(decoded.Type), trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("network", c.network),
		attribute.String("approval.id", decoded.ID),
		attribute.Int64("kafka.offset", message.Offset),
	)
	span.End()
}
