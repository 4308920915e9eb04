package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"confirmtx/internal/domain"
	"confirmtx/internal/infrastructure/telemetry"
	"confirmtx/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTopicPrefix = "confirmtx-approvals"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes approval and balance events to one topic per network.
type Producer struct {
	writer messageWriter
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 200 * time.Millisecond,
	}
	return newProducer(writer, cfg.TopicPrefix), nil
}

func newProducer(writer messageWriter, prefix string) *Producer {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultTopicPrefix
	}
	return &Producer{writer: writer, prefix: prefix}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishBalances emits one balance_updated event per account.
func (p *Producer) PublishBalances(ctx context.Context, network string, accounts []domain.Account) error {
	events := make([]streaming.Message, 0, len(accounts))
	for _, account := range accounts {
		events = append(events, streaming.Message{
			Type:    streaming.MessageTypeBalance,
			Network: network,
			Address: account.Address,
			Balance: account.Balance,
		})
	}
	return p.PublishEvents(ctx, network, events)
}

// PublishEvents writes events to the network's topic in order. Messages are
// keyed so that every event about one approval lands on the same partition.
func (p *Producer) PublishEvents(ctx context.Context, network string, events []streaming.Message) error {
	if len(events) == 0 {
		return nil
	}
	tracer := otel.Tracer("confirmtx/kafka")
	messages := make([]kafka.Message, 0, len(events))
	spans := make([]trace.Span, 0, len(events))
	endAll := func(err error) {
		for _, span := range spans {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()
		}
	}

	for _, event := range events {
		if event.Network == "" {
			event.Network = network
		}
		traceCtx := ctx
		if traceID, traceIDHex, ok := telemetry.NewTraceID(); ok {
			event.TraceID = traceIDHex
			if spanCtx, ok := telemetry.NewSpanContext(traceID); ok {
				traceCtx = trace.ContextWithSpanContext(ctx, spanCtx)
			}
		}
		traceCtx, span := tracer.Start(traceCtx, "publish."+string(event.Type), trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("network", event.Network),
			attribute.String("approval.id", event.ID),
			attribute.String("address", event.Address),
		)
		spans = append(spans, span)

		payload, err := streaming.Encode(event)
		if err != nil {
			endAll(err)
			return fmt.Errorf("encode %s event: %w", event.Type, err)
		}
		headers := make([]kafka.Header, 0, 2)
		telemetry.InjectKafkaHeaders(traceCtx, &headers)
		messages = append(messages, kafka.Message{
			Topic:   p.TopicForNetwork(network),
			Key:     []byte(EventKey(event)),
			Value:   payload,
			Headers: headers,
		})
	}

	err := p.writer.WriteMessages(ctx, messages...)
	endAll(err)
	return err
}

func (p *Producer) TopicForNetwork(network string) string {
	return TopicForNetwork(p.prefix, network)
}

func TopicForNetwork(prefix, network string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultTopicPrefix
	}
	return fmt.Sprintf("%s-%s", prefix, network)
}

// EventKey is the partition key of an event.
func EventKey(event streaming.Message) string {
	if event.Type == streaming.MessageTypeBalance {
		return "balance:" + strings.ToLower(event.Address)
	}
	kind := event.Kind
	if event.Type == streaming.MessageTypeAdded {
		if parsed, err := event.ItemKind(); err == nil {
			kind = parsed
		}
	}
	return fmt.Sprintf("%s:%s", kind, event.ID)
}
