package telemetry

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// headerCarrier adapts kafka message headers to a TextMapCarrier. Keys match
// case-insensitively.
type headerCarrier []kafka.Header

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)

func (c *headerCarrier) Get(key string) string {
	for _, header := range *c {
		if strings.EqualFold(header.Key, key) {
			return string(header.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i := range *c {
		if strings.EqualFold((*c)[i].Key, key) {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c))
	for _, header := range *c {
		keys = append(keys, header.Key)
	}
	return keys
}

func InjectKafkaHeaders(ctx context.Context, headers *[]kafka.Header) {
	carrier := headerCarrier(*headers)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	*headers = carrier
}

func ExtractKafkaHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := headerCarrier(headers)
	return otel.GetTextMapPropagator().Extract(ctx, &carrier)
}

// ConsumerContext restores the producer's trace from msg. It prefers the
// propagation headers and falls back to the trace id carried in the payload.
func ConsumerContext(ctx context.Context, msg kafka.Message, payloadTraceID string) context.Context {
	extracted := ExtractKafkaHeaders(ctx, msg.Headers)
	if trace.SpanContextFromContext(extracted).IsValid() {
		return extracted
	}
	if payloadTraceID == "" {
		return ctx
	}
	if traced, ok := ContextWithTraceID(ctx, payloadTraceID); ok {
		return traced
	}
	return ctx
}
