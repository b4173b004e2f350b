package counter

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/goGuard/counter"

// TracedStore records one span per store call. Only the key prefix (the text
// before the first ':') is attached, never the identity part of the key.
type TracedStore struct {
	next    Store
	tracer  trace.Tracer
	backend string
}

// NewTracedStore wraps next. A nil provider uses the global tracer provider.
func NewTracedStore(next Store, backend string, provider trace.TracerProvider) *TracedStore {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TracedStore{
		next:    next,
		tracer:  provider.Tracer(tracerName),
		backend: backend,
	}
}

func keyPrefix(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return ""
}

func (s *TracedStore) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "counter."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("counter.backend", s.backend),
			attribute.String("counter.key_prefix", keyPrefix(key)),
		),
	)
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *TracedStore) Get(ctx context.Context, key string) (count int64, found bool, err error) {
	ctx, span := s.start(ctx, "get", key)
	defer func() { finish(span, err) }()

	count, found, err = s.next.Get(ctx, key)
	span.SetAttributes(attribute.Bool("counter.found", found))
	return count, found, err
}

func (s *TracedStore) IncrementOrCreate(ctx context.Context, key string, delta int64, ttlOnCreate time.Duration) (count int64, err error) {
	ctx, span := s.start(ctx, "increment", key)
	defer func() { finish(span, err) }()

	count, err = s.next.IncrementOrCreate(ctx, key, delta, ttlOnCreate)
	span.SetAttributes(attribute.Int64("counter.count", count))
	return count, err
}

func (s *TracedStore) RemainingTTL(ctx context.Context, key string) (ttl time.Duration, err error) {
	ctx, span := s.start(ctx, "ttl", key)
	defer func() { finish(span, err) }()

	return s.next.RemainingTTL(ctx, key)
}

func (s *TracedStore) Expire(ctx context.Context, key string, ttl time.Duration) (err error) {
	ctx, span := s.start(ctx, "expire", key)
	defer func() { finish(span, err) }()

	return s.next.Expire(ctx, key, ttl)
}

func (s *TracedStore) Delete(ctx context.Context, key string) (err error) {
	ctx, span := s.start(ctx, "delete", key)
	defer func() { finish(span, err) }()

	return s.next.Delete(ctx, key)
}
