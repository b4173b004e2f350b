package counter_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrEthical07/goGuard/counter"
)

func TestTracedStoreRecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	s := counter.NewTracedStore(counter.NewMemoryStore(nil), "memory", tp)
	ctx := context.Background()

	if _, err := s.IncrementOrCreate(ctx, "lf:alice@example.com", 1, time.Minute); err != nil {
		t.Fatalf("IncrementOrCreate: %v", err)
	}
	if _, _, err := s.Get(ctx, "lf:alice@example.com"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.IncrementOrCreate(ctx, "", 1, time.Minute); err == nil {
		t.Fatal("expected invalid key error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	if spans[0].Name != "counter.increment" || spans[1].Name != "counter.get" {
		t.Fatalf("unexpected span names %q, %q", spans[0].Name, spans[1].Name)
	}

	for _, kv := range spans[0].Attributes {
		if kv.Value.Type() == attribute.STRING && kv.Value.AsString() == "lf:alice@example.com" {
			t.Fatal("span must not carry the full key")
		}
		if kv.Key == "counter.key_prefix" && kv.Value.AsString() != "lf" {
			t.Fatalf("expected key prefix lf, got %q", kv.Value.AsString())
		}
	}
	if spans[2].Status.Code != codes.Error {
		t.Fatalf("expected error status on failed call, got %v", spans[2].Status.Code)
	}
}
