package otel

import (
	"context"
	"sync"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goGuard.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goGuard.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goGuard.MetricsSnapshot{
		Counters:   make(map[goGuard.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goGuard.MetricID][]uint64, len(f.snapshot.Histograms)),
		LatencySum: make(map[goGuard.MetricID]time.Duration, len(f.snapshot.LatencySum)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	for k, v := range f.snapshot.LatencySum {
		out.LatencySum[k] = v
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricLockoutTriggered: 3,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
			LatencySum: map[goGuard.MetricID]time.Duration{
				goGuard.MetricLoginLatency: 2 * time.Second,
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goguard-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)

	sum, ok := got["goguard_lockout_triggered_total"].(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected lockout counter %#v", got["goguard_lockout_triggered_total"])
	}

	count, ok := got["goguard_login_latency_seconds_count"].(metricdata.Gauge[int64])
	if !ok || count.DataPoints[0].Value != 8 {
		t.Fatalf("unexpected histogram count %#v", got["goguard_login_latency_seconds_count"])
	}
	latSum, ok := got["goguard_login_latency_seconds_sum"].(metricdata.Gauge[float64])
	if !ok || latSum.DataPoints[0].Value != 2 {
		t.Fatalf("unexpected histogram sum %#v", got["goguard_login_latency_seconds_sum"])
	}

	dropped, ok := got["goguard_audit_dropped_total"].(metricdata.Sum[int64])
	if !ok || dropped.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected audit dropped %#v", got["goguard_audit_dropped_total"])
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()

	if _, err := NewOTelExporterFromSource(provider.Meter("goguard-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()

	src := &fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricLoginRejected: 1,
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goguard-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goGuard.MetricLoginRejected] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
