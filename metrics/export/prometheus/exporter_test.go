package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

type fakeSource struct {
	snapshot goGuard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goGuard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters: map[goGuard.MetricID]uint64{
				goGuard.MetricLoginRejected:     7,
				goGuard.MetricRateLimitExceeded: 3,
			},
			Histograms: map[goGuard.MetricID][]uint64{
				goGuard.MetricLoginLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			LatencySum: map[goGuard.MetricID]time.Duration{
				goGuard.MetricLoginLatency: 1500 * time.Millisecond,
			},
		},
		dropped: 2,
	}
}

func TestCollectCounters(t *testing.T) {
	exp := NewPrometheusExporterFromSource(sampleSource())

	expected := `
# HELP goguard_login_rejected_total Login attempts rejected for wrong credentials.
# TYPE goguard_login_rejected_total counter
goguard_login_rejected_total 7
# HELP goguard_audit_dropped_total Audit events dropped due to dispatcher backpressure.
# TYPE goguard_audit_dropped_total counter
goguard_audit_dropped_total 2
`
	if err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"goguard_login_rejected_total", "goguard_audit_dropped_total"); err != nil {
		t.Fatal(err)
	}

	want := len(internaldefs.CounterDefs) + len(internaldefs.HistogramDefs) + 1
	if got := testutil.CollectAndCount(exp); got != want {
		t.Fatalf("expected %d series, got %d", want, got)
	}
}

func TestCollectLatencyHistogram(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(NewPrometheusExporterFromSource(sampleSource()))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var hist *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "goguard_login_latency_seconds" {
			hist = mf.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil {
		t.Fatal("latency histogram not exported")
	}
	if hist.GetSampleCount() != 36 {
		t.Fatalf("expected 36 samples, got %d", hist.GetSampleCount())
	}
	if hist.GetSampleSum() != 1.5 {
		t.Fatalf("expected sum 1.5, got %v", hist.GetSampleSum())
	}
	buckets := hist.GetBucket()
	if len(buckets) != len(goGuard.LatencyBucketBounds) {
		t.Fatalf("expected %d finite buckets, got %d", len(goGuard.LatencyBucketBounds), len(buckets))
	}
	if buckets[0].GetUpperBound() != 0.005 || buckets[0].GetCumulativeCount() != 1 {
		t.Fatalf("unexpected first bucket %v", buckets[0])
	}
	if last := buckets[len(buckets)-1]; last.GetCumulativeCount() != 28 {
		t.Fatalf("expected 28 samples at 0.5s, got %d", last.GetCumulativeCount())
	}
}

func TestCollectSkipsDisabledHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goGuard.MetricsSnapshot{
			Counters:   map[goGuard.MetricID]uint64{},
			Histograms: map[goGuard.MetricID][]uint64{},
		},
	})
	want := len(internaldefs.CounterDefs) + 1
	if got := testutil.CollectAndCount(exp); got != want {
		t.Fatalf("expected %d series without histograms, got %d", want, got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	exp := NewPrometheusExporterFromSource(sampleSource())

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected text exposition, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "goguard_rate_limit_exceeded_total 3") {
		t.Fatalf("missing counter in body:\n%s", rec.Body.String())
	}
}

func BenchmarkCollect(b *testing.B) {
	exp := NewPrometheusExporterFromSource(sampleSource())
	ch := make(chan prometheus.Metric, 64)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exp.Collect(ch)
		for len(ch) > 0 {
			<-ch
		}
	}
}
