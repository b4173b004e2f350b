package goGuard

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
//
// MetricID values are stable for the life of a release and are used as
// indexes by the exporters under metrics/export.
type MetricID uint16

const (
	// MetricLoginAuthenticated counts logins that passed verification.
	MetricLoginAuthenticated MetricID = iota
	// MetricLoginRejected counts wrong-credential attempts below the threshold.
	MetricLoginRejected
	// MetricLoginLockedOut counts attempts answered with a lockout.
	MetricLoginLockedOut
	// MetricLoginInvalidInput counts attempts with a malformed identity or empty secret.
	MetricLoginInvalidInput
	// MetricLockoutTriggered counts threshold crossings.
	MetricLockoutTriggered
	// MetricLockoutCleared counts administrative unlocks.
	MetricLockoutCleared
	// MetricRateLimitAllowed counts requests admitted by a rate limit window.
	MetricRateLimitAllowed
	// MetricRateLimitExceeded counts requests rejected by a rate limit window.
	MetricRateLimitExceeded
	// MetricStoreUnavailable counts counter store failures seen by any flow.
	MetricStoreUnavailable
	// MetricFailOpen counts decisions that proceeded without the counter store.
	MetricFailOpen
	// MetricVerifierError counts credential verifier faults.
	MetricVerifierError
	// MetricLoginLatency is the login latency histogram.
	MetricLoginLatency
	metricIDCount
)

// MetricCount is the number of defined metric IDs.
const MetricCount = int(metricIDCount)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// LatencyBucketBounds are the inclusive upper bounds of the latency
// histogram buckets. The last bucket is unbounded.
var LatencyBucketBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sumNs   uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a lock-free set of counters and one latency histogram.
//
// A nil or disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
	// LatencySum is the total observed duration per histogram.
	LatencySum map[MetricID]time.Duration
}

// NewMetrics creates a metrics set from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample. Only [MetricLoginLatency] carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricLoginLatency {
		return
	}
	if d < 0 {
		d = 0
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	atomic.AddUint64(&m.histograms[id].sumNs, uint64(d))
}

// Value returns the current counter value for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
			LatencySum: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
		LatencySum: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricLoginLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		h := &m.histograms[MetricLoginLatency]
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&h.buckets[i])
		}
		s.Histograms[MetricLoginLatency] = buckets
		s.LatencySum[MetricLoginLatency] = time.Duration(atomic.LoadUint64(&h.sumNs))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
