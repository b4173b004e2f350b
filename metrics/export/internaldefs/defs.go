package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events shed by the audit dispatcher.
const AuditDroppedName = "goguard_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: goGuard.MetricLoginAuthenticated, Name: "goguard_login_authenticated_total", Help: "Login attempts that passed verification."},
	{ID: goGuard.MetricLoginRejected, Name: "goguard_login_rejected_total", Help: "Login attempts rejected for wrong credentials."},
	{ID: goGuard.MetricLoginLockedOut, Name: "goguard_login_locked_out_total", Help: "Login attempts answered with a lockout."},
	{ID: goGuard.MetricLoginInvalidInput, Name: "goguard_login_invalid_input_total", Help: "Login attempts with malformed input."},
	{ID: goGuard.MetricLockoutTriggered, Name: "goguard_lockout_triggered_total", Help: "Identities that crossed the failure threshold."},
	{ID: goGuard.MetricLockoutCleared, Name: "goguard_lockout_cleared_total", Help: "Administrative unlocks."},
	{ID: goGuard.MetricRateLimitAllowed, Name: "goguard_rate_limit_allowed_total", Help: "Requests admitted by a rate limit window."},
	{ID: goGuard.MetricRateLimitExceeded, Name: "goguard_rate_limit_exceeded_total", Help: "Requests rejected by a rate limit window."},
	{ID: goGuard.MetricStoreUnavailable, Name: "goguard_store_unavailable_total", Help: "Counter store failures."},
	{ID: goGuard.MetricFailOpen, Name: "goguard_fail_open_total", Help: "Decisions taken without the counter store."},
	{ID: goGuard.MetricVerifierError, Name: "goguard_verifier_error_total", Help: "Credential verifier faults."},
}

var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricLoginLatency, Name: "goguard_login_latency_seconds", Help: "Login latency."},
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(goGuard.LatencyBucketBounds) + 1

// HistogramBoundSuffix is the per-bucket name suffix used where labels are
// not available.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(goGuard.LatencyBucketBounds))
	for i, b := range goGuard.LatencyBucketBounds {
		out[i] = b.Seconds()
	}
	return out
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
