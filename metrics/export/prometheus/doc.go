// Package prometheus exports goGuard engine metrics as a Prometheus collector.
//
// Counters are named goguard_*_total and the login latency histogram is
// goguard_login_latency_seconds. [PrometheusExporter.Handler] serves them from
// a private registry; callers that own a registry can register the exporter
// directly.
package prometheus
