// Package otel publishes goGuard engine metrics through an OpenTelemetry
// Meter. The caller owns the MeterProvider; [NewOTelExporter] only registers
// observable instruments and a single collection callback.
package otel
