// Package observability forwards selected goGuard audit events to external
// systems: infrastructure faults to Sentry and lockouts to an MQTT broker.
// Both sinks run on the engine's audit dispatcher goroutine.
package observability
