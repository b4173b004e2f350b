package observability

import (
	"context"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/getsentry/sentry-go"
)

// InitSentry configures the global Sentry client. An empty dsn disables it.
func InitSentry(dsn, environment, release string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// SentrySink reports counter store outages and verifier faults. Policy
// events such as lockouts are not errors and are ignored.
type SentrySink struct {
	hub *sentry.Hub
}

// NewSentrySink reports through hub, or the global hub when nil.
func NewSentrySink(hub *sentry.Hub) *SentrySink {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentrySink{hub: hub}
}

func (s *SentrySink) Emit(_ context.Context, event goGuard.AuditEvent) {
	switch event.EventType {
	case goGuard.AuditStoreUnavailable, goGuard.AuditVerifierError:
	default:
		return
	}

	hub := s.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("event_type", event.EventType)
		scope.SetTag("error_code", event.Error)
		scope.SetTag("audit_id", event.ID)
		if event.RequestID != "" {
			scope.SetTag("request_id", event.RequestID)
		}
		for k, v := range event.Metadata {
			scope.SetExtra(k, v)
		}
		hub.CaptureMessage("goguard: " + event.EventType)
	})
}
