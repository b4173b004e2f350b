package goGuard

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/MrEthical07/goGuard/counter"
)

// AuditErrorCode is the coarse error class recorded on an [AuditEvent].
// Raw error text never reaches audit sinks.
type AuditErrorCode string

const (
	auditErrStoreUnavailable    AuditErrorCode = "store_unavailable"
	auditErrTimeout             AuditErrorCode = "timeout"
	auditErrVerifierUnavailable AuditErrorCode = "verifier_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identity string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		EventType: eventType,
		Identity:  identity,
		RequestID: RequestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(eventType, err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(eventType string, err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return auditErrTimeout
	case errors.Is(err, counter.ErrUnavailable),
		errors.Is(err, ErrStoreUnavailable):
		return auditErrStoreUnavailable
	case errors.Is(err, ErrVerifierUnavailable),
		eventType == AuditVerifierError:
		return auditErrVerifierUnavailable
	default:
		return auditErrInternal
	}
}
