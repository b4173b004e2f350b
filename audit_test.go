package goGuard

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

type panicSink struct{}

func (panicSink) Emit(context.Context, AuditEvent) {
	panic("sink exploded")
}

func auditConfig() Config {
	cfg := DefaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 32
	return cfg
}

// drain closes the engine so queued events reach the sink, then collects them.
func drain(e *testEngine, sink *ChannelSink) []AuditEvent {
	e.Close()
	var events []AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	e := newTestEngine(t, DefaultConfig(), sink)

	mustLogin(t, e, testIdentity, "wrong")
	e.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditLockoutTriggeredEvent(t *testing.T) {
	sink := NewChannelSink(32)
	e := newTestEngine(t, auditConfig(), sink)

	ctx := WithRequestID(context.Background(), "req-7")
	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		if _, err := e.Login(ctx, "Alice", "hunter2-secret"); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}

	events := drain(e, sink)
	if len(events) != DefaultMaxFailedAttempts {
		t.Fatalf("expected %d events, got %d", DefaultMaxFailedAttempts, len(events))
	}

	var triggered *AuditEvent
	for i := range events {
		ev := events[i]
		if _, err := uuid.Parse(ev.ID); err != nil {
			t.Fatalf("event id %q is not a uuid: %v", ev.ID, err)
		}
		if ev.RequestID != "req-7" || ev.Identity != testIdentity || ev.Success {
			t.Fatalf("unexpected event fields %+v", ev)
		}
		if !ev.Timestamp.Equal(e.clock.Now()) {
			t.Fatalf("expected engine clock timestamp, got %s", ev.Timestamp)
		}
		if ev.EventType == AuditLockoutTriggered {
			triggered = &events[i]
		}
	}
	if triggered == nil {
		t.Fatal("expected a lockout_triggered event")
	}
	if triggered.Metadata["failures"] != "5" || triggered.Metadata["retry_after_s"] != "300" {
		t.Fatalf("unexpected lockout metadata %v", triggered.Metadata)
	}
}

func TestAuditStoreOutageCarriesErrorCode(t *testing.T) {
	sink := NewChannelSink(32)
	e := newTestEngine(t, auditConfig(), sink)
	e.store.down.Store(true)

	mustLogin(t, e, testIdentity, "wrong")

	var outage *AuditEvent
	events := drain(e, sink)
	for i := range events {
		if events[i].EventType == AuditStoreUnavailable {
			outage = &events[i]
			break
		}
	}
	if outage == nil {
		t.Fatalf("expected a store_unavailable event in %+v", events)
	}
	if outage.Error != string(auditErrStoreUnavailable) {
		t.Fatalf("expected error code %q, got %q", auditErrStoreUnavailable, outage.Error)
	}
	if strings.Contains(outage.Error, "connection refused") {
		t.Fatal("raw store error leaked into the audit event")
	}
}

func TestAuditNoSecretsInEvents(t *testing.T) {
	sink := NewChannelSink(64)
	e := newTestEngine(t, auditConfig(), sink)
	const needle = "hunter2-very-secret"

	for i := 0; i < DefaultMaxFailedAttempts+1; i++ {
		mustLogin(t, e, testIdentity, needle)
	}
	e.verifier.fault.Store(true)
	_, _ = e.Login(context.Background(), "bob", needle)

	events := drain(e, sink)
	if len(events) == 0 {
		t.Fatal("expected audit events")
	}
	for _, ev := range events {
		if strings.Contains(ev.Error, needle) {
			t.Fatalf("secret leaked in error field of %s", ev.EventType)
		}
		for k, v := range ev.Metadata {
			if strings.Contains(k, needle) || strings.Contains(v, needle) {
				t.Fatalf("secret leaked in metadata of %s", ev.EventType)
			}
		}
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}
	if dispatcher.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		dispatcher.Emit(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestAuditBlockingEmitHonoursContext(t *testing.T) {
	sink := newGateSink()
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink, nil)
	defer func() {
		close(sink.gate)
		dispatcher.Close()
	}()

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	dispatcher.Emit(ctx, AuditEvent{EventType: "e3"})

	if dispatcher.Dropped() == 0 {
		t.Fatal("expected an abandoned emit to count as dropped")
	}
}

func TestAuditDispatcherSurvivesPanickingSink(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, panicSink{}, nil)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
	dispatcher.Close()

	if got := dispatcher.panics.Load(); got != 2 {
		t.Fatalf("expected 2 recovered panics, got %d", got)
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: AuditLoginLockedOut,
		Identity:  testIdentity,
	})

	if !buf.Contains(`"event_type":"login_locked_out"`) {
		t.Fatal("expected JSON log line to contain event type")
	}
	if !buf.Contains(`"identity":"alice"`) {
		t.Fatal("expected JSON log line to contain identity")
	}
	if !buf.Contains("}\n") {
		t.Fatal("expected newline-terminated records")
	}
}

func TestAuditMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), AuditEvent{EventType: "e1"})

	if a.Count() != 1 || b.Count() != 1 {
		t.Fatalf("expected both sinks to receive the event, got %d and %d", a.Count(), b.Count())
	}
}

func TestAuditDispatcherCloseIdempotentAndEmitAfterCloseSafe(t *testing.T) {
	dispatcher := newAuditDispatcher(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{}, nil)

	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e1"})
	dispatcher.Close()
	dispatcher.Close()
	dispatcher.Emit(context.Background(), AuditEvent{EventType: "e2"})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) Contains(v string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Contains(string(b.buf), v)
}
