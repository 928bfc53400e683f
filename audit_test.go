package sessionguard

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, event AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) byType(eventType string) []AuditEvent {
	var out []AuditEvent
	for _, e := range s.snapshot() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditLogout})
	}
	d.Close()

	if got := len(sink.snapshot()); got != 10 {
		t.Fatalf("delivered = %d, want 10", got)
	}
}

func TestDispatcherEmitAfterCloseIsNoOp(t *testing.T) {
	sink := &recordingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: auditLogout})

	if got := len(sink.snapshot()); got != 0 {
		t.Fatalf("delivered = %d, want 0", got)
	}
}

func TestDispatcherDisabledReturnsNil(t *testing.T) {
	if d := newAuditDispatcher(AuditConfig{Enabled: false}, &recordingSink{}); d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}

	// A nil dispatcher is safe to use.
	var d *auditDispatcher
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	<-s.release
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event is picked up by the worker and blocks; the second fills
	// the buffer; everything after that must be dropped, not block.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: auditLogout})
	}

	deadline := time.After(2 * time.Second)
	for d.Dropped() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected dropped events")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	close(sink.release)
	d.Close()
}

func TestEngineEmitsLoginAudit(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")

	sink := &recordingSink{}
	cfg := testConfig()
	cfg.Audit.Enabled = true

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := WithClientIP(context.Background(), "9.9.9.9")
	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123", false); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "wrong-password-123", false); err == nil {
		t.Fatal("expected failed login")
	}

	engine.Close()

	successes := sink.byType(auditLoginSuccess)
	if len(successes) != 1 {
		t.Fatalf("login.success events = %d, want 1", len(successes))
	}
	ev := successes[0]
	if ev.UserID != "u1" || ev.Email != "alice@example.com" || ev.IP != "9.9.9.9" {
		t.Fatalf("unexpected success event: %+v", ev)
	}
	if !ev.Success {
		t.Fatal("success event must be marked successful")
	}
	if ev.Timestamp.IsZero() {
		t.Fatal("expected a stamped timestamp")
	}

	failures := sink.byType(auditLoginFailure)
	if len(failures) != 1 {
		t.Fatalf("login.failure events = %d, want 1", len(failures))
	}
	if failures[0].Success {
		t.Fatal("failure event must not be marked successful")
	}
}

func TestEngineEmitsReuseAudit(t *testing.T) {
	store := newMockStore()
	seedUser(t, store, "u1", "alice@example.com", "correct-password-123")

	sink := &recordingSink{}
	cfg := testConfig()
	cfg.Audit.Enabled = true

	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ctx := context.Background()
	artifacts, err := engine.Login(ctx, "alice@example.com", "correct-password-123", false)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, artifacts.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, artifacts.RefreshToken); err == nil {
		t.Fatal("expected replay to fail")
	}

	engine.Close()

	reuses := sink.byType(auditRefreshReuse)
	if len(reuses) != 1 {
		t.Fatalf("reuse events = %d, want 1", len(reuses))
	}
	if reuses[0].UserID != "u1" {
		t.Fatalf("UserID = %s, want u1", reuses[0].UserID)
	}
	if reuses[0].Metadata["family_revoked"] == "" {
		t.Fatal("expected family_revoked metadata")
	}
}

func TestJSONWriterSinkWritesLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{EventType: auditLogout, UserID: "u1"})
	sink.Emit(context.Background(), AuditEvent{EventType: auditLoginSuccess, UserID: "u2"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var ev AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if ev.EventType != auditLogout || ev.UserID != "u1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(4)

	sink.Emit(context.Background(), AuditEvent{EventType: auditLogout})

	select {
	case ev := <-sink.Events():
		if ev.EventType != auditLogout {
			t.Fatalf("EventType = %s, want %s", ev.EventType, auditLogout)
		}
	default:
		t.Fatal("expected a buffered event")
	}
}
