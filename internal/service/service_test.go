package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/service"
)

// ─────────────────────────────────────────────────────────────
// runGuard
// ─────────────────────────────────────────────────────────────

func TestRunGuardOneRunPerWorkspace(t *testing.T) {
	var g service.ExportedRunGuard

	if !g.Acquire("ws-1") {
		t.Fatal("first acquire failed")
	}
	if g.Acquire("ws-1") {
		t.Fatal("second acquire of the same workspace succeeded")
	}
	if !g.Acquire("ws-2") {
		t.Fatal("other workspace blocked")
	}
	if !g.Busy("ws-1") {
		t.Error("ws-1 should be busy")
	}
	g.Release("ws-1")
	g.Release("ws-2")
	g.Release("ws-2") // no-op

	if g.Busy("ws-1") || !g.Acquire("ws-1") {
		t.Fatal("acquire after release failed")
	}
	g.Release("ws-1")
}

func TestRunGuardDone(t *testing.T) {
	var g service.ExportedRunGuard

	select {
	case <-g.Done("idle"):
	default:
		t.Fatal("Done of an idle workspace should be closed")
	}

	g.Acquire("ws")
	done := g.Done("ws")
	select {
	case <-done:
		t.Fatal("Done closed while held")
	default:
	}
	g.Release("ws")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Done not closed after release")
	}
}

func TestRunGuardWaitAll(t *testing.T) {
	var g service.ExportedRunGuard
	g.Acquire("a")
	g.Acquire("b")

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	g.Release("a")
	time.Sleep(20 * time.Millisecond)
	g.Release("b")

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("WaitAll did not return")
	}
	if g.Busy("a") || g.Busy("b") {
		t.Error("guard still busy")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "test:event" {
		t.Errorf("expected 'test:event', got %q", m.Events[0].Event)
	}
}

func TestMockEmitter_Named(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "a", 1)
	m.Emit(ctx, "b", 2)
	m.Emit(ctx, "a", 3)

	got := m.Named("a")
	if len(got) != 2 || got[1].Data != 3 {
		t.Errorf("Named(a) = %+v", got)
	}
}

func TestMockEmitter_LastEvent(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "a", "first")
	m.Emit(ctx, "b", "second")

	if m.Events[len(m.Events)-1].Event != "b" {
		t.Errorf("expected last event 'b', got %q", m.Events[len(m.Events)-1].Event)
	}
}
