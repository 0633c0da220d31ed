package service

import (
	"context"
	"log"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from their front ends
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for emitting events to whatever front end
// hosts the services (MCP notifications, the HTTP event log, the CLI).
// Services receive this interface instead of a concrete transport,
// which makes them independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Event names emitted by the services.
const (
	EventWorkspaceChanged   = "workspace:changed"
	EventDefinitionsChanged = "definitions:changed"
	EventRunStatus          = "run:status"
	EventRunFinished        = "run:finished"
	EventScheduleCompleted  = "schedule:completed"
	EventWorkspacePublished = "repository:published"
	EventWorkspacePulled    = "repository:pulled"
)

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}

// LogEmitter writes every event to the standard logger.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, event string, data any) {
	log.Printf("event %s: %v", event, data)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
// Runs emit from background goroutines, so reads go through Named.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded emissions of one event, in order.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
