package app

import (
	"context"
	"sync"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
	mcpserver "github.com/imagicbell/ublockly-sub001/internal/mcp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

type pendingLister interface {
	ListPending() ([]domain.PendingAction, error)
}

// approvalWatcher polls the approval table for requests written by a
// standalone MCP process and emits each one once, so whoever hosts the HTTP
// API learns that a decision is waiting.
type approvalWatcher struct {
	ctx      context.Context
	store    pendingLister
	emitter  service.EventEmitter
	interval time.Duration

	mu      sync.Mutex
	emitted map[string]bool
	stopCh  chan struct{}
}

func newApprovalWatcher(ctx context.Context, store pendingLister, emitter service.EventEmitter) *approvalWatcher {
	return &approvalWatcher{
		ctx:      ctx,
		store:    store,
		emitter:  emitter,
		interval: 2 * time.Second,
		emitted:  map[string]bool{},
	}
}

// Start begins the polling loop.
func (w *approvalWatcher) Start() {
	w.stopCh = make(chan struct{})
	go w.pollLoop(w.stopCh)
}

// Stop terminates the polling loop.
func (w *approvalWatcher) Stop() {
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
}

func (w *approvalWatcher) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-stop:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *approvalWatcher) check() {
	pending, err := w.store.ListPending()
	if err != nil {
		return
	}

	w.mu.Lock()
	seen := make(map[string]bool, len(pending))
	var fresh []domain.PendingAction
	for _, a := range pending {
		seen[a.ID] = true
		if !w.emitted[a.ID] {
			w.emitted[a.ID] = true
			fresh = append(fresh, a)
		}
	}
	// Forget requests that were resolved or deleted
	for id := range w.emitted {
		if !seen[id] {
			delete(w.emitted, id)
		}
	}
	w.mu.Unlock()

	for _, a := range fresh {
		w.emitter.Emit(w.ctx, mcpserver.EventApprovalRequired, a)
	}
}
