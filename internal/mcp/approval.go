package mcpserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// EventEmitter lets the server and the approval queue notify listeners.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Events emitted by the MCP server.
const (
	EventApprovalRequired  = "mcp:approval-required"
	EventApprovalDismissed = "mcp:approval-dismissed"
	EventBlocksChanged     = "mcp:blocks-changed"
)

// ApprovalStore is the persistence the queue uses in store mode.
type ApprovalStore interface {
	CreatePending(a *domain.PendingAction) error
	Status(id string) (string, error)
	Delete(id string) error
}

type actionResult struct {
	approved bool
}

// ApprovalQueue holds destructive tool calls until a human decides on them.
// In channel mode decisions arrive through Approve/Reject in the same
// process. In store mode the request is written to the mcp_approvals table
// and polled, so that `ublockly serve` can resolve it from another process.
type ApprovalQueue struct {
	mu       sync.Mutex
	pending  map[string]chan actionResult
	ctx      context.Context
	emitter  EventEmitter
	timeout  time.Duration
	interval time.Duration
	store    ApprovalStore

	// AutoApprove skips the human round trip (`ublockly mcp --yes`).
	AutoApprove bool
}

func NewApprovalQueue(ctx context.Context, emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending:  make(map[string]chan actionResult),
		ctx:      ctx,
		emitter:  emitter,
		timeout:  120 * time.Second,
		interval: 500 * time.Millisecond,
	}
}

// SetStore switches the queue to store mode.
func (q *ApprovalQueue) SetStore(store ApprovalStore) {
	q.store = store
}

// SetTimeout changes how long a request waits for a decision.
func (q *ApprovalQueue) SetTimeout(d time.Duration) {
	q.timeout = d
}

// Request blocks until the action is approved, rejected or times out.
// metadata is optional JSON describing the affected blocks.
func (q *ApprovalQueue) Request(tool, description string, metadata ...string) (bool, error) {
	if q.AutoApprove {
		return true, nil
	}
	action := domain.PendingAction{
		ID:          uuid.New().String(),
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Metadata:    "{}",
	}
	if len(metadata) > 0 && metadata[0] != "" {
		action.Metadata = metadata[0]
	}

	if q.store != nil {
		return q.requestViaStore(&action)
	}
	return q.requestViaChannel(&action)
}

func (q *ApprovalQueue) requestViaStore(action *domain.PendingAction) (bool, error) {
	if err := q.store.CreatePending(action); err != nil {
		return false, err
	}
	defer q.store.Delete(action.ID)

	deadline := time.Now().Add(q.timeout)
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Now().After(deadline) {
				return false, fmt.Errorf("action timed out after %s: %s", q.timeout, action.Tool)
			}
			status, err := q.store.Status(action.ID)
			if err != nil {
				continue
			}
			switch status {
			case domain.ApprovalApproved:
				return true, nil
			case domain.ApprovalRejected:
				return false, fmt.Errorf("action rejected by user: %s", action.Tool)
			}
		case <-q.ctx.Done():
			return false, fmt.Errorf("context cancelled")
		}
	}
}

func (q *ApprovalQueue) requestViaChannel(action *domain.PendingAction) (bool, error) {
	ch := make(chan actionResult, 1)

	q.mu.Lock()
	q.pending[action.ID] = ch
	q.mu.Unlock()
	defer q.cleanup(action.ID)

	q.emitter.Emit(q.ctx, EventApprovalRequired, *action)

	select {
	case result := <-ch:
		if !result.approved {
			return false, fmt.Errorf("action rejected by user: %s", action.Tool)
		}
		return true, nil
	case <-time.After(q.timeout):
		q.emitter.Emit(q.ctx, EventApprovalDismissed, map[string]string{"id": action.ID})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, action.Tool)
	case <-q.ctx.Done():
		return false, fmt.Errorf("context cancelled")
	}
}

// Approve resolves a pending in-process request.
func (q *ApprovalQueue) Approve(actionID string) bool {
	return q.resolve(actionID, true)
}

// Reject resolves a pending in-process request.
func (q *ApprovalQueue) Reject(actionID string) bool {
	return q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) bool {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- actionResult{approved: approved}:
		return true
	default:
		return false
	}
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}
