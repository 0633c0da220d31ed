package interp

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

var (
	errBreak    = errors.New("break outside of a loop")
	errContinue = errors.New("continue outside of a loop")
	// errStopped unwinds a chain whose runner stopped it.
	errStopped = errors.New("chain stopped")
)

// returnSignal unwinds a procedure body on an early return.
type returnSignal struct {
	value Value
}

func (r *returnSignal) Error() string { return "return outside of a procedure" }

// RuntimeError is a failure while executing a block.
type RuntimeError struct {
	BlockID   string
	BlockType string
	Err       error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s block %s: %v", e.BlockType, e.BlockID, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }

func runtimeErr(b *blocks.Block, format string, args ...any) error {
	return &RuntimeError{BlockID: b.ID(), BlockType: b.Type(), Err: fmt.Errorf(format, args...)}
}

// Env is the execution state of one chain: its call scopes and the
// coroutine handshake with the runner. Executors receive it to evaluate
// inputs and run nested statements.
type Env struct {
	runner *Runner
	co     *coroutine
	ws     *blocks.Workspace
	scopes []map[string]Value
	// true once a statement checkpoint has yielded since the last loop check
	yieldedInLoop bool
	// the first checkpoint of a chain does not yield
	primed bool
}

// Workspace returns the workspace being run.
func (e *Env) Workspace() *blocks.Workspace { return e.ws }

// Get reads a variable by id, looking in the current procedure scope
// before the globals. Unset variables are null.
func (e *Env) Get(id string) Value {
	if n := len(e.scopes); n > 0 {
		if v, ok := e.scopes[n-1][id]; ok {
			return v
		}
	}
	return e.runner.globals[id]
}

// Set writes a variable, preferring the current procedure scope when the
// variable is one of its arguments.
func (e *Env) Set(id string, v Value) {
	if n := len(e.scopes); n > 0 {
		if _, ok := e.scopes[n-1][id]; ok {
			e.scopes[n-1][id] = v
			return
		}
	}
	e.runner.globals[id] = v
}

// Print writes a line to the runner's output.
func (e *Env) Print(s string) {
	fmt.Fprintln(e.runner.out, s)
}

// HasValue reports whether a block is plugged into the named input.
func (e *Env) HasValue(b *blocks.Block, input string) bool {
	t := b.InputTargetBlock(input)
	return t != nil && !t.Disabled()
}

// Eval evaluates the block in the named value input. An empty input is
// null.
func (e *Env) Eval(b *blocks.Block, input string) (Value, error) {
	return e.EvalBlock(b.InputTargetBlock(input))
}

// EvalBlock evaluates a value block.
func (e *Env) EvalBlock(b *blocks.Block) (Value, error) {
	if b == nil || b.Disabled() {
		return Null(), nil
	}
	fn, ok := e.runner.table.exprs[b.Type()]
	if !ok {
		return Null(), runtimeErr(b, "no executor for value block %q", b.Type())
	}
	return fn(e, b)
}

// EvalNumber evaluates a value input as a number, using def when the input
// is empty.
func (e *Env) EvalNumber(b *blocks.Block, input string, def float64) (float64, error) {
	if !e.HasValue(b, input) {
		return def, nil
	}
	v, err := e.Eval(b, input)
	if err != nil {
		return 0, err
	}
	n, err := v.Number()
	if err != nil {
		return 0, runtimeErr(b, "input %s: %v", input, err)
	}
	return n, nil
}

// FieldNumber parses a numeric field.
func (e *Env) FieldNumber(b *blocks.Block, field string) (float64, error) {
	n, err := strconv.ParseFloat(b.FieldValue(field), 64)
	if err != nil {
		return 0, runtimeErr(b, "field %s: %v", field, err)
	}
	return n, nil
}

// Exec runs the statement stack in the named statement input.
func (e *Env) Exec(b *blocks.Block, input string) error {
	return e.ExecStack(b.InputTargetBlock(input))
}

// ExecStack runs first and every block below it, yielding to the runner
// before each statement.
func (e *Env) ExecStack(first *blocks.Block) error {
	for b := first; b != nil; b = b.NextBlock() {
		if b.Disabled() {
			continue
		}
		if err := e.checkpoint(); err != nil {
			return err
		}
		fn, ok := e.runner.table.stmts[b.Type()]
		if !ok {
			return runtimeErr(b, "no executor for statement block %q", b.Type())
		}
		if err := fn(e, b); err != nil {
			return err
		}
	}
	return nil
}

// LoopBody runs one iteration of a loop's DO input. It reports whether the
// loop should exit because of a break.
func (e *Env) LoopBody(b *blocks.Block) (bool, error) {
	if err := e.loopCheckpoint(); err != nil {
		return false, err
	}
	err := e.Exec(b, "DO")
	switch {
	case errors.Is(err, errBreak):
		return true, nil
	case errors.Is(err, errContinue):
		return false, nil
	}
	return false, err
}

// Wait suspends the chain for d. The runner resumes it once d has passed;
// in step mode the next step resumes it immediately.
func (e *Env) Wait(d time.Duration) error {
	e.yieldedInLoop = true
	return e.co.yield(d)
}

func (e *Env) checkpoint() error {
	e.yieldedInLoop = true
	if !e.primed {
		e.primed = true
		return e.co.poll()
	}
	return e.co.yield(0)
}

// loopCheckpoint yields only when the body has not yielded since the last
// iteration, so empty loops stay interruptible.
func (e *Env) loopCheckpoint() error {
	if e.yieldedInLoop {
		e.yieldedInLoop = false
		return e.co.poll()
	}
	return e.co.yield(0)
}

// ── coroutine ───────────────────────────────────────────────

type eventKind int

const (
	eventYield eventKind = iota
	eventDone
)

type event struct {
	kind eventKind
	wait time.Duration
	err  error
}

// coroutine runs a chain on its own goroutine in lockstep with the runner:
// exactly one side is active at a time, so the block graph is never
// touched concurrently.
type coroutine struct {
	resume chan struct{}
	events chan event
	stop   chan struct{}
	exited chan struct{}

	started bool
	done    bool
	wakeAt  time.Time
}

func newCoroutine() *coroutine {
	return &coroutine{
		resume: make(chan struct{}),
		events: make(chan event),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (co *coroutine) start(body func() error) {
	co.started = true
	go func() {
		defer close(co.exited)
		select {
		case <-co.resume:
		case <-co.stop:
			return
		}
		err := body()
		if errors.Is(err, errStopped) {
			return
		}
		select {
		case co.events <- event{kind: eventDone, err: err}:
		case <-co.stop:
		}
	}()
}

// yield hands control back to the runner and blocks until resumed.
func (co *coroutine) yield(wait time.Duration) error {
	select {
	case co.events <- event{kind: eventYield, wait: wait}:
	case <-co.stop:
		return errStopped
	}
	select {
	case <-co.resume:
		return nil
	case <-co.stop:
		return errStopped
	}
}

// poll checks for a stop request without yielding.
func (co *coroutine) poll() error {
	select {
	case <-co.stop:
		return errStopped
	default:
		return nil
	}
}

// advance runs the chain until its next yield or its end.
func (co *coroutine) advance() event {
	co.resume <- struct{}{}
	ev := <-co.events
	if ev.kind == eventDone {
		co.done = true
	}
	return ev
}

// kill stops the chain and waits for its goroutine to exit.
func (co *coroutine) kill() {
	if co.done {
		return
	}
	close(co.stop)
	if co.started {
		<-co.exited
	}
	co.done = true
}
