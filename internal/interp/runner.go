package interp

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

// Mode selects how a Runner advances its chains.
type Mode int

const (
	// ModeSync advances up to StepsPerFrame statements on every Frame.
	ModeSync Mode = iota
	// ModeStep advances one statement per Step call.
	ModeStep
)

func (m Mode) String() string {
	if m == ModeStep {
		return "step"
	}
	return "sync"
}

// ParseMode accepts "sync" or "step".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "", "sync":
		return ModeSync, true
	case "step":
		return ModeStep, true
	}
	return ModeSync, false
}

// Status is the lifecycle state of a Runner.
type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusPaused
	StatusStopped
	StatusFinished
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusFinished:
		return "finished"
	case StatusError:
		return "error"
	}
	return "idle"
}

// Active reports whether a run is in progress (running or paused).
func (s Status) Active() bool { return s == StatusRunning || s == StatusPaused }

// ErrBusy is returned by Run while a previous run is still active.
var ErrBusy = errors.New("interp: a run is already in progress")

const (
	DefaultStepsPerFrame = 100
	DefaultFrameRate     = 60
	DefaultMaxDepth      = 1000
)

type Options struct {
	Mode          Mode
	StepsPerFrame int
	FrameRate     int
	MaxDepth      int
	// Output receives text_print lines. Defaults to io.Discard.
	Output io.Writer
	// Now is the clock used for timed waits. Defaults to time.Now.
	Now func() time.Time
	// Table overrides the executor table. Defaults to Standard().
	Table *Table
	// OnStatus is called after every status change, outside the runner lock.
	OnStatus func(Status)
}

type statusListener struct {
	fn      func(Status)
	removed bool
}

type chain struct {
	top    *blocks.Block
	env    *Env
	wakeAt time.Time
}

func (c *chain) done() bool { return c.env.co.done }

// Runner executes the top-level statement chains of a workspace as
// cooperative coroutines. Control methods may be called from any goroutine;
// executors and the Output writer run while the runner lock is held and
// must not call back into it.
type Runner struct {
	mu        sync.Mutex
	opts      Options
	table     *Table
	out       io.Writer
	status    Status
	lastErr   error
	ws        *blocks.Workspace
	schedule  blocks.ScheduleMode
	globals   map[string]Value
	chains    []*chain
	next      int
	listeners []*statusListener
	pending   []Status
}

func NewRunner(opts Options) *Runner {
	if opts.StepsPerFrame <= 0 {
		opts.StepsPerFrame = DefaultStepsPerFrame
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	table := opts.Table
	if table == nil {
		table = Standard()
	}
	return &Runner{opts: opts, table: table, out: opts.Output}
}

func (r *Runner) Mode() Mode { return r.opts.Mode }

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// LastError returns the failure that moved the runner to StatusError.
func (r *Runner) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Globals returns a copy of the global variables of the current or last
// run, keyed by variable name.
func (r *Runner) Globals() map[string]Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Value, len(r.globals))
	for id, v := range r.globals {
		name := id
		if r.ws != nil {
			if m := r.ws.Variables().GetVariableByID(id); m != nil {
				name = m.Name
			}
		}
		out[name] = v
	}
	return out
}

// AddStatusListener subscribes fn to status changes and returns a function
// that unsubscribes it.
func (r *Runner) AddStatusListener(fn func(Status)) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := &statusListener{fn: fn}
	r.listeners = append(r.listeners, l)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		l.removed = true
		for i, x := range r.listeners {
			if x == l {
				r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
				break
			}
		}
	}
}

// Run starts every top-level statement chain of ws. Procedure definitions,
// disabled blocks and loose value blocks are not chains. The workspace's
// schedule mode decides whether chains run one after another or share the
// driver.
func (r *Runner) Run(ws *blocks.Workspace) error {
	r.mu.Lock()
	if r.status.Active() {
		r.mu.Unlock()
		return ErrBusy
	}
	r.ws = ws
	r.schedule = ws.ScheduleMode()
	r.globals = make(map[string]Value)
	r.chains = nil
	r.next = 0
	r.lastErr = nil
	for _, top := range ws.TopBlocks(true) {
		if !isChainHead(top) {
			continue
		}
		env := &Env{runner: r, co: newCoroutine(), ws: ws}
		r.chains = append(r.chains, &chain{top: top, env: env})
	}
	if len(r.chains) == 0 {
		r.setStatus(StatusFinished)
	} else {
		r.setStatus(StatusRunning)
	}
	r.unlockAndNotify()
	return nil
}

func isChainHead(b *blocks.Block) bool {
	if b.Disabled() || b.OutputConnection() != nil {
		return false
	}
	if pm, ok := b.Mutator().(blocks.ProcedureMutator); ok && pm.IsDefinition() {
		return false
	}
	return true
}

// Pause freezes every chain at its current position.
func (r *Runner) Pause() {
	r.mu.Lock()
	if r.status == StatusRunning {
		r.setStatus(StatusPaused)
	}
	r.unlockAndNotify()
}

// Resume continues a paused run from where it stopped.
func (r *Runner) Resume() {
	r.mu.Lock()
	if r.status == StatusPaused {
		r.setStatus(StatusRunning)
	}
	r.unlockAndNotify()
}

// Stop discards the run. A stopped run cannot be resumed.
func (r *Runner) Stop() {
	r.mu.Lock()
	if r.status.Active() {
		r.teardown()
		r.setStatus(StatusStopped)
	}
	r.unlockAndNotify()
}

// Error aborts the run with msg.
func (r *Runner) Error(msg string) {
	r.mu.Lock()
	if r.status.Active() {
		r.fail(errors.New(msg))
	}
	r.unlockAndNotify()
}

// Step advances exactly one statement, ignoring pending waits. It applies
// to runs in step mode and to paused runs of either mode.
func (r *Runner) Step() {
	r.mu.Lock()
	if r.status == StatusPaused || (r.status == StatusRunning && r.opts.Mode == ModeStep) {
		if c := r.pick(time.Time{}); c != nil {
			r.advance(c, r.opts.Now(), false)
		}
	}
	r.unlockAndNotify()
}

// Frame advances a running sync-mode run by up to StepsPerFrame
// statements. Sleeping chains are skipped until their wait has elapsed.
func (r *Runner) Frame() {
	r.mu.Lock()
	if r.status == StatusRunning && r.opts.Mode == ModeSync {
		now := r.opts.Now()
		for i := 0; i < r.opts.StepsPerFrame && r.status == StatusRunning; i++ {
			c := r.pick(now)
			if c == nil {
				break
			}
			r.advance(c, now, true)
		}
	}
	r.unlockAndNotify()
}

// Drive calls Frame at FrameRate until the run ends or ctx is cancelled.
// It returns the run error, if any.
func (r *Runner) Drive(ctx context.Context) error {
	t := time.NewTicker(time.Second / time.Duration(r.opts.FrameRate))
	defer t.Stop()
	for {
		switch r.Status() {
		case StatusIdle, StatusStopped, StatusFinished:
			return nil
		case StatusError:
			return r.LastError()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.Frame()
		}
	}
}

// pick returns the next chain to advance. A zero now ignores waits.
func (r *Runner) pick(now time.Time) *chain {
	ready := func(c *chain) bool {
		return !c.done() && (now.IsZero() || !now.Before(c.wakeAt))
	}
	if r.schedule == blocks.ScheduleSequential {
		for _, c := range r.chains {
			if !c.done() {
				if ready(c) {
					return c
				}
				return nil
			}
		}
		return nil
	}
	n := len(r.chains)
	for i := 0; i < n; i++ {
		idx := (r.next + i) % n
		if c := r.chains[idx]; ready(c) {
			r.next = (idx + 1) % n
			return c
		}
	}
	return nil
}

func (r *Runner) advance(c *chain, now time.Time, honorWaits bool) {
	co := c.env.co
	if !co.started {
		env, top := c.env, c.top
		co.start(func() error { return env.runChain(top) })
	}
	c.wakeAt = time.Time{}
	ev := co.advance()
	switch ev.kind {
	case eventYield:
		if honorWaits && ev.wait > 0 {
			c.wakeAt = now.Add(ev.wait)
		}
	case eventDone:
		if ev.err != nil {
			r.fail(ev.err)
			return
		}
		for _, c := range r.chains {
			if !c.done() {
				return
			}
		}
		r.setStatus(StatusFinished)
	}
}

func (r *Runner) fail(err error) {
	r.teardown()
	r.lastErr = err
	r.setStatus(StatusError)
}

func (r *Runner) teardown() {
	for _, c := range r.chains {
		c.env.co.kill()
	}
}

func (r *Runner) setStatus(s Status) {
	if r.status == s {
		return
	}
	r.status = s
	r.pending = append(r.pending, s)
}

// unlockAndNotify releases the lock, then delivers queued notifications.
func (r *Runner) unlockAndNotify() {
	pending := r.pending
	r.pending = nil
	var fns []func(Status)
	if len(pending) > 0 {
		for _, l := range r.listeners {
			fns = append(fns, l.fn)
		}
	}
	r.mu.Unlock()
	for _, s := range pending {
		if r.opts.OnStatus != nil {
			r.opts.OnStatus(s)
		}
		for _, fn := range fns {
			fn(s)
		}
	}
}

// runChain executes one chain, turning control-flow signals that escaped
// their construct into runtime errors.
func (e *Env) runChain(top *blocks.Block) error {
	err := e.ExecStack(top)
	var ret *returnSignal
	switch {
	case err == nil, errors.Is(err, errStopped):
		return err
	case errors.Is(err, errBreak), errors.Is(err, errContinue), errors.As(err, &ret):
		return runtimeErr(top, "%v", err)
	}
	return err
}

// Call runs a procedure definition with args bound to its parameters and
// returns its result.
func (e *Env) Call(def *blocks.Block, args []Value) (Value, error) {
	if len(e.scopes) >= e.runner.opts.MaxDepth {
		return Null(), runtimeErr(def, "call stack exceeded %d frames", e.runner.opts.MaxDepth)
	}
	scope := make(map[string]Value)
	if m, ok := def.Mutator().(interface{ ArgumentVariableIDs() []string }); ok {
		for i, id := range m.ArgumentVariableIDs() {
			v := Null()
			if i < len(args) {
				v = args[i]
			}
			scope[id] = v
		}
	}
	e.scopes = append(e.scopes, scope)
	defer func() { e.scopes = e.scopes[:len(e.scopes)-1] }()

	var err error
	if def.Input("STACK") != nil {
		err = e.Exec(def, "STACK")
	}
	var ret *returnSignal
	switch {
	case errors.As(err, &ret):
		return ret.value, nil
	case errors.Is(err, errBreak), errors.Is(err, errContinue):
		return Null(), runtimeErr(def, "%v", err)
	case err != nil:
		return Null(), err
	}
	if def.Type() == "procedures_defreturn" {
		return e.Eval(def, "RETURN")
	}
	return Null(), nil
}

// Depth is the number of procedure calls in progress.
func (e *Env) Depth() int { return len(e.scopes) }
