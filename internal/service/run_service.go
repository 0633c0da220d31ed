package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Run Service: interpreter runs of stored workspaces
// ─────────────────────────────────────────────────────────────

var (
	// ErrRunning is returned when a workspace already has a live run.
	ErrRunning = errors.New("workspace is already running")
	// ErrNoRun is returned by control calls for a workspace that was never run.
	ErrNoRun = errors.New("workspace has no run")
)

type RunOptions struct {
	Mode          interp.Mode
	StepsPerFrame int
	FrameRate     int
	// Timeout stops sync-mode runs that take longer. Zero means no limit.
	Timeout time.Duration
	// Output also receives every printed line as it happens.
	Output io.Writer
}

// RunInfo is a snapshot of a run.
type RunInfo struct {
	WorkspaceID string            `json:"workspaceId"`
	Mode        string            `json:"mode"`
	Status      string            `json:"status"`
	Output      string            `json:"output"`
	Error       string            `json:"error,omitempty"`
	Globals     map[string]string `json:"globals,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
}

// outputBuffer collects printed lines; the runner writes while the service
// reads snapshots from other goroutines.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	tee io.Writer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tee != nil {
		b.tee.Write(p)
	}
	return b.buf.Write(p)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type activeRun struct {
	workspaceID string
	scheduleID  string
	runner      *interp.Runner
	out         *outputBuffer
	started     time.Time
	cancel      context.CancelFunc
	done        chan struct{}
}

type RunService struct {
	workspaces *WorkspaceService
	logs       *storage.ScheduleStore
	emitter    EventEmitter
	guard      runGuard

	// Defaults applies to runs started without explicit options.
	Defaults RunOptions

	mu   sync.Mutex
	runs map[string]*activeRun // latest run per workspace id
}

// NewRunService creates a RunService. logs may be nil to skip run logs.
func NewRunService(workspaces *WorkspaceService, logs *storage.ScheduleStore, emitter EventEmitter) *RunService {
	return &RunService{
		workspaces: workspaces,
		logs:       logs,
		emitter:    emitter,
		Defaults:   RunOptions{Mode: interp.ModeSync, Timeout: 5 * time.Minute},
		runs:       make(map[string]*activeRun),
	}
}

// Start begins a run of the referenced workspace and returns immediately.
// Sync-mode runs are driven in the background; step-mode runs advance only
// through Step.
func (s *RunService) Start(ctx context.Context, ref string, opts RunOptions) (*RunInfo, error) {
	run, err := s.start(ctx, ref, "", opts)
	if err != nil {
		return nil, err
	}
	return run.info(), nil
}

// Execute runs the workspace in sync mode and waits for it to end. The
// run error, if any, is returned alongside the final snapshot.
func (s *RunService) Execute(ctx context.Context, ref, scheduleID string) (*RunInfo, error) {
	opts := s.Defaults
	opts.Mode = interp.ModeSync
	run, err := s.start(ctx, ref, scheduleID, opts)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.done:
	case <-ctx.Done():
		run.runner.Stop()
		<-run.done
	}
	info := run.info()
	if info.Error != "" {
		return info, fmt.Errorf("run failed: %s", info.Error)
	}
	return info, nil
}

func (s *RunService) start(ctx context.Context, ref, scheduleID string, opts RunOptions) (*activeRun, error) {
	rec, ws, err := s.workspaces.Open(ref)
	if err != nil {
		return nil, err
	}
	if !s.guard.Acquire(rec.ID) {
		return nil, fmt.Errorf("%s: %w", rec.Name, ErrRunning)
	}

	bg := context.WithoutCancel(ctx)
	out := &outputBuffer{tee: opts.Output}
	runner := interp.NewRunner(interp.Options{
		Mode:          opts.Mode,
		StepsPerFrame: opts.StepsPerFrame,
		FrameRate:     opts.FrameRate,
		Output:        out,
		OnStatus: func(st interp.Status) {
			s.emitter.Emit(bg, EventRunStatus, map[string]string{"workspaceId": rec.ID, "status": st.String()})
		},
	})

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if opts.Timeout > 0 && opts.Mode == interp.ModeSync {
		runCtx, cancel = context.WithTimeout(bg, opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(bg)
	}
	run := &activeRun{
		workspaceID: rec.ID,
		scheduleID:  scheduleID,
		runner:      runner,
		out:         out,
		started:     time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	if err := runner.Run(ws); err != nil {
		cancel()
		s.guard.Release(rec.ID)
		return nil, err
	}

	s.mu.Lock()
	s.runs[rec.ID] = run
	s.mu.Unlock()

	go s.drive(bg, runCtx, rec, run)
	return run, nil
}

func (s *RunService) drive(ctx, runCtx context.Context, rec *domain.Workspace, run *activeRun) {
	defer close(run.done)
	defer s.guard.Release(rec.ID)
	defer run.cancel()

	if err := run.runner.Drive(runCtx); err != nil && runCtx.Err() != nil {
		log.Printf("run service: %s cancelled: %v", rec.Name, err)
		run.runner.Stop()
	}

	info := run.info()
	if s.logs != nil {
		l := &domain.RunLog{
			WorkspaceID: rec.ID,
			ScheduleID:  run.scheduleID,
			StartedAt:   run.started,
			FinishedAt:  time.Now(),
			Status:      info.Status,
			Output:      info.Output,
			Error:       info.Error,
		}
		if err := s.logs.CreateRunLog(l); err != nil {
			log.Printf("run service: run log for %s: %v", rec.Name, err)
		}
	}
	s.emitter.Emit(ctx, EventRunFinished, info)
}

func (r *activeRun) info() *RunInfo {
	info := &RunInfo{
		WorkspaceID: r.workspaceID,
		Mode:        r.runner.Mode().String(),
		Status:      r.runner.Status().String(),
		Output:      r.out.String(),
		StartedAt:   r.started,
	}
	if err := r.runner.LastError(); err != nil {
		info.Error = err.Error()
	}
	if globals := r.runner.Globals(); len(globals) > 0 {
		info.Globals = make(map[string]string, len(globals))
		for name, v := range globals {
			info.Globals[name] = v.String()
		}
	}
	return info
}

func (s *RunService) lookup(ref string) (*activeRun, error) {
	rec, err := s.workspaces.Resolve(ref)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[rec.ID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", rec.Name, ErrNoRun)
	}
	return run, nil
}

// control applies fn to the latest run of ref and returns its snapshot.
func (s *RunService) control(ref string, fn func(r *interp.Runner)) (*RunInfo, error) {
	run, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	fn(run.runner)
	return run.info(), nil
}

func (s *RunService) Pause(ref string) (*RunInfo, error) {
	return s.control(ref, (*interp.Runner).Pause)
}

func (s *RunService) Resume(ref string) (*RunInfo, error) {
	return s.control(ref, (*interp.Runner).Resume)
}

func (s *RunService) Stop(ref string) (*RunInfo, error) {
	return s.control(ref, (*interp.Runner).Stop)
}

func (s *RunService) Step(ref string) (*RunInfo, error) {
	return s.control(ref, (*interp.Runner).Step)
}

// Fail aborts the run with msg.
func (s *RunService) Fail(ref, msg string) (*RunInfo, error) {
	return s.control(ref, func(r *interp.Runner) { r.Error(msg) })
}

// Info returns the latest run of ref.
func (s *RunService) Info(ref string) (*RunInfo, error) {
	return s.control(ref, func(*interp.Runner) {})
}

// Wait blocks until the latest run of ref ends or ctx is cancelled.
func (s *RunService) Wait(ctx context.Context, ref string) (*RunInfo, error) {
	run, err := s.lookup(ref)
	if err != nil {
		return nil, err
	}
	select {
	case <-run.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return run.info(), nil
}

// ListRunLogs returns the last 50 run logs of a workspace.
func (s *RunService) ListRunLogs(ref string) ([]domain.RunLog, error) {
	if s.logs == nil {
		return nil, nil
	}
	rec, err := s.workspaces.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.logs.ListRunLogs(rec.ID, 50)
}

// StopAll stops every live run. Used for graceful shutdown.
func (s *RunService) StopAll() {
	s.mu.Lock()
	runs := make([]*activeRun, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	s.mu.Unlock()
	for _, r := range runs {
		r.runner.Stop()
	}
}

// WaitRunning blocks until all running workspaces finish or ctx is cancelled.
func (s *RunService) WaitRunning(ctx context.Context) {
	s.guard.WaitAll(ctx)
}
