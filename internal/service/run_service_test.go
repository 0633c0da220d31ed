package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

// ─────────────────────────────────────────────────────────────
// RunService
// ─────────────────────────────────────────────────────────────

func TestExecuteRecordsRunLog(t *testing.T) {
	env := newTestEnv(t)
	createWorkspace(t, env, "calc", setAndPrint)

	info, err := env.runs.Execute(context.Background(), "calc", "")
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != "finished" || info.Output != "-2\n" {
		t.Errorf("info = %+v", info)
	}
	if info.Globals["x"] != "3" || info.Globals["y"] != "5" {
		t.Errorf("globals = %v", info.Globals)
	}

	logs, err := env.runs.ListRunLogs("calc")
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 || logs[0].Status != "finished" || logs[0].Output != "-2\n" {
		t.Errorf("logs = %+v", logs)
	}
	if got := len(env.emitter.Named(service.EventRunFinished)); got != 1 {
		t.Errorf("run:finished emitted %d times", got)
	}
	if got := len(env.emitter.Named(service.EventRunStatus)); got != 2 {
		t.Errorf("run:status emitted %d times, want running and finished", got)
	}
}

func TestExecuteReportsRuntimeError(t *testing.T) {
	env := newTestEnv(t)
	createWorkspace(t, env, "bad", failing)

	info, err := env.runs.Execute(context.Background(), "bad", "")
	if err == nil {
		t.Fatal("expected run error")
	}
	if info == nil || info.Status != "error" || info.Error == "" {
		t.Errorf("info = %+v", info)
	}
	logs, _ := env.runs.ListRunLogs("bad")
	if len(logs) != 1 || logs[0].Status != "error" {
		t.Errorf("logs = %+v", logs)
	}
}

func TestExecuteTeesOutput(t *testing.T) {
	env := newTestEnv(t)
	createWorkspace(t, env, "calc", setAndPrint)

	var live bytes.Buffer
	env.runs.Defaults.Output = &live
	if _, err := env.runs.Execute(context.Background(), "calc", ""); err != nil {
		t.Fatal(err)
	}
	if live.String() != "-2\n" {
		t.Errorf("live output = %q", live.String())
	}
}

func TestStepRunControls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createWorkspace(t, env, "loop", forever)

	info, err := env.runs.Start(ctx, "loop", service.RunOptions{Mode: interp.ModeStep})
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != "running" || info.Mode != "step" {
		t.Fatalf("info = %+v", info)
	}
	if _, err := env.runs.Start(ctx, "loop", service.RunOptions{}); !errors.Is(err, service.ErrRunning) {
		t.Fatalf("second start: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := env.runs.Step("loop"); err != nil {
			t.Fatal(err)
		}
	}
	if info, _ = env.runs.Pause("loop"); info.Status != "paused" {
		t.Errorf("after pause: %s", info.Status)
	}
	if info, _ = env.runs.Resume("loop"); info.Status != "running" {
		t.Errorf("after resume: %s", info.Status)
	}
	if info, _ = env.runs.Stop("loop"); info.Status != "stopped" {
		t.Errorf("after stop: %s", info.Status)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := env.runs.Wait(waitCtx, "loop"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.runs.Start(ctx, "loop", service.RunOptions{Mode: interp.ModeStep}); err != nil {
		t.Errorf("restart after stop: %v", err)
	}
}

func TestFailAbortsRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createWorkspace(t, env, "loop", forever)

	if _, err := env.runs.Start(ctx, "loop", service.RunOptions{Mode: interp.ModeStep}); err != nil {
		t.Fatal(err)
	}
	info, err := env.runs.Fail("loop", "motor stalled")
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != "error" || info.Error != "motor stalled" {
		t.Errorf("info = %+v", info)
	}
}

func TestExecuteStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	createWorkspace(t, env, "loop", forever)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	info, err := env.runs.Execute(ctx, "loop", "")
	if err != nil {
		t.Fatal(err)
	}
	if info.Status != "stopped" {
		t.Errorf("status = %s", info.Status)
	}
}

func TestControlWithoutRun(t *testing.T) {
	env := newTestEnv(t)
	createWorkspace(t, env, "idle", "")
	if _, err := env.runs.Info("idle"); !errors.Is(err, service.ErrNoRun) {
		t.Errorf("err = %v", err)
	}
}
