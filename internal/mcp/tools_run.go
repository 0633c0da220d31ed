package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

func (s *Server) registerRunTools() {
	s.mcp.AddTool(mcp.NewTool("run_workspace",
		mcp.WithDescription("Run a workspace with the interpreter. In sync mode the call waits for the program to finish (up to timeoutSeconds) and returns its output; in step mode it returns immediately and the run advances through run_control."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("mode", mcp.Description("sync (default) or step")),
		mcp.WithNumber("timeoutSeconds", mcp.Description("How long to wait for a sync run (default 30)")),
	), s.handleRunWorkspace)

	s.mcp.AddTool(mcp.NewTool("run_control",
		mcp.WithDescription("Control the live run of a workspace: step, pause, resume or stop"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("action", mcp.Description("step, pause, resume or stop"), mcp.Required()),
	), s.handleRunControl)

	s.mcp.AddTool(mcp.NewTool("run_status",
		mcp.WithDescription("Show the status, output and global variables of the latest run"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handleRunStatus)

	s.mcp.AddTool(mcp.NewTool("list_run_logs",
		mcp.WithDescription("List recent finished runs of a workspace"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handleListRunLogs)
}

func (s *Server) handleRunWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	opts := s.runs.Defaults
	if m := req.GetString("mode", ""); m != "" {
		mode, ok := interp.ParseMode(m)
		if !ok {
			return nil, fmt.Errorf("unknown run mode %q", m)
		}
		opts.Mode = mode
	}

	info, err := s.runs.Start(ctx, ref, opts)
	if err != nil {
		return nil, fmt.Errorf("run workspace: %w", err)
	}
	if opts.Mode == interp.ModeStep {
		return jsonResult(info)
	}

	timeout := time.Duration(req.GetFloat("timeoutSeconds", 30) * float64(time.Second))
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	final, err := s.runs.Wait(waitCtx, ref)
	if err != nil {
		// still running; report the snapshot so far
		if info, ierr := s.runs.Info(ref); ierr == nil {
			return jsonResult(info)
		}
		return nil, err
	}
	return jsonResult(final)
}

func (s *Server) handleRunControl(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}

	var control func(string) (*service.RunInfo, error)
	switch action := req.GetString("action", ""); action {
	case "step":
		control = s.runs.Step
	case "pause":
		control = s.runs.Pause
	case "resume":
		control = s.runs.Resume
	case "stop":
		control = s.runs.Stop
	default:
		return nil, fmt.Errorf("unknown action %q (want step, pause, resume or stop)", action)
	}
	info, err := control(ref)
	if err != nil {
		return nil, fmt.Errorf("run control: %w", err)
	}
	return jsonResult(info)
}

func (s *Server) handleRunStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.resolveWorkspace(req.GetArguments())
	if err != nil {
		return nil, err
	}
	info, err := s.runs.Info(ref)
	if err != nil {
		return nil, fmt.Errorf("run status: %w", err)
	}
	return jsonResult(info)
}

func (s *Server) handleListRunLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.resolveWorkspace(req.GetArguments())
	if err != nil {
		return nil, err
	}
	logs, err := s.runs.ListRunLogs(ref)
	if err != nil {
		return nil, fmt.Errorf("list run logs: %w", err)
	}
	return jsonResult(logs)
}
