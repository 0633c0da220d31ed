package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/imagicbell/ublockly-sub001/internal/service"
)

func (s *Server) registerScheduleTools() {
	s.mcp.AddTool(mcp.NewTool("create_schedule",
		mcp.WithDescription(`Schedule headless runs of a workspace. Trigger types:
- cron: triggerConfig is a cron expression ("*/5 * * * *", "@every 1h")
- file_watch: triggerConfig is the path of a workspace XML file; the workspace is re-imported and run whenever it changes
- manual: only runs through run_schedule`),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("name", mcp.Description("Schedule name")),
		mcp.WithString("triggerType", mcp.Description("cron, file_watch or manual"), mcp.Required()),
		mcp.WithString("triggerConfig", mcp.Description("Cron expression or file path")),
		mcp.WithBoolean("enabled", mcp.Description("Whether the trigger is active (default true)")),
	), s.handleCreateSchedule)

	s.mcp.AddTool(mcp.NewTool("list_schedules",
		mcp.WithDescription("List all schedules with their last run status"),
	), s.handleListSchedules)

	s.mcp.AddTool(mcp.NewTool("run_schedule",
		mcp.WithDescription("Run a schedule's workspace now and wait for it to finish"),
		mcp.WithString("scheduleId", mcp.Description("Schedule ID"), mcp.Required()),
	), s.handleRunSchedule)

	s.mcp.AddTool(mcp.NewTool("delete_schedule",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a schedule. Requires user approval."),
		mcp.WithString("scheduleId", mcp.Description("Schedule ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteSchedule)
}

func (s *Server) handleCreateSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	sc, err := s.schedules.CreateSchedule(ctx, service.CreateScheduleInput{
		Workspace:     ref,
		Name:          req.GetString("name", ""),
		TriggerType:   req.GetString("triggerType", ""),
		TriggerConfig: req.GetString("triggerConfig", ""),
		Enabled:       req.GetBool("enabled", true),
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	s.schedules.RestartWatchers(context.WithoutCancel(ctx))
	return jsonResult(sc)
}

func (s *Server) handleListSchedules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.schedules.ListSchedules()
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return jsonResult(list)
}

func (s *Server) handleRunSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("scheduleId", "")
	if id == "" {
		return nil, fmt.Errorf("scheduleId is required")
	}
	info, err := s.schedules.RunSchedule(ctx, id)
	if err != nil && info == nil {
		return nil, fmt.Errorf("run schedule: %w", err)
	}
	return jsonResult(info)
}

func (s *Server) handleDeleteSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("scheduleId", "")
	sc, err := s.schedules.GetSchedule(id)
	if err != nil {
		return nil, err
	}

	approved, err := s.approval.Request("delete_schedule", fmt.Sprintf("Delete schedule %s (%s %s)", sc.Name, sc.TriggerType, sc.TriggerConfig))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}
	if err := s.schedules.DeleteSchedule(ctx, id); err != nil {
		return nil, fmt.Errorf("delete schedule: %w", err)
	}
	s.schedules.RestartWatchers(context.WithoutCancel(ctx))
	return textResult(fmt.Sprintf("Schedule %s deleted", id)), nil
}
