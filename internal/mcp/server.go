package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

// Server is the MCP server for uBlockly.
// It exposes tools, resources, and prompts so AI agents can build block
// programs, generate code from them and run them.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	layout   *LayoutEngine

	workspaces *service.WorkspaceService
	codegen    *service.CodegenService
	runs       *service.RunService
	schedules  *service.ScheduleService
	repos      *service.RepositoryService

	mu              sync.Mutex
	activeWorkspace string // set by set_active_workspace and create_workspace
}

// Deps holds the services the MCP server drives.
type Deps struct {
	Emitter      EventEmitter
	Workspaces   *service.WorkspaceService
	Codegen      *service.CodegenService
	Runs         *service.RunService
	Schedules    *service.ScheduleService
	Repositories *service.RepositoryService
	Approvals    ApprovalStore // When set, approvals go through the database (standalone mode)
	AutoApprove  bool
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.NopEmitter{}
	}
	approval := NewApprovalQueue(ctx, emitter)
	if deps.Approvals != nil {
		approval.SetStore(deps.Approvals)
	}
	approval.AutoApprove = deps.AutoApprove

	s := &Server{
		emitter:    emitter,
		approval:   approval,
		layout:     NewLayoutEngine(),
		workspaces: deps.Workspaces,
		codegen:    deps.Codegen,
		runs:       deps.Runs,
		schedules:  deps.Schedules,
		repos:      deps.Repositories,
	}

	s.mcp = server.NewMCPServer(
		"ublockly-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerWorkspaceTools()
	s.registerBlockTools()
	s.registerProcedureTools()
	s.registerCodeTools()
	s.registerRunTools()
	if s.schedules != nil {
		s.registerScheduleTools()
	}
	if s.repos != nil {
		s.registerRepositoryTools()
	}
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer exposes the underlying server, mainly for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Println("[MCP] Starting stdio server...")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) bool {
	return s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) bool {
	return s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

func (s *Server) setActive(id string) {
	s.mu.Lock()
	s.activeWorkspace = id
	s.mu.Unlock()
}

// resolveWorkspace returns the workspace reference from tool args or falls
// back to the active workspace.
func (s *Server) resolveWorkspace(args map[string]any) (string, error) {
	if ref, ok := stringArg(args, "workspace"); ok {
		return ref, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeWorkspace != "" {
		return s.activeWorkspace, nil
	}
	return "", fmt.Errorf("no workspace provided and no active workspace set (use set_active_workspace first)")
}

// edit applies fn to the workspace named in args and notifies listeners.
func (s *Server) edit(ctx context.Context, args map[string]any, label string, fn func(ws *blocks.Workspace) error) (*domain.Workspace, error) {
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	rec, err := s.workspaces.Edit(ctx, ref, label, fn)
	if err != nil {
		return nil, err
	}
	s.emitBlocksChanged(ctx, rec.ID)
	return rec, nil
}

// emitBlocksChanged notifies listeners that blocks changed in a workspace.
func (s *Server) emitBlocksChanged(ctx context.Context, workspaceID string) {
	s.emitter.Emit(ctx, EventBlocksChanged, map[string]string{"workspaceId": workspaceID})
}

// getBlock looks up the block named by args[key].
func getBlock(ws *blocks.Workspace, args map[string]any, key string) (*blocks.Block, error) {
	id, _ := args[key].(string)
	if id == "" {
		return nil, fmt.Errorf("%s is required", key)
	}
	b := ws.Block(id)
	if b == nil {
		return nil, fmt.Errorf("%s %q: %w", key, id, blocks.ErrBlockNotFound)
	}
	return b, nil
}

func boolPtr(b bool) *bool { return &b }
