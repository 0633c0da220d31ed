package mcpserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/imagicbell/ublockly-sub001/internal/service"
)

func (s *Server) registerWorkspaceTools() {
	// ── list_workspaces ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_workspaces",
		mcp.WithDescription("List all stored block workspaces"),
	), s.handleListWorkspaces)

	// ── create_workspace ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_workspace",
		mcp.WithDescription("Create a new workspace and make it the active one"),
		mcp.WithString("name", mcp.Description("Unique workspace name"), mcp.Required()),
		mcp.WithString("description", mcp.Description("Free-form description")),
		mcp.WithString("target", mcp.Description("Default code generation target (csharp or lua)")),
		mcp.WithString("scheduleMode", mcp.Description("How top-level stacks run: sequential or parallel")),
		mcp.WithString("xml", mcp.Description("Optional initial workspace XML")),
	), s.handleCreateWorkspace)

	// ── set_active_workspace ───────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_workspace",
		mcp.WithDescription("Set the active workspace for subsequent tool calls. Tools that accept workspace will default to this."),
		mcp.WithString("workspace", mcp.Description("ID or name of the workspace"), mcp.Required()),
	), s.handleSetActiveWorkspace)

	// ── delete_workspace ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_workspace",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a workspace with all its blocks. Requires user approval."),
		mcp.WithString("workspace", mcp.Description("ID or name of the workspace"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteWorkspace)

	// ── export_xml / import_xml ────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_xml",
		mcp.WithDescription("Export a workspace as Blockly XML"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handleExportXML)

	s.mcp.AddTool(mcp.NewTool("import_xml",
		mcp.WithDescription("🛑 DESTRUCTIVE: Replace the contents of a workspace with Blockly XML. Requires user approval."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("xml", mcp.Description("Workspace XML (<xml>...</xml>)"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleImportXML)

	// ── undo / redo ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Restore the previous saved state of a workspace"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handleUndo)

	s.mcp.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Re-apply the most recently undone change"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handleRedo)

	// ── block types ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_block_types",
		mcp.WithDescription("List every registered block type, including custom definitions"),
	), s.handleListBlockTypes)

	s.mcp.AddTool(mcp.NewTool("define_block_type",
		mcp.WithDescription("Register a custom block type from a Blockly JSON definition ({type, message0, args0, output|previousStatement, ...}). It is stored and reloaded on restart."),
		mcp.WithString("definition", mcp.Description("Block definition as a JSON object"), mcp.Required()),
	), s.handleDefineBlockType)
}

type workspaceSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Target       string `json:"target"`
	ScheduleMode string `json:"scheduleMode"`
	Active       bool   `json:"active,omitempty"`
}

func (s *Server) handleListWorkspaces(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.workspaces.List()
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	s.mu.Lock()
	active := s.activeWorkspace
	s.mu.Unlock()

	out := make([]workspaceSummary, len(list))
	for i, w := range list {
		out[i] = workspaceSummary{
			ID:           w.ID,
			Name:         w.Name,
			Description:  w.Description,
			Target:       w.Target,
			ScheduleMode: w.ScheduleMode,
			Active:       w.ID == active,
		}
	}
	return jsonResult(out)
}

func (s *Server) handleCreateWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	input := service.CreateWorkspaceInput{}
	input.Name, _ = args["name"].(string)
	input.Description, _ = args["description"].(string)
	input.Target, _ = args["target"].(string)
	input.ScheduleMode, _ = args["scheduleMode"].(string)
	input.XML, _ = args["xml"].(string)

	rec, err := s.workspaces.Create(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	// Auto-set as active workspace
	s.setActive(rec.ID)
	return jsonResult(workspaceSummary{
		ID:           rec.ID,
		Name:         rec.Name,
		Description:  rec.Description,
		Target:       rec.Target,
		ScheduleMode: rec.ScheduleMode,
		Active:       true,
	})
}

func (s *Server) handleSetActiveWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := req.GetString("workspace", "")
	if ref == "" {
		return nil, fmt.Errorf("workspace is required")
	}
	rec, err := s.workspaces.Resolve(ref)
	if err != nil {
		return nil, err
	}
	s.setActive(rec.ID)
	return textResult(fmt.Sprintf("Active workspace set to %s (%s)", rec.Name, rec.ID)), nil
}

func (s *Server) handleDeleteWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := req.GetString("workspace", "")
	rec, err := s.workspaces.Resolve(ref)
	if err != nil {
		return nil, err
	}

	meta := fmt.Sprintf(`{"workspaceId":%q}`, rec.ID)
	approved, err := s.approval.Request("delete_workspace", fmt.Sprintf("Delete workspace %s", rec.Name), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	if err := s.workspaces.Delete(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("delete workspace: %w", err)
	}
	s.mu.Lock()
	if s.activeWorkspace == rec.ID {
		s.activeWorkspace = ""
	}
	s.mu.Unlock()
	return textResult(fmt.Sprintf("Workspace %s deleted", rec.Name)), nil
}

func (s *Server) handleExportXML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.resolveWorkspace(req.GetArguments())
	if err != nil {
		return nil, err
	}
	xml, err := s.workspaces.ExportXML(ref)
	if err != nil {
		return nil, fmt.Errorf("export xml: %w", err)
	}
	return textResult(xml), nil
}

func (s *Server) handleImportXML(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	xml, _ := args["xml"].(string)
	if xml == "" {
		return nil, fmt.Errorf("xml is required")
	}

	approved, err := s.approval.Request("import_xml", fmt.Sprintf("Replace the contents of workspace %s", ref))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	rec, err := s.workspaces.ImportXML(ctx, ref, xml)
	if err != nil {
		return nil, fmt.Errorf("import xml: %w", err)
	}
	s.emitBlocksChanged(ctx, rec.ID)
	return textResult(fmt.Sprintf("Workspace %s replaced", rec.Name)), nil
}

func (s *Server) handleUndo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.resolveWorkspace(req.GetArguments())
	if err != nil {
		return nil, err
	}
	rec, err := s.workspaces.Undo(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("undo: %w", err)
	}
	s.emitBlocksChanged(ctx, rec.ID)
	return textResult(fmt.Sprintf("Workspace %s restored to its previous state", rec.Name)), nil
}

func (s *Server) handleRedo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.resolveWorkspace(req.GetArguments())
	if err != nil {
		return nil, err
	}
	rec, err := s.workspaces.Redo(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("redo: %w", err)
	}
	s.emitBlocksChanged(ctx, rec.ID)
	return textResult(fmt.Sprintf("Workspace %s: change re-applied", rec.Name)), nil
}

type blockTypeSummary struct {
	Type   string   `json:"type"`
	Fields []string `json:"fields,omitempty"`
	Inputs []string `json:"inputs,omitempty"`
	Shape  string   `json:"shape"`
}

func (s *Server) handleListBlockTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := s.workspaces.Factory()
	types := s.workspaces.BlockTypes()
	sort.Strings(types)

	out := make([]blockTypeSummary, 0, len(types))
	for _, typ := range types {
		def, ok := f.Definition(typ)
		if !ok {
			continue
		}
		out = append(out, summarizeDefinition(def))
	}
	return jsonResult(out)
}

func (s *Server) handleDefineBlockType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := req.GetString("definition", "")
	if raw == "" {
		return nil, fmt.Errorf("definition is required")
	}
	def, err := s.workspaces.PutDefinition(ctx, raw, "mcp")
	if err != nil {
		return nil, fmt.Errorf("define block type: %w", err)
	}
	return textResult(fmt.Sprintf("Block type %s registered", def.Type)), nil
}
