package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerCodeTools() {
	s.mcp.AddTool(mcp.NewTool("generate_code",
		mcp.WithDescription("Generate source code from a workspace. Targets: csharp, lua."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("target", mcp.Description("Target language (optional, defaults to the workspace's target)")),
		mcp.WithBoolean("write", mcp.Description("Also write the code to the generated output directory")),
	), s.handleGenerateCode)

	s.mcp.AddTool(mcp.NewTool("list_targets",
		mcp.WithDescription("List the available code generation targets"),
	), s.handleListTargets)
}

func (s *Server) handleGenerateCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	target := req.GetString("target", "")

	if req.GetBool("write", false) {
		out, err := s.codegen.WriteFile(ref, target)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		return jsonResult(out)
	}
	out, err := s.codegen.Generate(ref, target)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	return textResult(out.Code), nil
}

func (s *Server) handleListTargets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.codegen.Targets())
}
