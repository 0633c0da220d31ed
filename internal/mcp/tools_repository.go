package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerRepositoryTools() {
	s.mcp.AddTool(mcp.NewTool("list_repositories",
		mcp.WithDescription("List the configured remote workspace repositories"),
	), s.handleListRepositories)

	s.mcp.AddTool(mcp.NewTool("list_published",
		mcp.WithDescription("List the workspaces published to a repository"),
		mcp.WithString("repositoryId", mcp.Description("Repository ID"), mcp.Required()),
	), s.handleListPublished)

	s.mcp.AddTool(mcp.NewTool("publish_workspace",
		mcp.WithDescription("Publish a workspace to a repository, replacing any earlier version with the same name"),
		mcp.WithString("repositoryId", mcp.Description("Repository ID"), mcp.Required()),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handlePublishWorkspace)

	s.mcp.AddTool(mcp.NewTool("pull_workspace",
		mcp.WithDescription("🛑 DESTRUCTIVE: Pull a published workspace. A local workspace with the same name is overwritten. Requires user approval."),
		mcp.WithString("repositoryId", mcp.Description("Repository ID"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Published workspace name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handlePullWorkspace)
}

func (s *Server) handleListRepositories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repos, err := s.repos.List()
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	return jsonResult(repos)
}

func (s *Server) handleListPublished(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoID := req.GetString("repositoryId", "")
	if repoID == "" {
		return nil, fmt.Errorf("repositoryId is required")
	}
	list, err := s.repos.ListPublished(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}

	type publishedSummary struct {
		Name        string `json:"name"`
		Target      string `json:"target"`
		PublishedAt string `json:"publishedAt"`
	}
	out := make([]publishedSummary, len(list))
	for i, p := range list {
		out[i] = publishedSummary{Name: p.Name, Target: p.Target, PublishedAt: p.PublishedAt.Format("2006-01-02 15:04:05")}
	}
	return jsonResult(out)
}

func (s *Server) handlePublishWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	repoID := req.GetString("repositoryId", "")
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	pub, err := s.repos.Publish(ctx, repoID, ref)
	if err != nil {
		return nil, fmt.Errorf("publish workspace: %w", err)
	}
	return textResult(fmt.Sprintf("Workspace %s published", pub.Name)), nil
}

func (s *Server) handlePullWorkspace(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	repoID := req.GetString("repositoryId", "")
	name := req.GetString("name", "")
	if repoID == "" || name == "" {
		return nil, fmt.Errorf("repositoryId and name are required")
	}

	approved, err := s.approval.Request("pull_workspace", fmt.Sprintf("Pull %s from repository %s", name, repoID))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}
	rec, err := s.repos.Pull(ctx, repoID, name)
	if err != nil {
		return nil, fmt.Errorf("pull workspace: %w", err)
	}
	s.emitBlocksChanged(ctx, rec.ID)
	return textResult(fmt.Sprintf("Workspace %s pulled (%s)", rec.Name, rec.ID)), nil
}
