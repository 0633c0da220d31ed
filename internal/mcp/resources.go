package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	workspacesURI     = "ublockly://workspaces"
	blockTypesURI     = "ublockly://block-types"
	workspaceURIStart = "ublockly://workspace/"
)

func (s *Server) registerResources() {
	// ── ublockly://workspaces ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		workspacesURI,
		"All Workspaces",
		mcp.WithMIMEType("application/json"),
	), s.handleWorkspacesResource)

	// ── ublockly://block-types ─────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		blockTypesURI,
		"Registered Block Types",
		mcp.WithMIMEType("application/json"),
	), s.handleBlockTypesResource)

	// ── ublockly://workspace/{id}/xml ──────────────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			workspaceURIStart+"{id}/xml",
			"Workspace XML",
			mcp.WithTemplateMIMEType("application/xml"),
		),
		s.handleWorkspaceXMLResource,
	)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleWorkspacesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list, err := s.workspaces.List()
	if err != nil {
		return nil, err
	}
	summaries := make([]workspaceSummary, len(list))
	for i, w := range list {
		summaries[i] = workspaceSummary{ID: w.ID, Name: w.Name, Description: w.Description, Target: w.Target, ScheduleMode: w.ScheduleMode}
	}
	return jsonContents(workspacesURI, summaries)
}

func (s *Server) handleBlockTypesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	f := s.workspaces.Factory()
	var out []blockTypeSummary
	for _, typ := range s.workspaces.BlockTypes() {
		if def, ok := f.Definition(typ); ok {
			out = append(out, summarizeDefinition(def))
		}
	}
	return jsonContents(blockTypesURI, out)
}

func (s *Server) handleWorkspaceXMLResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	id := workspaceIDFromURI(uri)
	if id == "" {
		return nil, fmt.Errorf("could not extract workspace id from URI: %s", uri)
	}
	xml, err := s.workspaces.ExportXML(id)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/xml",
			Text:     xml,
		},
	}, nil
}

// workspaceIDFromURI extracts the id from "ublockly://workspace/{id}/xml".
func workspaceIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, workspaceURIStart)
	if !ok {
		return ""
	}
	id, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return id
}
