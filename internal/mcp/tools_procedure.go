package mcpserver

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/mutators"
)

func (s *Server) registerProcedureTools() {
	// ── variables ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_variables",
		mcp.WithDescription("List the variables of a workspace"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handleListVariables)

	s.mcp.AddTool(mcp.NewTool("create_variable",
		mcp.WithDescription("Create a variable"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("name", mcp.Description("Variable name"), mcp.Required()),
		mcp.WithString("type", mcp.Description("Variable type (empty for untyped)")),
	), s.handleCreateVariable)

	s.mcp.AddTool(mcp.NewTool("rename_variable",
		mcp.WithDescription("Rename a variable everywhere it is used. Renaming onto another variable of the same type merges the two."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("variable", mcp.Description("Current name or ID of the variable"), mcp.Required()),
		mcp.WithString("newName", mcp.Description("New name"), mcp.Required()),
	), s.handleRenameVariable)

	// ── procedures ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_procedures",
		mcp.WithDescription("List the procedures defined in a workspace with their arguments"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
	), s.handleListProcedures)

	s.mcp.AddTool(mcp.NewTool("mutate_procedure",
		mcp.WithDescription("Change a procedure's name, arguments or statement body. Every call block is updated; argMap keeps call argument values across reordering."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("name", mcp.Description("Current procedure name"), mcp.Required()),
		mcp.WithString("newName", mcp.Description("New procedure name (optional)")),
		mcp.WithArray("arguments", mcp.Description("New argument names in order"), mcp.WithStringItems()),
		mcp.WithObject("argMap", mcp.Description(`Old argument index to new index, e.g. {"0": 1, "1": 0}. Defaults to keeping arguments by name.`)),
		mcp.WithBoolean("hasStatements", mcp.Description("Whether the definition has a statement body (procedures_defreturn only)")),
	), s.handleMutateProcedure)

	s.mcp.AddTool(mcp.NewTool("create_procedure_call",
		mcp.WithDescription("Create a call block for a defined procedure, placed as a new top-level stack"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("name", mcp.Description("Procedure name"), mcp.Required()),
	), s.handleCreateProcedureCall)
}

func (s *Server) handleListVariables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.resolveWorkspace(req.GetArguments())
	if err != nil {
		return nil, err
	}
	_, ws, err := s.workspaces.Open(ref)
	if err != nil {
		return nil, err
	}
	return jsonResult(ws.Variables().All())
}

func (s *Server) handleCreateVariable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	typ, _ := args["type"].(string)

	var created *blocks.VariableModel
	_, err := s.edit(ctx, args, "create variable "+name, func(ws *blocks.Workspace) error {
		v, err := ws.Variables().CreateVariable(name, typ, "")
		created = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create variable: %w", err)
	}
	return jsonResult(created)
}

// lookupVariable resolves a variable by id first, then by name.
func lookupVariable(ws *blocks.Workspace, ref string) (*blocks.VariableModel, error) {
	vars := ws.Variables()
	if v := vars.GetVariableByID(ref); v != nil {
		return v, nil
	}
	if v := vars.GetVariableByName(ref); v != nil {
		return v, nil
	}
	return nil, fmt.Errorf("%w: %q", blocks.ErrVariableNotFound, ref)
}

func (s *Server) handleRenameVariable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, _ := args["variable"].(string)
	newName, _ := args["newName"].(string)

	_, err := s.edit(ctx, args, "rename variable "+ref, func(ws *blocks.Workspace) error {
		v, err := lookupVariable(ws, ref)
		if err != nil {
			return err
		}
		return ws.Variables().RenameVariableByID(v.ID, newName)
	})
	if err != nil {
		return nil, fmt.Errorf("rename variable: %w", err)
	}
	return textResult(fmt.Sprintf("Variable %s renamed to %s", ref, newName)), nil
}

func (s *Server) handleListProcedures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref, err := s.resolveWorkspace(req.GetArguments())
	if err != nil {
		return nil, err
	}
	_, ws, err := s.workspaces.Open(ref)
	if err != nil {
		return nil, err
	}
	return jsonResult(ws.Procedures().All())
}

// argMapByName maps each old argument to the new position of the argument
// with the same name.
func argMapByName(oldArgs, newArgs []string) map[int]int {
	m := make(map[int]int)
	for i, o := range oldArgs {
		for j, n := range newArgs {
			if o == n {
				m[i] = j
				break
			}
		}
	}
	return m
}

func parseArgMap(raw map[string]any) (map[int]int, error) {
	m := make(map[int]int, len(raw))
	for k, v := range raw {
		from, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("argMap key %q: %w", k, err)
		}
		to, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("argMap value for %q must be a number", k)
		}
		m[from] = int(to)
	}
	return m, nil
}

func (s *Server) handleMutateProcedure(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	newName, _ := args["newName"].(string)
	rawArgs, hasArgs := args["arguments"].([]any)
	rawMap, hasMap := args["argMap"].(map[string]any)
	hasStatements, hasBody := args["hasStatements"].(bool)

	var argMap map[int]int
	if hasMap {
		m, err := parseArgMap(rawMap)
		if err != nil {
			return nil, err
		}
		argMap = m
	}

	var result blocks.Procedure
	_, err := s.edit(ctx, args, "mutate procedure "+name, func(ws *blocks.Workspace) error {
		reg := ws.Procedures()
		old, ok := reg.Get(name)
		if !ok {
			return fmt.Errorf("%w: %q", blocks.ErrProcedureNotFound, name)
		}
		p := old.Clone()
		if newName != "" {
			p.Name = newName
		}
		if hasArgs {
			p.Arguments = make([]string, len(rawArgs))
			for i, a := range rawArgs {
				p.Arguments[i] = fmt.Sprint(a)
			}
		}
		if hasBody {
			p.HasStatements = hasStatements
		}
		m := argMap
		if m == nil {
			m = argMapByName(old.Arguments, p.Arguments)
		}
		def := reg.Definition(old.Name)
		if err := reg.MutateProcedure(old.Name, p, m); err != nil {
			return err
		}
		// the registry may have made the new name distinct
		result = p
		if def != nil {
			if pm, ok := def.Mutator().(blocks.ProcedureMutator); ok {
				result = pm.Procedure()
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mutate procedure: %w", err)
	}
	return jsonResult(result)
}

func (s *Server) handleCreateProcedureCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	name, _ := args["name"].(string)

	var created blockSummary
	_, err := s.edit(ctx, args, "call "+name, func(ws *blocks.Workspace) error {
		b, err := mutators.NewCall(ws, name)
		if err != nil {
			return err
		}
		s.layout.Place(ws, b)
		created = summarizeBlock(b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create procedure call: %w", err)
	}
	return jsonResult(created)
}
