package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
)

func (s *Server) registerBlockTools() {
	// ── list_blocks ────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_blocks",
		mcp.WithDescription("List the blocks of a workspace with their fields and connections"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("type", mcp.Description("Only list blocks of this type")),
	), s.handleListBlocks)

	// ── create_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_block",
		mcp.WithDescription("Create a block. Without parentId it becomes a new top-level stack placed where it does not overlap others; with parentId it is plugged into the parent's input (or below it when input is omitted)."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("type", mcp.Description("Block type (use list_block_types to see available types)"), mcp.Required()),
		mcp.WithObject("fields", mcp.Description(`Initial field values, e.g. {"NUM": "3"}`)),
		mcp.WithString("parentId", mcp.Description("Block to attach the new block to")),
		mcp.WithString("input", mcp.Description("Input of the parent to plug into")),
		mcp.WithNumber("x", mcp.Description("X position for a top-level block")),
		mcp.WithNumber("y", mcp.Description("Y position for a top-level block")),
	), s.handleCreateBlock)

	// ── connect_blocks ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("connect_blocks",
		mcp.WithDescription("Plug a block into a parent's input, or below the parent when input is omitted. A block already in the slot is re-attached or bumped."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("blockId", mcp.Description("Block to plug in"), mcp.Required()),
		mcp.WithString("parentId", mcp.Description("Receiving block"), mcp.Required()),
		mcp.WithString("input", mcp.Description("Name of the parent's value or statement input")),
	), s.handleConnectBlocks)

	// ── disconnect_block ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("disconnect_block",
		mcp.WithDescription("Unplug a block from its parent, making it a top-level stack"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("blockId", mcp.Description("Block to unplug"), mcp.Required()),
		mcp.WithBoolean("heal", mcp.Description("Reconnect the blocks above and below it (default false takes the rest of the stack along)")),
	), s.handleDisconnectBlock)

	// ── delete_block ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("delete_block",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete a block and everything plugged into it. The stack below is healed. Requires user approval."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("blockId", mcp.Description("Block to delete"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleDeleteBlock)

	// ── set_field ──────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_field",
		mcp.WithDescription("Set a field value. Variable fields take a variable name and create the variable when missing."),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("field", mcp.Description("Field name"), mcp.Required()),
		mcp.WithString("value", mcp.Description("New value"), mcp.Required()),
	), s.handleSetField)

	// ── set_mutation ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_mutation",
		mcp.WithDescription(`Change the shape of a mutable block from a <mutation> element, e.g. <mutation elseif="1" else="1"/> for controls_if or <mutation items="3"/> for lists_create_with`),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("blockId", mcp.Description("Block ID"), mcp.Required()),
		mcp.WithString("mutation", mcp.Description("Mutation XML"), mcp.Required()),
	), s.handleSetMutation)

	// ── move_block / arrange_blocks ────────────────────
	s.mcp.AddTool(mcp.NewTool("move_block",
		mcp.WithDescription("Move a top-level stack to a position"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithString("blockId", mcp.Description("Top block of the stack"), mcp.Required()),
		mcp.WithNumber("x", mcp.Description("New X position"), mcp.Required()),
		mcp.WithNumber("y", mcp.Description("New Y position"), mcp.Required()),
	), s.handleMoveBlock)

	s.mcp.AddTool(mcp.NewTool("arrange_blocks",
		mcp.WithDescription("Auto-arrange all top-level stacks in a grid so none overlap"),
		mcp.WithString("workspace", mcp.Description("Workspace ID or name (optional, defaults to active workspace)")),
		mcp.WithNumber("startX", mcp.Description("Grid origin X (default 0)")),
		mcp.WithNumber("startY", mcp.Description("Grid origin Y (default 0)")),
	), s.handleArrangeBlocks)
}

// ── Summaries ──────────────────────────────────────────────

type blockSummary struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	X        float64           `json:"x,omitempty"`
	Y        float64           `json:"y,omitempty"`
	Parent   string            `json:"parent,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Inputs   map[string]string `json:"inputs,omitempty"` // input name -> plugged block ID ("" when empty)
	Next     string            `json:"next,omitempty"`
	Mutation string            `json:"mutation,omitempty"`
	Disabled bool              `json:"disabled,omitempty"`
	Shadow   bool              `json:"shadow,omitempty"`
}

func summarizeBlock(b *blocks.Block) blockSummary {
	sum := blockSummary{ID: b.ID(), Type: b.Type(), Disabled: b.Disabled(), Shadow: b.Shadow()}
	if p := b.Parent(); p != nil {
		sum.Parent = p.ID()
	} else {
		sum.X, sum.Y = b.XY()
	}
	for _, in := range b.Inputs() {
		for _, f := range in.Fields() {
			if f.Name() == "" {
				continue
			}
			if sum.Fields == nil {
				sum.Fields = make(map[string]string)
			}
			sum.Fields[f.Name()] = displayValue(b, f)
		}
		if in.Connection() != nil {
			if sum.Inputs == nil {
				sum.Inputs = make(map[string]string)
			}
			target := ""
			if t := in.TargetBlock(); t != nil {
				target = t.ID()
			}
			sum.Inputs[in.Name()] = target
		}
	}
	if n := b.NextBlock(); n != nil {
		sum.Next = n.ID()
	}
	if m := b.Mutator(); m != nil {
		if el := m.ToXML(); el != nil {
			sum.Mutation = el.String()
		}
	}
	return sum
}

// displayValue shows variable fields by name rather than by id.
func displayValue(b *blocks.Block, f blocks.Field) string {
	if _, ok := f.(*blocks.VariableField); ok {
		if v := b.Workspace().Variables().GetVariableByID(f.Value()); v != nil {
			return v.Name
		}
	}
	return f.Value()
}

func summarizeDefinition(def *blocks.Definition) blockTypeSummary {
	sum := blockTypeSummary{Type: def.Type, Shape: "statement"}
	switch {
	case def.Output != nil:
		sum.Shape = "value"
	case def.Previous == nil && def.Next == nil:
		sum.Shape = "hat"
	}
	for _, in := range def.Inputs {
		for _, f := range in.Fields {
			if f.Name != "" {
				sum.Fields = append(sum.Fields, f.Name)
			}
		}
		if in.Type != blocks.InputTypeDummy {
			sum.Inputs = append(sum.Inputs, in.Name)
		}
	}
	return sum
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleListBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	_, ws, err := s.workspaces.Open(ref)
	if err != nil {
		return nil, err
	}

	filterType, _ := args["type"].(string)
	summaries := []blockSummary{}
	for _, top := range ws.TopBlocks(true) {
		for _, b := range append([]*blocks.Block{top}, top.Descendants()...) {
			if filterType != "" && b.Type() != filterType {
				continue
			}
			summaries = append(summaries, summarizeBlock(b))
		}
	}
	return jsonResult(summaries)
}

func (s *Server) handleCreateBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	blockType, _ := args["type"].(string)
	if blockType == "" {
		return nil, fmt.Errorf("type is required")
	}
	fields, _ := args["fields"].(map[string]any)
	parentID, hasParent := stringArg(args, "parentId")
	inputName, _ := args["input"].(string)
	x, hasX := args["x"].(float64)
	y, hasY := args["y"].(float64)

	var created blockSummary
	_, err := s.edit(ctx, args, "create "+blockType, func(ws *blocks.Workspace) error {
		b, err := ws.NewBlock(blockType)
		if err != nil {
			return err
		}
		for name, v := range fields {
			if err := setField(b, name, fmt.Sprint(v)); err != nil {
				return err
			}
		}
		switch {
		case hasParent:
			parent := ws.Block(parentID)
			if parent == nil {
				return fmt.Errorf("parentId %q: %w", parentID, blocks.ErrBlockNotFound)
			}
			if err := attach(parent, inputName, b); err != nil {
				return err
			}
		case hasX && hasY:
			b.MoveTo(x, y)
		default:
			s.layout.Place(ws, b)
		}
		created = summarizeBlock(b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create block: %w", err)
	}
	return jsonResult(created)
}

// setField sets a field by value, resolving variable names to ids.
func setField(b *blocks.Block, name, value string) error {
	f := b.Field(name)
	if f == nil {
		return fmt.Errorf("block %s (%s): no field %q", b.ID(), b.Type(), name)
	}
	if vf, ok := f.(*blocks.VariableField); ok {
		vars := b.Workspace().Variables()
		if v := vars.GetVariableByID(value); v != nil {
			return vf.SetValue(v.ID)
		}
		v, err := vars.GetOrCreate(value, vf.DefaultType())
		if err != nil {
			return err
		}
		return vf.SetValue(v.ID)
	}
	return f.SetValue(value)
}

// attach plugs child into parent's named input, or below parent when
// inputName is empty.
func attach(parent *blocks.Block, inputName string, child *blocks.Block) error {
	var parentConn *blocks.Connection
	if inputName == "" {
		parentConn = parent.NextConnection()
		if parentConn == nil {
			return fmt.Errorf("block %s (%s): %w: no next connection", parent.ID(), parent.Type(), blocks.ErrMissingConnection)
		}
	} else {
		in := parent.Input(inputName)
		if in == nil || in.Connection() == nil {
			return fmt.Errorf("block %s (%s): no input %q", parent.ID(), parent.Type(), inputName)
		}
		parentConn = in.Connection()
	}

	childConn := child.PreviousConnection()
	if parentConn.Type() == blocks.InputValue {
		childConn = child.OutputConnection()
	}
	if childConn == nil {
		return fmt.Errorf("block %s (%s): %w for %s", child.ID(), child.Type(), blocks.ErrMissingConnection, parentConn.Type())
	}
	if childConn.IsConnected() {
		child.Unplug(false)
	}
	return parentConn.Connect(childConn)
}

func (s *Server) handleConnectBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	inputName, _ := args["input"].(string)

	_, err := s.edit(ctx, args, "connect blocks", func(ws *blocks.Workspace) error {
		child, err := getBlock(ws, args, "blockId")
		if err != nil {
			return err
		}
		parent, err := getBlock(ws, args, "parentId")
		if err != nil {
			return err
		}
		return attach(parent, inputName, child)
	})
	if err != nil {
		return nil, fmt.Errorf("connect blocks: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s connected to %s", args["blockId"], args["parentId"])), nil
}

func (s *Server) handleDisconnectBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	heal := req.GetBool("heal", false)

	_, err := s.edit(ctx, args, "disconnect block", func(ws *blocks.Workspace) error {
		b, err := getBlock(ws, args, "blockId")
		if err != nil {
			return err
		}
		if b.Parent() == nil {
			return fmt.Errorf("block %s is not connected", b.ID())
		}
		b.Unplug(heal)
		s.layout.Place(ws, b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("disconnect block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s disconnected", args["blockId"])), nil
}

func (s *Server) handleDeleteBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	ref, err := s.resolveWorkspace(args)
	if err != nil {
		return nil, err
	}
	_, ws, err := s.workspaces.Open(ref)
	if err != nil {
		return nil, err
	}
	target, err := getBlock(ws, args, "blockId")
	if err != nil {
		return nil, err
	}

	// Require approval (with metadata for highlighting)
	ids := []string{target.ID()}
	for _, d := range target.Descendants() {
		ids = append(ids, d.ID())
	}
	meta, _ := marshalJSON(map[string]any{"workspaceId": ref, "blockIds": ids})
	approved, err := s.approval.Request("delete_block",
		fmt.Sprintf("Delete %s block %s (%d blocks)", target.Type(), target.ID(), len(ids)), string(meta))
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	_, err = s.edit(ctx, args, "delete "+target.Type(), func(ws *blocks.Workspace) error {
		b, err := getBlock(ws, args, "blockId")
		if err != nil {
			return err
		}
		if !b.Deletable() {
			return fmt.Errorf("block %s is not deletable", b.ID())
		}
		b.Dispose(true)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s deleted", target.ID())), nil
}

func (s *Server) handleSetField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	field, _ := args["field"].(string)
	value := fmt.Sprint(args["value"])

	var updated blockSummary
	_, err := s.edit(ctx, args, "set "+field, func(ws *blocks.Workspace) error {
		b, err := getBlock(ws, args, "blockId")
		if err != nil {
			return err
		}
		if !b.Editable() {
			return fmt.Errorf("block %s is not editable", b.ID())
		}
		if err := setField(b, field, value); err != nil {
			return err
		}
		updated = summarizeBlock(b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set field: %w", err)
	}
	return jsonResult(updated)
}

func (s *Server) handleSetMutation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	raw, _ := args["mutation"].(string)
	el, err := blocks.ParseXML([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("parse mutation: %w", err)
	}
	if el.Tag() != "mutation" {
		return nil, fmt.Errorf("expected <mutation>, got <%s>", el.Tag())
	}

	var updated blockSummary
	_, err = s.edit(ctx, args, "mutate block", func(ws *blocks.Workspace) error {
		b, err := getBlock(ws, args, "blockId")
		if err != nil {
			return err
		}
		m := b.Mutator()
		if m == nil {
			return fmt.Errorf("block %s (%s): %w", b.ID(), b.Type(), blocks.ErrNoMutator)
		}
		if err := m.FromXML(el); err != nil {
			return err
		}
		updated = summarizeBlock(b)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("set mutation: %w", err)
	}
	return jsonResult(updated)
}

func (s *Server) handleMoveBlock(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	x := req.GetFloat("x", 0)
	y := req.GetFloat("y", 0)

	_, err := s.edit(ctx, args, "move block", func(ws *blocks.Workspace) error {
		b, err := getBlock(ws, args, "blockId")
		if err != nil {
			return err
		}
		if b.Parent() != nil {
			return fmt.Errorf("block %s is not a top-level block", b.ID())
		}
		if !b.Movable() {
			return fmt.Errorf("block %s is not movable", b.ID())
		}
		b.MoveTo(x, y)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("move block: %w", err)
	}
	return textResult(fmt.Sprintf("Block %s moved to (%.0f, %.0f)", args["blockId"], x, y)), nil
}

func (s *Server) handleArrangeBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	startX := req.GetFloat("startX", 0)
	startY := req.GetFloat("startY", 0)

	var arranged []Box
	_, err := s.edit(ctx, args, "arrange blocks", func(ws *blocks.Workspace) error {
		arranged = s.layout.Arrange(ws, startX, startY)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("arrange blocks: %w", err)
	}
	return jsonResult(arranged)
}
