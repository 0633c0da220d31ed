package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("build_program",
		mcp.WithPromptDescription("Guide through building a block program in a new workspace and checking it by running it"),
		mcp.WithArgument("task",
			mcp.ArgumentDescription("What the program should do"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("target",
			mcp.ArgumentDescription("Code generation target (csharp or lua)"),
		),
	), s.handleBuildProgramPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("refactor_procedure",
		mcp.WithPromptDescription("Extract repeated statements of a workspace into a procedure"),
		mcp.WithArgument("workspace",
			mcp.ArgumentDescription("Workspace ID or name"),
			mcp.RequiredArgument(),
		),
	), s.handleRefactorPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("debug_run",
		mcp.WithPromptDescription("Step through a workspace run to find where it goes wrong"),
		mcp.WithArgument("workspace",
			mcp.ArgumentDescription("Workspace ID or name"),
			mcp.RequiredArgument(),
		),
	), s.handleDebugRunPrompt)
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.TextContent{Type: "text", Text: text},
			},
		},
	}
}

func (s *Server) handleBuildProgramPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	task := req.Params.Arguments["task"]
	target := req.Params.Arguments["target"]
	if target == "" {
		target = "lua"
	}
	return userPrompt(fmt.Sprintf("Build a block program: %s", task), fmt.Sprintf(`Build a block program that does the following: %s. Follow these steps:

1. Use create_workspace with target "%s" (it becomes the active workspace)
2. Call list_block_types to see which blocks exist and which fields and inputs they have
3. Build the program top-down with create_block: create statement blocks first, then plug value blocks into their inputs with parentId and input
4. Use set_field for numbers, text and operators; variable fields take the variable name
5. Put reusable logic in procedures_defnoreturn / procedures_defreturn blocks and change their arguments with mutate_procedure
6. Call run_workspace and compare the output with what the task expects; fix blocks until it matches
7. Finish with arrange_blocks and generate_code

Prefer small stacks and check list_blocks after larger edits.`, task, target)), nil
}

func (s *Server) handleRefactorPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	ws := req.Params.Arguments["workspace"]
	return userPrompt(fmt.Sprintf("Extract procedures in %s", ws), fmt.Sprintf(`Refactor workspace "%s" by extracting repeated statements into procedures:

1. Call set_active_workspace, then list_blocks to read the program
2. Run it once with run_workspace and keep the output as the reference
3. For each repeated group of statements, create a procedures_defnoreturn block, move one copy into its STACK input with connect_blocks and give it arguments with mutate_procedure
4. Replace the other copies with create_procedure_call and delete_block
5. Run it again; the output must match the reference. Use undo if it does not.`, ws)), nil
}

func (s *Server) handleDebugRunPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	ws := req.Params.Arguments["workspace"]
	return userPrompt(fmt.Sprintf("Debug a run of %s", ws), fmt.Sprintf(`Find out why workspace "%s" misbehaves:

1. Start it with run_workspace in step mode
2. Advance with run_control action "step" and read the globals in each result
3. When a value goes wrong, look up the responsible block with list_blocks
4. Stop the run with run_control action "stop", fix the block and run again in sync mode`, ws)), nil
}
