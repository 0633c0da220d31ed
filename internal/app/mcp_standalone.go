package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/config"
	mcpserver "github.com/imagicbell/ublockly-sub001/internal/mcp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

// ServeMCP runs a standalone MCP server on stdin/stdout until ctx is
// cancelled or the client disconnects. Destructive tools wait for a
// decision recorded through the HTTP API unless autoApprove is set.
func ServeMCP(ctx context.Context, cfg config.Config, autoApprove bool) error {
	// stdout carries the protocol; events go to the log on stderr
	a, err := New(ctx, cfg, service.LogEmitter{})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Shutdown(shutdownCtx)
	}()
	a.StartWatchers(ctx, false)

	mcpSrv := a.NewMCPServer(ctx, autoApprove)

	log.Println("[MCP] Starting standalone stdio server...")
	errCh := make(chan error, 1)
	go func() { errCh <- mcpSrv.ServeStdio() }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
	case <-ctx.Done():
	}
	return nil
}

// NewMCPServer builds an MCP server over the app's services. Approvals go
// through the database so another process can decide them.
func (a *App) NewMCPServer(ctx context.Context, autoApprove bool) *mcpserver.Server {
	return mcpserver.New(ctx, mcpserver.Deps{
		Emitter:      a.Emitter,
		Workspaces:   a.Workspaces,
		Codegen:      a.Codegen,
		Runs:         a.Runs,
		Schedules:    a.Schedules,
		Repositories: a.Repositories,
		Approvals:    a.Approvals,
		AutoApprove:  autoApprove,
	})
}
