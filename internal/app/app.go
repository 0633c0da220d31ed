package app

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/config"
	"github.com/imagicbell/ublockly-sub001/internal/schema"
	"github.com/imagicbell/ublockly-sub001/internal/secret"
	"github.com/imagicbell/ublockly-sub001/internal/service"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

// App owns the storage and services shared by every front end (CLI, MCP,
// HTTP). Create it with New and release it with Shutdown.
type App struct {
	Config  config.Config
	DB      *storage.DB
	Factory *blocks.Factory
	Emitter service.EventEmitter
	Targets *service.TargetRegistry

	Workspaces   *service.WorkspaceService
	Codegen      *service.CodegenService
	Runs         *service.RunService
	Schedules    *service.ScheduleService
	Repositories *service.RepositoryService
	Approvals    *storage.ApprovalStore

	schemaWatcher   *schema.Watcher
	approvalWatcher *approvalWatcher
}

// New opens the database and wires the services. Block types come from the
// built-in schema, the schema directory, configured packs and stored custom
// definitions, in that order; a bad schema source is logged and skipped.
func New(ctx context.Context, cfg config.Config, emitter service.EventEmitter) (*App, error) {
	if emitter == nil {
		emitter = service.NopEmitter{}
	}

	db, err := storage.New(cfg.DBPath, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	f, err := schema.NewStandardFactory()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load standard blocks: %w", err)
	}
	if _, err := os.Stat(cfg.SchemaDir); err == nil {
		types, err := schema.LoadDir(f, cfg.SchemaDir)
		if err != nil {
			log.Printf("app: schema dir %s: %v", cfg.SchemaDir, err)
		}
		if len(types) > 0 {
			log.Printf("app: loaded %d block types from %s", len(types), cfg.SchemaDir)
		}
	}
	for _, p := range cfg.Packs {
		types, err := schema.LoadPack(ctx, f, cfg.PackCacheDir(), p)
		if err != nil {
			log.Printf("app: schema pack %s: %v", p.URL, err)
			continue
		}
		log.Printf("app: loaded %d block types from pack %s", len(types), p.URL)
	}

	targets := service.DefaultTargets()
	if _, err := targets.Get(cfg.DefaultTarget); err != nil {
		db.Close()
		return nil, fmt.Errorf("default target: %w", err)
	}

	scheduleStore := storage.NewScheduleStore(db)
	a := &App{
		Config:    cfg,
		DB:        db,
		Factory:   f,
		Emitter:   emitter,
		Targets:   targets,
		Approvals: storage.NewApprovalStore(db),
	}
	a.Workspaces = service.NewWorkspaceService(
		storage.NewWorkspaceStore(db),
		storage.NewUndoStore(db),
		storage.NewDefinitionStore(db),
		f, targets, emitter,
	)
	a.Workspaces.DefaultTarget = cfg.DefaultTarget
	a.Workspaces.DefaultScheduleMode = cfg.ScheduleMode
	if err := a.Workspaces.LoadDefinitions(); err != nil {
		log.Printf("app: custom block definitions: %v", err)
	}

	a.Codegen = service.NewCodegenService(a.Workspaces, targets, cfg.OutDir)
	a.Runs = service.NewRunService(a.Workspaces, scheduleStore, emitter)
	a.Runs.Defaults = service.RunOptions{
		Mode:          cfg.Mode(),
		StepsPerFrame: cfg.StepsPerFrame,
		FrameRate:     cfg.FrameRate,
		Timeout:       cfg.RunTimeout,
	}
	a.Schedules = service.NewScheduleService(scheduleStore, a.Workspaces, a.Runs, emitter)
	a.Repositories = service.NewRepositoryService(storage.NewRepositoryStore(db), secret.Default(), a.Workspaces, emitter)
	return a, nil
}

// StartWatchers starts the background parts: cron and file-watch schedules,
// reloading of the schema directory and, when watchApprovals is set, the
// poller that reports approval requests from a standalone MCP process.
func (a *App) StartWatchers(ctx context.Context, watchApprovals bool) {
	a.Schedules.RestartWatchers(ctx)

	if err := os.MkdirAll(a.Config.SchemaDir, 0o755); err != nil {
		log.Printf("app: create schema dir: %v", err)
	} else {
		w, err := schema.NewWatcher(a.Factory, a.Config.SchemaDir, func(path string, types []string, err error) {
			if err == nil {
				a.Emitter.Emit(ctx, service.EventDefinitionsChanged, types)
			}
		})
		if err != nil {
			log.Printf("app: schema watcher: %v", err)
		} else {
			a.schemaWatcher = w
		}
	}

	if watchApprovals {
		a.approvalWatcher = newApprovalWatcher(ctx, a.Approvals, a.Emitter)
		a.approvalWatcher.Start()
	}
}

// Shutdown stops watchers and live runs, then closes the database.
func (a *App) Shutdown(ctx context.Context) {
	if a.approvalWatcher != nil {
		a.approvalWatcher.Stop()
	}
	if a.schemaWatcher != nil {
		a.schemaWatcher.Close()
	}
	a.Schedules.Stop()
	a.Runs.StopAll()
	a.Runs.WaitRunning(ctx)
	a.Schedules.WaitRunning(ctx)
	if a.DB != nil {
		a.DB.Close()
	}
}
