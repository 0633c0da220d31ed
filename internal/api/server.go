package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/interp"
	"github.com/imagicbell/ublockly-sub001/internal/service"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

// ApprovalStore is the persisted queue of MCP approval requests.
type ApprovalStore interface {
	ListPending() ([]domain.PendingAction, error)
	Resolve(id string, approved bool) error
}

// Deps holds the services served over HTTP. Schedules, Repositories and
// Approvals are optional; their routes answer 404 when unset.
type Deps struct {
	Workspaces   *service.WorkspaceService
	Codegen      *service.CodegenService
	Runs         *service.RunService
	Schedules    *service.ScheduleService
	Repositories *service.RepositoryService
	Approvals    ApprovalStore
}

type Server struct {
	router chi.Router

	workspaces *service.WorkspaceService
	codegen    *service.CodegenService
	runs       *service.RunService
	schedules  *service.ScheduleService
	repos      *service.RepositoryService
	approvals  ApprovalStore

	// Verbose logs every request.
	Verbose bool
}

func NewServer(deps Deps) *Server {
	srv := &Server{
		router:     chi.NewRouter(),
		workspaces: deps.Workspaces,
		codegen:    deps.Codegen,
		runs:       deps.Runs,
		schedules:  deps.Schedules,
		repos:      deps.Repositories,
		approvals:  deps.Approvals,
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Printf("api: listening on %s", addr)
		errCh <- httpSrv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) routes() {
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if s.Verbose {
				log.Printf("api: %s %s (%s)", r.Method, r.URL.Path, time.Since(start))
			}
		})
	})
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/targets", s.handleTargets)
		r.Get("/block-types", s.handleBlockTypes)
		r.Get("/definitions", s.handleListDefinitions)
		r.Post("/definitions", s.handlePutDefinition)
		r.Delete("/definitions/{type}", s.handleDeleteDefinition)

		r.Get("/workspaces", s.handleListWorkspaces)
		r.Post("/workspaces", s.handleCreateWorkspace)
		r.Route("/workspaces/{ref}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkspace)
			r.Patch("/", s.handleUpdateWorkspace)
			r.Delete("/", s.handleDeleteWorkspace)
			r.Get("/xml", s.handleExportXML)
			r.Put("/xml", s.handleImportXML)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
			r.Get("/history", s.handleHistory)
			r.Get("/code", s.handleGenerate)
			r.Post("/code", s.handleWriteCode)

			r.Post("/run", s.handleStartRun)
			r.Get("/run", s.handleRunInfo)
			r.Post("/run/{action}", s.handleRunControl)
			r.Get("/run-logs", s.handleRunLogs)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(s.schedules != nil, "schedules"))
			r.Get("/schedules", s.handleListSchedules)
			r.Post("/schedules", s.handleCreateSchedule)
			r.Get("/schedules/{id}", s.handleGetSchedule)
			r.Put("/schedules/{id}", s.handleUpdateSchedule)
			r.Delete("/schedules/{id}", s.handleDeleteSchedule)
			r.Post("/schedules/{id}/run", s.handleRunSchedule)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(s.repos != nil, "repositories"))
			r.Get("/repositories", s.handleListRepositories)
			r.Post("/repositories", s.handleCreateRepository)
			r.Get("/repositories/{id}", s.handleGetRepository)
			r.Put("/repositories/{id}", s.handleUpdateRepository)
			r.Delete("/repositories/{id}", s.handleDeleteRepository)
			r.Post("/repositories/{id}/test", s.handleTestRepository)
			r.Get("/repositories/{id}/published", s.handleListPublished)
			r.Post("/repositories/{id}/publish", s.handlePublish)
			r.Post("/repositories/{id}/pull", s.handlePull)
			r.Delete("/repositories/{id}/published/{name}", s.handleUnpublish)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.require(s.approvals != nil, "approvals"))
			r.Get("/approvals", s.handleListApprovals)
			r.Post("/approvals/{id}/approve", s.handleApprove)
			r.Post("/approvals/{id}/reject", s.handleReject)
		})
	})
}

// require answers 404 for every route in the group when the optional
// service behind it is not configured.
func (s *Server) require(enabled bool, what string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				writeError(w, http.StatusNotFound, fmt.Errorf("%s are not enabled", what))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusFor maps service errors to HTTP status codes. Errors it does not
// recognise get fallback.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, service.ErrNoRun),
		errors.Is(err, blocks.ErrBlockNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrRunning),
		errors.Is(err, interp.ErrBusy):
		return http.StatusConflict
	}
	return fallback
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.Printf("api: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
