package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Workspace Service: stored block programs
// ─────────────────────────────────────────────────────────────

// WorkspaceService manages stored workspaces. Every edit loads the stored
// XML into a fresh blocks.Workspace, applies the change, serializes the
// result and records an undo snapshot.
type WorkspaceService struct {
	store   *storage.WorkspaceStore
	undo    *storage.UndoStore
	defs    *storage.DefinitionStore
	factory *blocks.Factory
	targets *TargetRegistry
	emitter EventEmitter

	// DefaultTarget is used for workspaces created without one.
	DefaultTarget string
	// DefaultScheduleMode is used for workspaces created without one.
	DefaultScheduleMode string

	mu sync.Mutex // serializes edits
}

func NewWorkspaceService(
	store *storage.WorkspaceStore,
	undo *storage.UndoStore,
	defs *storage.DefinitionStore,
	factory *blocks.Factory,
	targets *TargetRegistry,
	emitter EventEmitter,
) *WorkspaceService {
	return &WorkspaceService{
		store:         store,
		undo:          undo,
		defs:          defs,
		factory:       factory,
		targets:       targets,
		emitter:       emitter,
		DefaultTarget: "csharp",
	}
}

// Factory returns the block factory shared by every workspace.
func (s *WorkspaceService) Factory() *blocks.Factory { return s.factory }

// ── CRUD ───────────────────────────────────────────────────

type CreateWorkspaceInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Target       string `json:"target"`
	ScheduleMode string `json:"scheduleMode"`
	XML          string `json:"xml"`
}

func (s *WorkspaceService) Create(ctx context.Context, input CreateWorkspaceInput) (*domain.Workspace, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("create workspace: name is required")
	}
	rec := &domain.Workspace{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Description:  input.Description,
		Target:       input.Target,
		ScheduleMode: input.ScheduleMode,
	}
	if rec.Target == "" {
		rec.Target = s.DefaultTarget
	}
	if rec.ScheduleMode == "" {
		rec.ScheduleMode = s.DefaultScheduleMode
	}
	if err := s.validate(rec); err != nil {
		return nil, err
	}

	ws := s.newBlocksWorkspace(rec)
	rec.ScheduleMode = ws.ScheduleMode().String()
	if input.XML != "" {
		if _, err := blocks.TextToWorkspace(ws, input.XML); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}
	rec.XML = blocks.WorkspaceToText(ws)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.CreateWorkspace(rec); err != nil {
		return nil, err
	}
	if _, err := s.undo.PushNode(rec.ID, uuid.NewString(), "", "create", rec.XML); err != nil {
		log.Printf("workspace service: undo snapshot for %s: %v", rec.Name, err)
	}
	s.emitter.Emit(ctx, EventWorkspaceChanged, map[string]string{"workspaceId": rec.ID, "label": "create"})
	return rec, nil
}

func (s *WorkspaceService) validate(rec *domain.Workspace) error {
	if s.targets != nil {
		if _, err := s.targets.Get(rec.Target); err != nil {
			return err
		}
	}
	if _, ok := blocks.ParseScheduleMode(rec.ScheduleMode); !ok {
		return fmt.Errorf("unknown schedule mode %q", rec.ScheduleMode)
	}
	return nil
}

func (s *WorkspaceService) Get(id string) (*domain.Workspace, error) {
	return s.store.GetWorkspace(id)
}

// Resolve looks ref up as an id first and then as a name.
func (s *WorkspaceService) Resolve(ref string) (*domain.Workspace, error) {
	rec, err := s.store.GetWorkspace(ref)
	if errors.Is(err, storage.ErrNotFound) {
		return s.store.GetWorkspaceByName(ref)
	}
	return rec, err
}

func (s *WorkspaceService) List() ([]domain.Workspace, error) {
	return s.store.ListWorkspaces()
}

type UpdateWorkspaceInput struct {
	Name         *string `json:"name,omitempty"`
	Description  *string `json:"description,omitempty"`
	Target       *string `json:"target,omitempty"`
	ScheduleMode *string `json:"scheduleMode,omitempty"`
}

// Update changes workspace metadata. Nil fields are left alone.
func (s *WorkspaceService) Update(ctx context.Context, ref string, input UpdateWorkspaceInput) (*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, fmt.Errorf("update workspace: name is required")
		}
		rec.Name = *input.Name
	}
	if input.Description != nil {
		rec.Description = *input.Description
	}
	if input.Target != nil {
		rec.Target = *input.Target
	}
	if input.ScheduleMode != nil {
		rec.ScheduleMode = *input.ScheduleMode
	}
	if err := s.validate(rec); err != nil {
		return nil, err
	}
	mode, _ := blocks.ParseScheduleMode(rec.ScheduleMode)
	rec.ScheduleMode = mode.String()
	if err := s.store.UpdateWorkspace(rec); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventWorkspaceChanged, map[string]string{"workspaceId": rec.ID, "label": "update"})
	return rec, nil
}

func (s *WorkspaceService) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Resolve(ref)
	if err != nil {
		return err
	}
	if err := s.store.DeleteWorkspace(rec.ID); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventWorkspaceChanged, map[string]string{"workspaceId": rec.ID, "label": "delete"})
	return nil
}

// ── Block graph ────────────────────────────────────────────

func (s *WorkspaceService) newBlocksWorkspace(rec *domain.Workspace) *blocks.Workspace {
	mode, _ := blocks.ParseScheduleMode(rec.ScheduleMode)
	ws := blocks.NewWorkspace(s.factory, blocks.Options{ScheduleMode: mode})
	if rec.ID != "" {
		ws.SetID(rec.ID)
	}
	return ws
}

// Build loads the stored XML of rec into a new blocks.Workspace. Blocks
// that fail to load are skipped and logged; the rest of the program stays
// usable.
func (s *WorkspaceService) Build(rec *domain.Workspace) *blocks.Workspace {
	ws := s.newBlocksWorkspace(rec)
	if strings.TrimSpace(rec.XML) == "" {
		return ws
	}
	if _, err := blocks.TextToWorkspace(ws, rec.XML); err != nil {
		log.Printf("workspace service: load %s: %v", rec.Name, err)
	}
	return ws
}

// Open resolves ref and returns a private copy of its block graph.
func (s *WorkspaceService) Open(ref string) (*domain.Workspace, *blocks.Workspace, error) {
	rec, err := s.Resolve(ref)
	if err != nil {
		return nil, nil, err
	}
	return rec, s.Build(rec), nil
}

// Edit applies fn to the workspace and saves the result under label. An
// error from fn discards the change.
func (s *WorkspaceService) Edit(ctx context.Context, ref, label string, fn func(ws *blocks.Workspace) error) (*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	ws := s.Build(rec)
	if err := fn(ws); err != nil {
		return nil, err
	}
	rec.ScheduleMode = ws.ScheduleMode().String()
	if err := s.save(ctx, rec, blocks.WorkspaceToText(ws), label); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *WorkspaceService) save(ctx context.Context, rec *domain.Workspace, xml, label string) error {
	rec.XML = xml
	if err := s.store.UpdateWorkspace(rec); err != nil {
		return fmt.Errorf("save workspace: %w", err)
	}

	parentID := ""
	if cur, err := s.undo.Current(rec.ID); err == nil {
		parentID = cur.ID
	}
	if _, err := s.undo.PushNode(rec.ID, uuid.NewString(), parentID, label, xml); err != nil {
		log.Printf("workspace service: undo snapshot for %s: %v", rec.Name, err)
	}
	s.emitter.Emit(ctx, EventWorkspaceChanged, map[string]string{"workspaceId": rec.ID, "label": label})
	return nil
}

// ImportXML replaces the workspace content with xml. The text is fully
// parsed first; a malformed document leaves the workspace unchanged.
func (s *WorkspaceService) ImportXML(ctx context.Context, ref, xml string) (*domain.Workspace, error) {
	return s.Edit(ctx, ref, "import", func(ws *blocks.Workspace) error {
		root, err := blocks.ParseXML([]byte(xml))
		if err != nil {
			return err
		}
		ws.Clear()
		_, err = blocks.LoadWorkspaceXML(ws, root)
		return err
	})
}

// ExportXML returns the workspace as indented Blockly XML.
func (s *WorkspaceService) ExportXML(ref string) (string, error) {
	_, ws, err := s.Open(ref)
	if err != nil {
		return "", err
	}
	return blocks.WorkspaceToText(ws), nil
}

// ── Undo / Redo ────────────────────────────────────────────

func (s *WorkspaceService) Undo(ctx context.Context, ref string) (*domain.Workspace, error) {
	return s.travel(ctx, ref, "undo", s.undo.Undo)
}

func (s *WorkspaceService) Redo(ctx context.Context, ref string) (*domain.Workspace, error) {
	return s.travel(ctx, ref, "redo", s.undo.Redo)
}

func (s *WorkspaceService) travel(ctx context.Context, ref, label string, move func(string) (*storage.UndoNode, error)) (*domain.Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	node, err := move(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	rec.XML = node.SnapshotXML
	if err := s.store.UpdateWorkspace(rec); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventWorkspaceChanged, map[string]string{"workspaceId": rec.ID, "label": label})
	return rec, nil
}

// History returns the undo tree of a workspace.
func (s *WorkspaceService) History(ref string) (*storage.UndoTree, error) {
	rec, err := s.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return s.undo.LoadTree(rec.ID)
}

// ── Custom block definitions ───────────────────────────────

// LoadDefinitions registers every stored custom definition with the
// factory. Bad records are skipped and reported together.
func (s *WorkspaceService) LoadDefinitions() error {
	defs, err := s.defs.ListDefinitions()
	if err != nil {
		return err
	}
	var errs []error
	for _, d := range defs {
		if _, err := s.register(d.JSON); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Type, err))
		}
	}
	return errors.Join(errs...)
}

func (s *WorkspaceService) register(raw string) (*blocks.Definition, error) {
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	def, err := blocks.ParseDefinition(rec)
	if err != nil {
		return nil, err
	}
	s.factory.Register(def)
	return def, nil
}

// PutDefinition registers a custom block type from one JSON record and
// stores it so it survives restarts. source is "user" or a pack URL.
func (s *WorkspaceService) PutDefinition(ctx context.Context, raw, source string) (*domain.BlockDefinition, error) {
	def, err := s.register(raw)
	if err != nil {
		return nil, err
	}
	d := &domain.BlockDefinition{Type: def.Type, JSON: raw, Source: source}
	if err := s.defs.PutDefinition(d); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventDefinitionsChanged, def.Type)
	return d, nil
}

func (s *WorkspaceService) ListDefinitions() ([]domain.BlockDefinition, error) {
	return s.defs.ListDefinitions()
}

// DeleteDefinition forgets a stored definition. The type stays registered
// with the running factory until restart.
func (s *WorkspaceService) DeleteDefinition(ctx context.Context, blockType string) error {
	if err := s.defs.DeleteDefinition(blockType); err != nil {
		return err
	}
	s.emitter.Emit(ctx, EventDefinitionsChanged, blockType)
	return nil
}

// BlockTypes returns every registered block type.
func (s *WorkspaceService) BlockTypes() []string {
	return s.factory.Types()
}
