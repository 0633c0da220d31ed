package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/imagicbell/ublockly-sub001/internal/blocks"
	"github.com/imagicbell/ublockly-sub001/internal/dbclient"
	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/secret"
	"github.com/imagicbell/ublockly-sub001/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Repository Service: publish and pull workspaces remotely
// ─────────────────────────────────────────────────────────────

// RepositoryService manages remote workspace repositories. Passwords are
// kept in the secret store under the repository id.
type RepositoryService struct {
	store      *storage.RepositoryStore
	secrets    secret.SecretStore
	workspaces *WorkspaceService
	emitter    EventEmitter

	// NewClient opens a repository client. Replaced in tests.
	NewClient func(repo *domain.Repository, password string) (dbclient.Client, error)
}

func NewRepositoryService(
	store *storage.RepositoryStore,
	secrets secret.SecretStore,
	workspaces *WorkspaceService,
	emitter EventEmitter,
) *RepositoryService {
	return &RepositoryService{
		store:      store,
		secrets:    secrets,
		workspaces: workspaces,
		emitter:    emitter,
		NewClient:  dbclient.NewClient,
	}
}

// ── Repository CRUD ────────────────────────────────────────

type RepositoryInput struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	SSLMode   string `json:"sslMode"`
	ExtraJSON string `json:"extraJson"`
}

func (in RepositoryInput) apply(r *domain.Repository) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("repository name is required")
	}
	switch domain.RepositoryDriver(in.Driver) {
	case domain.RepositoryDriverMySQL, domain.RepositoryDriverPostgres,
		domain.RepositoryDriverMongoDB, domain.RepositoryDriverSQLite:
	default:
		return fmt.Errorf("unsupported driver: %s", in.Driver)
	}
	r.Name = in.Name
	r.Driver = domain.RepositoryDriver(in.Driver)
	r.Host = in.Host
	r.Port = in.Port
	r.Database = in.Database
	r.Username = in.Username
	r.SSLMode = in.SSLMode
	r.ExtraJSON = in.ExtraJSON
	if r.ExtraJSON == "" {
		r.ExtraJSON = "{}"
	}
	return nil
}

func (s *RepositoryService) Create(input RepositoryInput) (*domain.Repository, error) {
	r := &domain.Repository{ID: uuid.NewString()}
	if err := input.apply(r); err != nil {
		return nil, err
	}
	if err := s.store.CreateRepository(r); err != nil {
		return nil, fmt.Errorf("create repository: %w", err)
	}
	if input.Password != "" {
		if err := s.secrets.Set(r.ID, []byte(input.Password)); err != nil {
			return nil, fmt.Errorf("store password: %w", err)
		}
	}
	return r, nil
}

func (s *RepositoryService) Get(id string) (*domain.Repository, error) {
	return s.store.GetRepository(id)
}

func (s *RepositoryService) List() ([]domain.Repository, error) {
	return s.store.ListRepositories()
}

// Update replaces the repository settings. An empty password keeps the
// stored one.
func (s *RepositoryService) Update(id string, input RepositoryInput) error {
	r, err := s.store.GetRepository(id)
	if err != nil {
		return err
	}
	if err := input.apply(r); err != nil {
		return err
	}
	if err := s.store.UpdateRepository(r); err != nil {
		return err
	}
	if input.Password != "" {
		return s.secrets.Set(id, []byte(input.Password))
	}
	return nil
}

func (s *RepositoryService) Delete(id string) error {
	if err := s.store.DeleteRepository(id); err != nil {
		return err
	}
	return s.secrets.Delete(id)
}

// ── Remote operations ──────────────────────────────────────

func (s *RepositoryService) open(id string) (dbclient.Client, error) {
	r, err := s.store.GetRepository(id)
	if err != nil {
		return nil, err
	}
	pw, err := s.secrets.Get(id)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return s.NewClient(r, string(pw))
}

func (s *RepositoryService) TestConnection(ctx context.Context, id string) error {
	c, err := s.open(id)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.TestConnection(ctx)
}

// Publish uploads the workspace under its name, replacing an earlier copy.
func (s *RepositoryService) Publish(ctx context.Context, repoID, ref string) (*domain.PublishedWorkspace, error) {
	rec, ws, err := s.workspaces.Open(ref)
	if err != nil {
		return nil, err
	}
	c, err := s.open(repoID)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	pub := &domain.PublishedWorkspace{
		Name:   rec.Name,
		XML:    blocks.WorkspaceToText(ws),
		Target: rec.Target,
	}
	if err := c.Publish(ctx, pub); err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventWorkspacePublished, map[string]string{"repositoryId": repoID, "name": rec.Name})
	return pub, nil
}

// Pull downloads a published workspace. A local workspace with the same
// name is overwritten through an undoable edit; otherwise one is created.
func (s *RepositoryService) Pull(ctx context.Context, repoID, name string) (*domain.Workspace, error) {
	c, err := s.open(repoID)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	pub, err := c.Pull(ctx, name)
	if err != nil {
		return nil, err
	}

	var rec *domain.Workspace
	_, err = s.workspaces.Resolve(name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		rec, err = s.workspaces.Create(ctx, CreateWorkspaceInput{Name: pub.Name, Target: pub.Target, XML: pub.XML})
	case err == nil:
		rec, err = s.workspaces.ImportXML(ctx, name, pub.XML)
	}
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, EventWorkspacePulled, map[string]string{"repositoryId": repoID, "name": name})
	return rec, nil
}

// ListPublished returns every workspace stored in the repository.
func (s *RepositoryService) ListPublished(ctx context.Context, repoID string) ([]domain.PublishedWorkspace, error) {
	c, err := s.open(repoID)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.List(ctx)
}

func (s *RepositoryService) Unpublish(ctx context.Context, repoID, name string) error {
	c, err := s.open(repoID)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Delete(ctx, name)
}
