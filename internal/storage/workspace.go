package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// WorkspaceStore implements domain.WorkspaceStore using SQLite.
type WorkspaceStore struct {
	db *DB
}

func NewWorkspaceStore(db *DB) *WorkspaceStore {
	return &WorkspaceStore{db: db}
}

const workspaceColumns = `id, name, description, xml, target, schedule_mode, created_at, updated_at`

func scanWorkspace(row interface{ Scan(...any) error }) (*domain.Workspace, error) {
	ws := &domain.Workspace{}
	err := row.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.XML, &ws.Target, &ws.ScheduleMode, &ws.CreatedAt, &ws.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceStore) CreateWorkspace(ws *domain.Workspace) error {
	now := time.Now()
	ws.CreatedAt = now
	ws.UpdatedAt = now
	_, err := s.db.conn.Exec(
		`INSERT INTO workspaces (`+workspaceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.Name, ws.Description, ws.XML, ws.Target, ws.ScheduleMode, ws.CreatedAt, ws.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	return nil
}

func (s *WorkspaceStore) GetWorkspace(id string) (*domain.Workspace, error) {
	ws, err := scanWorkspace(s.db.conn.QueryRow(`SELECT `+workspaceColumns+` FROM workspaces WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workspace %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return ws, nil
}

func (s *WorkspaceStore) GetWorkspaceByName(name string) (*domain.Workspace, error) {
	ws, err := scanWorkspace(s.db.conn.QueryRow(`SELECT `+workspaceColumns+` FROM workspaces WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return ws, nil
}

func (s *WorkspaceStore) ListWorkspaces() ([]domain.Workspace, error) {
	rows, err := s.db.conn.Query(`SELECT ` + workspaceColumns + ` FROM workspaces ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Workspace
	for rows.Next() {
		ws, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, rows.Err()
}

func (s *WorkspaceStore) UpdateWorkspace(ws *domain.Workspace) error {
	ws.UpdatedAt = time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE workspaces SET name = ?, description = ?, xml = ?, target = ?, schedule_mode = ?, updated_at = ? WHERE id = ?`,
		ws.Name, ws.Description, ws.XML, ws.Target, ws.ScheduleMode, ws.UpdatedAt, ws.ID,
	)
	return err
}

// DeleteWorkspace removes the workspace with its undo history and schedules.
func (s *WorkspaceStore) DeleteWorkspace(id string) error {
	for _, q := range []string{
		`DELETE FROM undo_state WHERE workspace_id = ?`,
		`DELETE FROM undo_nodes WHERE workspace_id = ?`,
		`DELETE FROM schedules WHERE workspace_id = ?`,
		`DELETE FROM workspaces WHERE id = ?`,
	} {
		if _, err := s.db.conn.Exec(q, id); err != nil {
			return fmt.Errorf("delete workspace: %w", err)
		}
	}
	return nil
}
