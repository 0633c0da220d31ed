package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// ApprovalStore persists MCP approval requests so that a standalone MCP
// process and the HTTP server can hand decisions to each other.
type ApprovalStore struct {
	db *DB
}

func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

func (s *ApprovalStore) CreatePending(a *domain.PendingAction) error {
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Tool, a.Description, domain.ApprovalPending, a.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// Status returns the current status of an approval request.
func (s *ApprovalStore) Status(id string) (string, error) {
	var status string
	err := s.db.conn.QueryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	return status, err
}

// Resolve records a decision for a pending request. Requests that were
// already decided or removed are left untouched.
func (s *ApprovalStore) Resolve(id string, approved bool) error {
	status := domain.ApprovalRejected
	if approved {
		status = domain.ApprovalApproved
	}
	res, err := s.db.conn.Exec(
		`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = ?`,
		status, id, domain.ApprovalPending,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *ApprovalStore) Delete(id string) error {
	_, err := s.db.conn.Exec(`DELETE FROM mcp_approvals WHERE id = ?`, id)
	return err
}

func (s *ApprovalStore) ListPending() ([]domain.PendingAction, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, tool, description, metadata, created_at FROM mcp_approvals WHERE status = ? ORDER BY created_at`,
		domain.ApprovalPending,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PendingAction
	for rows.Next() {
		var a domain.PendingAction
		var created time.Time
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.Metadata, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = created.UTC().Format(time.RFC3339)
		out = append(out, a)
	}
	return out, rows.Err()
}
