package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// DefinitionStore implements domain.DefinitionStore using SQLite.
type DefinitionStore struct {
	db *DB
}

func NewDefinitionStore(db *DB) *DefinitionStore {
	return &DefinitionStore{db: db}
}

// PutDefinition inserts or replaces the definition for d.Type.
func (s *DefinitionStore) PutDefinition(d *domain.BlockDefinition) error {
	now := time.Now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Source == "" {
		d.Source = "user"
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO block_definitions (type, json, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(type) DO UPDATE SET json=excluded.json, source=excluded.source, updated_at=excluded.updated_at`,
		d.Type, d.JSON, d.Source, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *DefinitionStore) GetDefinition(blockType string) (*domain.BlockDefinition, error) {
	d := &domain.BlockDefinition{}
	err := s.db.conn.QueryRow(
		`SELECT type, json, source, created_at, updated_at FROM block_definitions WHERE type = ?`, blockType,
	).Scan(&d.Type, &d.JSON, &d.Source, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("block definition %q: %w", blockType, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get block definition: %w", err)
	}
	return d, nil
}

func (s *DefinitionStore) ListDefinitions() ([]domain.BlockDefinition, error) {
	rows, err := s.db.conn.Query(`SELECT type, json, source, created_at, updated_at FROM block_definitions ORDER BY type ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BlockDefinition
	for rows.Next() {
		var d domain.BlockDefinition
		if err := rows.Scan(&d.Type, &d.JSON, &d.Source, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DefinitionStore) DeleteDefinition(blockType string) error {
	_, err := s.db.conn.Exec(`DELETE FROM block_definitions WHERE type = ?`, blockType)
	return err
}
