package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// RepositoryStore manages remote repository records in SQLite.
type RepositoryStore struct {
	db *DB
}

func NewRepositoryStore(db *DB) *RepositoryStore {
	return &RepositoryStore{db: db}
}

func (s *RepositoryStore) CreateRepository(r *domain.Repository) error {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.Conn().Exec(
		`INSERT INTO repositories (id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Driver, r.Host, r.Port, r.Database, r.Username, r.SSLMode, r.ExtraJSON, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *RepositoryStore) GetRepository(id string) (*domain.Repository, error) {
	row := s.db.Conn().QueryRow(
		`SELECT id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at
		 FROM repositories WHERE id = ?`, id,
	)

	r := &domain.Repository{}
	err := row.Scan(&r.ID, &r.Name, &r.Driver, &r.Host, &r.Port, &r.Database, &r.Username, &r.SSLMode, &r.ExtraJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("repository %s: %w", id, ErrNotFound)
	}
	return r, err
}

func (s *RepositoryStore) ListRepositories() ([]domain.Repository, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, name, driver, host, port, database_name, username, ssl_mode, extra_json, created_at, updated_at
		 FROM repositories ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Repository
	for rows.Next() {
		var r domain.Repository
		if err := rows.Scan(&r.ID, &r.Name, &r.Driver, &r.Host, &r.Port, &r.Database, &r.Username, &r.SSLMode, &r.ExtraJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RepositoryStore) UpdateRepository(r *domain.Repository) error {
	r.UpdatedAt = time.Now()
	_, err := s.db.Conn().Exec(
		`UPDATE repositories SET name=?, driver=?, host=?, port=?, database_name=?, username=?, ssl_mode=?, extra_json=?, updated_at=?
		 WHERE id=?`,
		r.Name, r.Driver, r.Host, r.Port, r.Database, r.Username, r.SSLMode, r.ExtraJSON, r.UpdatedAt, r.ID,
	)
	return err
}

func (s *RepositoryStore) DeleteRepository(id string) error {
	_, err := s.db.Conn().Exec(`DELETE FROM repositories WHERE id = ?`, id)
	return err
}
