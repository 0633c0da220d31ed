package dbclient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// sqlClient is the shared implementation for MySQL, Postgres, and SQLite.
// Queries are written with ? placeholders and rebound per driver.
type sqlClient struct {
	driverName string
	db         *sqlx.DB
	table      string

	once      sync.Once
	schemaErr error
}

func newSQLClient(driverName, dsn string, ex extras) (*sqlClient, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &sqlClient{driverName: driverName, db: db, table: ex.Table}, nil
}

func (c *sqlClient) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

// ensureTable creates the workspace table on first use.
func (c *sqlClient) ensureTable(ctx context.Context) error {
	c.once.Do(func() {
		_, c.schemaErr = c.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+c.table+` (
			name VARCHAR(255) NOT NULL PRIMARY KEY,
			xml TEXT NOT NULL,
			target VARCHAR(64) NOT NULL,
			published_at TIMESTAMP NOT NULL
		)`)
	})
	if c.schemaErr != nil {
		return fmt.Errorf("create table %s: %w", c.table, c.schemaErr)
	}
	return nil
}

func (c *sqlClient) upsertQuery() string {
	insert := `INSERT INTO ` + c.table + ` (name, xml, target, published_at) VALUES (:name, :xml, :target, :published_at)`
	if c.driverName == "mysql" {
		return insert + ` ON DUPLICATE KEY UPDATE xml = VALUES(xml), target = VALUES(target), published_at = VALUES(published_at)`
	}
	return insert + ` ON CONFLICT (name) DO UPDATE SET xml = excluded.xml, target = excluded.target, published_at = excluded.published_at`
}

func (c *sqlClient) Publish(ctx context.Context, w *domain.PublishedWorkspace) error {
	if err := c.ensureTable(ctx); err != nil {
		return err
	}
	if w.PublishedAt.IsZero() {
		w.PublishedAt = time.Now().UTC()
	}
	if _, err := c.db.NamedExecContext(ctx, c.upsertQuery(), w); err != nil {
		return fmt.Errorf("publish %q: %w", w.Name, err)
	}
	return nil
}

func (c *sqlClient) Pull(ctx context.Context, name string) (*domain.PublishedWorkspace, error) {
	if err := c.ensureTable(ctx); err != nil {
		return nil, err
	}
	var w domain.PublishedWorkspace
	q := c.db.Rebind(`SELECT name, xml, target, published_at FROM ` + c.table + ` WHERE name = ?`)
	err := c.db.GetContext(ctx, &w, q, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", name, ErrNotPublished)
	}
	if err != nil {
		return nil, fmt.Errorf("pull %q: %w", name, err)
	}
	return &w, nil
}

func (c *sqlClient) List(ctx context.Context) ([]domain.PublishedWorkspace, error) {
	if err := c.ensureTable(ctx); err != nil {
		return nil, err
	}
	var out []domain.PublishedWorkspace
	err := c.db.SelectContext(ctx, &out, `SELECT name, xml, target, published_at FROM `+c.table+` ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return out, nil
}

func (c *sqlClient) Delete(ctx context.Context, name string) error {
	if err := c.ensureTable(ctx); err != nil {
		return err
	}
	_, err := c.db.ExecContext(ctx, c.db.Rebind(`DELETE FROM `+c.table+` WHERE name = ?`), name)
	return err
}

func (c *sqlClient) Close() error {
	return c.db.Close()
}
