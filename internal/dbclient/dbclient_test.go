package dbclient

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// DSN builders
// ─────────────────────────────────────────────────────────────

func TestPostgresDSNEscapesCredentials(t *testing.T) {
	got := buildPostgresDSN(&domain.Repository{Host: "db", Database: "blocks", Username: "bob"}, "p@ss")
	want := "postgres://bob:p%40ss@db:5432/blocks?sslmode=disable"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMySQLDSN(t *testing.T) {
	dsn := buildMySQLDSN(&domain.Repository{Host: "db", Port: 3307, Database: "blocks", Username: "bob", SSLMode: "require"}, "secret")
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "db:3307" || cfg.User != "bob" || cfg.Passwd != "secret" || cfg.DBName != "blocks" {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.ParseTime || cfg.TLSConfig != "true" {
		t.Errorf("parseTime=%v tls=%q", cfg.ParseTime, cfg.TLSConfig)
	}
}

func TestMongoURI(t *testing.T) {
	cases := []struct {
		repo   domain.Repository
		params map[string]string
		uri    string
		db     string
	}{
		{
			repo:   domain.Repository{Host: "mongo", Username: "bob"},
			params: map[string]string{"replicaSet": "rs0", "authSource": "admin"},
			uri:    "mongodb://bob:pw@mongo:27017/?authSource=admin&replicaSet=rs0",
			db:     "ublockly",
		},
		{
			repo: domain.Repository{Host: "mongodb+srv://bob:<password>@cluster.example.net/shared?retryWrites=true"},
			uri:  "mongodb+srv://bob:pw@cluster.example.net/shared?retryWrites=true",
			db:   "shared",
		},
		{
			repo: domain.Repository{Host: "mongo", Port: 27018, Database: "blocks"},
			uri:  "mongodb://mongo:27018",
			db:   "blocks",
		},
	}
	for _, c := range cases {
		uri, db := buildMongoURI(&c.repo, "pw", c.params)
		if uri != c.uri || db != c.db {
			t.Errorf("%s: got (%q, %q), want (%q, %q)", c.repo.Host, uri, db, c.uri, c.db)
		}
	}
}

func TestExtrasRejectBadTableName(t *testing.T) {
	if _, err := parseExtras(`{"table":"x; DROP TABLE y"}`); err == nil {
		t.Error("expected error")
	}
	ex, err := parseExtras(`{"table":"shared_ws","authSource":"admin"}`)
	if err != nil {
		t.Fatal(err)
	}
	if ex.Table != "shared_ws" || ex.Params["authSource"] != "admin" || ex.Collection != defaultCollection {
		t.Errorf("extras = %+v", ex)
	}
}

// ─────────────────────────────────────────────────────────────
// SQLite repository round trip
// ─────────────────────────────────────────────────────────────

func TestSQLiteRepository(t *testing.T) {
	ctx := context.Background()
	repo := &domain.Repository{Driver: domain.RepositoryDriverSQLite, Host: filepath.Join(t.TempDir(), "shared.db")}
	c, err := NewClient(repo, "")
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.TestConnection(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Pull(ctx, "robot"); !errors.Is(err, ErrNotPublished) {
		t.Fatalf("pull before publish: %v", err)
	}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := c.Publish(ctx, &domain.PublishedWorkspace{Name: "robot", XML: "<xml>1</xml>", Target: "lua", PublishedAt: at}); err != nil {
		t.Fatal(err)
	}
	if err := c.Publish(ctx, &domain.PublishedWorkspace{Name: "robot", XML: "<xml>2</xml>", Target: "csharp", PublishedAt: at}); err != nil {
		t.Fatal(err)
	}
	if err := c.Publish(ctx, &domain.PublishedWorkspace{Name: "arm", XML: "<xml/>", Target: "lua"}); err != nil {
		t.Fatal(err)
	}

	w, err := c.Pull(ctx, "robot")
	if err != nil {
		t.Fatal(err)
	}
	if w.XML != "<xml>2</xml>" || w.Target != "csharp" {
		t.Errorf("pull = %+v", w)
	}

	list, err := c.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "arm" || list[1].Name != "robot" {
		t.Errorf("list = %+v", list)
	}

	if err := c.Delete(ctx, "robot"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Pull(ctx, "robot"); !errors.Is(err, ErrNotPublished) {
		t.Errorf("pull after delete: %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := NewClient(&domain.Repository{Driver: "oracle"}, ""); err == nil {
		t.Error("expected error")
	}
}
