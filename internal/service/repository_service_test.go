package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/imagicbell/ublockly-sub001/internal/dbclient"
	"github.com/imagicbell/ublockly-sub001/internal/domain"
	"github.com/imagicbell/ublockly-sub001/internal/service"
)

// ─────────────────────────────────────────────────────────────
// RepositoryService
// ─────────────────────────────────────────────────────────────

func TestPublishAndPull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	createWorkspace(t, env, "calc", setAndPrint)

	repo, err := env.repos.Create(service.RepositoryInput{
		Name:   "shared",
		Driver: string(domain.RepositoryDriverSQLite),
		Host:   filepath.Join(env.dir, "shared.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := env.repos.TestConnection(ctx, repo.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := env.repos.Publish(ctx, repo.ID, "calc"); err != nil {
		t.Fatal(err)
	}
	list, err := env.repos.ListPublished(ctx, repo.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "calc" || list[0].Target != "csharp" {
		t.Fatalf("published = %+v", list)
	}

	// Pulling over a local copy replaces its content.
	if _, err := env.workspaces.ImportXML(ctx, "calc", "<xml></xml>"); err != nil {
		t.Fatal(err)
	}
	rec, err := env.repos.Pull(ctx, repo.ID, "calc")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rec.XML, "variables_set") {
		t.Errorf("pull did not restore content:\n%s", rec.XML)
	}

	// Pulling a name with no local copy creates one.
	if err := env.workspaces.Delete(ctx, "calc"); err != nil {
		t.Fatal(err)
	}
	rec, err = env.repos.Pull(ctx, repo.ID, "calc")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Name != "calc" || !strings.Contains(rec.XML, "variables_set") {
		t.Errorf("pulled = %+v", rec)
	}

	if err := env.repos.Unpublish(ctx, repo.ID, "calc"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.repos.Pull(ctx, repo.ID, "calc"); !errors.Is(err, dbclient.ErrNotPublished) {
		t.Errorf("pull after unpublish: %v", err)
	}
}

// recordingClient captures the password the service opens a client with.
type recordingClient struct {
	dbclient.Client
	password string
}

func (c *recordingClient) TestConnection(context.Context) error { return nil }
func (c *recordingClient) Close() error                         { return nil }

func TestRepositoryPasswordComesFromSecretStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var opened *recordingClient
	env.repos.NewClient = func(repo *domain.Repository, password string) (dbclient.Client, error) {
		opened = &recordingClient{password: password}
		return opened, nil
	}

	repo, err := env.repos.Create(service.RepositoryInput{
		Name: "pg", Driver: "postgres", Host: "db", Username: "bob", Password: "hunter2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if repo.ExtraJSON != "{}" {
		t.Errorf("extra = %q", repo.ExtraJSON)
	}
	if err := env.repos.TestConnection(ctx, repo.ID); err != nil {
		t.Fatal(err)
	}
	if opened.password != "hunter2" {
		t.Errorf("password = %q", opened.password)
	}

	// An empty password on update keeps the stored one.
	if err := env.repos.Update(repo.ID, service.RepositoryInput{Name: "pg2", Driver: "postgres", Host: "db2"}); err != nil {
		t.Fatal(err)
	}
	env.repos.TestConnection(ctx, repo.ID)
	if opened.password != "hunter2" {
		t.Errorf("password after update = %q", opened.password)
	}

	if err := env.repos.Delete(repo.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.repos.Create(service.RepositoryInput{Name: "x", Driver: "oracle"}); err == nil {
		t.Error("unsupported driver should fail")
	}
}
