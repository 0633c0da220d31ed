package dbclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// ErrNotPublished is returned by Pull when the repository has no workspace
// with the requested name.
var ErrNotPublished = errors.New("workspace not published")

// Client publishes workspaces to and pulls them from a remote repository.
type Client interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// Publish inserts or replaces the workspace stored under w.Name.
	Publish(ctx context.Context, w *domain.PublishedWorkspace) error

	// Pull fetches one workspace by name.
	Pull(ctx context.Context, name string) (*domain.PublishedWorkspace, error)

	// List returns every published workspace ordered by name.
	List(ctx context.Context) ([]domain.PublishedWorkspace, error)

	// Delete removes a published workspace. Deleting a missing name is not an error.
	Delete(ctx context.Context, name string) error

	Close() error
}

// extras are the driver-independent options read from Repository.ExtraJSON.
// Remaining keys are passed to the driver (MongoDB URI parameters).
type extras struct {
	Table      string
	Collection string
	Params     map[string]string
}

const (
	defaultTable      = "ublockly_workspaces"
	defaultCollection = "workspaces"
)

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func parseExtras(raw string) (extras, error) {
	ex := extras{Table: defaultTable, Collection: defaultCollection, Params: map[string]string{}}
	if raw == "" || raw == "{}" {
		return ex, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return ex, fmt.Errorf("parse extra options: %w", err)
	}
	for k, v := range m {
		switch k {
		case "table":
			ex.Table = v
		case "collection":
			ex.Collection = v
		default:
			ex.Params[k] = v
		}
	}
	if !identRE.MatchString(ex.Table) {
		return ex, fmt.Errorf("invalid table name %q", ex.Table)
	}
	return ex, nil
}

// NewClient creates a Client for repo. The password must be provided
// separately (from the secret store).
func NewClient(repo *domain.Repository, password string) (Client, error) {
	ex, err := parseExtras(repo.ExtraJSON)
	if err != nil {
		return nil, err
	}
	switch repo.Driver {
	case domain.RepositoryDriverSQLite:
		return newSQLiteClient(repo, ex)
	case domain.RepositoryDriverMySQL:
		return newSQLClient("mysql", buildMySQLDSN(repo, password), ex)
	case domain.RepositoryDriverPostgres:
		return newSQLClient("postgres", buildPostgresDSN(repo, password), ex)
	case domain.RepositoryDriverMongoDB:
		return newMongoClient(repo, password, ex)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", repo.Driver)
	}
}
