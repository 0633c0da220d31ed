package domain

import "time"

// RepositoryDriver is the engine backing a remote workspace repository.
type RepositoryDriver string

const (
	RepositoryDriverMySQL    RepositoryDriver = "mysql"
	RepositoryDriverPostgres RepositoryDriver = "postgres"
	RepositoryDriverMongoDB  RepositoryDriver = "mongodb"
	RepositoryDriverSQLite   RepositoryDriver = "sqlite"
)

// Repository is a remote database that workspaces are published to and
// pulled from. The password lives in the secret store, keyed by ID.
type Repository struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Driver    RepositoryDriver `json:"driver"`
	Host      string           `json:"host"`     // hostname or file path (sqlite)
	Port      int              `json:"port"`     // 0 for sqlite
	Database  string           `json:"database"` // db name or empty for sqlite
	Username  string           `json:"username"`
	SSLMode   string           `json:"sslMode"`
	ExtraJSON string           `json:"extraJson"` // driver-specific options
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type RepositoryStore interface {
	CreateRepository(r *Repository) error
	GetRepository(id string) (*Repository, error)
	ListRepositories() ([]Repository, error)
	UpdateRepository(r *Repository) error
	DeleteRepository(id string) error
}

// PublishedWorkspace is the record stored in a remote repository.
type PublishedWorkspace struct {
	Name        string    `json:"name" db:"name" bson:"_id"`
	XML         string    `json:"xml" db:"xml" bson:"xml"`
	Target      string    `json:"target" db:"target" bson:"target"`
	PublishedAt time.Time `json:"publishedAt" db:"published_at" bson:"publishedAt"`
}
