package dbclient

import (
	"github.com/imagicbell/ublockly-sub001/internal/domain"

	_ "modernc.org/sqlite"
)

// newSQLiteClient opens a repository kept in a shared SQLite file, in WAL
// mode with a busy timeout for concurrent access.
func newSQLiteClient(repo *domain.Repository, ex extras) (*sqlClient, error) {
	dsn := repo.Host + "?_journal_mode=WAL&_busy_timeout=5000"
	return newSQLClient("sqlite", dsn, ex)
}
