package dbclient

import (
	"net"
	"net/url"
	"strconv"

	"github.com/imagicbell/ublockly-sub001/internal/domain"

	_ "github.com/lib/pq"
)

// buildPostgresDSN returns a postgres:// URL for repo. Credentials are
// escaped by net/url so passwords may contain any character.
func buildPostgresDSN(repo *domain.Repository, password string) string {
	port := repo.Port
	if port == 0 {
		port = 5432
	}
	sslMode := repo.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(repo.Username, password),
		Host:     net.JoinHostPort(repo.Host, strconv.Itoa(port)),
		Path:     "/" + repo.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}
