package dbclient

import (
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/imagicbell/ublockly-sub001/internal/domain"
)

// buildMySQLDSN formats a MySQL DSN for repo with time parsing enabled.
func buildMySQLDSN(repo *domain.Repository, password string) string {
	port := repo.Port
	if port == 0 {
		port = 3306
	}
	cfg := mysql.NewConfig()
	cfg.User = repo.Username
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(repo.Host, strconv.Itoa(port))
	cfg.DBName = repo.Database
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	if repo.SSLMode == "require" {
		cfg.TLSConfig = "true"
	}
	return cfg.FormatDSN()
}
