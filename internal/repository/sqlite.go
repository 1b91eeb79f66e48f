package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/opensource-finance/salespulse/internal/domain"
)

// sqlitePragmas are applied to every pooled connection. Orders reference
// customers and products, so foreign keys must be on per connection.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
	"foreign_keys(ON)",
}

// sqliteDSN builds a modernc.org/sqlite file URI. Report generation reads then
// inserts in one transaction; _txlock=immediate takes the write lock at BEGIN
// so concurrent generations queue on busy_timeout instead of failing.
func sqliteDSN(path string) string {
	params := make([]string, 0, len(sqlitePragmas)+2)
	for _, p := range sqlitePragmas {
		params = append(params, "_pragma="+p)
	}
	params = append(params, "_txlock=immediate", "_time_format=sqlite")
	return "file:" + path + "?" + strings.Join(params, "&")
}

// openSQLite opens the pure Go SQLite driver (no CGO).
func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "./salespulse.db"
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}
