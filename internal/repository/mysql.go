package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/opensource-finance/salespulse/internal/domain"
)

// openMySQL opens a MySQL database connection.
// DATE and DATETIME columns are scanned as time.Time, so parseTime is forced on.
func openMySQL(cfg domain.RepositoryConfig) (*sql.DB, error) {
	dsn := cfg.MySQLDSN
	if dsn == "" {
		dsn = "root@tcp(localhost:3306)/salespulse"
	}

	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid mysql dsn: %w", err)
	}
	mcfg.ParseTime = true
	mcfg.Loc = time.UTC

	connector, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql database: %w", err)
	}

	return db, nil
}
