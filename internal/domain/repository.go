// Package domain defines the core interfaces and types for SalesPulse.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// WithinTx runs fn inside a single database transaction. The transaction
	// commits only if fn returns nil; any error or panic rolls it back.
	WithinTx(ctx context.Context, fn func(tx ReportTx) error) error

	// ListReports returns persisted report summaries, newest first.
	ListReports(ctx context.Context) ([]*Report, error)

	// Report rule operations
	SaveRule(ctx context.Context, rule *ReportRule) error
	ListRules(ctx context.Context) ([]*ReportRule, error)
	DeleteRule(ctx context.Context, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// ReportTx is the unit of work used by report generation. Every method runs
// against the same transaction.
type ReportTx interface {
	Summary(ctx context.Context, rng DateRange) (SummaryRow, error)
	TopProducts(ctx context.Context, rng DateRange, limit int) ([]ProductRow, error)
	TopCustomers(ctx context.Context, rng DateRange, limit int) ([]CustomerRow, error)
	RegionStats(ctx context.Context, rng DateRange) ([]GroupRow, error)
	CategoryStats(ctx context.Context, rng DateRange) ([]GroupRow, error)

	// AppendReport inserts the summary fields of r and returns the new id.
	AppendReport(ctx context.Context, r *Report) (int64, error)
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite", "postgres" or "mysql"
	Driver string `mapstructure:"driver"`

	// SQLite specific
	SQLitePath string `mapstructure:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `mapstructure:"postgresHost"`
	PostgresPort     int    `mapstructure:"postgresPort"`
	PostgresUser     string `mapstructure:"postgresUser"`
	PostgresPassword string `mapstructure:"postgresPassword"`
	PostgresDB       string `mapstructure:"postgresDB"`
	PostgresSSLMode  string `mapstructure:"postgresSSLMode"`

	// MySQL specific
	MySQLDSN string `mapstructure:"mysqlDSN"`

	// Connection pool settings
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}
