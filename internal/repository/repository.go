// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/opensource-finance/salespulse/internal/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with SQLite, PostgreSQL and MySQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	case "mysql":
		db, err = openMySQL(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	schemas, err := AllSchemas(r.driver)
	if err != nil {
		return err
	}
	for _, schema := range schemas {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Driver returns the configured driver name.
func (r *SQLRepository) Driver() string {
	return r.driver
}

// WithinTx runs fn in one transaction. Postgres and MySQL use REPEATABLE READ
// so every aggregate in fn sees the same snapshot; SQLite transactions are
// already serializable.
func (r *SQLRepository) WithinTx(ctx context.Context, fn func(tx domain.ReportTx) error) (err error) {
	var opts *sql.TxOptions
	if r.driver != "sqlite" {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	}

	sqlTx, err := r.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", domain.ErrStoreUnavailable, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&reportTx{tx: sqlTx, repo: r}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.Warn("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ListReports retrieves all persisted report summaries, newest first.
func (r *SQLRepository) ListReports(ctx context.Context) ([]*domain.Report, error) {
	query := `
		SELECT id, report_date, start_date, end_date,
			   total_orders, total_revenue, avg_order_value, created_at
		FROM analytics_reports
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]*domain.Report, 0)
	for rows.Next() {
		var rep domain.Report
		var totalOrders, totalRevenue, avgOrderValue domain.Numeric

		if err := rows.Scan(
			&rep.ID, &rep.ReportDate, &rep.StartDate, &rep.EndDate,
			&totalOrders, &totalRevenue, &avgOrderValue, &rep.CreatedAt,
		); err != nil {
			return nil, err
		}

		rep.TotalOrders = totalOrders.Int64()
		rep.TotalRevenue = totalRevenue.Decimal
		rep.AvgOrderValue = avgOrderValue.Decimal
		reports = append(reports, &rep)
	}

	return reports, rows.Err()
}

// SaveRule creates or replaces a report rule.
func (r *SQLRepository) SaveRule(ctx context.Context, rule *domain.ReportRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO report_rules (
			id, name, description, expression, severity, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	if r.driver == "mysql" {
		query += `
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			description = VALUES(description),
			expression = VALUES(expression),
			severity = VALUES(severity),
			enabled = VALUES(enabled),
			updated_at = VALUES(updated_at)
		`
	} else {
		query += `
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			severity = excluded.severity,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
		`
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, rule.Expression,
		string(rule.Severity), enabled, now, now,
	)
	return err
}

// ListRules retrieves all enabled report rules ordered by name.
func (r *SQLRepository) ListRules(ctx context.Context) ([]*domain.ReportRule, error) {
	query := `
		SELECT id, name, description, expression, severity, enabled, created_at, updated_at
		FROM report_rules
		WHERE enabled = 1
		ORDER BY name, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ReportRule
	for rows.Next() {
		var rule domain.ReportRule
		var description domain.Text
		var severity string
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.Name, &description, &rule.Expression,
			&severity, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Description = description.String
		rule.Severity = domain.Severity(severity)
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteRule soft-deletes a rule by setting enabled = 0.
func (r *SQLRepository) DeleteRule(ctx context.Context, ruleID string) error {
	if ruleID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	query := `
		UPDATE report_rules
		SET enabled = 0, updated_at = ?
		WHERE id = ? AND enabled = 1
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
