package repository

import (
	"context"
	"database/sql"

	"github.com/opensource-finance/salespulse/internal/domain"
)

var _ domain.Repository = (*SQLRepository)(nil)

// reportTx implements domain.ReportTx on top of a single *sql.Tx.
type reportTx struct {
	tx   *sql.Tx
	repo *SQLRepository
}

// Summary returns the order count and revenue for the range.
func (t *reportTx) Summary(ctx context.Context, rng domain.DateRange) (domain.SummaryRow, error) {
	query := `
		SELECT COUNT(*) AS total_orders, SUM(total_price) AS total_revenue
		FROM orders
		WHERE order_date BETWEEN ? AND ?
	`

	var row domain.SummaryRow
	err := t.tx.QueryRowContext(ctx, t.repo.rebind(query), rng.Start, rng.End).Scan(
		&row.TotalOrders, &row.TotalRevenue,
	)
	return row, err
}

// TopProducts ranks products by units sold. Orders whose product is missing
// from the catalog still group under their raw product_id.
func (t *reportTx) TopProducts(ctx context.Context, rng domain.DateRange, limit int) ([]domain.ProductRow, error) {
	query := `
		SELECT o.product_id, p.name, SUM(o.quantity) AS total_sold
		FROM orders o
		LEFT JOIN products p ON o.product_id = p.product_id
		WHERE o.order_date BETWEEN ? AND ?
		GROUP BY o.product_id, p.name
		ORDER BY total_sold DESC, o.product_id ASC
		LIMIT ?
	`

	rows, err := t.tx.QueryContext(ctx, t.repo.rebind(query), rng.Start, rng.End, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProductRow
	for rows.Next() {
		var row domain.ProductRow
		if err := rows.Scan(&row.ProductID, &row.Name, &row.TotalSold); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TopCustomers ranks customers by total spend.
func (t *reportTx) TopCustomers(ctx context.Context, rng domain.DateRange, limit int) ([]domain.CustomerRow, error) {
	query := `
		SELECT o.customer_id, c.name, SUM(o.total_price) AS total_spent
		FROM orders o
		LEFT JOIN customers c ON o.customer_id = c.customer_id
		WHERE o.order_date BETWEEN ? AND ?
		GROUP BY o.customer_id, c.name
		ORDER BY total_spent DESC, o.customer_id ASC
		LIMIT ?
	`

	rows, err := t.tx.QueryContext(ctx, t.repo.rebind(query), rng.Start, rng.End, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CustomerRow
	for rows.Next() {
		var row domain.CustomerRow
		if err := rows.Scan(&row.CustomerID, &row.Name, &row.TotalSpent); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// RegionStats groups revenue and order count by region, ascending by name.
func (t *reportTx) RegionStats(ctx context.Context, rng domain.DateRange) ([]domain.GroupRow, error) {
	return t.groupStats(ctx, rng, "region")
}

// CategoryStats groups revenue and order count by category, ascending by name.
func (t *reportTx) CategoryStats(ctx context.Context, rng domain.DateRange) ([]domain.GroupRow, error) {
	return t.groupStats(ctx, rng, "category")
}

// groupStats is shared by the region and category breakdowns. column is
// always one of the two literals above, never user input.
func (t *reportTx) groupStats(ctx context.Context, rng domain.DateRange, column string) ([]domain.GroupRow, error) {
	query := `
		SELECT ` + column + `, SUM(total_price) AS total_revenue, COUNT(*) AS total_orders
		FROM orders
		WHERE order_date BETWEEN ? AND ?
		GROUP BY ` + column + `
		ORDER BY ` + column + ` ASC
	`

	rows, err := t.tx.QueryContext(ctx, t.repo.rebind(query), rng.Start, rng.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GroupRow
	for rows.Next() {
		var row domain.GroupRow
		if err := rows.Scan(&row.Key, &row.TotalRevenue, &row.TotalOrders); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AppendReport inserts the persisted part of rep and returns its id.
func (t *reportTx) AppendReport(ctx context.Context, rep *domain.Report) (int64, error) {
	query := `
		INSERT INTO analytics_reports (
			report_date, start_date, end_date,
			total_orders, total_revenue, avg_order_value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{
		rep.ReportDate, rep.StartDate, rep.EndDate,
		rep.TotalOrders, rep.TotalRevenue, rep.AvgOrderValue, rep.CreatedAt,
	}

	// lib/pq does not implement LastInsertId.
	if t.repo.driver == "postgres" {
		var id int64
		err := t.tx.QueryRowContext(ctx, t.repo.rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}

	result, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
