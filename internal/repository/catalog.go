package repository

import (
	"context"
	"fmt"

	"github.com/opensource-finance/salespulse/internal/domain"
)

// Catalog writes.
//
// The service only reads customers, products and orders; nothing on the
// request path calls these. They are exported so tests in other packages can
// seed fixtures through the same validation the schema expects.

// SaveCustomer inserts a customer row. Fixture seeding only.
func (r *SQLRepository) SaveCustomer(ctx context.Context, c *domain.Customer) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}

	query := `INSERT INTO customers (customer_id, name, email, type) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.rebind(query), c.ID, c.Name, c.Email, string(c.Type))
	return err
}

// SaveProduct inserts a product row. Fixture seeding only.
func (r *SQLRepository) SaveProduct(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidInput)
	}

	query := `INSERT INTO products (product_id, name, category, price) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, r.rebind(query), p.ID, p.Name, p.Category, p.Price)
	return err
}

// SaveOrder inserts an order row. Orders are never updated. Fixture seeding
// only.
func (r *SQLRepository) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}
	if o.TotalPrice.IsNegative() {
		return fmt.Errorf("%w: total price must not be negative", ErrInvalidInput)
	}

	query := `
		INSERT INTO orders (
			order_id, customer_id, product_id, quantity, total_price,
			order_date, region, category
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		o.ID, nullable(o.CustomerID), nullable(o.ProductID),
		o.Quantity, o.TotalPrice, o.OrderDate, o.Region, o.Category,
	)
	return err
}

// nullable maps an empty reference to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
