package repository

import "fmt"

// Schema definitions for the SalesPulse database.
// Column types differ per driver, so each table is rendered from a dialect.

type dialect struct {
	key       string // primary/foreign key columns
	text      string
	money     string
	bigMoney  string
	date      string
	timestamp string
	serialPK  string
	boolean   string
	// MySQL has no CREATE INDEX IF NOT EXISTS; indexes go inline there.
	inlineIndexes bool
}

var dialects = map[string]dialect{
	"sqlite": {
		key:       "TEXT",
		text:      "TEXT",
		money:     "REAL",
		bigMoney:  "REAL",
		date:      "TEXT",
		timestamp: "TIMESTAMP",
		serialPK:  "INTEGER PRIMARY KEY AUTOINCREMENT",
		boolean:   "INTEGER",
	},
	"postgres": {
		key:       "VARCHAR(64)",
		text:      "TEXT",
		money:     "NUMERIC(10, 2)",
		bigMoney:  "NUMERIC(15, 2)",
		date:      "DATE",
		timestamp: "TIMESTAMPTZ",
		serialPK:  "BIGSERIAL PRIMARY KEY",
		boolean:   "SMALLINT",
	},
	"mysql": {
		key:           "VARCHAR(64)",
		text:          "TEXT",
		money:         "DECIMAL(10, 2)",
		bigMoney:      "DECIMAL(15, 2)",
		date:          "DATE",
		timestamp:     "DATETIME(6)",
		serialPK:      "BIGINT AUTO_INCREMENT PRIMARY KEY",
		boolean:       "TINYINT",
		inlineIndexes: true,
	},
}

func (d dialect) customers() []string {
	return []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS customers (
    customer_id %[1]s PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL,
    type VARCHAR(50) NOT NULL
)`, d.key)}
}

func (d dialect) products() []string {
	return []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS products (
    product_id %[1]s PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    category VARCHAR(50) NOT NULL,
    price %[2]s NOT NULL
)`, d.key, d.money)}
}

func (d dialect) orders() []string {
	indexes := ""
	if d.inlineIndexes {
		indexes = `,
    INDEX idx_orders_date (order_date),
    INDEX idx_orders_product (product_id, order_date),
    INDEX idx_orders_customer (customer_id, order_date)`
	}

	stmts := []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS orders (
    order_id %[1]s PRIMARY KEY,
    customer_id %[1]s,
    product_id %[1]s,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    total_price %[2]s NOT NULL CHECK (total_price >= 0),
    order_date %[3]s NOT NULL,
    region VARCHAR(50) NOT NULL,
    category VARCHAR(50) NOT NULL,
    FOREIGN KEY (customer_id) REFERENCES customers(customer_id),
    FOREIGN KEY (product_id) REFERENCES products(product_id)%[4]s
)`, d.key, d.money, d.date, indexes)}

	if !d.inlineIndexes {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(order_date)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_product ON orders(product_id, order_date)`,
			`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id, order_date)`,
		)
	}
	return stmts
}

func (d dialect) analyticsReports() []string {
	indexes := ""
	if d.inlineIndexes {
		indexes = `,
    INDEX idx_reports_created (created_at)`
	}

	stmts := []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS analytics_reports (
    id %[1]s,
    report_date %[2]s NOT NULL,
    start_date %[2]s NOT NULL,
    end_date %[2]s NOT NULL,
    total_orders INTEGER NOT NULL,
    total_revenue %[3]s NOT NULL,
    avg_order_value %[4]s NOT NULL,
    created_at %[5]s NOT NULL%[6]s
)`, d.serialPK, d.date, d.bigMoney, d.money, d.timestamp, indexes)}

	if !d.inlineIndexes {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_reports_created ON analytics_reports(created_at)`,
		)
	}
	return stmts
}

// reportRules holds CEL rules evaluated against generated reports.
func (d dialect) reportRules() []string {
	return []string{fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS report_rules (
    id %[1]s PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    description %[2]s,
    expression %[2]s NOT NULL,
    severity VARCHAR(16) NOT NULL,
    enabled %[3]s NOT NULL DEFAULT 1,
    created_at %[4]s NOT NULL,
    updated_at %[4]s NOT NULL
)`, d.key, d.text, d.boolean, d.timestamp)}
}

// AllSchemas returns all schema statements for driver, in dependency order.
func AllSchemas(driver string) ([]string, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	var stmts []string
	stmts = append(stmts, d.customers()...)
	stmts = append(stmts, d.products()...)
	stmts = append(stmts, d.orders()...)
	stmts = append(stmts, d.analyticsReports()...)
	stmts = append(stmts, d.reportRules()...)
	return stmts, nil
}
