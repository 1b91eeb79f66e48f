package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopN is the length cap for the top-products and top-customers lists.
const TopN = 5

// Report is one generated analytics summary. Only the summary fields, the
// dates and CreatedAt are persisted; the breakdown lists and flags exist only
// on the value returned by the generation call.
type Report struct {
	ID            int64           `json:"id"`
	ReportDate    Date            `json:"report_date"`
	StartDate     Date            `json:"start_date"`
	EndDate       Date            `json:"end_date"`
	TotalOrders   int64           `json:"total_orders"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
	CreatedAt     time.Time       `json:"created_at"`

	TopProducts   []ProductSales  `json:"top_products,omitempty"`
	TopCustomers  []CustomerSpend `json:"top_customers,omitempty"`
	RegionStats   []GroupStat     `json:"region_wise_stats,omitempty"`
	CategoryStats []GroupStat     `json:"category_wise_stats,omitempty"`
	Flags         []Flag          `json:"flags,omitempty"`
}

// ProductSales is a top-products entry ranked by units sold.
type ProductSales struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int64  `json:"total_sold"`
}

// CustomerSpend is a top-customers entry ranked by revenue.
type CustomerSpend struct {
	CustomerID string          `json:"customer_id"`
	Name       string          `json:"name"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// GroupStat is a revenue/order-count pair for one region or category.
type GroupStat struct {
	Key          string          `json:"key"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int64           `json:"total_orders"`
}

// Raw rows as returned by the store, before normalization.

// SummaryRow holds the range-wide COUNT and SUM.
type SummaryRow struct {
	TotalOrders  Numeric
	TotalRevenue Numeric
}

// ProductRow is one grouped top-products row.
type ProductRow struct {
	ProductID Text
	Name      Text
	TotalSold Numeric
}

// CustomerRow is one grouped top-customers row.
type CustomerRow struct {
	CustomerID Text
	Name       Text
	TotalSpent Numeric
}

// GroupRow is one grouped region or category row.
type GroupRow struct {
	Key          Text
	TotalRevenue Numeric
	TotalOrders  Numeric
}

// ReportEvent is published on TopicReportGenerated after a report commits.
type ReportEvent struct {
	ReportID    int64     `json:"reportId"`
	StartDate   Date      `json:"startDate"`
	EndDate     Date      `json:"endDate"`
	TotalOrders int64     `json:"totalOrders"`
	FlagCount   int       `json:"flagCount"`
	GeneratedAt time.Time `json:"generatedAt"`
}
