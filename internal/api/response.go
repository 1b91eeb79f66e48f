package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/opensource-finance/salespulse/internal/domain"
)

// ReportSummary is a report as it appears in the history list.
type ReportSummary struct {
	ID            int64     `json:"id"`
	ReportDate    string    `json:"report_date"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	TotalOrders   int64     `json:"total_orders"`
	TotalRevenue  float64   `json:"total_revenue"`
	AvgOrderValue float64   `json:"avg_order_value"`
	CreatedAt     time.Time `json:"created_at"`
}

// ReportResponse is a freshly generated report. Every list is present, empty
// or not.
type ReportResponse struct {
	ReportSummary
	TopProducts       []ProductSalesResponse  `json:"top_products"`
	TopCustomers      []CustomerSpendResponse `json:"top_customers"`
	RegionWiseStats   []RegionStatResponse    `json:"region_wise_stats"`
	CategoryWiseStats []CategoryStatResponse  `json:"category_wise_stats"`
	Flags             []domain.Flag           `json:"flags"`
}

type ProductSalesResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int64  `json:"total_sold"`
}

type CustomerSpendResponse struct {
	CustomerID string  `json:"customer_id"`
	Name       string  `json:"name"`
	TotalSpent float64 `json:"total_spent"`
}

type RegionStatResponse struct {
	Region       string  `json:"region"`
	TotalRevenue float64 `json:"total_revenue"`
	TotalOrders  int64   `json:"total_orders"`
}

type CategoryStatResponse struct {
	Category     string  `json:"category"`
	TotalRevenue float64 `json:"total_revenue"`
	TotalOrders  int64   `json:"total_orders"`
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// NewReportSummary converts the persisted part of r.
func NewReportSummary(r *domain.Report) ReportSummary {
	return ReportSummary{
		ID:            r.ID,
		ReportDate:    r.ReportDate.String(),
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		TotalOrders:   r.TotalOrders,
		TotalRevenue:  money(r.TotalRevenue),
		AvgOrderValue: money(r.AvgOrderValue),
		CreatedAt:     r.CreatedAt,
	}
}

// NewReportSummaries converts a report history. The result is never nil.
func NewReportSummaries(reports []*domain.Report) []ReportSummary {
	out := make([]ReportSummary, 0, len(reports))
	for _, r := range reports {
		out = append(out, NewReportSummary(r))
	}
	return out
}

// NewReportResponse converts a generated report.
func NewReportResponse(r *domain.Report) ReportResponse {
	resp := ReportResponse{
		ReportSummary:     NewReportSummary(r),
		TopProducts:       make([]ProductSalesResponse, 0, len(r.TopProducts)),
		TopCustomers:      make([]CustomerSpendResponse, 0, len(r.TopCustomers)),
		RegionWiseStats:   make([]RegionStatResponse, 0, len(r.RegionStats)),
		CategoryWiseStats: make([]CategoryStatResponse, 0, len(r.CategoryStats)),
		Flags:             r.Flags,
	}
	if resp.Flags == nil {
		resp.Flags = []domain.Flag{}
	}

	for _, p := range r.TopProducts {
		resp.TopProducts = append(resp.TopProducts, ProductSalesResponse{
			ProductID: p.ProductID,
			Name:      p.Name,
			TotalSold: p.TotalSold,
		})
	}
	for _, c := range r.TopCustomers {
		resp.TopCustomers = append(resp.TopCustomers, CustomerSpendResponse{
			CustomerID: c.CustomerID,
			Name:       c.Name,
			TotalSpent: money(c.TotalSpent),
		})
	}
	for _, g := range r.RegionStats {
		resp.RegionWiseStats = append(resp.RegionWiseStats, RegionStatResponse{
			Region:       g.Key,
			TotalRevenue: money(g.TotalRevenue),
			TotalOrders:  g.TotalOrders,
		})
	}
	for _, g := range r.CategoryStats {
		resp.CategoryWiseStats = append(resp.CategoryWiseStats, CategoryStatResponse{
			Category:     g.Key,
			TotalRevenue: money(g.TotalRevenue),
			TotalOrders:  g.TotalOrders,
		})
	}
	return resp
}
