package analytics

import (
	"cmp"
	"slices"

	"github.com/opensource-finance/salespulse/internal/domain"
	"github.com/shopspring/decimal"
)

// Placeholders for NULL keys and names.
const (
	UnknownID       = "Unknown"
	UnknownProduct  = "Unknown Product"
	UnknownCustomer = "Unknown Customer"
)

var moneyPlaces int32 = 2

// applySummary fills the summary fields of r. The average is derived from
// the rounded revenue so that avg = revenue / orders holds exactly, and is
// zero when there are no orders.
func applySummary(r *domain.Report, row domain.SummaryRow) {
	r.TotalOrders = row.TotalOrders.Int64()
	if r.TotalOrders < 0 {
		r.TotalOrders = 0
	}
	r.TotalRevenue = row.TotalRevenue.Decimal.Round(moneyPlaces)

	r.AvgOrderValue = decimal.Zero
	if r.TotalOrders > 0 {
		r.AvgOrderValue = r.TotalRevenue.DivRound(decimal.NewFromInt(r.TotalOrders), moneyPlaces)
	}
}

func normalizeProducts(rows []domain.ProductRow, limit int) []domain.ProductSales {
	out := make([]domain.ProductSales, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ProductSales{
			ProductID: row.ProductID.Or(UnknownID),
			Name:      row.Name.Or(UnknownProduct),
			TotalSold: row.TotalSold.Int64(),
		})
	}

	slices.SortStableFunc(out, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.TotalSold, a.TotalSold); c != 0 {
			return c
		}
		return cmp.Compare(a.ProductID, b.ProductID)
	})
	return truncate(out, limit)
}

func normalizeCustomers(rows []domain.CustomerRow, limit int) []domain.CustomerSpend {
	out := make([]domain.CustomerSpend, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CustomerSpend{
			CustomerID: row.CustomerID.Or(UnknownID),
			Name:       row.Name.Or(UnknownCustomer),
			TotalSpent: row.TotalSpent.Decimal.Round(moneyPlaces),
		})
	}

	slices.SortStableFunc(out, func(a, b domain.CustomerSpend) int {
		if c := b.TotalSpent.Cmp(a.TotalSpent); c != 0 {
			return c
		}
		return cmp.Compare(a.CustomerID, b.CustomerID)
	})
	return truncate(out, limit)
}

func normalizeGroups(rows []domain.GroupRow) []domain.GroupStat {
	out := make([]domain.GroupStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.GroupStat{
			Key:          row.Key.Or(UnknownID),
			TotalRevenue: row.TotalRevenue.Decimal.Round(moneyPlaces),
			TotalOrders:  row.TotalOrders.Int64(),
		})
	}

	slices.SortStableFunc(out, func(a, b domain.GroupStat) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

func truncate[T any](s []T, limit int) []T {
	if limit >= 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
