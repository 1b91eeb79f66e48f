package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/salespulse/internal/domain"
)

func text(s string) domain.Text { return domain.Text{String: s, Valid: true} }

func num(s string) domain.Numeric {
	return domain.Numeric{Decimal: decimal.RequireFromString(s), Valid: true}
}

func TestApplySummary(t *testing.T) {
	tests := []struct {
		name    string
		row     domain.SummaryRow
		orders  int64
		revenue string
		avg     string
	}{
		{"NoOrders", domain.SummaryRow{}, 0, "0", "0"},
		{"NullSumWithCount", domain.SummaryRow{TotalOrders: num("2")}, 2, "0", "0"},
		{"Rounded", domain.SummaryRow{TotalOrders: num("3"), TotalRevenue: num("100.004")}, 3, "100", "33.33"},
		{"HalfUp", domain.SummaryRow{TotalOrders: num("2"), TotalRevenue: num("0.05")}, 2, "0.05", "0.03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r domain.Report
			applySummary(&r, tt.row)

			assert.Equal(t, tt.orders, r.TotalOrders)
			assert.Equal(t, tt.revenue, r.TotalRevenue.String())
			assert.Equal(t, tt.avg, r.AvgOrderValue.String())
		})
	}
}

func TestNormalizeProducts(t *testing.T) {
	rows := []domain.ProductRow{
		{ProductID: text("b"), Name: text("Bolt"), TotalSold: num("5")},
		{ProductID: text("a"), Name: text("Anchor"), TotalSold: num("5")},
		{ProductID: domain.Text{}, Name: domain.Text{}, TotalSold: num("9")},
		{ProductID: text("c"), Name: text(" "), TotalSold: domain.Numeric{}},
	}

	got := normalizeProducts(rows, 3)

	require.Len(t, got, 3)
	assert.Equal(t, domain.ProductSales{ProductID: UnknownID, Name: UnknownProduct, TotalSold: 9}, got[0])
	assert.Equal(t, "a", got[1].ProductID)
	assert.Equal(t, "b", got[2].ProductID)
}

func TestNormalizeCustomers(t *testing.T) {
	rows := []domain.CustomerRow{
		{CustomerID: text("c1"), Name: text("Ada"), TotalSpent: num("10.005")},
		{CustomerID: text("c2"), Name: domain.Text{}, TotalSpent: num("99.999")},
	}

	got := normalizeCustomers(rows, domain.TopN)

	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].CustomerID)
	assert.Equal(t, UnknownCustomer, got[0].Name)
	assert.Equal(t, "100", got[0].TotalSpent.String())
	assert.Equal(t, "10.01", got[1].TotalSpent.String())
}

func TestNormalizeGroups(t *testing.T) {
	rows := []domain.GroupRow{
		{Key: text("West"), TotalRevenue: num("1"), TotalOrders: num("1")},
		{Key: domain.Text{}, TotalRevenue: num("2"), TotalOrders: num("2")},
		{Key: text("East"), TotalRevenue: num("3"), TotalOrders: num("3")},
	}

	got := normalizeGroups(rows)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"East", UnknownID, "West"}, []string{got[0].Key, got[1].Key, got[2].Key})
	assert.NotNil(t, normalizeGroups(nil))
}
