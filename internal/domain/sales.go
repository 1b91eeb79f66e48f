package domain

import (
	"github.com/shopspring/decimal"
)

// CustomerType classifies a customer account.
type CustomerType string

const (
	CustomerRegular CustomerType = "regular"
	CustomerPremium CustomerType = "premium"
)

// Customer is a buyer referenced by orders.
type Customer struct {
	ID    string       `json:"customer_id"`
	Name  string       `json:"name"`
	Email string       `json:"email"`
	Type  CustomerType `json:"type"`
}

// Product is a catalog item referenced by orders.
type Product struct {
	ID       string          `json:"product_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

// Order is a single sale. Orders are immutable once written; the analytics
// engine only ever reads them.
type Order struct {
	ID         string          `json:"order_id"`
	CustomerID string          `json:"customer_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	TotalPrice decimal.Decimal `json:"total_price"`
	OrderDate  Date            `json:"order_date"`
	Region     string          `json:"region"`
	Category   string          `json:"category"`
}
