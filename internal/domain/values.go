package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Text is a nullable string column.
type Text struct {
	String string
	Valid  bool
}

// Scan implements sql.Scanner.
func (t *Text) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.String, t.Valid = "", false
	case string:
		t.String, t.Valid = v, true
	case []byte:
		t.String, t.Valid = string(v), true
	case int64:
		t.String, t.Valid = fmt.Sprintf("%d", v), true
	default:
		return fmt.Errorf("text: unsupported type %T", src)
	}
	return nil
}

// Or returns the value, or fallback when the column was NULL or blank.
func (t Text) Or(fallback string) string {
	if !t.Valid || strings.TrimSpace(t.String) == "" {
		return fallback
	}
	return t.String
}

// Numeric is a nullable aggregate column. Backends disagree on how they hand
// back SUM/COUNT results (int64, float64, or decimal text), so Scan accepts
// all of them. NULL, NaN, infinities and unparseable text all collapse to
// zero with Valid=false.
type Numeric struct {
	Decimal decimal.Decimal
	Valid   bool
}

// Scan implements sql.Scanner.
func (n *Numeric) Scan(src any) error {
	n.Decimal, n.Valid = decimal.Zero, false

	switch v := src.(type) {
	case nil:
		return nil
	case int64:
		n.Decimal = decimal.NewFromInt(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n.Decimal = decimal.NewFromFloat(v)
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("numeric: unsupported type %T", src)
	}

	n.Valid = true
	return nil
}

func (n *Numeric) parse(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	n.Decimal, n.Valid = d, true
	return nil
}

// Int64 truncates the value toward zero.
func (n Numeric) Int64() int64 {
	return n.Decimal.IntPart()
}
