package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Field names an editable column of a StockEntry.
type Field string

const (
	FieldOpeningStock Field = "openingStock"
	FieldStockIn      Field = "stockIn"
	FieldStockOut     Field = "stockOut"
	FieldDescription  Field = "description"
)

// QuantityScale is the number of decimals a quantity keeps. It matches the
// NUMERIC(14, 3) columns of daily_entries.
const QuantityScale = 3

func ParseField(raw string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openingstock", "opening_stock":
		return FieldOpeningStock, nil
	case "stockin", "stock_in":
		return FieldStockIn, nil
	case "stockout", "stock_out":
		return FieldStockOut, nil
	case "description":
		return FieldDescription, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, raw)
	}
}

func (f Field) Numeric() bool {
	return f == FieldOpeningStock || f == FieldStockIn || f == FieldStockOut
}

// Edit is a single field change. Quantity is used by numeric fields, Text by description.
type Edit struct {
	Field    Field
	Quantity decimal.Decimal
	Text     string
}

// NewEdit builds an Edit from raw user input. Numeric input that does not parse, or
// that is negative, becomes zero instead of being rejected.
func NewEdit(field Field, raw string) (Edit, error) {
	switch {
	case field == FieldDescription:
		return Edit{Field: field, Text: raw}, nil
	case field.Numeric():
		return Edit{Field: field, Quantity: ParseQuantity(raw)}, nil
	default:
		return Edit{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
}

// Apply returns entry with the edited field replaced and every other field kept.
func (e Edit) Apply(entry StockEntry) StockEntry {
	switch e.Field {
	case FieldOpeningStock:
		entry.OpeningStock = e.Quantity
	case FieldStockIn:
		entry.StockIn = e.Quantity
	case FieldStockOut:
		entry.StockOut = e.Quantity
	case FieldDescription:
		entry.Description = e.Text
	}
	return entry
}

// ParseQuantity reads a non-negative quantity rounded to QuantityScale. Anything
// unparseable or negative reads as zero.
func ParseQuantity(raw string) decimal.Decimal {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero
	}
	val, err := decimal.NewFromString(trimmed)
	if err != nil || val.IsNegative() {
		return decimal.Zero
	}
	return val.Round(QuantityScale)
}
