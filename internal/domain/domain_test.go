package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodPreviousRollsYear(t *testing.T) {
	assert.Equal(t, Period{Year: 2025, Month: time.December}, Period{Year: 2026, Month: time.January}.Previous())
	assert.Equal(t, Period{Year: 2026, Month: time.February}, Period{Year: 2026, Month: time.March}.Previous())
	assert.Equal(t, Period{Year: 2027, Month: time.January}, Period{Year: 2026, Month: time.December}.Next())
}

func TestPeriodArchived(t *testing.T) {
	now := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

	assert.True(t, Period{Year: 2026, Month: time.September}.Archived(now))
	assert.True(t, Period{Year: 2025, Month: time.November}.Archived(now))
	assert.False(t, Period{Year: 2026, Month: time.October}.Archived(now))
	assert.False(t, Period{Year: 2026, Month: time.November}.Archived(now))
}

func TestPeriodDays(t *testing.T) {
	assert.Equal(t, 29, Period{Year: 2028, Month: time.February}.Days())
	assert.Equal(t, 28, Period{Year: 2026, Month: time.February}.Days())
	assert.Equal(t, 31, Period{Year: 2026, Month: time.October}.Days())
}

func TestParseQuantityCoercesGarbageToZero(t *testing.T) {
	cases := map[string]string{
		"":        "0",
		"abc":     "0",
		"-4":      "0",
		" 12 ":    "12",
		"2.5":     "2.5",
		"1.23456": "1.235",
		"0.0004":  "0",
	}
	for raw, want := range cases {
		got := ParseQuantity(raw)
		assert.True(t, decimal.RequireFromString(want).Equal(got), "input %q: got %s", raw, got)
	}
}

func TestEditApplyKeepsOtherFields(t *testing.T) {
	entry := StockEntry{
		StockIn:     decimal.NewFromInt(4),
		StockOut:    decimal.NewFromInt(1),
		Description: "restock",
	}

	edit, err := NewEdit(FieldStockOut, "3")
	require.NoError(t, err)
	got := edit.Apply(entry)

	assert.True(t, got.StockIn.Equal(decimal.NewFromInt(4)))
	assert.True(t, got.StockOut.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, "restock", got.Description)
}

func TestParseFieldAndSection(t *testing.T) {
	f, err := ParseField("stock_in")
	require.NoError(t, err)
	assert.Equal(t, FieldStockIn, f)

	_, err = ParseField("price")
	assert.ErrorIs(t, err, ErrUnknownField)

	s, err := ParseSection("Booth")
	require.NoError(t, err)
	assert.Equal(t, SectionBooth, s)

	_, err = ParseSection("kitchen")
	assert.ErrorIs(t, err, ErrUnknownSection)
}
