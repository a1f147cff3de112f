package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/store"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("HABIBEAT_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set HABIBEAT_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(ctx))
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestUpsertEntryLastWriteWins(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	productID := fmt.Sprintf("prd-it-%d", time.Now().UnixNano())
	period := domain.Period{Year: 1999, Month: time.March}
	t.Cleanup(func() {
		_, _ = s.pool.Exec(ctx, `DELETE FROM daily_entries WHERE product_id = $1`, productID)
	})

	at := time.Date(1999, time.March, 5, 10, 0, 0, 0, time.UTC)
	row := domain.StockEntry{
		ProductID:      productID,
		Section:        domain.SectionBooth,
		Day:            5,
		Month:          period.Month,
		Year:           period.Year,
		OpeningStock:   decimal.RequireFromString("2.5"),
		StockIn:        decimal.NewFromInt(10),
		LastModifiedBy: "sari",
		LastModifiedAt: at,
	}
	written, err := s.UpsertEntry(ctx, row)
	require.NoError(t, err)
	assert.True(t, written)

	stale := row
	stale.StockIn = decimal.NewFromInt(1)
	stale.LastModifiedAt = at.Add(-time.Second)
	written, err = s.UpsertEntry(ctx, stale)
	require.NoError(t, err)
	assert.False(t, written)

	rows, err := s.ListEntries(ctx, period)
	require.NoError(t, err)

	var got *domain.StockEntry
	for i := range rows {
		if rows[i].ProductID == productID {
			got = &rows[i]
		}
	}
	require.NotNil(t, got)
	assert.True(t, got.StockIn.Equal(decimal.NewFromInt(10)))
	assert.True(t, got.OpeningStock.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, domain.SectionBooth, got.Section)
	assert.True(t, at.Equal(got.LastModifiedAt))
}

func TestProductCRUD(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created, err := s.CreateProduct(ctx, domain.Product{Name: "Produk IT", Unit: "pcs", UnitPrice: decimal.NewFromInt(1500)})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.DeleteProduct(ctx, created.ID)
	})

	got, err := s.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.Equal(decimal.NewFromInt(1500)))

	require.NoError(t, s.DeleteProduct(ctx, created.ID))
	_, err = s.GetProduct(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
