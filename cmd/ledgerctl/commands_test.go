package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habibeat/backend/internal/catalog"
	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/store"
	"habibeat/backend/internal/store/memory"
)

func run(t *testing.T, repo store.Repository, args ...string) (subcommands.ExitStatus, *bytes.Buffer) {
	t.Helper()

	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "ledgerctl")
	var out bytes.Buffer
	register(commander, func(context.Context) (store.Repository, func() error, error) {
		return repo, func() error { return nil }, nil
	}, &out)
	require.NoError(t, fs.Parse(args))
	return commander.Execute(context.Background()), &out
}

func seededRepo(t *testing.T) (*memory.Store, domain.Product) {
	t.Helper()
	repo := memory.New()
	product, err := repo.CreateProduct(context.Background(), domain.Product{Name: "Susu UHT", Unit: "liter", UnitPrice: decimal.NewFromInt(18000)})
	require.NoError(t, err)

	at := time.Date(2026, 9, 30, 17, 0, 0, 0, time.UTC)
	for _, e := range []domain.StockEntry{
		{ProductID: product.ID, Section: domain.SectionGudang, Day: 3, Month: time.September, Year: 2026,
			OpeningStock: decimal.NewFromInt(2), StockIn: decimal.NewFromInt(5), StockOut: decimal.NewFromInt(1), LastModifiedAt: at},
		{ProductID: product.ID, Section: domain.SectionGudang, Day: 1, Month: time.September, Year: 2026,
			OpeningStock: decimal.NewFromInt(40), LastModifiedAt: at},
		{ProductID: product.ID, Section: domain.SectionGudang, Day: 1, Month: time.October, Year: 2026,
			StockIn: decimal.NewFromInt(4), LastModifiedBy: "staff", LastModifiedAt: at.AddDate(0, 0, 1)},
	} {
		_, err := repo.UpsertEntry(context.Background(), e)
		require.NoError(t, err)
	}
	return repo, *product
}

func TestCarryOverPrintsLastRecordedDayClosing(t *testing.T) {
	repo, product := seededRepo(t)

	status, out := run(t, repo, "carryover", "-year", "2026", "-month", "10")
	require.Equal(t, subcommands.ExitSuccess, status)

	var payload struct {
		Period  string                                        `json:"period"`
		From    string                                        `json:"from"`
		Closing map[domain.Section]map[string]decimal.Decimal `json:"closing"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload), out.String())
	assert.Equal(t, "2026-10", payload.Period)
	assert.Equal(t, "2026-09", payload.From)
	assert.True(t, decimal.NewFromInt(6).Equal(payload.Closing[domain.SectionGudang][product.ID]))
}

func TestCarryOverRejectsInvalidMonth(t *testing.T) {
	repo, _ := seededRepo(t)
	status, _ := run(t, repo, "carryover", "-year", "2026", "-month", "13")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestSheetPrintsCalculatedDay(t *testing.T) {
	repo, product := seededRepo(t)

	status, out := run(t, repo, "sheet", "-year", "2026", "-month", "10", "-section", "gudang", "-day", "1")
	require.Equal(t, subcommands.ExitSuccess, status)

	var payload struct {
		Rows         []domain.CalculatedStock `json:"rows"`
		LastActivity struct {
			User string `json:"user"`
		} `json:"last_activity"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload), out.String())
	require.Len(t, payload.Rows, 1)
	row := payload.Rows[0]
	assert.Equal(t, product.ID, row.ProductID)
	assert.True(t, decimal.NewFromInt(6).Equal(row.InitialStock), "initial %s", row.InitialStock)
	assert.True(t, decimal.NewFromInt(10).Equal(row.EndStock), "end %s", row.EndStock)
	assert.Equal(t, "staff", payload.LastActivity.User)
}

func TestSheetRejectsBadSelection(t *testing.T) {
	repo, _ := seededRepo(t)

	status, _ := run(t, repo, "sheet", "-year", "2026", "-month", "2", "-day", "30")
	assert.Equal(t, subcommands.ExitUsageError, status)

	status, _ = run(t, repo, "sheet", "-section", "dapur")
	assert.Equal(t, subcommands.ExitUsageError, status)
}

func TestImportFromCSVFile(t *testing.T) {
	repo := memory.New()
	path := filepath.Join(t.TempDir(), "produk.csv")
	require.NoError(t, os.WriteFile(path, []byte("nama,unit\nTeh Celup,box\nGula Pasir,kg\n"), 0o600))

	status, out := run(t, repo, "import", "-file", path)
	require.Equal(t, subcommands.ExitSuccess, status)

	var payload map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &payload))
	assert.Equal(t, 2, payload["created"])

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestImportDefaults(t *testing.T) {
	repo := memory.New()

	status, _ := run(t, repo, "import", "-defaults")
	require.Equal(t, subcommands.ExitSuccess, status)

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, len(catalog.Defaults))
}

func TestImportNeedsExactlyOneSource(t *testing.T) {
	repo := memory.New()

	status, _ := run(t, repo, "import")
	assert.Equal(t, subcommands.ExitUsageError, status)

	status, _ = run(t, repo, "import", "-defaults", "-file", "x.csv")
	assert.Equal(t, subcommands.ExitUsageError, status)
}
