package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"habibeat/backend/internal/catalog"
	"habibeat/backend/internal/domain"
	"habibeat/backend/internal/store"
)

var october = domain.Period{Year: 2026, Month: time.October}

func entry(day int, stockIn int64, at time.Time) domain.StockEntry {
	return domain.StockEntry{
		ProductID:      "p1",
		Section:        domain.SectionGudang,
		Day:            day,
		Year:           october.Year,
		Month:          october.Month,
		StockIn:        decimal.NewFromInt(stockIn),
		LastModifiedBy: "sari",
		LastModifiedAt: at,
	}
}

func TestNewSeededHasCatalogAndHashedUsers(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, len(catalog.Defaults))
	for i := 1; i < len(products); i++ {
		assert.LessOrEqual(t, products[i-1].Name, products[i].Name)
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte(envOr("SEED_ADMIN_PASSWORD", "admin123"))))
}

func TestUpsertEntryKeepsLaterWrite(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := time.Date(2026, time.October, 3, 9, 0, 0, 0, time.UTC)

	written, err := s.UpsertEntry(ctx, entry(3, 5, t1.Add(time.Second)))
	require.NoError(t, err)
	assert.True(t, written)
	written, err = s.UpsertEntry(ctx, entry(3, 1, t1))
	require.NoError(t, err)
	assert.False(t, written, "older row is not written")

	rows, err := s.ListEntries(ctx, october)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].StockIn.Equal(decimal.NewFromInt(5)))

	written, err = s.UpsertEntry(ctx, entry(3, 8, t1.Add(time.Second)))
	require.NoError(t, err)
	assert.True(t, written)
	rows, _ = s.ListEntries(ctx, october)
	assert.True(t, rows[0].StockIn.Equal(decimal.NewFromInt(8)), "equal timestamps replace")
}

func TestUpsertEntryRejectsInvalidRows(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.UpsertEntry(ctx, entry(0, 1, time.Now()))
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	bad := entry(2, 1, time.Now())
	bad.Section = "kitchen"
	_, err = s.UpsertEntry(ctx, bad)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestListEntriesByDayDescAndMonthScope(t *testing.T) {
	s := New()
	ctx := context.Background()
	at := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)

	for _, day := range []int{4, 28, 12} {
		_, err := s.UpsertEntry(ctx, entry(day, 1, at))
		require.NoError(t, err)
	}
	other := entry(30, 1, at)
	other.Month = time.September
	_, err := s.UpsertEntry(ctx, other)
	require.NoError(t, err)

	rows, err := s.ListEntriesByDayDesc(ctx, october)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{28, 12, 4}, []int{rows[0].Day, rows[1].Day, rows[2].Day})
}

func TestProductLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.CreateProduct(ctx, domain.Product{Name: "", Unit: "kg"})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	created, err := s.CreateProduct(ctx, domain.Product{Name: "Gula Pasir", Unit: "kg", UnitPrice: decimal.NewFromInt(17000)})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	created.UnitPrice = decimal.NewFromInt(18000)
	updated, err := s.UpdateProduct(ctx, *created)
	require.NoError(t, err)
	assert.True(t, updated.UnitPrice.Equal(decimal.NewFromInt(18000)))

	require.NoError(t, s.DeleteProduct(ctx, created.ID))
	_, err = s.GetProduct(ctx, created.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteProduct(ctx, created.ID), store.ErrNotFound)
}

func TestUserLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: " Budi ", Name: "Budi", Password: "hash"}))
	assert.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "budi", Password: "hash"}), store.ErrConflict)

	user, err := s.SetUserActive(ctx, "BUDI", false)
	require.NoError(t, err)
	assert.False(t, user.Active)
	assert.Equal(t, domain.RoleStaff, user.Role)

	require.NoError(t, s.DeleteUser(ctx, "budi"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "budi"), store.ErrNotFound)
}
