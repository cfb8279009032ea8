package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medeasy/pos/domain"
	"medeasy/pos/internal/database"
	"medeasy/pos/internal/migrations"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(db))
	t.Cleanup(func() { db.Close() })
	return db
}

func invoiceAt(id string, at time.Time, price string, qty int64) *domain.Invoice {
	lines := []domain.CartLine{
		{MedicineID: 1, Name: "Amoxicillin", Quantity: qty, UnitPriceAtAdd: decimal.RequireFromString(price)},
		{MedicineID: 2, Name: "Paracetamol", Quantity: 1, UnitPriceAtAdd: decimal.RequireFromString("0.50")},
	}
	return domain.NewInvoice(id, lines, at, nil, nil)
}

func TestStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	name := "Karim"
	at := time.Date(2026, time.May, 2, 10, 15, 30, 123456789, time.UTC)
	inv := invoiceAt("a1", at, "2.00", 8)
	inv.CustomerName = &name

	require.NoError(t, s.Save(ctx, inv))

	got, err := s.Get(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, at.Equal(got.CreatedAt))
	assert.True(t, decimal.RequireFromString("16.50").Equal(got.TotalAmount))
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Amoxicillin", got.Lines[0].Name)
	assert.True(t, decimal.RequireFromString("16.00").Equal(got.Lines[0].Subtotal))
	require.NotNil(t, got.CustomerName)
	assert.Equal(t, "Karim", *got.CustomerName)
	assert.Nil(t, got.CustomerPhone)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Save(ctx, inv), "ids are unique")
}

func TestStoreListAndTotals(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestDB(t))
	day := time.Date(2026, time.May, 2, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, invoiceAt("early", day.Add(-time.Hour), "1.00", 1)))
	require.NoError(t, s.Save(ctx, invoiceAt("morning", day.Add(9*time.Hour), "2.00", 2)))
	require.NoError(t, s.Save(ctx, invoiceAt("evening", day.Add(20*time.Hour), "3.00", 3)))
	require.NoError(t, s.Save(ctx, invoiceAt("next", day.Add(24*time.Hour), "4.00", 1)))

	start, end := day, day.AddDate(0, 0, 1)
	r := Range{Start: &start, End: &end}

	list, err := s.List(ctx, r)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "evening", list[0].ID, "newest first")
	assert.Equal(t, "morning", list[1].ID)
	assert.Len(t, list[0].Lines, 2)
	assert.Equal(t, int64(3), list[0].Lines[0].Quantity)

	totals, err := s.Totals(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Count)
	// (2*2.00 + 0.50) + (3*3.00 + 0.50)
	assert.True(t, decimal.RequireFromString("14.00").Equal(totals.Revenue), totals.Revenue.String())

	all, err := s.Totals(ctx, Range{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Count)

	empty, err := s.List(ctx, Range{Start: &end, End: &end})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	inv := invoiceAt("m1", time.Now(), "1.00", 1)

	require.NoError(t, m.Save(ctx, inv))
	assert.Error(t, m.Save(ctx, inv))
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, inv, got)
	assert.NotSame(t, inv, got)

	got.Lines[0].Quantity = 1000
	inv.Lines[1].Quantity = 1000
	again, err := m.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Lines[0].Quantity, "stored invoice is immutable")
	assert.Equal(t, int64(1), again.Lines[1].Quantity)

	_, err = m.Get(ctx, "m2")
	assert.ErrorIs(t, err, ErrNotFound)
}
