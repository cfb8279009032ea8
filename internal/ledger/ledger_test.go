package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
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

// ledgers runs fn against every implementation with the same seed rows.
func ledgers(t *testing.T, fn func(t *testing.T, l Ledger, ids []int64)) {
	seed := []domain.Medicine{
		{Name: "Amoxicillin 500mg", QuantityOnHand: 10, UnitPrice: decimal.RequireFromString("2.00")},
		{Name: "Paracetamol 500mg", QuantityOnHand: 3, UnitPrice: decimal.RequireFromString("0.50")},
	}

	t.Run("memory", func(t *testing.T) {
		m := NewMemory()
		var ids []int64
		for _, med := range seed {
			ids = append(ids, m.Put(med).ID)
		}
		fn(t, m, ids)
	})

	t.Run("sqlite", func(t *testing.T) {
		s := NewSQLStore(newTestDB(t))
		var ids []int64
		for _, med := range seed {
			created, err := s.Create(context.Background(), med)
			require.NoError(t, err)
			ids = append(ids, created.ID)
		}
		fn(t, s, ids)
	})
}

func TestConditionalDecrement(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, ids []int64) {
		ctx := context.Background()

		require.NoError(t, l.ConditionalDecrement(ctx, ids[0], 4))
		med, err := l.Get(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, int64(6), med.QuantityOnHand)

		err = l.ConditionalDecrement(ctx, ids[1], 4)
		var short *domain.InsufficientStockError
		require.True(t, errors.As(err, &short))
		assert.Equal(t, int64(3), short.Available)
		assert.Equal(t, int64(4), short.Requested)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		med, err = l.Get(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, int64(3), med.QuantityOnHand, "failed decrement leaves the row untouched")

		require.NoError(t, l.ConditionalDecrement(ctx, ids[1], 3))
		med, _ = l.Get(ctx, ids[1])
		assert.Zero(t, med.QuantityOnHand)

		assert.ErrorIs(t, l.ConditionalDecrement(ctx, 999, 1), domain.ErrNotFound)
		assert.ErrorIs(t, l.ConditionalDecrement(ctx, ids[0], 0), domain.ErrInvalidQuantity)
	})
}

func TestIncrement(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, ids []int64) {
		ctx := context.Background()
		require.NoError(t, l.Increment(ctx, ids[1], 7))
		med, err := l.Get(ctx, ids[1])
		require.NoError(t, err)
		assert.Equal(t, int64(10), med.QuantityOnHand)

		assert.ErrorIs(t, l.Increment(ctx, 999, 1), domain.ErrNotFound)
		assert.ErrorIs(t, l.Increment(ctx, ids[1], -1), domain.ErrInvalidQuantity)
	})
}

func TestListFilters(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, ids []int64) {
		ctx := context.Background()
		all, err := l.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "Amoxicillin 500mg", all[0].Name)

		found, err := l.List(ctx, Filter{Query: "para"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, ids[1], found[0].ID)

		require.NoError(t, l.ConditionalDecrement(ctx, ids[1], 3))
		inStock, err := l.List(ctx, Filter{InStock: true})
		require.NoError(t, err)
		require.Len(t, inStock, 1)
		assert.Equal(t, ids[0], inStock[0].ID)
	})
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	ledgers(t, func(t *testing.T, l Ledger, ids []int64) {
		ctx := context.Background()
		var (
			wg      sync.WaitGroup
			granted atomic.Int64
		)
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := l.ConditionalDecrement(ctx, ids[0], 1); err == nil {
					granted.Add(1)
				} else {
					assert.ErrorIs(t, err, domain.ErrInsufficientStock)
				}
			}()
		}
		wg.Wait()

		med, err := l.Get(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, int64(10), granted.Load())
		assert.Zero(t, med.QuantityOnHand)
	})
}

func TestSQLStoreDecrementAll(t *testing.T) {
	ctx := context.Background()
	s := NewSQLStore(newTestDB(t))
	a, err := s.Create(ctx, domain.Medicine{Name: "A", QuantityOnHand: 10, UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)
	b, err := s.Create(ctx, domain.Medicine{Name: "B", QuantityOnHand: 2, UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)

	t.Run("all or nothing", func(t *testing.T) {
		err := s.DecrementAll(ctx, []Decrement{{MedicineID: b.ID, Amount: 3}, {MedicineID: a.ID, Amount: 5}})
		var short *domain.InsufficientStockError
		require.True(t, errors.As(err, &short))
		assert.Equal(t, b.ID, short.MedicineID)
		assert.Equal(t, int64(2), short.Available)

		got, _ := s.Get(ctx, a.ID)
		assert.Equal(t, int64(10), got.QuantityOnHand, "rolled back")
	})

	t.Run("missing row", func(t *testing.T) {
		err := s.DecrementAll(ctx, []Decrement{{MedicineID: a.ID, Amount: 1}, {MedicineID: 404, Amount: 1}})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		got, _ := s.Get(ctx, a.ID)
		assert.Equal(t, int64(10), got.QuantityOnHand)
	})

	t.Run("commits", func(t *testing.T) {
		require.NoError(t, s.DecrementAll(ctx, []Decrement{{MedicineID: a.ID, Amount: 5}, {MedicineID: b.ID, Amount: 2}}))
		got, _ := s.Get(ctx, a.ID)
		assert.Equal(t, int64(5), got.QuantityOnHand)
		got, _ = s.Get(ctx, b.ID)
		assert.Zero(t, got.QuantityOnHand)
	})
}

func TestSQLStoreCatalog(t *testing.T) {
	ctx := context.Background()
	s := NewSQLStore(newTestDB(t))
	desc := "capsules"
	exp := time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

	created, err := s.Create(ctx, domain.Medicine{
		Name: "Omeprazole 20mg", Description: &desc, QuantityOnHand: 40,
		UnitPrice: decimal.RequireFromString("1.25"), ExpiryDate: &exp,
	})
	require.NoError(t, err)
	require.NotNil(t, created.ExpiryDate)
	assert.True(t, exp.Equal(*created.ExpiryDate))
	assert.Equal(t, "capsules", *created.Description)
	assert.True(t, decimal.RequireFromString("1.25").Equal(created.UnitPrice))
	assert.False(t, created.CreatedAt.IsZero())

	_, err = s.Create(ctx, domain.Medicine{Name: "Omeprazole 20mg", QuantityOnHand: 1, UnitPrice: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
	other, err := s.Create(ctx, domain.Medicine{Name: "Pantoprazole 40mg", QuantityOnHand: 1, UnitPrice: decimal.NewFromInt(1)})
	require.NoError(t, err)
	other.Name = "Omeprazole 20mg"
	_, err = s.Update(ctx, other)
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	created.UnitPrice = decimal.RequireFromString("1.40")
	created.QuantityOnHand = 9999
	created.ExpiryDate = nil
	updated, err := s.Update(ctx, created)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.40").Equal(updated.UnitPrice))
	assert.Equal(t, int64(40), updated.QuantityOnHand, "update never touches stock")
	assert.Nil(t, updated.ExpiryDate)

	_, err = s.Update(ctx, domain.Medicine{ID: 404, Name: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Delete(ctx, created.ID))
	_, err = s.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, created.ID), domain.ErrNotFound)
}

func TestSortDecrements(t *testing.T) {
	in := []Decrement{{MedicineID: 3}, {MedicineID: 1}, {MedicineID: 2}}
	out := SortDecrements(in)
	assert.Equal(t, []int64{1, 2, 3}, []int64{out[0].MedicineID, out[1].MedicineID, out[2].MedicineID})
	assert.Equal(t, int64(3), in[0].MedicineID, "input untouched")
}
