package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medeasy/pos/domain"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestClassifyExpiry(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		expiry *time.Time
		want   ExpiryState
	}{
		{"no expiry date", nil, Fresh},
		{"already expired", date(2026, time.February, 28), Expired},
		{"expires in a month", date(2026, time.April, 1), ExpiringSoon},
		{"exactly at the window edge", ptr(now.Add(DefaultExpiringWindow)), ExpiringSoon},
		{"just past the window", ptr(now.Add(DefaultExpiringWindow + time.Second)), Fresh},
		{"far future", date(2028, time.January, 1), Fresh},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Classify(domain.Medicine{QuantityOnHand: 100, ExpiryDate: tc.expiry}, now)
			assert.Equal(t, tc.want, st.Expiry)
		})
	}
}

func TestClassifyStock(t *testing.T) {
	now := time.Now()
	cases := []struct {
		qty  int64
		want StockState
	}{
		{0, OutOfStock},
		{1, LowStock},
		{20, LowStock},
		{21, InStock},
	}
	for _, tc := range cases {
		st := Classify(domain.Medicine{QuantityOnHand: tc.qty}, now)
		assert.Equal(t, tc.want, st.Stock, "qty %d", tc.qty)
	}

	custom := Classifier{LowStockThreshold: 5, ExpiringWindow: DefaultExpiringWindow}
	assert.Equal(t, InStock, custom.Classify(domain.Medicine{QuantityOnHand: 6}, now).Stock)
	assert.Equal(t, LowStock, custom.Classify(domain.Medicine{QuantityOnHand: 5}, now).Stock)
}

func TestClassifyReportsBothAxes(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	st := Classify(domain.Medicine{QuantityOnHand: 0, ExpiryDate: date(2025, time.December, 1)}, now)
	assert.Equal(t, Status{Expiry: Expired, Stock: OutOfStock}, st)
	assert.False(t, st.Normal())
}

func TestClassifyIsIdempotentAndTimeDriven(t *testing.T) {
	med := domain.Medicine{QuantityOnHand: 10, ExpiryDate: date(2026, time.September, 1)}
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)

	first := Classify(med, now)
	second := Classify(med, now)
	require.Equal(t, first, second)
	assert.Equal(t, Status{Expiry: Fresh, Stock: LowStock}, first)

	later := Classify(med, time.Date(2026, time.September, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, Expired, later.Expiry)
	assert.Equal(t, LowStock, later.Stock)
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	meds := []domain.Medicine{
		{QuantityOnHand: 100},
		{QuantityOnHand: 0},
		{QuantityOnHand: 5, ExpiryDate: date(2026, time.April, 1)},
		{QuantityOnHand: 50, ExpiryDate: date(2025, time.January, 1)},
	}
	sum := Default().Summarize(meds, now)
	assert.Equal(t, Summary{Total: 4, Normal: 1, Expired: 1, ExpiringSoon: 1, LowStock: 1, OutOfStock: 1}, sum)
}

func ptr(t time.Time) *time.Time { return &t }
