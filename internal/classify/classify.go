// Package classify derives display state for medicine snapshots: where a medicine stands on
// expiry and where it stands on stock. The two axes are independent and always both reported.
package classify

import (
	"time"

	"medeasy/pos/domain"
)

const (
	DefaultLowStockThreshold = 20
	DefaultExpiringWindow    = 90 * 24 * time.Hour
)

type ExpiryState string

const (
	Fresh        ExpiryState = "fresh"
	ExpiringSoon ExpiryState = "expiring_soon"
	Expired      ExpiryState = "expired"
)

type StockState string

const (
	InStock    StockState = "in_stock"
	LowStock   StockState = "low_stock"
	OutOfStock StockState = "out_of_stock"
)

type Status struct {
	Expiry ExpiryState `json:"expiry"`
	Stock  StockState  `json:"stock"`
}

// Normal reports whether neither axis needs attention.
func (s Status) Normal() bool {
	return s.Expiry == Fresh && s.Stock == InStock
}

type Classifier struct {
	LowStockThreshold int64
	ExpiringWindow    time.Duration
}

func Default() Classifier {
	return Classifier{LowStockThreshold: DefaultLowStockThreshold, ExpiringWindow: DefaultExpiringWindow}
}

// Classify uses the default threshold of 20 units and a 90 day window.
func Classify(m domain.Medicine, now time.Time) Status {
	return Default().Classify(m, now)
}

func (c Classifier) Classify(m domain.Medicine, now time.Time) Status {
	return Status{Expiry: c.expiry(m, now), Stock: c.stock(m)}
}

func (c Classifier) expiry(m domain.Medicine, now time.Time) ExpiryState {
	if m.ExpiryDate == nil {
		return Fresh
	}
	exp := *m.ExpiryDate
	switch {
	case exp.Before(now):
		return Expired
	case !exp.After(now.Add(c.ExpiringWindow)):
		return ExpiringSoon
	default:
		return Fresh
	}
}

func (c Classifier) stock(m domain.Medicine) StockState {
	switch {
	case m.QuantityOnHand <= 0:
		return OutOfStock
	case m.QuantityOnHand <= c.LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}

// Summary counts medicines per state, for the dashboard.
type Summary struct {
	Total        int `json:"total"`
	Normal       int `json:"normal"`
	Expired      int `json:"expired"`
	ExpiringSoon int `json:"expiring_soon"`
	LowStock     int `json:"low_stock"`
	OutOfStock   int `json:"out_of_stock"`
}

func (c Classifier) Summarize(meds []domain.Medicine, now time.Time) Summary {
	var sum Summary
	for _, m := range meds {
		st := c.Classify(m, now)
		sum.Total++
		if st.Normal() {
			sum.Normal++
		}
		switch st.Expiry {
		case Expired:
			sum.Expired++
		case ExpiringSoon:
			sum.ExpiringSoon++
		}
		switch st.Stock {
		case LowStock:
			sum.LowStock++
		case OutOfStock:
			sum.OutOfStock++
		}
	}
	return sum
}
