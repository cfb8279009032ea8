// Package ledger provides access to the stock ledger: read snapshots of medicine rows and the
// conditional decrement primitive every checkout relies on.
package ledger

import (
	"context"
	"sort"

	"medeasy/pos/domain"
)

// Ledger is the contract the checkout engine depends on. ConditionalDecrement must be atomic
// per row: implementations never split it into a read followed by a write.
type Ledger interface {
	Get(ctx context.Context, id int64) (domain.Medicine, error)
	List(ctx context.Context, filter Filter) ([]domain.Medicine, error)
	// ConditionalDecrement subtracts amount iff quantity on hand >= amount. It fails with
	// *domain.InsufficientStockError or *domain.NotFoundError.
	ConditionalDecrement(ctx context.Context, id int64, amount int64) error
	Increment(ctx context.Context, id int64, amount int64) error
}

// Decrement is one row of a multi-row conditional update.
type Decrement struct {
	MedicineID int64
	Amount     int64
}

// BatchDecrementer is implemented by ledgers that can apply several conditional decrements in
// one transaction. Either every row is decremented or none is.
type BatchDecrementer interface {
	DecrementAll(ctx context.Context, decrements []Decrement) error
}

// Filter narrows List. Zero value lists everything ordered by name.
type Filter struct {
	Query   string
	InStock bool
	Limit   int
}

// SortDecrements orders rows by ascending medicine id so concurrent multi-row writers take
// row locks in the same order.
func SortDecrements(ds []Decrement) []Decrement {
	out := make([]Decrement, len(ds))
	copy(out, ds)
	sort.Slice(out, func(i, j int) bool { return out[i].MedicineID < out[j].MedicineID })
	return out
}

func validAmount(amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidQuantity
	}
	return nil
}
