// Package cart holds the session-local staging area of a sale. A Cart is owned by exactly one
// session and is not safe for concurrent use.
package cart

import (
	"github.com/shopspring/decimal"

	"medeasy/pos/domain"
)

type Cart struct {
	lines []domain.CartLine
	index map[int64]int
}

func New() *Cart {
	return &Cart{index: make(map[int64]int)}
}

// AddLine requests quantity more units of the snapshot's medicine. The stock check against the
// snapshot is advisory; checkout re-validates against the ledger. A repeated add keeps the
// price of the first add.
func (c *Cart) AddLine(snapshot domain.Medicine, quantity int64) error {
	if quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	var inCart int64
	i, exists := c.index[snapshot.ID]
	if exists {
		inCart = c.lines[i].Quantity
	}
	if quantity > snapshot.QuantityOnHand-inCart {
		available := snapshot.QuantityOnHand - inCart
		if available < 0 {
			available = 0
		}
		return &domain.InsufficientStockError{MedicineID: snapshot.ID, Available: available, Requested: quantity}
	}
	if exists {
		c.lines[i].Quantity += quantity
		return nil
	}
	c.index[snapshot.ID] = len(c.lines)
	c.lines = append(c.lines, domain.CartLine{
		MedicineID:     snapshot.ID,
		Name:           snapshot.Name,
		Quantity:       quantity,
		UnitPriceAtAdd: snapshot.UnitPrice,
	})
	return nil
}

// SetLineQuantity overwrites a line's quantity, clamped to the snapshot's quantity on hand.
// A non-positive quantity, or an empty shelf, removes the line. It returns the quantity now
// in the cart.
func (c *Cart) SetLineQuantity(snapshot domain.Medicine, quantity int64) (int64, error) {
	i, ok := c.index[snapshot.ID]
	if !ok {
		return 0, &domain.NotFoundError{MedicineID: snapshot.ID}
	}
	if quantity > snapshot.QuantityOnHand {
		quantity = snapshot.QuantityOnHand
	}
	if quantity <= 0 {
		c.RemoveLine(snapshot.ID)
		return 0, nil
	}
	c.lines[i].Quantity = quantity
	return quantity, nil
}

// RemoveLine drops the medicine's line, reporting whether there was one.
func (c *Cart) RemoveLine(medicineID int64) bool {
	i, ok := c.index[medicineID]
	if !ok {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	delete(c.index, medicineID)
	for j := i; j < len(c.lines); j++ {
		c.index[c.lines[j].MedicineID] = j
	}
	return true
}

func (c *Cart) Clear() {
	c.lines = nil
	c.index = make(map[int64]int)
}

// Line returns a copy of the medicine's line.
func (c *Cart) Line(medicineID int64) (domain.CartLine, bool) {
	i, ok := c.index[medicineID]
	if !ok {
		return domain.CartLine{}, false
	}
	return c.lines[i], true
}

// Lines returns copies of the lines in the order they were first added.
func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int { return len(c.lines) }

func (c *Cart) IsEmpty() bool { return len(c.lines) == 0 }

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
