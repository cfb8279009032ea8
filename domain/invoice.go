package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is a requested (medicine, quantity) pair priced at the moment it was first added.
type CartLine struct {
	MedicineID     int64           `json:"medicine_id"`
	Name           string          `json:"name"`
	Quantity       int64           `json:"quantity"`
	UnitPriceAtAdd decimal.Decimal `json:"unit_price"`
}

// Subtotal returns quantity x unit price at add time.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.UnitPriceAtAdd.Mul(decimal.NewFromInt(l.Quantity))
}

type InvoiceLine struct {
	MedicineID int64           `db:"medicine_id" json:"medicine_id"`
	Name       string          `db:"name" json:"name"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	UnitPrice  decimal.Decimal `db:"unit_price" json:"unit_price"`
	Subtotal   decimal.Decimal `db:"subtotal" json:"subtotal"`
}

// Invoice is the immutable record of a committed checkout. It keeps no reference to live
// Medicine rows, so later catalog changes never alter it.
type Invoice struct {
	ID            string          `json:"id"`
	Lines         []InvoiceLine   `json:"lines"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	CustomerName  *string         `json:"customer_name,omitempty"`
	CustomerPhone *string         `json:"customer_phone,omitempty"`
}

// Clone returns a deep copy.
func (inv *Invoice) Clone() *Invoice {
	out := *inv
	out.Lines = append([]InvoiceLine(nil), inv.Lines...)
	if inv.CustomerName != nil {
		v := *inv.CustomerName
		out.CustomerName = &v
	}
	if inv.CustomerPhone != nil {
		v := *inv.CustomerPhone
		out.CustomerPhone = &v
	}
	return &out
}

// NewInvoice deep copies lines into an invoice and sums the total.
func NewInvoice(id string, lines []CartLine, createdAt time.Time, customerName, customerPhone *string) *Invoice {
	inv := &Invoice{
		ID:            id,
		Lines:         make([]InvoiceLine, 0, len(lines)),
		TotalAmount:   decimal.Zero,
		CreatedAt:     createdAt,
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
	}
	for _, l := range lines {
		sub := l.Subtotal()
		inv.Lines = append(inv.Lines, InvoiceLine{
			MedicineID: l.MedicineID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPriceAtAdd,
			Subtotal:   sub,
		})
		inv.TotalAmount = inv.TotalAmount.Add(sub)
	}
	return inv
}
