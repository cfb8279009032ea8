package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Medicine is one row of the stock ledger.
type Medicine struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	Description    *string         `json:"description,omitempty"`
	QuantityOnHand int64           `json:"quantity_on_hand"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	ExpiryDate     *time.Time      `json:"expiry_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
