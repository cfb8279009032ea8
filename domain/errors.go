package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotFound          = errors.New("medicine not found")
	ErrApplyFailed       = errors.New("stock changed between validation and apply")
	ErrDuplicateName     = errors.New("a medicine with this name already exists")
)

// InsufficientStockError carries the figures a cashier needs to adjust the cart.
type InsufficientStockError struct {
	MedicineID int64
	Available  int64
	Requested  int64
	// DuringApply is set when validation passed but the decrement lost a race.
	DuringApply bool
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for medicine %d: requested %d, available %d", e.MedicineID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	if target == ErrInsufficientStock {
		return true
	}
	return e.DuringApply && target == ErrApplyFailed
}

type NotFoundError struct {
	MedicineID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("medicine %d not found", e.MedicineID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
