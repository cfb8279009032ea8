package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"medeasy/pos/domain"
	"medeasy/pos/internal/cart"
	"medeasy/pos/internal/checkout"
)

type cartLineView struct {
	domain.CartLine
	Subtotal decimal.Decimal `json:"subtotal"`
}

type cartView struct {
	Lines []cartLineView   `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func viewCart(c *cart.Cart) cartView {
	lines := c.Lines()
	v := cartView{Lines: make([]cartLineView, len(lines)), Total: c.Total()}
	for i, l := range lines {
		v.Lines[i] = cartLineView{CartLine: l, Subtotal: l.Subtotal()}
	}
	return v
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	var v cartView
	_ = h.sessions.With(userIDFromContext(r), func(c *cart.Cart) error {
		v = viewCart(c)
		return nil
	})
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	var v cartView
	_ = h.sessions.With(userIDFromContext(r), func(c *cart.Cart) error {
		c.Clear()
		v = viewCart(c)
		return nil
	})
	respondJSON(w, http.StatusOK, v)
}

type cartLineRequest struct {
	MedicineID int64 `json:"medicine_id"`
	Quantity   int64 `json:"quantity"`
}

func (h *Handler) addCartLine(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var req cartLineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity <= 0 {
		h.respondDomainError(w, r, domain.ErrInvalidQuantity)
		return
	}
	snapshot, err := h.catalog.Get(r.Context(), req.MedicineID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	var v cartView
	err = h.sessions.With(userIDFromContext(r), func(c *cart.Cart) error {
		if err := c.AddLine(snapshot, req.Quantity); err != nil {
			return err
		}
		v = viewCart(c)
		return nil
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) setCartLine(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "medicineID")
	if !ok {
		return
	}
	var payload struct {
		Quantity int64 `json:"quantity"`
	}
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	snapshot, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	var v cartView
	err = h.sessions.With(userIDFromContext(r), func(c *cart.Cart) error {
		if _, err := c.SetLineQuantity(snapshot, payload.Quantity); err != nil {
			return err
		}
		v = viewCart(c)
		return nil
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (h *Handler) removeCartLine(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "medicineID")
	if !ok {
		return
	}
	var v cartView
	_ = h.sessions.With(userIDFromContext(r), func(c *cart.Cart) error {
		c.RemoveLine(id)
		v = viewCart(c)
		return nil
	})
	respondJSON(w, http.StatusOK, v)
}

type checkoutRequest struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

// checkout commits the session's cart. On failure the cart is kept so the cashier can adjust
// quantities and try again.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	customer := checkout.Customer{}
	if v := nullIfEmpty(req.CustomerName); v != nil {
		customer.Name = *v
	}
	if v := nullIfEmpty(req.CustomerPhone); v != nil {
		customer.Phone = *v
	}

	var inv *domain.Invoice
	err := h.sessions.With(userIDFromContext(r), func(c *cart.Cart) error {
		var err error
		inv, err = h.coordinator.Checkout(r.Context(), c, customer)
		return err
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}
