package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"medeasy/pos/domain"
	"medeasy/pos/internal/invoices"
)

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invoices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// listInvoices is the sales report: invoices between start_date and end_date inclusive.
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}

	var rng invoices.Range
	startDate := strings.TrimSpace(r.URL.Query().Get("start_date"))
	if startDate != "" {
		start, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "start_date must be in YYYY-MM-DD format")
			return
		}
		rng.Start = &start
	}

	endDate := strings.TrimSpace(r.URL.Query().Get("end_date"))
	if endDate != "" {
		end, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			respondError(w, http.StatusBadRequest, "end_date must be in YYYY-MM-DD format")
			return
		}
		end = end.AddDate(0, 0, 1)
		rng.End = &end
	}

	list, err := h.invoices.List(r.Context(), rng)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Reports
func (h *Handler) dailySales(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	h.salesTotals(w, r, invoices.Range{Start: &start, End: &end})
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	now := h.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	h.salesTotals(w, r, invoices.Range{Start: &start, End: &end})
}

func (h *Handler) salesTotals(w http.ResponseWriter, r *http.Request, rng invoices.Range) {
	totals, err := h.invoices.Totals(r.Context(), rng)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, totals)
}
