package api

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"medeasy/pos/domain"
	"medeasy/pos/internal/classify"
	"medeasy/pos/internal/ledger"
)

type medicineView struct {
	domain.Medicine
	Status classify.Status `json:"status"`
}

func (h *Handler) view(m domain.Medicine, now time.Time) medicineView {
	return medicineView{Medicine: m, Status: h.classifier.Classify(m, now)}
}

func (h *Handler) listMedicines(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	filter := ledger.Filter{
		Query:   strings.TrimSpace(r.URL.Query().Get("query")),
		InStock: r.URL.Query().Get("in_stock") == "true",
		Limit:   limit,
	}
	meds, err := h.catalog.List(r.Context(), filter)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	now := h.now()
	out := make([]medicineView, len(meds))
	for i, m := range meds {
		out[i] = h.view(m, now)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getMedicine(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	med, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(med, h.now()))
}

type medicineRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ExpiryDate  string          `json:"expiry_date"`
}

func (req medicineRequest) toDomain() (domain.Medicine, string) {
	if strings.TrimSpace(req.Name) == "" {
		return domain.Medicine{}, "name is required"
	}
	if req.UnitPrice.IsNegative() {
		return domain.Medicine{}, "unit_price must not be negative"
	}
	med := domain.Medicine{
		Name:           strings.TrimSpace(req.Name),
		Description:    nullIfEmpty(req.Description),
		QuantityOnHand: req.Quantity,
		UnitPrice:      req.UnitPrice,
	}
	if v := nullIfEmpty(req.ExpiryDate); v != nil {
		exp, err := time.Parse("2006-01-02", *v)
		if err != nil {
			return domain.Medicine{}, "expiry_date must be in YYYY-MM-DD format"
		}
		med.ExpiryDate = &exp
	}
	return med, ""
}

func (h *Handler) createMedicine(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "quantity must not be negative")
		return
	}
	med, msg := req.toDomain()
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	created, err := h.catalog.Create(r.Context(), med)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.view(created, h.now()))
}

// updateMedicine edits the catalog entry. Stock is not editable here: it only moves through
// restock and checkout.
func (h *Handler) updateMedicine(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req medicineRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity != 0 {
		respondError(w, http.StatusBadRequest, "quantity cannot be set directly, use restock")
		return
	}
	med, msg := req.toDomain()
	if msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}
	med.ID = id
	updated, err := h.catalog.Update(r.Context(), med)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(updated, h.now()))
}

func (h *Handler) deleteMedicine(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner) {
		return
	}
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) restock(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleOwner, domain.RoleEmployee) {
		return
	}
	id, ok := idParam(w, r, "id")
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
	if err := h.catalog.Increment(r.Context(), id, payload.Quantity); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	med, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view(med, h.now()))
}

func (h *Handler) stockSummary(w http.ResponseWriter, r *http.Request) {
	meds, err := h.catalog.List(r.Context(), ledger.Filter{})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.classifier.Summarize(meds, h.now()))
}

// stockAlerts lists medicines that are expired, expire within ?days= (default 30), or are low
// or out of stock, soonest expiry first.
func (h *Handler) stockAlerts(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days <= 0 {
		days = 30
	}
	meds, err := h.catalog.List(r.Context(), ledger.Filter{})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	c := h.classifier
	c.ExpiringWindow = time.Duration(days) * 24 * time.Hour
	now := h.now()

	alerts := []medicineView{}
	for _, m := range meds {
		v := medicineView{Medicine: m, Status: c.Classify(m, now)}
		if !v.Status.Normal() {
			alerts = append(alerts, v)
		}
	}
	sortAlerts(alerts)
	respondJSON(w, http.StatusOK, alerts)
}

func sortAlerts(alerts []medicineView) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i].ExpiryDate, alerts[j].ExpiryDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
