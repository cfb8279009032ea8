package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"medeasy/pos/domain"
	"medeasy/pos/internal/checkout"
	"medeasy/pos/internal/classify"
	"medeasy/pos/internal/invoices"
	"medeasy/pos/internal/ledger"
	"medeasy/pos/internal/logging"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
)

// Catalog is the ledger plus the maintenance operations of the inventory screens.
type Catalog interface {
	ledger.Ledger
	Create(ctx context.Context, med domain.Medicine) (domain.Medicine, error)
	Update(ctx context.Context, med domain.Medicine) (domain.Medicine, error)
	Delete(ctx context.Context, id int64) error
}

type InvoiceReader interface {
	Get(ctx context.Context, id string) (*domain.Invoice, error)
	List(ctx context.Context, r invoices.Range) ([]*domain.Invoice, error)
	Totals(ctx context.Context, r invoices.Range) (invoices.Totals, error)
}

type Options struct {
	Secret     string
	Classifier classify.Classifier
	Logger     logrus.FieldLogger
	Now        func() time.Time
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db          *sqlx.DB
	secret      string
	catalog     Catalog
	coordinator *checkout.Coordinator
	invoices    InvoiceReader
	classifier  classify.Classifier
	sessions    *Sessions
	log         logrus.FieldLogger
	now         func() time.Time
}

// New constructs a Handler. db holds the staff accounts.
func New(db *sqlx.DB, catalog Catalog, coordinator *checkout.Coordinator, inv InvoiceReader, opts Options) *Handler {
	h := &Handler{
		db:          db,
		secret:      opts.Secret,
		catalog:     catalog,
		coordinator: coordinator,
		invoices:    inv,
		classifier:  opts.Classifier,
		sessions:    NewSessions(),
		log:         opts.Logger,
		now:         opts.Now,
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.classifier == (classify.Classifier{}) {
		h.classifier = classify.Default()
	}
	return h
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(h.log))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Group(func(protected chi.Router) {
			protected.Use(h.authMiddleware)
			protected.Post("/reset-password", h.resetPassword)
			protected.Post("/logout", h.logout)
		})
	})

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Route("/medicines", func(r chi.Router) {
			r.Get("/", h.listMedicines)
			r.Post("/", h.createMedicine)
			r.Get("/summary", h.stockSummary)
			r.Get("/alerts", h.stockAlerts)
			r.Get("/{id}", h.getMedicine)
			r.Put("/{id}", h.updateMedicine)
			r.Delete("/{id}", h.deleteMedicine)
			r.Post("/{id}/restock", h.restock)
		})

		pr.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/lines", h.addCartLine)
			r.Put("/lines/{medicineID}", h.setCartLine)
			r.Delete("/lines/{medicineID}", h.removeCartLine)
			r.Post("/checkout", h.checkout)
		})

		pr.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.listInvoices)
			r.Get("/{id}", h.getInvoice)
		})

		pr.Route("/reports", func(r chi.Router) {
			r.Get("/sales/daily", h.dailySales)
			r.Get("/sales/monthly", h.monthlySales)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Authentication helpers

type authClaims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

func (h *Handler) generateToken(userID int64, role string) (string, error) {
	now := h.now()
	claims := authClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.secret))
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			respondError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		token, err := jwt.ParseWithClaims(tokenString, &authClaims{}, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(h.secret), nil
		})
		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		claims, ok := token.Claims.(*authClaims)
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid token claims")
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
		ctx = context.WithValue(ctx, ctxRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	role, ok := r.Context().Value(ctxRole).(string)
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing role")
		return false
	}
	for _, allowedRole := range allowed {
		if role == allowedRole {
			return true
		}
	}
	respondError(w, http.StatusForbidden, "insufficient permissions")
	return false
}

func userIDFromContext(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxUserID).(int64)
	return id
}

// respondDomainError maps engine errors onto statuses. Anything unrecognised is logged and
// reported as a 500 without its text.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var short *domain.InsufficientStockError
	switch {
	case errors.As(err, &short):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":       err.Error(),
			"medicine_id": short.MedicineID,
			"available":   short.Available,
			"requested":   short.Requested,
		})
	case errors.Is(err, domain.ErrDuplicateName):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, invoices.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidQuantity), errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).WithFields(logrus.Fields{
			"path":      r.URL.Path,
			"requestID": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Helpers
func nullIfEmpty(val string) *string {
	trimmed := strings.TrimSpace(val)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
