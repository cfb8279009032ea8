// Package invoices persists committed invoices and answers sales reports over them.
package invoices

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"medeasy/pos/domain"
)

var ErrNotFound = errors.New("invoice not found")

// Sink receives every committed invoice.
type Sink interface {
	Save(ctx context.Context, inv *domain.Invoice) error
}

// Range bounds a report by creation time, [Start, End). Nil means unbounded.
type Range struct {
	Start *time.Time
	End   *time.Time
}

type Totals struct {
	Revenue decimal.Decimal `json:"revenue"`
	Count   int64           `json:"sales_count"`
}

// Fixed width so that text comparison in SQL orders like time.
const timeLayout = "2006-01-02 15:04:05.000000000"

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

type invoiceRow struct {
	ID            string         `db:"id"`
	TotalAmount   string         `db:"total_amount"`
	CustomerName  sql.NullString `db:"customer_name"`
	CustomerPhone sql.NullString `db:"customer_phone"`
	CreatedAt     string         `db:"created_at"`
}

type lineRow struct {
	InvoiceID string `db:"invoice_id"`
	domain.InvoiceLine
}

func (s *Store) Save(ctx context.Context, inv *domain.Invoice) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin invoice")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO invoices (id, total_amount, customer_name, customer_phone, created_at) VALUES (?, ?, ?, ?, ?)`,
		inv.ID, inv.TotalAmount.String(), nullable(inv.CustomerName), nullable(inv.CustomerPhone), inv.CreatedAt.UTC().Format(timeLayout)); err != nil {
		return errors.Wrapf(err, "insert invoice %s", inv.ID)
	}
	for i, l := range inv.Lines {
		if _, err := tx.ExecContext(ctx, `INSERT INTO invoice_lines (invoice_id, position, medicine_id, name, quantity, unit_price, subtotal)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, i, l.MedicineID, l.Name, l.Quantity, l.UnitPrice.String(), l.Subtotal.String()); err != nil {
			return errors.Wrapf(err, "insert invoice %s line %d", inv.ID, i)
		}
	}
	return errors.Wrap(tx.Commit(), "commit invoice")
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Invoice, error) {
	var row invoiceRow
	err := s.db.GetContext(ctx, &row, `SELECT id, total_amount, customer_name, customer_phone, created_at FROM invoices WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get invoice %s", id)
	}
	inv, err := row.toDomain()
	if err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &inv.Lines, `SELECT medicine_id, name, quantity, unit_price, subtotal
		FROM invoice_lines WHERE invoice_id = ? ORDER BY position`, id); err != nil {
		return nil, errors.Wrapf(err, "get invoice %s lines", id)
	}
	return inv, nil
}

// List returns invoices in the range, newest first, with their lines.
func (s *Store) List(ctx context.Context, r Range) ([]*domain.Invoice, error) {
	where, args := r.clause()
	var rows []invoiceRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, total_amount, customer_name, customer_phone, created_at FROM invoices`+where+` ORDER BY created_at DESC`, args...); err != nil {
		return nil, errors.Wrap(err, "list invoices")
	}
	if len(rows) == 0 {
		return []*domain.Invoice{}, nil
	}

	out := make([]*domain.Invoice, len(rows))
	byID := make(map[string]*domain.Invoice, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		inv, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out[i] = inv
		byID[inv.ID] = inv
		ids[i] = inv.ID
	}

	query, inArgs, err := sqlx.In(`SELECT invoice_id, medicine_id, name, quantity, unit_price, subtotal
		FROM invoice_lines WHERE invoice_id IN (?) ORDER BY invoice_id, position`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "prepare invoice lines query")
	}
	var lines []lineRow
	if err := s.db.SelectContext(ctx, &lines, s.db.Rebind(query), inArgs...); err != nil {
		return nil, errors.Wrap(err, "load invoice lines")
	}
	for _, l := range lines {
		inv := byID[l.InvoiceID]
		inv.Lines = append(inv.Lines, l.InvoiceLine)
	}
	return out, nil
}

// Totals sums revenue and counts invoices in the range.
func (s *Store) Totals(ctx context.Context, r Range) (Totals, error) {
	where, args := r.clause()
	var amounts []string
	if err := s.db.SelectContext(ctx, &amounts, `SELECT total_amount FROM invoices`+where, args...); err != nil {
		return Totals{}, errors.Wrap(err, "sum invoices")
	}
	t := Totals{Revenue: decimal.Zero}
	for _, a := range amounts {
		v, err := decimal.NewFromString(a)
		if err != nil {
			return Totals{}, errors.Wrap(err, "invoice total")
		}
		t.Revenue = t.Revenue.Add(v)
		t.Count++
	}
	return t, nil
}

func (r Range) clause() (string, []any) {
	var (
		where string
		args  []any
	)
	if r.Start != nil {
		where = " WHERE created_at >= ?"
		args = append(args, r.Start.UTC().Format(timeLayout))
	}
	if r.End != nil {
		if where == "" {
			where = " WHERE created_at < ?"
		} else {
			where += " AND created_at < ?"
		}
		args = append(args, r.End.UTC().Format(timeLayout))
	}
	return where, args
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (r invoiceRow) toDomain() (*domain.Invoice, error) {
	total, err := decimal.NewFromString(r.TotalAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "invoice %s total", r.ID)
	}
	created, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "invoice %s created_at", r.ID)
	}
	inv := &domain.Invoice{ID: r.ID, TotalAmount: total, CreatedAt: created.UTC(), Lines: []domain.InvoiceLine{}}
	if r.CustomerName.Valid {
		v := r.CustomerName.String
		inv.CustomerName = &v
	}
	if r.CustomerPhone.Valid {
		v := r.CustomerPhone.String
		inv.CustomerPhone = &v
	}
	return inv, nil
}

// Memory keeps invoices in process. It is the sink used when no database is wired in.
type Memory struct {
	mu       sync.RWMutex
	invoices map[string]*domain.Invoice
	order    []string
}

func NewMemory() *Memory {
	return &Memory{invoices: make(map[string]*domain.Invoice)}
}

func (m *Memory) Save(_ context.Context, inv *domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.invoices[inv.ID]; dup {
		return errors.Errorf("invoice %s already saved", inv.ID)
	}
	m.invoices[inv.ID] = inv.Clone()
	m.order = append(m.order, inv.ID)
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*domain.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrNotFound
	}
	return inv.Clone(), nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}
