package ledger

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"medeasy/pos/domain"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

const medicineColumns = `id, name, description, quantity_on_hand, unit_price, expiry_date, created_at, updated_at`

// SQLStore is the durable ledger backed by the medicines table.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

type medicineRow struct {
	ID             int64          `db:"id"`
	Name           string         `db:"name"`
	Description    sql.NullString `db:"description"`
	QuantityOnHand int64          `db:"quantity_on_hand"`
	UnitPrice      string         `db:"unit_price"`
	ExpiryDate     sql.NullString `db:"expiry_date"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
}

func (r medicineRow) toDomain() (domain.Medicine, error) {
	price, err := decimal.NewFromString(r.UnitPrice)
	if err != nil {
		return domain.Medicine{}, errors.Wrapf(err, "medicine %d: unit price", r.ID)
	}
	med := domain.Medicine{
		ID:             r.ID,
		Name:           r.Name,
		QuantityOnHand: r.QuantityOnHand,
		UnitPrice:      price,
	}
	if r.Description.Valid {
		desc := r.Description.String
		med.Description = &desc
	}
	if r.ExpiryDate.Valid && r.ExpiryDate.String != "" {
		exp, err := time.Parse(dateLayout, r.ExpiryDate.String)
		if err != nil {
			return domain.Medicine{}, errors.Wrapf(err, "medicine %d: expiry date", r.ID)
		}
		med.ExpiryDate = &exp
	}
	med.CreatedAt, _ = time.Parse(timestampLayout, r.CreatedAt)
	med.UpdatedAt, _ = time.Parse(timestampLayout, r.UpdatedAt)
	return med, nil
}

func (s *SQLStore) Get(ctx context.Context, id int64) (domain.Medicine, error) {
	return getMedicine(ctx, s.db, id)
}

func getMedicine(ctx context.Context, q sqlx.QueryerContext, id int64) (domain.Medicine, error) {
	var row medicineRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+medicineColumns+` FROM medicines WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Medicine{}, &domain.NotFoundError{MedicineID: id}
	}
	if err != nil {
		return domain.Medicine{}, errors.Wrapf(err, "get medicine %d", id)
	}
	return row.toDomain()
}

func (s *SQLStore) List(ctx context.Context, filter Filter) ([]domain.Medicine, error) {
	var (
		args    []any
		clauses []string
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		clauses = append(clauses, "name LIKE ?")
	}
	if filter.InStock {
		clauses = append(clauses, "quantity_on_hand > 0")
	}
	query := `SELECT ` + medicineColumns + ` FROM medicines`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY name, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	var rows []medicineRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "list medicines")
	}
	out := make([]domain.Medicine, 0, len(rows))
	for _, row := range rows {
		med, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, med)
	}
	return out, nil
}

func (s *SQLStore) ConditionalDecrement(ctx context.Context, id int64, amount int64) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	return s.decrement(ctx, s.db, id, amount)
}

// DecrementAll applies every decrement inside one transaction, in ascending id order.
func (s *SQLStore) DecrementAll(ctx context.Context, decrements []Decrement) error {
	for _, d := range decrements {
		if err := validAmount(d.Amount); err != nil {
			return err
		}
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin decrement")
	}
	defer tx.Rollback()

	for _, d := range SortDecrements(decrements) {
		if err := s.decrement(ctx, tx, d.MedicineID, d.Amount); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit decrement")
	}
	return nil
}

type execQueryer interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
}

func (s *SQLStore) decrement(ctx context.Context, q execQueryer, id, amount int64) error {
	res, err := q.ExecContext(ctx, `UPDATE medicines SET quantity_on_hand = quantity_on_hand - ?, updated_at = ?
		WHERE id = ? AND quantity_on_hand >= ?`, amount, s.timestamp(), id, amount)
	if err != nil {
		return errors.Wrapf(err, "decrement medicine %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "decrement rows affected")
	}
	if n > 0 {
		return nil
	}
	// Nothing matched: the row is gone or short. Report which, with the figure seen now.
	med, err := getMedicine(ctx, q, id)
	if err != nil {
		return err
	}
	return &domain.InsufficientStockError{MedicineID: id, Available: med.QuantityOnHand, Requested: amount}
}

func (s *SQLStore) Increment(ctx context.Context, id int64, amount int64) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE medicines SET quantity_on_hand = quantity_on_hand + ?, updated_at = ? WHERE id = ?`,
		amount, s.timestamp(), id)
	if err != nil {
		return errors.Wrapf(err, "increment medicine %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{MedicineID: id}
	}
	return nil
}

// Create adds a catalog row and returns it with its assigned id.
func (s *SQLStore) Create(ctx context.Context, med domain.Medicine) (domain.Medicine, error) {
	if med.QuantityOnHand < 0 || med.UnitPrice.IsNegative() {
		return domain.Medicine{}, domain.ErrInvalidQuantity
	}
	ts := s.timestamp()
	res, err := s.db.ExecContext(ctx, `INSERT INTO medicines (name, description, quantity_on_hand, unit_price, expiry_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		med.Name, nullable(med.Description), med.QuantityOnHand, med.UnitPrice.String(), formatDate(med.ExpiryDate), ts, ts)
	if isUniqueViolation(err) {
		return domain.Medicine{}, domain.ErrDuplicateName
	}
	if err != nil {
		return domain.Medicine{}, errors.Wrap(err, "create medicine")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Medicine{}, errors.Wrap(err, "create medicine id")
	}
	return s.Get(ctx, id)
}

// Update changes descriptive fields and price. Quantity is left to restock and checkout.
func (s *SQLStore) Update(ctx context.Context, med domain.Medicine) (domain.Medicine, error) {
	if med.UnitPrice.IsNegative() {
		return domain.Medicine{}, domain.ErrInvalidQuantity
	}
	res, err := s.db.ExecContext(ctx, `UPDATE medicines SET name = ?, description = ?, unit_price = ?, expiry_date = ?, updated_at = ? WHERE id = ?`,
		med.Name, nullable(med.Description), med.UnitPrice.String(), formatDate(med.ExpiryDate), s.timestamp(), med.ID)
	if isUniqueViolation(err) {
		return domain.Medicine{}, domain.ErrDuplicateName
	}
	if err != nil {
		return domain.Medicine{}, errors.Wrapf(err, "update medicine %d", med.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Medicine{}, &domain.NotFoundError{MedicineID: med.ID}
	}
	return s.Get(ctx, med.ID)
}

func (s *SQLStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM medicines WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete medicine %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{MedicineID: id}
	}
	return nil
}

func (s *SQLStore) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
