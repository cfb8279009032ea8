package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"medeasy/pos/domain"
)

// Memory is an in-process ledger. It offers only the single-row primitive, so a checkout
// against it takes the ordered apply-and-compensate path.
type Memory struct {
	mu     sync.RWMutex
	rows   map[int64]domain.Medicine
	nextID int64
	now    func() time.Time
}

func NewMemory(seed ...domain.Medicine) *Memory {
	m := &Memory{rows: make(map[int64]domain.Medicine), now: time.Now}
	for _, med := range seed {
		m.Put(med)
	}
	return m
}

// Put inserts or replaces a row. A zero ID is assigned the next free one.
func (m *Memory) Put(med domain.Medicine) domain.Medicine {
	m.mu.Lock()
	defer m.mu.Unlock()
	if med.ID == 0 {
		m.nextID++
		med.ID = m.nextID
	} else if med.ID > m.nextID {
		m.nextID = med.ID
	}
	now := m.now().UTC()
	if med.CreatedAt.IsZero() {
		med.CreatedAt = now
	}
	med.UpdatedAt = now
	m.rows[med.ID] = med
	return med
}

func (m *Memory) Delete(id int64) {
	m.mu.Lock()
	delete(m.rows, id)
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, id int64) (domain.Medicine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	med, ok := m.rows[id]
	if !ok {
		return domain.Medicine{}, &domain.NotFoundError{MedicineID: id}
	}
	return med, nil
}

func (m *Memory) List(_ context.Context, filter Filter) ([]domain.Medicine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]domain.Medicine, 0, len(m.rows))
	for _, med := range m.rows {
		if filter.InStock && med.QuantityOnHand == 0 {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(med.Name), query) {
			continue
		}
		out = append(out, med)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) ConditionalDecrement(ctx context.Context, id int64, amount int64) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.rows[id]
	if !ok {
		return &domain.NotFoundError{MedicineID: id}
	}
	if med.QuantityOnHand < amount {
		return &domain.InsufficientStockError{MedicineID: id, Available: med.QuantityOnHand, Requested: amount}
	}
	med.QuantityOnHand -= amount
	med.UpdatedAt = m.now().UTC()
	m.rows[id] = med
	return nil
}

func (m *Memory) Increment(ctx context.Context, id int64, amount int64) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	med, ok := m.rows[id]
	if !ok {
		return &domain.NotFoundError{MedicineID: id}
	}
	med.QuantityOnHand += amount
	med.UpdatedAt = m.now().UTC()
	m.rows[id] = med
	return nil
}
