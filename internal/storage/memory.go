package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage is a process-local Link Store. Ids start at 1 and are never
// reused.
type MemoryStorage struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Link
	byCode map[string]int64
	now    func() time.Time
}

func CreateMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		byID:   make(map[int64]*Link),
		byCode: make(map[string]int64),
		now:    time.Now,
	}
}

func (m *MemoryStorage) Create(_ context.Context, l Link) (*Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.ShortCode != "" {
		if _, exists := m.byCode[l.ShortCode]; exists {
			return nil, ErrAliasTaken
		}
	}

	m.nextID++
	l.ID = m.nextID
	if l.CreatedAt.IsZero() {
		l.CreatedAt = m.now().UTC()
	}
	l.ClickCount = 0

	stored := l
	m.byID[l.ID] = &stored
	if l.ShortCode != "" {
		m.byCode[l.ShortCode] = l.ID
	}

	return &l, nil
}

func (m *MemoryStorage) GetByCode(_ context.Context, code string, activeOnly bool) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}

	l := *m.byID[id]
	if activeOnly && !l.IsActive {
		return nil, ErrNotFound
	}

	return &l, nil
}

func (m *MemoryStorage) GetByID(_ context.Context, id int64) (*Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}

	res := *l
	return &res, nil
}

// Update writes the mutable columns (short code, active flag, expiry) of an
// existing row. ClickCount is ignored.
func (m *MemoryStorage) Update(_ context.Context, l Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[l.ID]
	if !ok {
		return ErrNotFound
	}

	if l.ShortCode != current.ShortCode {
		if l.ShortCode != "" {
			if owner, exists := m.byCode[l.ShortCode]; exists && owner != l.ID {
				return ErrAliasTaken
			}
			m.byCode[l.ShortCode] = l.ID
		}
		if current.ShortCode != "" {
			delete(m.byCode, current.ShortCode)
		}
	}

	current.ShortCode = l.ShortCode
	current.IsActive = l.IsActive
	current.ExpiresAt = l.ExpiresAt

	return nil
}

// BatchIncrementClickCounts adds every delta to its link. Unknown codes are
// skipped.
func (m *MemoryStorage) BatchIncrementClickCounts(_ context.Context, deltas map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for code, delta := range deltas {
		if id, ok := m.byCode[code]; ok {
			m.byID[id].ClickCount += delta
		}
	}

	return nil
}

// FindOrphans returns active links created before olderThan that never got a
// short code, oldest first.
func (m *MemoryStorage) FindOrphans(_ context.Context, olderThan time.Time, limit int) ([]Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []Link
	for _, l := range m.byID {
		if l.ShortCode == "" && l.IsActive && l.CreatedAt.Before(olderThan) {
			res = append(res, *l)
		}
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}

	return res, nil
}

func (m *MemoryStorage) PingContext(_ context.Context) error {
	return nil
}
