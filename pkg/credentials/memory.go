package credentials

import "sync"

// MemoryStore is a Store that never touches disk.
type MemoryStore struct {
	mu    sync.Mutex
	rec   *Record
	saves int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a MemoryStore. A nil rec starts out empty, so Load
// reports ErrNotFound until the first Save.
func NewMemoryStore(rec *Record) *MemoryStore {
	m := &MemoryStore{}
	if rec != nil {
		copied := *rec
		m.rec = &copied
	}
	return m
}

// Load returns a copy of the stored record.
func (m *MemoryStore) Load() (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rec == nil {
		return nil, ErrNotFound
	}
	copied := *m.rec
	return &copied, nil
}

// Save merges update into the stored record.
func (m *MemoryStore) Save(update Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rec == nil {
		m.rec = &Record{}
	}
	update.Apply(m.rec)
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
