package store

import (
	"context"
	"sync"

	"github.com/serroba/link-preview/internal/shortener"
)

// MemoryStore is an in-memory implementation of shortener.Store.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[shortener.Code]*shortener.Record
	reserved map[shortener.Code]struct{}
	keys     map[shortener.URLKey]shortener.Code
}

// NewMemoryStore creates a new in-memory record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[shortener.Code]*shortener.Record),
		reserved: make(map[shortener.Code]struct{}),
		keys:     make(map[shortener.URLKey]shortener.Code),
	}
}

func (m *MemoryStore) Reserve(_ context.Context, code shortener.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.taken(code) {
		return shortener.ErrCodeExists
	}

	m.reserved[code] = struct{}{}

	return nil
}

func (m *MemoryStore) Get(_ context.Context, code shortener.Code) (*shortener.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	return clone(record), nil
}

func (m *MemoryStore) FindByURLKey(_ context.Context, key shortener.URLKey) ([]*shortener.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.keys[key]
	if !ok {
		return nil, nil
	}

	return []*shortener.Record{clone(m.records[code])}, nil
}

func (m *MemoryStore) Commit(_ context.Context, record *shortener.Record) (*shortener.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reserved[record.Code]; !ok {
		return nil, false, shortener.ErrNotReserved
	}

	if owner, ok := m.keys[record.URLKey]; ok {
		delete(m.reserved, record.Code)

		return clone(m.records[owner]), false, nil
	}

	delete(m.reserved, record.Code)
	m.records[record.Code] = clone(record)
	m.keys[record.URLKey] = record.Code

	return clone(record), true, nil
}

func (m *MemoryStore) Release(_ context.Context, code shortener.Code) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.reserved, code)

	return nil
}

func (m *MemoryStore) Update(
	_ context.Context, code shortener.Code, update shortener.RecordUpdate,
) (*shortener.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[code]
	if !ok {
		return nil, shortener.ErrNotFound
	}

	record.Apply(update)

	return clone(record), nil
}

// Len returns the number of committed records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.records)
}

func (m *MemoryStore) taken(code shortener.Code) bool {
	if _, ok := m.records[code]; ok {
		return true
	}

	_, ok := m.reserved[code]

	return ok
}

func clone(record *shortener.Record) *shortener.Record {
	c := *record

	return &c
}

// Compile-time check.
var _ shortener.Store = (*MemoryStore)(nil)
