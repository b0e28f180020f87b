package vocab

import (
	"context"
	"maps"
	"slices"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for tests and development.
type MemStore struct {
	mu      sync.Mutex
	entries map[Key]Entry
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[Key]Entry)}
}

// KnownWords implements [Store.KnownWords].
func (m *MemStore) KnownWords(_ context.Context, ownerID, languageCode string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var words []string
	for k := range m.entries {
		if k.OwnerID == ownerID && k.LanguageCode == languageCode {
			words = append(words, k.Word)
		}
	}
	slices.Sort(words)
	return words, nil
}

// UpsertEntries implements [Store.UpsertEntries].
func (m *MemStore) UpsertEntries(_ context.Context, entries []Entry) ([]Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var created []Key
	for _, e := range entries {
		k := e.Key()
		cur, ok := m.entries[k]
		if !ok {
			m.entries[k] = cloneEntry(e)
			created = append(created, k)
			continue
		}
		m.entries[k] = cloneEntry(Merge(cur, e.AsCandidate()))
	}
	return created, nil
}

// GetEntry implements [Store.GetEntry].
func (m *MemStore) GetEntry(_ context.Context, key Key) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	e = cloneEntry(e)
	return &e, nil
}

// UpdateEntry implements [Store.UpdateEntry]. fn runs under the store lock.
func (m *MemStore) UpdateEntry(_ context.Context, key Key, fn func(cur Entry) (Entry, error)) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := fn(cloneEntry(cur))
	if err != nil {
		return nil, err
	}
	next.ID, next.OwnerID, next.Word, next.LanguageCode = cur.ID, cur.OwnerID, cur.Word, cur.LanguageCode
	next.Source, next.CreatedAt = cur.Source, cur.CreatedAt
	m.entries[key] = cloneEntry(next)
	out := cloneEntry(next)
	return &out, nil
}

func cloneEntry(e Entry) Entry {
	if e.Conjugations != nil {
		conj := make(map[Tense]*TenseTable, len(e.Conjugations))
		for t, tbl := range e.Conjugations {
			if tbl == nil {
				continue
			}
			cp := *tbl
			cp.Forms = maps.Clone(tbl.Forms)
			conj[t] = &cp
		}
		e.Conjugations = conj
	}
	if e.AdjectiveForms != nil {
		af := *e.AdjectiveForms
		e.AdjectiveForms = &af
	}
	return e
}
