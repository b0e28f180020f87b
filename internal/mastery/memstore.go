package mastery

import (
	"context"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for tests and development.
type MemStore struct {
	mu     sync.Mutex
	scores map[[2]string]Score
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{scores: make(map[[2]string]Score)}
}

// GetScore implements [Store.GetScore].
func (m *MemStore) GetScore(_ context.Context, ownerID, wordID string) (*Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scores[[2]string{ownerID, wordID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// UpdateScore implements [Store.UpdateScore]. fn runs under the store lock.
func (m *MemStore) UpdateScore(_ context.Context, ownerID, wordID string, fn func(cur *Score) (Score, error)) (Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := [2]string{ownerID, wordID}
	var cur *Score
	if s, ok := m.scores[k]; ok {
		cur = &s
	}
	next, err := fn(cur)
	if err != nil {
		return Score{}, err
	}
	if cur != nil && cur.LearnedAt != nil {
		next.LearnedAt = cur.LearnedAt
	}
	m.scores[k] = next
	return next, nil
}
