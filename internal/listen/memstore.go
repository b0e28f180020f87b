package listen

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory [Store] for tests and development.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]Session)}
}

// CreateListenSession implements [Store.CreateListenSession].
func (m *MemStore) CreateListenSession(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = clone(*s)
	return nil
}

// GetListenSession implements [Store.GetListenSession].
func (m *MemStore) GetListenSession(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s = clone(s)
	return &s, nil
}

// UpdateListenEntries implements [Store.UpdateListenEntries].
func (m *MemStore) UpdateListenEntries(_ context.Context, id string, entries []transcript.Entry, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	s.Entries = slices.Clone(entries)
	s.Bookmarks = transcript.Bookmarked(entries)
	if summary != "" {
		s.Summary = summary
	}
	m.sessions[id] = s
	return nil
}

// ListListenSessions implements [Store.ListListenSessions].
func (m *MemStore) ListListenSessions(_ context.Context, ownerID string, limit int) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Session
	for _, s := range m.sessions {
		if s.OwnerID == ownerID {
			out = append(out, clone(s))
		}
	}
	slices.SortFunc(out, func(a, b Session) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(s Session) Session {
	s.Entries = slices.Clone(s.Entries)
	s.Bookmarks = slices.Clone(s.Bookmarks)
	return s
}
