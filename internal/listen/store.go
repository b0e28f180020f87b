package listen

import (
	"context"
	"errors"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
)

// ErrNotFound is returned when a listen session does not exist.
var ErrNotFound = errors.New("listen: session not found")

// ErrEmptyTranscript is returned by [Coordinator.Finish] when the capture
// produced no final entries. Nothing is stored.
var ErrEmptyTranscript = errors.New("listen: transcript has no final entries")

// ErrNoEnricher is returned by [Coordinator.Enrich] when no enricher is
// configured.
var ErrNoEnricher = errors.New("listen: no enricher configured")

// Store persists listen sessions.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// CreateListenSession inserts s. s.ID must be set.
	CreateListenSession(ctx context.Context, s *Session) error

	// GetListenSession returns the session with the given id.
	// Returns [ErrNotFound] if it does not exist.
	GetListenSession(ctx context.Context, id string) (*Session, error)

	// UpdateListenEntries replaces the entry list of a session and recomputes
	// its bookmarks. A non-empty summary replaces the stored one.
	// Returns [ErrNotFound] if the session does not exist.
	UpdateListenEntries(ctx context.Context, id string, entries []transcript.Entry, summary string) error

	// ListListenSessions returns the owner's sessions, newest first. A limit
	// of zero or less means no limit.
	ListListenSessions(ctx context.Context, ownerID string, limit int) ([]Session, error)
}
