package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
)

const listenColumns = `id, owner_id, context_label, duration_ms, entries, bookmarks, summary, created_at`

// CreateListenSession implements [listen.Store].
func (s *Store) CreateListenSession(ctx context.Context, ls *listen.Session) error {
	entries, bookmarks, err := marshalEntries(ls.Entries)
	if err != nil {
		return fmt.Errorf("listen store: create: %w", err)
	}

	const q = `
		INSERT INTO listen_sessions (` + listenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, q,
		ls.ID,
		ls.OwnerID,
		ls.ContextLabel,
		ls.Duration.Milliseconds(),
		entries,
		bookmarks,
		ls.Summary,
		ls.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("listen store: create: %w", err)
	}
	return nil
}

// GetListenSession implements [listen.Store].
func (s *Store) GetListenSession(ctx context.Context, id string) (*listen.Session, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+listenColumns+` FROM listen_sessions WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("listen store: get: %w", err)
	}
	sessions, err := collectListenSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("listen store: get: %w", err)
	}
	if len(sessions) == 0 {
		return nil, listen.ErrNotFound
	}
	return &sessions[0], nil
}

// UpdateListenEntries implements [listen.Store].
func (s *Store) UpdateListenEntries(ctx context.Context, id string, entries []transcript.Entry, summary string) error {
	entriesJSON, bookmarksJSON, err := marshalEntries(entries)
	if err != nil {
		return fmt.Errorf("listen store: update entries: %w", err)
	}

	const q = `
		UPDATE listen_sessions
		SET    entries   = $2,
		       bookmarks = $3,
		       summary   = COALESCE(NULLIF($4, ''), summary)
		WHERE  id = $1`

	tag, err := s.pool.Exec(ctx, q, id, entriesJSON, bookmarksJSON, summary)
	if err != nil {
		return fmt.Errorf("listen store: update entries: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return listen.ErrNotFound
	}
	return nil
}

// ListListenSessions implements [listen.Store].
func (s *Store) ListListenSessions(ctx context.Context, ownerID string, limit int) ([]listen.Session, error) {
	q := `SELECT ` + listenColumns + `
		FROM   listen_sessions
		WHERE  owner_id = $1
		ORDER  BY created_at DESC, id`
	args := []any{ownerID}
	if limit > 0 {
		q += "\nLIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listen store: list: %w", err)
	}
	sessions, err := collectListenSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("listen store: list: %w", err)
	}
	return sessions, nil
}

func marshalEntries(entries []transcript.Entry) (entriesJSON, bookmarksJSON []byte, err error) {
	if entries == nil {
		entries = []transcript.Entry{}
	}
	bookmarks := transcript.Bookmarked(entries)
	if bookmarks == nil {
		bookmarks = []transcript.Entry{}
	}
	if entriesJSON, err = json.Marshal(entries); err != nil {
		return nil, nil, fmt.Errorf("marshal entries: %w", err)
	}
	if bookmarksJSON, err = json.Marshal(bookmarks); err != nil {
		return nil, nil, fmt.Errorf("marshal bookmarks: %w", err)
	}
	return entriesJSON, bookmarksJSON, nil
}

func collectListenSessions(rows pgx.Rows) ([]listen.Session, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (listen.Session, error) {
		var (
			ls                       listen.Session
			durationMS               int64
			entriesRaw, bookmarksRaw []byte
		)
		if err := row.Scan(
			&ls.ID,
			&ls.OwnerID,
			&ls.ContextLabel,
			&durationMS,
			&entriesRaw,
			&bookmarksRaw,
			&ls.Summary,
			&ls.CreatedAt,
		); err != nil {
			return listen.Session{}, err
		}
		ls.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal(entriesRaw, &ls.Entries); err != nil {
			return listen.Session{}, fmt.Errorf("unmarshal entries: %w", err)
		}
		if err := json.Unmarshal(bookmarksRaw, &ls.Bookmarks); err != nil {
			return listen.Session{}, fmt.Errorf("unmarshal bookmarks: %w", err)
		}
		return ls, nil
	})
}
