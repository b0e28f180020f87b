package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab"
)

const dictionaryColumns = `id, owner_id, word, root_word, translation, word_type, pronunciation,
		gender, plural, conjugations, adjective_forms, example, example_translation, pro_tip,
		source, language_code, created_at, enriched_at`

// KnownWords implements [vocab.Store].
func (s *Store) KnownWords(ctx context.Context, ownerID, languageCode string) ([]string, error) {
	const q = `
		SELECT word
		FROM   dictionary
		WHERE  owner_id = $1 AND language_code = $2
		ORDER  BY word`

	rows, err := s.pool.Query(ctx, q, ownerID, languageCode)
	if err != nil {
		return nil, fmt.Errorf("dictionary: known words: %w", err)
	}
	words, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("dictionary: known words: %w", err)
	}
	return words, nil
}

// UpsertEntries implements [vocab.Store]. All entries are written in one
// transaction. A new key is inserted; an existing row is locked and merged
// with [vocab.Merge], so concurrent writers never create the same word
// twice.
func (s *Store) UpsertEntries(ctx context.Context, entries []vocab.Entry) ([]vocab.Key, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("dictionary: upsert: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var created []vocab.Key
	for _, e := range entries {
		inserted, err := insertEntry(ctx, tx, e)
		if err != nil {
			return nil, fmt.Errorf("dictionary: upsert %q: %w", e.Word, err)
		}
		if inserted {
			created = append(created, e.Key())
			continue
		}

		cur, err := lockEntry(ctx, tx, e.Key())
		if err != nil {
			return nil, fmt.Errorf("dictionary: upsert %q: %w", e.Word, err)
		}
		if err := updateEntry(ctx, tx, vocab.Merge(*cur, e.AsCandidate())); err != nil {
			return nil, fmt.Errorf("dictionary: upsert %q: %w", e.Word, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dictionary: upsert: commit: %w", err)
	}
	return created, nil
}

// GetEntry implements [vocab.Store].
func (s *Store) GetEntry(ctx context.Context, key vocab.Key) (*vocab.Entry, error) {
	q := `SELECT ` + dictionaryColumns + `
		FROM   dictionary
		WHERE  owner_id = $1 AND word = $2 AND language_code = $3`

	e, err := scanEntry(s.pool.QueryRow(ctx, q, key.OwnerID, key.Word, key.LanguageCode))
	if isNoRows(err) {
		return nil, vocab.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dictionary: get entry: %w", err)
	}
	return &e, nil
}

// UpdateEntry implements [vocab.Store]. The row stays locked from the read
// until the commit.
func (s *Store) UpdateEntry(ctx context.Context, key vocab.Key, fn func(cur vocab.Entry) (vocab.Entry, error)) (*vocab.Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("dictionary: update: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, err := lockEntry(ctx, tx, key)
	if isNoRows(err) {
		return nil, vocab.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dictionary: update: %w", err)
	}
	next, err := fn(*cur)
	if err != nil {
		return nil, err
	}
	next.ID, next.OwnerID, next.Word, next.LanguageCode = cur.ID, cur.OwnerID, cur.Word, cur.LanguageCode
	next.Source, next.CreatedAt = cur.Source, cur.CreatedAt

	if err := updateEntry(ctx, tx, next); err != nil {
		return nil, fmt.Errorf("dictionary: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("dictionary: update: commit: %w", err)
	}
	return &next, nil
}

// insertEntry inserts e unless its key exists. It reports whether a row was
// written.
func insertEntry(ctx context.Context, tx pgx.Tx, e vocab.Entry) (bool, error) {
	conj, adj, err := marshalForms(e)
	if err != nil {
		return false, err
	}

	const q = `
		INSERT INTO dictionary (` + dictionaryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (owner_id, word, language_code) DO NOTHING
		RETURNING id`

	var id string
	err = tx.QueryRow(ctx, q,
		e.ID,
		e.OwnerID,
		e.Word,
		e.RootWord,
		e.Translation,
		e.WordType,
		e.Pronunciation,
		e.Gender,
		e.Plural,
		conj,
		adj,
		e.Example,
		e.ExampleTranslation,
		e.ProTip,
		e.Source,
		e.LanguageCode,
		e.CreatedAt,
		e.EnrichedAt,
	).Scan(&id)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func lockEntry(ctx context.Context, tx pgx.Tx, key vocab.Key) (*vocab.Entry, error) {
	q := `SELECT ` + dictionaryColumns + `
		FROM   dictionary
		WHERE  owner_id = $1 AND word = $2 AND language_code = $3
		FOR UPDATE`

	e, err := scanEntry(tx.QueryRow(ctx, q, key.OwnerID, key.Word, key.LanguageCode))
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// updateEntry rewrites the mutable columns of an existing row. Identity,
// source and creation time are kept.
func updateEntry(ctx context.Context, tx pgx.Tx, e vocab.Entry) error {
	conj, adj, err := marshalForms(e)
	if err != nil {
		return err
	}

	const q = `
		UPDATE dictionary
		SET    root_word           = $2,
		       translation         = $3,
		       word_type           = $4,
		       pronunciation       = $5,
		       gender              = $6,
		       plural              = $7,
		       conjugations        = $8,
		       adjective_forms     = $9,
		       example             = $10,
		       example_translation = $11,
		       pro_tip             = $12,
		       enriched_at         = $13
		WHERE  id = $1`

	_, err = tx.Exec(ctx, q,
		e.ID,
		e.RootWord,
		e.Translation,
		e.WordType,
		e.Pronunciation,
		e.Gender,
		e.Plural,
		conj,
		adj,
		e.Example,
		e.ExampleTranslation,
		e.ProTip,
		e.EnrichedAt,
	)
	return err
}

// marshalForms encodes the JSONB columns of e. A missing adjective table is
// stored as NULL.
func marshalForms(e vocab.Entry) (conj []byte, adj any, err error) {
	conjugations := e.Conjugations
	if conjugations == nil {
		conjugations = map[vocab.Tense]*vocab.TenseTable{}
	}
	if conj, err = json.Marshal(conjugations); err != nil {
		return nil, nil, fmt.Errorf("marshal conjugations: %w", err)
	}
	if e.AdjectiveForms != nil {
		b, err := json.Marshal(e.AdjectiveForms)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal adjective forms: %w", err)
		}
		adj = b
	}
	return conj, adj, nil
}

func scanEntry(row pgx.Row) (vocab.Entry, error) {
	var (
		e            vocab.Entry
		conj, adjRaw []byte
	)
	if err := row.Scan(
		&e.ID,
		&e.OwnerID,
		&e.Word,
		&e.RootWord,
		&e.Translation,
		&e.WordType,
		&e.Pronunciation,
		&e.Gender,
		&e.Plural,
		&conj,
		&adjRaw,
		&e.Example,
		&e.ExampleTranslation,
		&e.ProTip,
		&e.Source,
		&e.LanguageCode,
		&e.CreatedAt,
		&e.EnrichedAt,
	); err != nil {
		return vocab.Entry{}, err
	}
	if len(conj) > 0 {
		if err := json.Unmarshal(conj, &e.Conjugations); err != nil {
			return vocab.Entry{}, fmt.Errorf("unmarshal conjugations: %w", err)
		}
		if len(e.Conjugations) == 0 {
			e.Conjugations = nil
		}
	}
	if len(adjRaw) > 0 {
		var af vocab.AdjectiveForms
		if err := json.Unmarshal(adjRaw, &af); err != nil {
			return vocab.Entry{}, fmt.Errorf("unmarshal adjective forms: %w", err)
		}
		e.AdjectiveForms = &af
	}
	return e, nil
}
