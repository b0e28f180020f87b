package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/mastery"
)

const scoreColumns = `owner_id, word_id, language_code, total_attempts, correct_attempts,
		current_streak, learned_at, last_practiced`

// GetScore implements [mastery.Store].
func (s *Store) GetScore(ctx context.Context, ownerID, wordID string) (*mastery.Score, error) {
	q := `SELECT ` + scoreColumns + `
		FROM   word_scores
		WHERE  owner_id = $1 AND word_id = $2`

	sc, err := scanScore(s.pool.QueryRow(ctx, q, ownerID, wordID))
	if isNoRows(err) {
		return nil, mastery.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scores: get: %w", err)
	}
	return &sc, nil
}

// UpdateScore implements [mastery.Store]. The row is created if missing and
// locked for the rest of the transaction, so concurrent answers to one word
// apply one after the other. learned_at is never cleared once set.
func (s *Store) UpdateScore(ctx context.Context, ownerID, wordID string, fn func(cur *mastery.Score) (mastery.Score, error)) (mastery.Score, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mastery.Score{}, fmt.Errorf("scores: update: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO word_scores (owner_id, word_id)
		VALUES ($1, $2)
		ON CONFLICT (owner_id, word_id) DO NOTHING`, ownerID, wordID)
	if err != nil {
		return mastery.Score{}, fmt.Errorf("scores: update: %w", err)
	}
	created := tag.RowsAffected() == 1

	q := `SELECT ` + scoreColumns + `
		FROM   word_scores
		WHERE  owner_id = $1 AND word_id = $2
		FOR UPDATE`
	cur, err := scanScore(tx.QueryRow(ctx, q, ownerID, wordID))
	if err != nil {
		return mastery.Score{}, fmt.Errorf("scores: update: lock: %w", err)
	}

	var next mastery.Score
	if created {
		next, err = fn(nil)
	} else {
		next, err = fn(&cur)
	}
	if err != nil {
		return mastery.Score{}, err
	}

	const upd = `
		UPDATE word_scores
		SET    language_code    = $3,
		       total_attempts   = $4,
		       correct_attempts = $5,
		       current_streak   = $6,
		       learned_at       = COALESCE(learned_at, $7),
		       last_practiced   = $8
		WHERE  owner_id = $1 AND word_id = $2`
	if _, err := tx.Exec(ctx, upd,
		ownerID,
		wordID,
		next.LanguageCode,
		next.TotalAttempts,
		next.CorrectAttempts,
		next.CurrentStreak,
		next.LearnedAt,
		next.LastPracticed,
	); err != nil {
		return mastery.Score{}, fmt.Errorf("scores: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return mastery.Score{}, fmt.Errorf("scores: update: commit: %w", err)
	}
	return next, nil
}

func scanScore(row pgx.Row) (mastery.Score, error) {
	var sc mastery.Score
	err := row.Scan(
		&sc.OwnerID,
		&sc.WordID,
		&sc.LanguageCode,
		&sc.TotalAttempts,
		&sc.CorrectAttempts,
		&sc.CurrentStreak,
		&sc.LearnedAt,
		&sc.LastPracticed,
	)
	return sc, err
}

// AddXP implements [reward.Store].
func (s *Store) AddXP(ctx context.Context, ownerID string, amount int) (int, error) {
	const q = `
		INSERT INTO profiles (owner_id, xp, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner_id) DO UPDATE SET
		    xp         = profiles.xp + EXCLUDED.xp,
		    updated_at = now()
		RETURNING xp`

	var total int64
	if err := s.pool.QueryRow(ctx, q, ownerID, amount).Scan(&total); err != nil {
		return 0, fmt.Errorf("profiles: add xp: %w", err)
	}
	return int(total), nil
}

// XP implements [reward.Store].
func (s *Store) XP(ctx context.Context, ownerID string) (int, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `SELECT xp FROM profiles WHERE owner_id = $1`, ownerID).Scan(&total)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("profiles: xp: %w", err)
	}
	return int(total), nil
}
