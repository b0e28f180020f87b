package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlListenSessions = `
CREATE TABLE IF NOT EXISTS listen_sessions (
    id             TEXT         PRIMARY KEY,
    owner_id       TEXT         NOT NULL,
    context_label  TEXT         NOT NULL DEFAULT '',
    duration_ms    BIGINT       NOT NULL DEFAULT 0,
    entries        JSONB        NOT NULL DEFAULT '[]',
    bookmarks      JSONB        NOT NULL DEFAULT '[]',
    summary        TEXT         NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_listen_sessions_owner_created
    ON listen_sessions (owner_id, created_at DESC);
`

const ddlDictionary = `
CREATE TABLE IF NOT EXISTS dictionary (
    id                   TEXT         PRIMARY KEY,
    owner_id             TEXT         NOT NULL,
    word                 TEXT         NOT NULL,
    root_word            TEXT         NOT NULL DEFAULT '',
    translation          TEXT         NOT NULL DEFAULT '',
    word_type            TEXT         NOT NULL DEFAULT '',
    pronunciation        TEXT         NOT NULL DEFAULT '',
    gender               TEXT         NOT NULL DEFAULT '',
    plural               TEXT         NOT NULL DEFAULT '',
    conjugations         JSONB        NOT NULL DEFAULT '{}',
    adjective_forms      JSONB,
    example              TEXT         NOT NULL DEFAULT '',
    example_translation  TEXT         NOT NULL DEFAULT '',
    pro_tip              TEXT         NOT NULL DEFAULT '',
    source               TEXT         NOT NULL DEFAULT '',
    language_code        TEXT         NOT NULL,
    created_at           TIMESTAMPTZ  NOT NULL DEFAULT now(),
    enriched_at          TIMESTAMPTZ,
    UNIQUE (owner_id, word, language_code)
);

CREATE INDEX IF NOT EXISTS idx_dictionary_owner_language
    ON dictionary (owner_id, language_code);
`

const ddlScores = `
CREATE TABLE IF NOT EXISTS word_scores (
    owner_id          TEXT         NOT NULL,
    word_id           TEXT         NOT NULL,
    language_code     TEXT         NOT NULL DEFAULT '',
    total_attempts    INTEGER      NOT NULL DEFAULT 0,
    correct_attempts  INTEGER      NOT NULL DEFAULT 0,
    current_streak    INTEGER      NOT NULL DEFAULT 0,
    learned_at        TIMESTAMPTZ,
    last_practiced    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (owner_id, word_id)
);

CREATE TABLE IF NOT EXISTS profiles (
    owner_id    TEXT         PRIMARY KEY,
    xp          BIGINT       NOT NULL DEFAULT 0,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// Migrate creates all tables and indexes. It is idempotent and safe to call
// on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlListenSessions, ddlDictionary, ddlScores} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
