package vocab

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a dictionary entry does not exist.
	ErrNotFound = errors.New("vocab: entry not found")

	// ErrTenseUnlocked is returned when unlocking a tense that already has a
	// table.
	ErrTenseUnlocked = errors.New("vocab: tense already unlocked")

	// ErrNoExtractor is returned by [Harvester.Harvest] when no extractor is
	// configured.
	ErrNoExtractor = errors.New("vocab: no extractor configured")

	// ErrNoCompleter is returned when generating grammar without a
	// [Completer].
	ErrNoCompleter = errors.New("vocab: no completer configured")
)

// Store persists dictionary entries.
//
// All implementations must be safe for concurrent use.
type Store interface {
	// KnownWords returns the normalized words the owner already has in the
	// given language.
	KnownWords(ctx context.Context, ownerID, languageCode string) ([]string, error)

	// UpsertEntries writes entries in one atomic step. Entries whose key
	// already exists are merged with [Merge] semantics, the rest are
	// inserted. It returns the keys that did not exist before the write.
	// On error nothing is written.
	UpsertEntries(ctx context.Context, entries []Entry) (created []Key, err error)

	// GetEntry returns the entry with the given key.
	// Returns [ErrNotFound] if it does not exist.
	GetEntry(ctx context.Context, key Key) (*Entry, error)

	// UpdateEntry passes the entry with the given key to fn and writes what
	// fn returns, with the row locked in between. Identity, source and
	// creation time cannot be changed. When fn fails nothing is written and
	// its error is returned. Returns [ErrNotFound] if the entry does not
	// exist.
	UpdateEntry(ctx context.Context, key Key, fn func(cur Entry) (Entry, error)) (*Entry, error)
}

// Extractor proposes vocabulary from conversation text.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) ([]Candidate, error)
}

// ExtractRequest is the input of one extraction call.
type ExtractRequest struct {
	Messages       []Message
	KnownWords     []string
	TargetLanguage string
	NativeLanguage string
}

// Crediter awards experience points.
type Crediter interface {
	Credit(ctx context.Context, ownerID, source string, amount int) error
}

// Completer generates grammar for a single dictionary entry.
type Completer interface {
	// Complete returns what req.Entry is missing as a candidate to merge
	// into it.
	Complete(ctx context.Context, req CompleteRequest) (Candidate, error)

	// Conjugate returns the forms of one tense of a verb keyed by person.
	Conjugate(ctx context.Context, req ConjugateRequest) (map[string]string, error)
}

// CompleteRequest is the input of one completion call.
type CompleteRequest struct {
	Entry   Entry
	Need    Need
	Grammar Grammar
}

// ConjugateRequest is the input of one conjugation call.
type ConjugateRequest struct {
	Verb         string
	Translation  string
	LanguageCode string
	Tense        Tense
	Persons      []string
}
