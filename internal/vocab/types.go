// Package vocab harvests vocabulary from conversation text and merges it into
// a learner's dictionary.
//
// A [Harvester] asks an [Extractor] for candidate words, deduplicates them on
// their normalized form, and writes them with a single atomic upsert. Existing
// rows are merged field by field and never lose detail: a scalar is only
// filled when absent, and a conjugation tense, once unlocked, is never
// reverted. Experience points are credited only for words that did not exist
// before the write.
package vocab

import (
	"time"
)

// Sources recorded on dictionary entries.
const (
	SourceChat   = "chat"
	SourceListen = "listen"
)

// Tense names a conjugation table.
type Tense string

const (
	TensePresent Tense = "present"
	TensePast    Tense = "past"
	TenseFuture  Tense = "future"
)

// Valid reports whether t is a known tense.
func (t Tense) Valid() bool {
	switch t {
	case TensePresent, TensePast, TenseFuture:
		return true
	}
	return false
}

// TenseTable holds the forms of one tense keyed by person, e.g. "ja",
// "ty", "onOna". A tense without a table is locked.
type TenseTable struct {
	UnlockedAt *time.Time        `json:"unlockedAt,omitempty"`
	Forms      map[string]string `json:"forms"`
}

// AdjectiveForms holds the gendered forms of an adjective.
type AdjectiveForms struct {
	Masculine string `json:"masculine,omitempty"`
	Feminine  string `json:"feminine,omitempty"`
	Neuter    string `json:"neuter,omitempty"`
	Plural    string `json:"plural,omitempty"`
}

// Key identifies a dictionary entry. Word is normalized.
type Key struct {
	OwnerID      string
	Word         string
	LanguageCode string
}

// Entry is one word in a learner's dictionary.
type Entry struct {
	ID                 string
	OwnerID            string
	Word               string
	RootWord           string
	Translation        string
	WordType           string
	Pronunciation      string
	Gender             string
	Plural             string
	Conjugations       map[Tense]*TenseTable
	AdjectiveForms     *AdjectiveForms
	Example            string
	ExampleTranslation string
	ProTip             string
	Source             string
	LanguageCode       string
	CreatedAt          time.Time
	EnrichedAt         *time.Time
}

// Key returns the entry's dictionary key.
func (e Entry) Key() Key {
	return Key{OwnerID: e.OwnerID, Word: e.Word, LanguageCode: e.LanguageCode}
}

// AsCandidate returns the linguistic fields of e as a candidate, so a stored
// entry can be merged into another one.
func (e Entry) AsCandidate() Candidate {
	return Candidate{
		Word:               e.Word,
		RootWord:           e.RootWord,
		Translation:        e.Translation,
		WordType:           e.WordType,
		Pronunciation:      e.Pronunciation,
		Gender:             e.Gender,
		Plural:             e.Plural,
		Conjugations:       e.Conjugations,
		AdjectiveForms:     e.AdjectiveForms,
		Example:            e.Example,
		ExampleTranslation: e.ExampleTranslation,
		ProTip:             e.ProTip,
	}
}

// Candidate is a word proposed by an [Extractor].
type Candidate struct {
	Word               string
	RootWord           string
	Translation        string
	WordType           string
	Importance         int
	Pronunciation      string
	Gender             string
	Plural             string
	Conjugations       map[Tense]*TenseTable
	AdjectiveForms     *AdjectiveForms
	Example            string
	ExampleTranslation string
	ProTip             string

	// New is reported by the extractor and corrected by the harvester from
	// the store's pre-write snapshot.
	New bool
}

// Message is one conversational turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// DictionaryChanged is published after a dictionary write.
type DictionaryChanged struct {
	OwnerID      string
	LanguageCode string
	Source       string

	// Added lists the words that did not exist before the write.
	Added []string

	// Updated counts entries that were merged into existing rows.
	Updated int
}
