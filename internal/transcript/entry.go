// Package transcript reconciles the live event stream of a speech transport
// into an ordered transcript.
//
// Speech engines revise themselves: a phrase first arrives as a string of
// partial hypotheses, is finalised, and is then often finalised again with a
// longer or corrected text. [Reduce] folds each [Chunk] into a [State] so that
// the final entries stay ordered by capture time, at most one partial entry
// exists, and self-corrections replace the entry they revise instead of
// growing the transcript. Entries the user has bookmarked are never revised.
//
// The fold is a pure function of the chunk sequence. [Reconciler] wraps it for
// callers that own one live transcript.
package transcript

import (
	"encoding/json"
	"time"
)

// Chunk is a single transcript event from the speech transport.
type Chunk struct {
	// SpeakerID identifies the diarized speaker, e.g. "speaker_0".
	SpeakerID string

	// Text is the raw transcribed text.
	Text string

	// IsFinal is false for interim hypotheses.
	IsFinal bool

	// Timestamp is the capture-relative time of the chunk.
	Timestamp time.Duration

	// Language is the detected BCP-47 language tag, if known.
	Language string

	// Translation is the realtime translation, if the transport provides one.
	Translation string
}

// Entry is one line of a transcript.
type Entry struct {
	ID           string
	SpeakerID    string
	Text         string
	Translation  string
	Language     string
	OriginalText string

	// Timestamp is when the entry started. It is kept when a later chunk
	// revises the entry.
	Timestamp time.Duration

	// LastHeard is the timestamp of the most recent chunk merged into the
	// entry. Recency checks are measured against it.
	LastHeard time.Duration

	IsFinal      bool
	IsBookmarked bool

	// Enriched marks entries that went through an enrichment pass.
	Enriched bool
}

// entryJSON is the stored representation. Timestamps are milliseconds.
type entryJSON struct {
	ID           string `json:"id"`
	SpeakerID    string `json:"speaker"`
	Text         string `json:"text"`
	Translation  string `json:"translation,omitempty"`
	Language     string `json:"language,omitempty"`
	OriginalText string `json:"originalText,omitempty"`
	TimestampMs  int64  `json:"timestampMs"`
	LastHeardMs  int64  `json:"lastHeardMs"`
	IsFinal      bool   `json:"isFinal"`
	IsBookmarked bool   `json:"isBookmarked"`
	Enriched     bool   `json:"enriched,omitempty"`
}

// MarshalJSON encodes the entry with millisecond timestamps.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		ID:           e.ID,
		SpeakerID:    e.SpeakerID,
		Text:         e.Text,
		Translation:  e.Translation,
		Language:     e.Language,
		OriginalText: e.OriginalText,
		TimestampMs:  e.Timestamp.Milliseconds(),
		LastHeardMs:  e.LastHeard.Milliseconds(),
		IsFinal:      e.IsFinal,
		IsBookmarked: e.IsBookmarked,
		Enriched:     e.Enriched,
	})
}

// UnmarshalJSON decodes the representation written by MarshalJSON.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var j entryJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*e = Entry{
		ID:           j.ID,
		SpeakerID:    j.SpeakerID,
		Text:         j.Text,
		Translation:  j.Translation,
		Language:     j.Language,
		OriginalText: j.OriginalText,
		Timestamp:    time.Duration(j.TimestampMs) * time.Millisecond,
		LastHeard:    time.Duration(j.LastHeardMs) * time.Millisecond,
		IsFinal:      j.IsFinal,
		IsBookmarked: j.IsBookmarked,
		Enriched:     j.Enriched,
	}
	return nil
}

// State is the reconciled transcript at one point in the event stream.
type State struct {
	// Finals holds finalized entries sorted by Timestamp.
	Finals []Entry

	// Partial is the in-flight hypothesis. It is never persisted.
	Partial *Entry

	// Seq counts appended entries and seeds their IDs.
	Seq int
}

// Config tunes the continuation heuristic.
type Config struct {
	// MergeWindow is the maximum gap between an entry's last chunk and a new
	// final chunk for the two to be merged.
	MergeWindow time.Duration

	// PrefixWindow is the number of leading runes compared when deciding
	// whether one text extends the other.
	PrefixWindow int
}

// DefaultConfig returns the defaults: a 10s merge window and a 10-rune
// prefix window.
func DefaultConfig() Config {
	return Config{
		MergeWindow:  10 * time.Second,
		PrefixWindow: 10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MergeWindow <= 0 {
		c.MergeWindow = d.MergeWindow
	}
	if c.PrefixWindow <= 0 {
		c.PrefixWindow = d.PrefixWindow
	}
	return c
}
