package listen

import (
	"context"
	"slices"
	"strings"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
)

// EnrichEntry is one transcript entry as sent to an [Enricher].
type EnrichEntry struct {
	Index       int
	Speaker     string
	Text        string
	TimestampMs int64
	Language    string
	Bookmarked  bool
}

// EnrichRequest is the input of one enrichment pass.
type EnrichRequest struct {
	Entries        []EnrichEntry
	ContextLabel   string
	TargetLanguage string
	NativeLanguage string

	// Summary is the transport's summary, if any, as extra context.
	Summary string
}

// ProcessedEntry is the enrichment of the entry at Index. Empty fields
// carry no information.
type ProcessedEntry struct {
	Index        int
	Text         string
	Translation  string
	Language     string
	OriginalText string
}

// EnrichResult is the output of one enrichment pass. Processed may cover
// any subset of the requested indices.
type EnrichResult struct {
	Processed []ProcessedEntry
	Summary   string
}

// Enricher post-processes a transcript. Implementations must be safe for
// concurrent use.
type Enricher interface {
	Enrich(ctx context.Context, req EnrichRequest) (*EnrichResult, error)
}

// BuildEnrichRequest converts stored entries into an [EnrichRequest].
func BuildEnrichRequest(s *Session, target, native string) EnrichRequest {
	req := EnrichRequest{
		Entries:        make([]EnrichEntry, len(s.Entries)),
		ContextLabel:   s.ContextLabel,
		TargetLanguage: target,
		NativeLanguage: native,
		Summary:        s.Summary,
	}
	for i, e := range s.Entries {
		req.Entries[i] = EnrichEntry{
			Index:       i,
			Speaker:     e.SpeakerID,
			Text:        e.Text,
			TimestampMs: e.Timestamp.Milliseconds(),
			Language:    e.Language,
			Bookmarked:  e.IsBookmarked,
		}
	}
	return req
}

// ApplyEnrichment returns a copy of entries with processed results applied
// by index. Out-of-range indices and repeated indices after the first are
// ignored. Entries without a result keep their content. Every returned
// entry is marked enriched. entries is not modified.
func ApplyEnrichment(entries []transcript.Entry, processed []ProcessedEntry) []transcript.Entry {
	out := slices.Clone(entries)
	seen := make(map[int]bool, len(processed))
	for _, p := range processed {
		if p.Index < 0 || p.Index >= len(out) || seen[p.Index] {
			continue
		}
		seen[p.Index] = true

		e := &out[p.Index]
		if text := strings.TrimSpace(p.Text); text != "" {
			if e.OriginalText == "" && text != e.Text {
				e.OriginalText = e.Text
			}
			e.Text = text
		}
		if p.OriginalText != "" {
			e.OriginalText = p.OriginalText
		}
		if p.Translation != "" {
			e.Translation = p.Translation
		}
		if p.Language != "" {
			e.Language = p.Language
		}
	}
	for i := range out {
		out[i].Enriched = true
	}
	return out
}
