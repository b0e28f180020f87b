// Package listen stores finished captures as listen sessions and enriches
// them in the background.
//
// A [Coordinator] persists a finished transcript synchronously and then runs
// an enrichment pass against an [Enricher]. Enrichment corrects text, adds
// translations and language tags, and is applied by entry index. It is
// best-effort: a pass that fails, or never finishes, leaves a valid record
// that is merely less enriched, and it can be re-run at any time.
package listen

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
)

// maxContextLabel is the maximum length of a context label, in runes.
const maxContextLabel = 500

// Session is a stored listen session.
type Session struct {
	ID           string
	OwnerID      string
	ContextLabel string
	Duration     time.Duration

	// Entries holds the final transcript entries in timestamp order.
	Entries []transcript.Entry

	// Bookmarks is derived from Entries.
	Bookmarks []transcript.Entry

	Summary   string
	CreatedAt time.Time
}

// IsEnriched reports whether every entry went through an enrichment pass.
func (s *Session) IsEnriched() bool {
	if len(s.Entries) == 0 {
		return false
	}
	for _, e := range s.Entries {
		if !e.Enriched {
			return false
		}
	}
	return true
}

// NormalizeLabel trims label and caps it at 500 runes.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if utf8.RuneCountInString(label) <= maxContextLabel {
		return label
	}
	r := []rune(label)
	return strings.TrimSpace(string(r[:maxContextLabel]))
}
