package transcript

import (
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// noiseRe matches text made only of bracketed annotations such as "[music]",
// "(silence)" or "[laughs] [music]".
var noiseRe = regexp.MustCompile(`^(?:\s*(?:\[[^\]]*\]|\([^)]*\)))+\s*$`)

// IsNoise reports whether text carries no speech.
func IsNoise(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || noiseRe.MatchString(t)
}

// Reduce folds c into s and returns the new state. s is not modified.
func Reduce(cfg Config, s State, c Chunk) State {
	if IsNoise(c.Text) {
		return s
	}
	cfg = cfg.withDefaults()
	text := strings.TrimSpace(c.Text)

	if !c.IsFinal {
		s.Partial = &Entry{
			ID:          "partial",
			SpeakerID:   c.SpeakerID,
			Text:        text,
			Translation: c.Translation,
			Language:    c.Language,
			Timestamp:   c.Timestamp,
			LastHeard:   c.Timestamp,
		}
		return s
	}

	out := State{Finals: slices.Clone(s.Finals), Seq: s.Seq}

	if i := lastBySpeaker(out.Finals, c.SpeakerID); i >= 0 {
		prior := out.Finals[i]
		if !prior.IsBookmarked && continues(cfg, prior, text, c) {
			prior.Text = text
			prior.Translation = c.Translation
			prior.Language = c.Language
			if c.Timestamp > prior.LastHeard {
				prior.LastHeard = c.Timestamp
			}
			out.Finals[i] = prior
			return out
		}
	}

	out.Seq++
	e := Entry{
		ID:          "e" + strconv.Itoa(out.Seq),
		SpeakerID:   c.SpeakerID,
		Text:        text,
		Translation: c.Translation,
		Language:    c.Language,
		Timestamp:   c.Timestamp,
		LastHeard:   c.Timestamp,
		IsFinal:     true,
	}
	// Insert after every entry with an equal or earlier timestamp.
	at := sort.Search(len(out.Finals), func(j int) bool {
		return out.Finals[j].Timestamp > e.Timestamp
	})
	out.Finals = slices.Insert(out.Finals, at, e)
	return out
}

func lastBySpeaker(entries []Entry, speaker string) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].SpeakerID == speaker {
			return i
		}
	}
	return -1
}

// continues reports whether text revises prior. Both the textual and the
// recency condition must hold.
func continues(cfg Config, prior Entry, text string, c Chunk) bool {
	overlap := strings.HasPrefix(text, prefix(prior.Text, cfg.PrefixWindow)) ||
		strings.HasPrefix(prior.Text, prefix(text, cfg.PrefixWindow)) ||
		utf8.RuneCountInString(text) > utf8.RuneCountInString(prior.Text)
	if !overlap {
		return false
	}
	return c.Timestamp-prior.LastHeard < cfg.MergeWindow
}

// prefix returns the first n runes of s.
func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// ToggleBookmark flips the bookmark flag of the final entry with the given
// id. It reports false when no such entry exists.
func ToggleBookmark(s State, id string) (State, bool) {
	i := slices.IndexFunc(s.Finals, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return s, false
	}
	s.Finals = slices.Clone(s.Finals)
	s.Finals[i].IsBookmarked = !s.Finals[i].IsBookmarked
	return s, true
}

// Bookmarked returns the bookmarked entries in order.
func Bookmarked(entries []Entry) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.IsBookmarked {
			out = append(out, e)
		}
	}
	return out
}
