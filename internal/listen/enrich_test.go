package listen_test

import (
	"strings"
	"testing"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
)

func entries() []transcript.Entry {
	return []transcript.Entry{
		{ID: "e1", SpeakerID: "s0", Text: "kocham cie", Timestamp: time.Second, IsFinal: true},
		{ID: "e2", SpeakerID: "s1", Text: "ja tez", Timestamp: 2 * time.Second, IsFinal: true, IsBookmarked: true},
		{ID: "e3", SpeakerID: "s0", Text: "dobranoc", Timestamp: 3 * time.Second, IsFinal: true},
	}
}

func TestApplyEnrichment(t *testing.T) {
	t.Parallel()

	in := entries()
	processed := []listen.ProcessedEntry{
		{Index: 0, Text: "kocham cię", Translation: "I love you", Language: "pl"},
		{Index: 0, Text: "ignored duplicate"},
		{Index: 1, Translation: "me too"},
		{Index: 7, Text: "out of range"},
		{Index: -1, Text: "negative"},
	}

	out := listen.ApplyEnrichment(in, processed)

	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	if out[0].Text != "kocham cię" || out[0].Translation != "I love you" || out[0].Language != "pl" {
		t.Errorf("entry 0 = %+v", out[0])
	}
	if out[0].OriginalText != "kocham cie" {
		t.Errorf("entry 0 original = %q, want the raw text", out[0].OriginalText)
	}
	if out[1].Text != "ja tez" || out[1].Translation != "me too" || !out[1].IsBookmarked {
		t.Errorf("entry 1 = %+v, want text and bookmark kept", out[1])
	}
	if out[2].Text != "dobranoc" || out[2].Translation != "" {
		t.Errorf("entry without a result changed: %+v", out[2])
	}
	for i, e := range out {
		if !e.Enriched {
			t.Errorf("entry %d not marked enriched", i)
		}
		if e.ID != in[i].ID || e.Timestamp != in[i].Timestamp {
			t.Errorf("entry %d identity changed", i)
		}
	}
	if in[0].Text != "kocham cie" || in[0].Enriched {
		t.Error("input slice was modified")
	}
}

func TestApplyEnrichment_Replay(t *testing.T) {
	t.Parallel()

	processed := []listen.ProcessedEntry{{Index: 0, Text: "kocham cię", OriginalText: "kocham cie"}}
	once := listen.ApplyEnrichment(entries(), processed)
	twice := listen.ApplyEnrichment(once, processed)
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("entry %d differs after replay: %+v vs %+v", i, once[i], twice[i])
		}
	}
}

func TestSession_IsEnriched(t *testing.T) {
	t.Parallel()

	s := &listen.Session{}
	if s.IsEnriched() {
		t.Error("empty session reported enriched")
	}
	s.Entries = entries()
	if s.IsEnriched() {
		t.Error("raw session reported enriched")
	}
	s.Entries = listen.ApplyEnrichment(s.Entries, nil)
	if !s.IsEnriched() {
		t.Error("enriched session not reported enriched")
	}
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("ż", 600)
	tests := []struct {
		name  string
		in    string
		runes int
	}{
		{"trimmed", "  coffee date \n", len("coffee date")},
		{"capped in runes", long, 500},
		{"empty", "   ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := listen.NormalizeLabel(tt.in)
			if n := len([]rune(got)); n != tt.runes {
				t.Errorf("NormalizeLabel rune count = %d, want %d", n, tt.runes)
			}
		})
	}
}

func TestBuildEnrichRequest(t *testing.T) {
	t.Parallel()

	s := &listen.Session{ContextLabel: "park", Summary: "sum", Entries: entries()}
	req := listen.BuildEnrichRequest(s, "pl", "en")
	if len(req.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(req.Entries))
	}
	if got := req.Entries[1]; got.Index != 1 || got.TimestampMs != 2000 || !got.Bookmarked || got.Speaker != "s1" {
		t.Errorf("entry 1 = %+v", got)
	}
	if req.TargetLanguage != "pl" || req.NativeLanguage != "en" || req.ContextLabel != "park" || req.Summary != "sum" {
		t.Errorf("request = %+v", req)
	}
}
