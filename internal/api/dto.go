package api

import (
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/app"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/mastery"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab"
)

type captureResponse struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	Error        string    `json:"error,omitempty"`
	ContextLabel string    `json:"contextLabel,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func captureDTO(c *app.Capture) captureResponse {
	out := captureResponse{
		ID:           c.Session.ID(),
		State:        c.Session.State().String(),
		ContextLabel: c.ContextLabel,
		CreatedAt:    c.CreatedAt,
	}
	if err := c.Session.Err(); err != nil {
		out.Error = err.Error()
	}
	return out
}

type listenSessionResponse struct {
	ID           string             `json:"id"`
	OwnerID      string             `json:"ownerId"`
	ContextLabel string             `json:"contextLabel"`
	DurationMs   int64              `json:"durationMs"`
	Entries      []transcript.Entry `json:"entries"`
	Bookmarks    []transcript.Entry `json:"bookmarks"`
	Summary      string             `json:"summary,omitempty"`
	Enriched     bool               `json:"enriched"`
	CreatedAt    time.Time          `json:"createdAt"`
}

func listenSessionDTO(s *listen.Session) listenSessionResponse {
	out := listenSessionResponse{
		ID:           s.ID,
		OwnerID:      s.OwnerID,
		ContextLabel: s.ContextLabel,
		DurationMs:   s.Duration.Milliseconds(),
		Entries:      s.Entries,
		Bookmarks:    s.Bookmarks,
		Summary:      s.Summary,
		Enriched:     s.IsEnriched(),
		CreatedAt:    s.CreatedAt,
	}
	if out.Entries == nil {
		out.Entries = []transcript.Entry{}
	}
	if out.Bookmarks == nil {
		out.Bookmarks = []transcript.Entry{}
	}
	return out
}

type candidateResponse struct {
	Word               string                            `json:"word"`
	RootWord           string                            `json:"rootWord"`
	Translation        string                            `json:"translation"`
	WordType           string                            `json:"type"`
	Importance         int                               `json:"importance,omitempty"`
	Pronunciation      string                            `json:"pronunciation,omitempty"`
	Gender             string                            `json:"gender,omitempty"`
	Plural             string                            `json:"plural,omitempty"`
	Conjugations       map[vocab.Tense]*vocab.TenseTable `json:"conjugations,omitempty"`
	AdjectiveForms     *vocab.AdjectiveForms             `json:"adjectiveForms,omitempty"`
	Example            string                            `json:"example,omitempty"`
	ExampleTranslation string                            `json:"exampleTranslation,omitempty"`
	ProTip             string                            `json:"proTip,omitempty"`
	New                bool                              `json:"new"`
}

func candidateDTO(c vocab.Candidate) candidateResponse {
	return candidateResponse{
		Word:               c.Word,
		RootWord:           c.RootWord,
		Translation:        c.Translation,
		WordType:           c.WordType,
		Importance:         c.Importance,
		Pronunciation:      c.Pronunciation,
		Gender:             c.Gender,
		Plural:             c.Plural,
		Conjugations:       c.Conjugations,
		AdjectiveForms:     c.AdjectiveForms,
		Example:            c.Example,
		ExampleTranslation: c.ExampleTranslation,
		ProTip:             c.ProTip,
		New:                c.New,
	}
}

type harvestResponse struct {
	Candidates []candidateResponse `json:"candidates"`
	New        []string            `json:"new"`
	XPAwarded  int                 `json:"xpAwarded"`
}

type dictionaryEntryResponse struct {
	ID           string            `json:"id"`
	Word         string            `json:"word"`
	LanguageCode string            `json:"languageCode"`
	Source       string            `json:"source,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	EnrichedAt   *time.Time        `json:"enrichedAt,omitempty"`
	Details      candidateResponse `json:"details"`
}

func dictionaryEntryDTO(e *vocab.Entry) dictionaryEntryResponse {
	return dictionaryEntryResponse{
		ID:           e.ID,
		Word:         e.Word,
		LanguageCode: e.LanguageCode,
		Source:       e.Source,
		CreatedAt:    e.CreatedAt,
		EnrichedAt:   e.EnrichedAt,
		Details:      candidateDTO(e.AsCandidate()),
	}
}

type scoreResponse struct {
	WordID          string     `json:"wordId"`
	LanguageCode    string     `json:"languageCode"`
	TotalAttempts   int        `json:"totalAttempts"`
	CorrectAttempts int        `json:"correctAttempts"`
	CurrentStreak   int        `json:"currentStreak"`
	LearnedAt       *time.Time `json:"learnedAt,omitempty"`
}

type practiceResponse struct {
	Correct        bool          `json:"correct"`
	MatchedLocally bool          `json:"matchedLocally"`
	Score          scoreResponse `json:"score"`
	JustLearned    bool          `json:"justLearned"`
	XPAwarded      int           `json:"xpAwarded"`
}

func scoreDTO(s mastery.Score) scoreResponse {
	return scoreResponse{
		WordID:          s.WordID,
		LanguageCode:    s.LanguageCode,
		TotalAttempts:   s.TotalAttempts,
		CorrectAttempts: s.CorrectAttempts,
		CurrentStreak:   s.CurrentStreak,
		LearnedAt:       s.LearnedAt,
	}
}

type xpResponse struct {
	XP int `json:"xp"`
}
