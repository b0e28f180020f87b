package api

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/mastery"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab"
)

type harvestRequest struct {
	LanguageCode   string          `json:"languageCode"`
	NativeLanguage string          `json:"nativeLanguage"`
	Source         string          `json:"source"`
	Messages       []vocab.Message `json:"messages"`
}

func (s *Server) handleHarvest(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	var req harvestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.LanguageCode == "" {
		respondMessage(w, http.StatusBadRequest, "languageCode is required")
		return
	}
	if req.NativeLanguage == "" {
		req.NativeLanguage = s.app.Config().Enrichment.NativeLanguage
	}
	if req.Source == "" {
		req.Source = vocab.SourceChat
	}

	res, err := s.app.Harvester().Harvest(r.Context(), vocab.HarvestRequest{
		OwnerID:        owner,
		LanguageCode:   req.LanguageCode,
		NativeLanguage: req.NativeLanguage,
		Source:         req.Source,
		Messages:       req.Messages,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := harvestResponse{
		Candidates: make([]candidateResponse, 0, len(res.Candidates)),
		New:        res.NewWords,
		XPAwarded:  res.XPAwarded,
	}
	if out.New == nil {
		out.New = []string{}
	}
	for _, c := range res.Candidates {
		out.Candidates = append(out.Candidates, candidateDTO(c))
	}
	respondJSON(w, http.StatusOK, out)
}

type dictionaryEvent struct {
	LanguageCode string   `json:"languageCode"`
	Source       string   `json:"source"`
	Added        []string `json:"added"`
	Updated      int      `json:"updated"`
}

// handleDictionaryEvents streams the owner's dictionary changes over a
// websocket so open word lists can refresh.
func (s *Server) handleDictionaryEvents(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	// Subscribed before the handshake completes so no change is missed.
	events, unsubscribe := s.app.Dictionary().Subscribe(feedBuffer)
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("api: dictionary events accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			if ev.OwnerID != owner {
				continue
			}
			out := dictionaryEvent{
				LanguageCode: ev.LanguageCode,
				Source:       ev.Source,
				Added:        ev.Added,
				Updated:      ev.Updated,
			}
			if out.Added == nil {
				out.Added = []string{}
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return
			}
		}
	}
}

type unlockTenseRequest struct {
	Word         string            `json:"word"`
	LanguageCode string            `json:"languageCode"`
	Tense        vocab.Tense       `json:"tense"`
	Forms        map[string]string `json:"forms"`
}

func (s *Server) handleUnlockTense(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	var req unlockTenseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Word) == "" || req.LanguageCode == "" {
		respondMessage(w, http.StatusBadRequest, "word and languageCode are required")
		return
	}
	if !req.Tense.Valid() {
		respondMessage(w, http.StatusBadRequest, "a known tense is required")
		return
	}

	e, err := s.app.Harvester().UnlockTense(r.Context(),
		vocab.Key{OwnerID: owner, Word: req.Word, LanguageCode: req.LanguageCode},
		req.Tense,
		vocab.TenseTable{Forms: req.Forms},
	)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dictionaryEntryDTO(e))
}

type completeEntryRequest struct {
	Word         string `json:"word"`
	LanguageCode string `json:"languageCode"`
}

type completeEntryResponse struct {
	Entry     dictionaryEntryResponse `json:"entry"`
	Generated string                  `json:"generated"`
}

func (s *Server) handleCompleteEntry(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	var req completeEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Word) == "" || req.LanguageCode == "" {
		respondMessage(w, http.StatusBadRequest, "word and languageCode are required")
		return
	}

	e, need, err := s.app.Harvester().CompleteEntry(r.Context(),
		vocab.Key{OwnerID: owner, Word: req.Word, LanguageCode: req.LanguageCode})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, completeEntryResponse{Entry: dictionaryEntryDTO(e), Generated: need.String()})
}

type practiceRequest struct {
	WordID       string `json:"wordId"`
	LanguageCode string `json:"languageCode"`

	// Correct is the verdict of the caller. When it is absent, Given is
	// compared with Expected locally.
	Correct  *bool  `json:"correct"`
	Given    string `json:"given"`
	Expected string `json:"expected"`
}

func (s *Server) handlePracticeAnswer(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	var req practiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.WordID == "" {
		respondMessage(w, http.StatusBadRequest, "wordId is required")
		return
	}

	var correct, local bool
	switch {
	case req.Correct != nil:
		correct = *req.Correct
	case req.Expected != "":
		correct = mastery.Match(req.Given, req.Expected, mastery.MatchOptions{
			TargetLanguage: req.LanguageCode,
			NativeLanguage: s.app.Config().Enrichment.NativeLanguage,
		})
		local = true
	default:
		respondMessage(w, http.StatusBadRequest, "either correct or expected is required")
		return
	}

	out, err := s.app.Tracker().RecordAnswer(r.Context(), mastery.Answer{
		OwnerID:      owner,
		WordID:       req.WordID,
		LanguageCode: req.LanguageCode,
		Correct:      correct,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, practiceResponse{
		Correct:        correct,
		MatchedLocally: local,
		Score:          scoreDTO(out.Score),
		JustLearned:    out.JustLearned,
		XPAwarded:      out.XPAwarded,
	})
}

type addXPRequest struct {
	Amount int `json:"amount"`
}

func (s *Server) handleAddXP(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	var req addXPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	xp, err := s.app.Ledger().AddXP(r.Context(), owner, req.Amount)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, xpResponse{XP: xp})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	owner := ownerID(w, r)
	if owner == "" {
		return
	}
	xp, err := s.app.Ledger().Balance(r.Context(), owner)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, xpResponse{XP: xp})
}
