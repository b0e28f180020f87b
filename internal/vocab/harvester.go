package vocab

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
)

const (
	// DefaultBatchSize is the number of messages sent per extraction call.
	DefaultBatchSize = 50

	// DefaultMaxConcurrency bounds parallel extraction calls per harvest.
	DefaultMaxConcurrency = 4

	// DefaultXPPerWord is credited for every word new to the dictionary.
	DefaultXPPerWord = 1

	// mediaMarker tags chat messages that only carried an attachment.
	mediaMarker = "[Media Attached]"
)

// HarvestRequest asks for vocabulary to be harvested from messages.
type HarvestRequest struct {
	OwnerID        string
	LanguageCode   string
	NativeLanguage string

	// Source is recorded on new entries, e.g. [SourceChat].
	Source   string
	Messages []Message
}

// HarvestResult reports what a harvest wrote.
type HarvestResult struct {
	// Candidates holds the deduplicated candidates that were written, with
	// New set from the pre-write snapshot.
	Candidates []Candidate

	// NewWords lists the normalized words that did not exist before.
	NewWords []string

	// XPAwarded is the experience credited for NewWords.
	XPAwarded int
}

// HarvesterOption configures a [Harvester].
type HarvesterOption func(*Harvester)

// WithBatchSize sets the messages per extraction call. Default: 50.
func WithBatchSize(n int) HarvesterOption {
	return func(h *Harvester) { h.batchSize = n }
}

// WithMaxConcurrency bounds concurrent extraction calls. Default: 4.
func WithMaxConcurrency(n int) HarvesterOption {
	return func(h *Harvester) { h.maxConcurrency = n }
}

// WithXPPerWord sets the experience credited per new word. Default: 1.
func WithXPPerWord(n int) HarvesterOption {
	return func(h *Harvester) { h.xpPerWord.Store(int64(n)) }
}

// WithCrediter sets where experience is credited. Without one no
// experience is awarded.
func WithCrediter(c Crediter) HarvesterOption {
	return func(h *Harvester) { h.credit = c }
}

// WithCompleter sets the generator used to complete entries and unlock
// tenses. Without one only client-supplied tense tables are accepted.
func WithCompleter(c Completer) HarvesterOption {
	return func(h *Harvester) { h.completer = c }
}

// WithBus sets the bus dictionary changes are published on.
func WithBus(b *Bus) HarvesterOption {
	return func(h *Harvester) { h.bus = b }
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) HarvesterOption {
	return func(h *Harvester) { h.metrics = m }
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) HarvesterOption {
	return func(h *Harvester) { h.now = now }
}

// Harvester extracts vocabulary from text and merges it into the dictionary.
// It is safe for concurrent use. Concurrent harvests of the same new word
// may each credit experience once.
type Harvester struct {
	store          Store
	extractor      Extractor
	completer      Completer
	credit         Crediter
	bus            *Bus
	batchSize      int
	maxConcurrency int
	xpPerWord      atomic.Int64
	metrics        *observe.Metrics
	now            func() time.Time
}

// NewHarvester returns a Harvester writing to store with candidates from
// extractor.
func NewHarvester(store Store, extractor Extractor, opts ...HarvesterOption) *Harvester {
	h := &Harvester{
		store:          store,
		extractor:      extractor,
		batchSize:      DefaultBatchSize,
		maxConcurrency: DefaultMaxConcurrency,
		now:            time.Now,
	}
	h.xpPerWord.Store(DefaultXPPerWord)
	for _, o := range opts {
		o(h)
	}
	if h.batchSize <= 0 {
		h.batchSize = DefaultBatchSize
	}
	if h.maxConcurrency <= 0 {
		h.maxConcurrency = DefaultMaxConcurrency
	}
	if h.bus == nil {
		h.bus = NewBus()
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Bus returns the bus dictionary changes are published on.
func (h *Harvester) Bus() *Bus { return h.bus }

// SetXPPerWord changes the experience credited per new word for harvests
// that start afterwards.
func (h *Harvester) SetXPPerWord(n int) { h.xpPerWord.Store(int64(n)) }

// Harvest extracts candidates from req.Messages and upserts them. Extraction
// failures yield no candidates for the affected batch. A failed upsert is
// returned and no experience is credited.
func (h *Harvester) Harvest(ctx context.Context, req HarvestRequest) (*HarvestResult, error) {
	ctx, span := observe.StartSpan(ctx, "vocab.harvest")
	defer span.End()
	span.SetAttributes(
		attribute.String("owner", req.OwnerID),
		attribute.String("language", req.LanguageCode),
	)
	log := observe.Logger(ctx).With("owner", req.OwnerID, "language", req.LanguageCode)
	start := time.Now()

	msgs := FilterMessages(req.Messages)
	if len(msgs) == 0 {
		return &HarvestResult{}, nil
	}
	if h.extractor == nil {
		return nil, ErrNoExtractor
	}

	known, err := h.store.KnownWords(ctx, req.OwnerID, req.LanguageCode)
	if err != nil {
		return nil, fmt.Errorf("vocab: known words: %w", err)
	}

	batches := chunk(msgs, h.batchSize)
	found := make([][]Candidate, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.maxConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			cands, err := h.extractor.Extract(gctx, ExtractRequest{
				Messages:       batch,
				KnownWords:     known,
				TargetLanguage: req.LanguageCode,
				NativeLanguage: req.NativeLanguage,
			})
			if err != nil {
				log.Warn("vocab: extraction failed, skipping batch", "batch", i, "err", err)
				return nil
			}
			found[i] = cands
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("vocab: harvest: %w", err)
	}

	cands := dedupe(found)
	if len(cands) == 0 {
		h.metrics.RecordHarvest(ctx, 0, 0, time.Since(start))
		return &HarvestResult{}, nil
	}

	source := req.Source
	if source == "" {
		source = SourceChat
	}
	now := h.now().UTC()
	entries := make([]Entry, len(cands))
	for i, c := range cands {
		entries[i] = NewEntry(uuid.NewString(), req.OwnerID, req.LanguageCode, source, c, now)
	}

	created, err := h.store.UpsertEntries(ctx, entries)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("vocab: upsert: %w", err)
	}

	res := &HarvestResult{Candidates: cands}
	isNew := make(map[string]bool, len(created))
	for _, k := range created {
		isNew[k.Word] = true
		res.NewWords = append(res.NewWords, k.Word)
	}
	for i := range res.Candidates {
		res.Candidates[i].New = isNew[Normalize(res.Candidates[i].Word)]
	}

	if n := len(created) * int(h.xpPerWord.Load()); n > 0 && h.credit != nil {
		if err := h.credit.Credit(ctx, req.OwnerID, "harvest", n); err != nil {
			log.Error("vocab: crediting experience failed", "xp", n, "err", err)
		} else {
			res.XPAwarded = n
		}
	}

	h.bus.Publish(DictionaryChanged{
		OwnerID:      req.OwnerID,
		LanguageCode: req.LanguageCode,
		Source:       source,
		Added:        res.NewWords,
		Updated:      len(entries) - len(created),
	})
	h.metrics.RecordHarvest(ctx, len(cands), len(created), time.Since(start))
	log.Info("vocab: harvest complete", "candidates", len(cands), "new", len(created), "xp", res.XPAwarded)
	return res, nil
}

// UnlockTense stores the table of a tense that is still locked. An empty
// table is generated by the completer. It refuses to replace an unlocked
// tense with [ErrTenseUnlocked].
func (h *Harvester) UnlockTense(ctx context.Context, key Key, tense Tense, table TenseTable) (*Entry, error) {
	if !tense.Valid() {
		return nil, fmt.Errorf("vocab: unlock tense: unknown tense %q", tense)
	}
	key.Word = Normalize(key.Word)

	if len(table.Forms) == 0 {
		forms, err := h.conjugate(ctx, key, tense)
		if err != nil {
			return nil, fmt.Errorf("vocab: unlock tense %s of %q: %w", tense, key.Word, err)
		}
		table.Forms = forms
	}
	if table.UnlockedAt == nil {
		now := h.now().UTC()
		table.UnlockedAt = &now
	}

	e, err := h.store.UpdateEntry(ctx, key, func(cur Entry) (Entry, error) {
		if cur.Conjugations[tense] != nil {
			return Entry{}, ErrTenseUnlocked
		}
		return Merge(cur, Candidate{Conjugations: map[Tense]*TenseTable{tense: &table}}), nil
	})
	if err != nil {
		return nil, fmt.Errorf("vocab: unlock tense %s of %q: %w", tense, key.Word, err)
	}
	h.bus.Publish(DictionaryChanged{
		OwnerID:      key.OwnerID,
		LanguageCode: key.LanguageCode,
		Source:       "unlock",
		Updated:      1,
	})
	return e, nil
}

// conjugate asks the completer for the forms of a tense the entry does not
// have yet.
func (h *Harvester) conjugate(ctx context.Context, key Key, tense Tense) (map[string]string, error) {
	if h.completer == nil {
		return nil, ErrNoCompleter
	}
	cur, err := h.store.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	if cur.Conjugations[tense] != nil {
		return nil, ErrTenseUnlocked
	}
	verb := cur.RootWord
	if verb == "" {
		verb = cur.Word
	}

	forms, err := h.completer.Conjugate(ctx, ConjugateRequest{
		Verb:         verb,
		Translation:  cur.Translation,
		LanguageCode: key.LanguageCode,
		Tense:        tense,
		Persons:      GrammarFor(key.LanguageCode).Persons,
	})
	h.metrics.RecordCompletion(ctx, "conjugate", err)
	if err != nil {
		return nil, err
	}
	if len(forms) == 0 {
		return nil, errors.New("completer returned no forms")
	}
	return forms, nil
}

// CompleteEntry fills the grammar an entry is missing and marks it fully
// enriched. It reports what was generated; an entry that already has
// everything is only marked. Generated values never replace stored ones.
func (h *Harvester) CompleteEntry(ctx context.Context, key Key) (*Entry, Need, error) {
	ctx, span := observe.StartSpan(ctx, "vocab.complete")
	defer span.End()
	key.Word = Normalize(key.Word)

	cur, err := h.store.GetEntry(ctx, key)
	if err != nil {
		return nil, NeedNothing, fmt.Errorf("vocab: complete %q: %w", key.Word, err)
	}
	need := Missing(*cur)
	if need == NeedNothing && cur.EnrichedAt != nil {
		return cur, NeedNothing, nil
	}

	var fill Candidate
	if need != NeedNothing {
		if h.completer == nil {
			return nil, need, fmt.Errorf("vocab: complete %q: %w", key.Word, ErrNoCompleter)
		}
		fill, err = h.completer.Complete(ctx, CompleteRequest{
			Entry:   *cur,
			Need:    need,
			Grammar: GrammarFor(key.LanguageCode),
		})
		h.metrics.RecordCompletion(ctx, need.String(), err)
		if err != nil {
			span.RecordError(err)
			return nil, need, fmt.Errorf("vocab: complete %q: %w", key.Word, err)
		}
	}

	now := h.now().UTC()
	e, err := h.store.UpdateEntry(ctx, key, func(cur Entry) (Entry, error) {
		next := Merge(cur, fill)
		if next.EnrichedAt == nil {
			next.EnrichedAt = &now
		}
		return next, nil
	})
	if err != nil {
		return nil, need, fmt.Errorf("vocab: complete %q: %w", key.Word, err)
	}
	h.bus.Publish(DictionaryChanged{
		OwnerID:      key.OwnerID,
		LanguageCode: key.LanguageCode,
		Source:       "complete",
		Updated:      1,
	})
	observe.Logger(ctx).Info("vocab: entry completed", "owner", key.OwnerID, "word", key.Word, "generated", need)
	return e, need, nil
}

// FilterMessages drops messages that are blank or only carried media.
func FilterMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" || strings.Contains(m.Content, mediaMarker) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// dedupe flattens per-batch candidates and merges those sharing a
// normalized word. The first occurrence keeps its values.
func dedupe(batches [][]Candidate) []Candidate {
	var out []Candidate
	idx := make(map[string]int)
	for _, batch := range batches {
		for _, c := range batch {
			w := Normalize(c.Word)
			if w == "" {
				continue
			}
			c.Word = w
			i, ok := idx[w]
			if !ok {
				idx[w] = len(out)
				out = append(out, c)
				continue
			}
			out[i] = mergeCandidates(out[i], c)
		}
	}
	return out
}

func mergeCandidates(a, b Candidate) Candidate {
	m := Merge(Entry{
		RootWord:           a.RootWord,
		Translation:        a.Translation,
		WordType:           a.WordType,
		Pronunciation:      a.Pronunciation,
		Gender:             a.Gender,
		Plural:             a.Plural,
		Conjugations:       a.Conjugations,
		AdjectiveForms:     a.AdjectiveForms,
		Example:            a.Example,
		ExampleTranslation: a.ExampleTranslation,
		ProTip:             a.ProTip,
	}, b)
	a.RootWord = m.RootWord
	a.Translation = m.Translation
	a.WordType = m.WordType
	a.Pronunciation = m.Pronunciation
	a.Gender = m.Gender
	a.Plural = m.Plural
	a.Conjugations = m.Conjugations
	a.AdjectiveForms = m.AdjectiveForms
	a.Example = m.Example
	a.ExampleTranslation = m.ExampleTranslation
	a.ProTip = m.ProTip
	a.Importance = max(a.Importance, b.Importance)
	a.New = a.New || b.New
	return a
}

func chunk(msgs []Message, size int) [][]Message {
	var out [][]Message
	for len(msgs) > size {
		out = append(out, msgs[:size:size])
		msgs = msgs[size:]
	}
	return append(out, msgs)
}
