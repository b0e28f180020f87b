package mastery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
)

// ErrNotFound is returned by [Store.GetScore] for words never practiced.
var ErrNotFound = errors.New("mastery: score not found")

// Store persists scores.
type Store interface {
	// GetScore returns the score of a word. Returns [ErrNotFound] if the
	// word was never practiced.
	GetScore(ctx context.Context, ownerID, wordID string) (*Score, error)

	// UpdateScore passes the current score of a word to fn and stores what
	// fn returns. Updates of the same word are serialised: fn never sees a
	// score another update is about to replace. cur is nil for a word never
	// practiced. Nothing is stored when fn fails.
	UpdateScore(ctx context.Context, ownerID, wordID string, fn func(cur *Score) (Score, error)) (Score, error)
}

// Celebration describes a word that was just learned.
type Celebration struct {
	OwnerID      string
	WordID       string
	LanguageCode string
	LearnedAt    time.Time
}

// Celebrator runs the one-time side effect of learning a word.
type Celebrator interface {
	Celebrate(ctx context.Context, c Celebration) error
}

// CelebratorFunc adapts a function to [Celebrator].
type CelebratorFunc func(ctx context.Context, c Celebration) error

// Celebrate calls f.
func (f CelebratorFunc) Celebrate(ctx context.Context, c Celebration) error { return f(ctx, c) }

// Crediter awards experience points.
type Crediter interface {
	Credit(ctx context.Context, ownerID, source string, amount int) error
}

// Answer is one answered practice question.
type Answer struct {
	OwnerID      string
	WordID       string
	LanguageCode string
	Correct      bool
}

// Outcome reports the effect of an answer.
type Outcome struct {
	Score       Score
	JustLearned bool
	XPAwarded   int
}

// TrackerOption configures a [Tracker].
type TrackerOption func(*Tracker)

// WithThreshold sets the mastery threshold. Default: 5.
func WithThreshold(n int) TrackerOption {
	return func(t *Tracker) { t.threshold = n }
}

// WithCelebrator sets the side effect run when a word is learned.
func WithCelebrator(c Celebrator) TrackerOption {
	return func(t *Tracker) { t.celebrator = c }
}

// WithLearnedXP credits amount experience through c when a word is learned.
func WithLearnedXP(c Crediter, amount int) TrackerOption {
	return func(t *Tracker) {
		t.credit = c
		t.learnedXP = amount
	}
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = m }
}

// Tracker records practice answers.
type Tracker struct {
	store      Store
	threshold  int
	celebrator Celebrator
	credit     Crediter
	learnedXP  int
	now        func() time.Time
	metrics    *observe.Metrics
}

// NewTracker returns a Tracker persisting to store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:     store,
		threshold: DefaultThreshold,
		now:       time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// RecordAnswer applies the answer to the stored score in one serialised
// update, so a word is learned by exactly one answer even when answers race.
// A failed update is returned and not retried, and the celebration does not
// run.
func (t *Tracker) RecordAnswer(ctx context.Context, a Answer) (*Outcome, error) {
	log := observe.Logger(ctx).With("owner", a.OwnerID, "word_id", a.WordID)

	now := t.now().UTC()
	var justLearned bool
	next, err := t.store.UpdateScore(ctx, a.OwnerID, a.WordID, func(cur *Score) (Score, error) {
		base := Score{OwnerID: a.OwnerID, WordID: a.WordID, LanguageCode: a.LanguageCode}
		if cur != nil {
			base = *cur
		}
		if base.LanguageCode == "" {
			base.LanguageCode = a.LanguageCode
		}
		var next Score
		next, justLearned = Apply(base, a.Correct, now, t.threshold)
		return next, nil
	})
	if err != nil {
		log.Warn("mastery: score update dropped", "err", err)
		return nil, fmt.Errorf("mastery: save score: %w", err)
	}

	out := &Outcome{Score: next, JustLearned: justLearned}
	if !justLearned {
		return out, nil
	}

	t.metrics.RecordPromotion(ctx, next.LanguageCode)
	log.Info("mastery: word learned", "streak", next.CurrentStreak)
	if t.celebrator != nil {
		if err := t.celebrator.Celebrate(ctx, Celebration{
			OwnerID:      next.OwnerID,
			WordID:       next.WordID,
			LanguageCode: next.LanguageCode,
			LearnedAt:    *next.LearnedAt,
		}); err != nil {
			log.Warn("mastery: celebration failed", "err", err)
		}
	}
	if t.credit != nil && t.learnedXP > 0 {
		if err := t.credit.Credit(ctx, next.OwnerID, "mastery", t.learnedXP); err != nil {
			log.Error("mastery: crediting experience failed", "err", err)
		} else {
			out.XPAwarded = t.learnedXP
		}
	}
	return out, nil
}
