// Package mastery tracks per-word practice streaks and promotes a word to
// learned the first time its streak reaches the mastery threshold.
package mastery

import "time"

// DefaultThreshold is the consecutive correct answers needed to learn a word.
const DefaultThreshold = 5

// Score is the practice record of one word for one learner.
type Score struct {
	OwnerID         string
	WordID          string
	LanguageCode    string
	TotalAttempts   int
	CorrectAttempts int
	CurrentStreak   int

	// LearnedAt is set once, when the streak first reaches the threshold,
	// and never cleared.
	LearnedAt     *time.Time
	LastPracticed time.Time
}

// Learned reports whether the word has been mastered.
func (s Score) Learned() bool { return s.LearnedAt != nil }

// Apply records one answer and returns the new score. justLearned is true
// only on the answer that moves LearnedAt from unset to set.
func Apply(s Score, correct bool, now time.Time, threshold int) (next Score, justLearned bool) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	next = s
	next.TotalAttempts++
	if correct {
		next.CorrectAttempts++
		next.CurrentStreak++
	} else {
		next.CurrentStreak = 0
	}
	next.LastPracticed = now

	if s.LearnedAt == nil && next.CurrentStreak >= threshold {
		t := now
		next.LearnedAt = &t
		justLearned = true
	}
	return next, justLearned
}
