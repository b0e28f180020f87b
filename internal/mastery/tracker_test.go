package mastery_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/mastery"
)

type recordingCelebrator struct {
	mu    sync.Mutex
	calls []mastery.Celebration
}

func (r *recordingCelebrator) Celebrate(_ context.Context, c mastery.Celebration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return nil
}

type recordingCrediter struct {
	mu      sync.Mutex
	sources []string
	total   int
	err     error
}

func (r *recordingCrediter) Credit(_ context.Context, _ string, source string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sources = append(r.sources, source)
	r.total += amount
	return nil
}

type failingSaveStore struct {
	*mastery.MemStore
	failAt int
	saves  int
}

func (f *failingSaveStore) UpdateScore(ctx context.Context, ownerID, wordID string, fn func(*mastery.Score) (mastery.Score, error)) (mastery.Score, error) {
	f.saves++
	if f.saves == f.failAt {
		return mastery.Score{}, errors.New("connection reset")
	}
	return f.MemStore.UpdateScore(ctx, ownerID, wordID, fn)
}

// slowStore widens the window between reading and writing a score.
type slowStore struct {
	*mastery.MemStore
}

func (s slowStore) UpdateScore(ctx context.Context, ownerID, wordID string, fn func(*mastery.Score) (mastery.Score, error)) (mastery.Score, error) {
	return s.MemStore.UpdateScore(ctx, ownerID, wordID, func(cur *mastery.Score) (mastery.Score, error) {
		time.Sleep(time.Millisecond)
		return fn(cur)
	})
}

func TestTracker_PromotesOnFifthCorrectAnswer(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := mastery.NewMemStore()
	cel := &recordingCelebrator{}
	cred := &recordingCrediter{}
	tr := mastery.NewTracker(store,
		mastery.WithCelebrator(cel),
		mastery.WithLearnedXP(cred, 5),
		mastery.WithClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	ans := mastery.Answer{OwnerID: "u1", WordID: "w-kocham", LanguageCode: "pl", Correct: true}
	for i := 1; i <= 7; i++ {
		out, err := tr.RecordAnswer(ctx, ans)
		if err != nil {
			t.Fatalf("RecordAnswer #%d: %v", i, err)
		}
		if out.JustLearned != (i == 5) {
			t.Errorf("answer #%d: JustLearned = %v", i, out.JustLearned)
		}
		if i == 5 && out.XPAwarded != 5 {
			t.Errorf("XPAwarded = %d, want 5", out.XPAwarded)
		}
	}

	if len(cel.calls) != 1 {
		t.Fatalf("celebrations = %d, want 1", len(cel.calls))
	}
	if c := cel.calls[0]; c.WordID != "w-kocham" || c.LanguageCode != "pl" || !c.LearnedAt.Equal(now) {
		t.Errorf("celebration = %+v", c)
	}
	if cred.total != 5 || len(cred.sources) != 1 || cred.sources[0] != "mastery" {
		t.Errorf("credits = %v total %d", cred.sources, cred.total)
	}

	s, err := store.GetScore(ctx, "u1", "w-kocham")
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if s.TotalAttempts != 7 || s.CurrentStreak != 7 || !s.Learned() {
		t.Errorf("stored score = %+v", s)
	}
}

func TestTracker_WrongAnswerResetsStreak(t *testing.T) {
	t.Parallel()

	store := mastery.NewMemStore()
	cel := &recordingCelebrator{}
	tr := mastery.NewTracker(store, mastery.WithCelebrator(cel))
	ctx := context.Background()

	for _, correct := range []bool{true, true, true, true, false, true, true, true, true} {
		if _, err := tr.RecordAnswer(ctx, mastery.Answer{OwnerID: "u1", WordID: "w1", Correct: correct}); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}
	if len(cel.calls) != 0 {
		t.Errorf("celebrations = %d, want 0 (streak never reached 5)", len(cel.calls))
	}
}

func TestTracker_SaveFailureSuppressesCelebration(t *testing.T) {
	t.Parallel()

	store := &failingSaveStore{MemStore: mastery.NewMemStore(), failAt: 5}
	cel := &recordingCelebrator{}
	tr := mastery.NewTracker(store, mastery.WithCelebrator(cel))
	ctx := context.Background()
	ans := mastery.Answer{OwnerID: "u1", WordID: "w1", Correct: true}

	for i := 1; i <= 4; i++ {
		if _, err := tr.RecordAnswer(ctx, ans); err != nil {
			t.Fatalf("RecordAnswer #%d: %v", i, err)
		}
	}
	if _, err := tr.RecordAnswer(ctx, ans); err == nil {
		t.Fatal("expected the save failure to be returned")
	}
	if len(cel.calls) != 0 {
		t.Fatalf("celebration ran although the score was not saved")
	}

	// The dropped update is not replayed; the next answer learns the word.
	out, err := tr.RecordAnswer(ctx, ans)
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if !out.JustLearned || out.Score.CurrentStreak != 5 {
		t.Errorf("outcome = %+v, want learned at streak 5", out)
	}
	if len(cel.calls) != 1 {
		t.Errorf("celebrations = %d, want 1", len(cel.calls))
	}
}

func TestTracker_CreditFailureStillLearns(t *testing.T) {
	t.Parallel()

	store := mastery.NewMemStore()
	cred := &recordingCrediter{err: errors.New("profile locked")}
	tr := mastery.NewTracker(store, mastery.WithThreshold(1), mastery.WithLearnedXP(cred, 3))

	out, err := tr.RecordAnswer(context.Background(), mastery.Answer{OwnerID: "u1", WordID: "w1", Correct: true})
	if err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}
	if !out.JustLearned || out.XPAwarded != 0 {
		t.Errorf("outcome = %+v, want learned with no XP", out)
	}
}

func TestTracker_ConcurrentAnswersLearnOnce(t *testing.T) {
	t.Parallel()

	store := slowStore{MemStore: mastery.NewMemStore()}
	cel := &recordingCelebrator{}
	cred := &recordingCrediter{}
	tr := mastery.NewTracker(store, mastery.WithCelebrator(cel), mastery.WithLearnedXP(cred, 5))
	ctx := context.Background()
	ans := mastery.Answer{OwnerID: "u1", WordID: "w1", LanguageCode: "pl", Correct: true}

	for range 4 {
		if _, err := tr.RecordAnswer(ctx, ans); err != nil {
			t.Fatalf("RecordAnswer: %v", err)
		}
	}

	const answers = 6
	var wg sync.WaitGroup
	var mu sync.Mutex
	learned := 0
	for range answers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := tr.RecordAnswer(ctx, ans)
			if err != nil {
				t.Errorf("RecordAnswer: %v", err)
				return
			}
			if out.JustLearned {
				mu.Lock()
				learned++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if learned != 1 {
		t.Errorf("answers reporting JustLearned = %d, want 1", learned)
	}
	if len(cel.calls) != 1 {
		t.Errorf("celebrations = %d, want 1", len(cel.calls))
	}
	if cred.total != 5 {
		t.Errorf("credited XP = %d, want 5", cred.total)
	}
	s, err := store.GetScore(ctx, "u1", "w1")
	if err != nil {
		t.Fatalf("GetScore: %v", err)
	}
	if s.TotalAttempts != 4+answers || s.CurrentStreak != 4+answers {
		t.Errorf("stored score = %+v, want every answer counted", s)
	}
}
