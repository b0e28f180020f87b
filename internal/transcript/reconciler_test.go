package transcript

import (
	"sync"
	"testing"
)

func TestReconciler_ApplyAndSnapshot(t *testing.T) {
	t.Parallel()

	r := NewReconciler(Config{})
	r.Apply(Chunk{SpeakerID: "s0", Text: "Buon", Timestamp: 0})
	got := r.Apply(Chunk{SpeakerID: "s0", Text: "Buongiorno", IsFinal: true, Timestamp: ms(300)})

	if len(got.Finals) != 1 || got.Partial != nil {
		t.Fatalf("state = %+v", got)
	}

	// Snapshots are copies.
	snap := r.Snapshot()
	snap.Finals[0].Text = "changed"
	if r.Snapshot().Finals[0].Text != "Buongiorno" {
		t.Error("Snapshot leaked internal state")
	}
}

func TestReconciler_ToggleBookmark(t *testing.T) {
	t.Parallel()

	r := NewReconciler(DefaultConfig())
	s := r.Apply(Chunk{SpeakerID: "s0", Text: "Obrigado", IsFinal: true})
	s, ok := r.ToggleBookmark(s.Finals[0].ID)
	if !ok || !s.Finals[0].IsBookmarked {
		t.Fatalf("bookmark not set: ok=%v state=%+v", ok, s)
	}
	s, _ = r.ToggleBookmark(s.Finals[0].ID)
	if s.Finals[0].IsBookmarked {
		t.Error("second toggle should clear the bookmark")
	}
}

func TestReconciler_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	r := NewReconciler(DefaultConfig())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 200 {
			r.Apply(Chunk{SpeakerID: "s0", Text: "słowo", IsFinal: i%2 == 0, Timestamp: ms(i * 20_000)})
		}
	}()
	for range 200 {
		s := r.Snapshot()
		if len(s.Finals) > 0 {
			r.ToggleBookmark(s.Finals[0].ID)
		}
	}
	wg.Wait()
	if n := len(r.Snapshot().Finals); n != 100 {
		t.Errorf("got %d finals, want 100", n)
	}
}
