package transcript

import (
	"slices"
	"sync"
)

// Reconciler holds the transcript of one live capture. Apply must be called
// from a single goroutine in delivery order; Snapshot and ToggleBookmark may
// be called concurrently with it.
type Reconciler struct {
	cfg Config

	mu    sync.Mutex
	state State
}

// NewReconciler returns an empty Reconciler.
func NewReconciler(cfg Config) *Reconciler {
	return &Reconciler{cfg: cfg.withDefaults()}
}

// Apply folds c into the transcript and returns a snapshot of the result.
func (r *Reconciler) Apply(c Chunk) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = Reduce(r.cfg, r.state, c)
	return r.copyLocked()
}

// ToggleBookmark flips the bookmark of entry id.
func (r *Reconciler) ToggleBookmark(id string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ok bool
	r.state, ok = ToggleBookmark(r.state, id)
	return r.copyLocked(), ok
}

// Snapshot returns a copy of the current transcript.
func (r *Reconciler) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyLocked()
}

func (r *Reconciler) copyLocked() State {
	s := State{Finals: slices.Clone(r.state.Finals), Seq: r.state.Seq}
	if r.state.Partial != nil {
		p := *r.state.Partial
		s.Partial = &p
	}
	return s
}
