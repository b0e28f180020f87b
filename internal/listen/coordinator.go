package listen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
)

// FinishRequest describes a capture that just stopped.
type FinishRequest struct {
	// SessionID is reused as the listen session id. Empty means a new UUID.
	SessionID    string
	OwnerID      string
	ContextLabel string
	Duration     time.Duration
	Entries      []transcript.Entry
	Summary      string
}

// CoordinatorOption configures a [Coordinator].
type CoordinatorOption func(*Coordinator)

// WithLanguages sets the language pair passed to the enricher.
func WithLanguages(target, native string) CoordinatorOption {
	return func(c *Coordinator) {
		c.target = target
		c.native = native
	}
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator persists finished captures and runs enrichment passes.
//
// Background enrichment is detached from the request that started it and has
// no timeout. Jobs for different sessions share no state. Call [Coordinator.Wait]
// on shutdown to let outstanding jobs finish.
type Coordinator struct {
	store    Store
	enricher Enricher
	target   string
	native   string
	metrics  *observe.Metrics
	now      func() time.Time

	wg sync.WaitGroup
}

// NewCoordinator returns a Coordinator backed by store and enricher.
func NewCoordinator(store Store, enricher Enricher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:    store,
		enricher: enricher,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c
}

// Finish stores the final entries of a capture and starts enrichment in the
// background. Returns [ErrEmptyTranscript] when there are no final entries.
func (c *Coordinator) Finish(ctx context.Context, req FinishRequest) (*Session, error) {
	var finals []transcript.Entry
	for _, e := range req.Entries {
		if e.IsFinal {
			finals = append(finals, e)
		}
	}
	if len(finals) == 0 {
		return nil, ErrEmptyTranscript
	}

	id := req.SessionID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:           id,
		OwnerID:      req.OwnerID,
		ContextLabel: NormalizeLabel(req.ContextLabel),
		Duration:     req.Duration,
		Entries:      finals,
		Bookmarks:    transcript.Bookmarked(finals),
		Summary:      req.Summary,
		CreatedAt:    c.now().UTC(),
	}
	if err := c.store.CreateListenSession(ctx, s); err != nil {
		return nil, fmt.Errorf("listen: create session: %w", err)
	}
	ctx = observe.WithSession(observe.WithOwner(ctx, s.OwnerID), s.ID)
	observe.Logger(ctx).Info("listen session stored", "entries", len(finals))

	if c.enricher != nil {
		jobCtx := context.WithoutCancel(ctx)
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			// Failures are logged by Enrich.
			_ = c.Enrich(jobCtx, s.ID)
		}()
	}
	return s, nil
}

// Enrich runs one enrichment pass over a stored session and writes the
// result back. It is safe to run more than once. On failure the stored
// record is left untouched.
func (c *Coordinator) Enrich(ctx context.Context, sessionID string) error {
	ctx, span := observe.StartSpan(observe.WithSession(ctx, sessionID), "listen.enrich")
	defer span.End()
	log := observe.Logger(ctx)
	start := time.Now()

	err := c.enrich(ctx, sessionID)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		log.Warn("listen: enrichment failed, keeping stored transcript", "err", err)
	} else {
		log.Info("listen: enrichment applied", "elapsed", time.Since(start))
	}
	c.metrics.RecordEnrichment(ctx, status, time.Since(start))
	return err
}

func (c *Coordinator) enrich(ctx context.Context, sessionID string) error {
	if c.enricher == nil {
		return fmt.Errorf("listen: enrich %s: %w", sessionID, ErrNoEnricher)
	}
	s, err := c.store.GetListenSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("listen: load session: %w", err)
	}
	if len(s.Entries) == 0 {
		return nil
	}

	res, err := c.enricher.Enrich(ctx, BuildEnrichRequest(s, c.target, c.native))
	if err != nil {
		return fmt.Errorf("listen: enrich: %w", err)
	}

	entries := ApplyEnrichment(s.Entries, res.Processed)
	summary := ""
	if s.Summary == "" {
		summary = res.Summary
	}
	if err := c.store.UpdateListenEntries(ctx, sessionID, entries, summary); err != nil {
		return fmt.Errorf("listen: write back: %w", err)
	}
	return nil
}

// Wait blocks until all background enrichment jobs finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
