package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/capture"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/config"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/stt"
)

var (
	// ErrCaptureNotFound is returned when no live capture has the id, or it
	// belongs to another owner.
	ErrCaptureNotFound = errors.New("app: capture not found")

	// ErrNoTranscriber is returned by [CaptureManager.Start] when no STT
	// provider is configured.
	ErrNoTranscriber = errors.New("app: no stt provider configured")
)

// Capture is a live capture session and who owns it.
type Capture struct {
	Session      *capture.Session
	OwnerID      string
	ContextLabel string
	CreatedAt    time.Time
}

// CaptureManager tracks live capture sessions by id. Each session has a
// single owner. All exported methods are safe for concurrent use.
type CaptureManager struct {
	mu       sync.Mutex
	captures map[string]*Capture

	// Dependencies injected at construction.
	provider    stt.Provider
	cfg         config.CaptureConfig
	coordinator *listen.Coordinator
	metrics     *observe.Metrics
	now         func() time.Time
}

// CaptureManagerConfig holds all dependencies for a [CaptureManager].
type CaptureManagerConfig struct {
	Provider    stt.Provider
	Config      config.CaptureConfig
	Coordinator *listen.Coordinator
	Metrics     *observe.Metrics

	// Now replaces time.Now. Optional.
	Now func() time.Time
}

// DefaultSampleRate is the capture sample rate when none is configured.
const DefaultSampleRate = 16000

// NewCaptureManager creates a CaptureManager with the given dependencies.
func NewCaptureManager(cfg CaptureManagerConfig) *CaptureManager {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	if cfg.Config.SampleRate <= 0 {
		cfg.Config.SampleRate = DefaultSampleRate
	}
	return &CaptureManager{
		captures:    make(map[string]*Capture),
		provider:    cfg.Provider,
		cfg:         cfg.Config,
		coordinator: cfg.Coordinator,
		metrics:     cfg.Metrics,
		now:         now,
	}
}

// Start creates a capture session for ownerID and connects it. The session
// is registered even when connecting fails so that the owner can observe and
// acknowledge the error; in that case both the capture and the error are
// returned.
func (m *CaptureManager) Start(ctx context.Context, ownerID, contextLabel string) (*Capture, error) {
	if m.provider == nil {
		return nil, ErrNoTranscriber
	}

	id := uuid.NewString()
	opts := []capture.Option{
		capture.WithID(id),
		capture.WithStreamConfig(stt.StreamConfig{
			SampleRate:  m.cfg.SampleRate,
			Channels:    1,
			Languages:   m.cfg.Languages,
			TranslateTo: m.cfg.TranslateTo,
		}),
		capture.WithReconcilerConfig(transcript.Config{
			MergeWindow:  m.cfg.MergeWindow,
			PrefixWindow: m.cfg.PrefixWindow,
		}),
	}
	if m.metrics != nil {
		opts = append(opts, capture.WithMetrics(m.metrics))
	}

	c := &Capture{
		Session:      capture.New(m.provider, opts...),
		OwnerID:      ownerID,
		ContextLabel: contextLabel,
		CreatedAt:    m.now().UTC(),
	}

	m.mu.Lock()
	m.captures[id] = c
	m.mu.Unlock()

	ctx = observe.WithSession(observe.WithOwner(ctx, ownerID), id)
	observe.Logger(ctx).Info("capture registered")

	if err := c.Session.Start(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// Restart reconnects a registered capture that is disconnected, for example
// after its error was acknowledged. The capture keeps the transcript it had
// before the connection dropped.
func (m *CaptureManager) Restart(ctx context.Context, id, ownerID string) (*Capture, error) {
	c, err := m.Get(id, ownerID)
	if err != nil {
		return nil, err
	}
	if err := c.Session.Start(ctx); err != nil {
		return c, err
	}
	if _, err := m.Get(id, ownerID); err != nil {
		// Stopped while reconnecting.
		_, _ = c.Session.Stop(ctx)
		return nil, err
	}
	return c, nil
}

// Get returns the live capture with the given id owned by ownerID.
func (m *CaptureManager) Get(id, ownerID string) (*Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.captures[id]
	if !ok || c.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", ErrCaptureNotFound, id)
	}
	return c, nil
}

// Stop unregisters a capture, ends it and hands its final entries to the
// listen coordinator. It returns [listen.ErrEmptyTranscript] when nothing
// was captured. A capture that is still connecting is abandoned. Only the
// first of concurrent stops reaches the coordinator; the others get
// [ErrCaptureNotFound].
func (m *CaptureManager) Stop(ctx context.Context, id, ownerID string) (*listen.Session, error) {
	m.mu.Lock()
	c, ok := m.captures[id]
	if !ok || c.OwnerID != ownerID {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCaptureNotFound, id)
	}
	delete(m.captures, id)
	m.mu.Unlock()

	ctx = observe.WithSession(observe.WithOwner(ctx, ownerID), id)
	res, err := c.Session.Stop(ctx)
	if err != nil {
		observe.Logger(ctx).Warn("capture: stop error", "err", err)
	}

	ls, err := m.coordinator.Finish(ctx, listen.FinishRequest{
		SessionID:    id,
		OwnerID:      c.OwnerID,
		ContextLabel: c.ContextLabel,
		Duration:     res.Duration,
		Entries:      res.Entries,
		Summary:      res.Summary,
	})
	if err != nil {
		return nil, err
	}
	return ls, nil
}

// List returns the owner's live captures, oldest first.
func (m *CaptureManager) List(ownerID string) []*Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Capture
	for _, c := range m.captures {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of registered captures.
func (m *CaptureManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.captures)
}

// StopAll stops every registered capture and stores what they captured.
func (m *CaptureManager) StopAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Capture, 0, len(m.captures))
	for _, c := range m.captures {
		all = append(all, c)
	}
	m.mu.Unlock()

	for _, c := range all {
		id := c.Session.ID()
		_, err := m.Stop(ctx, id, c.OwnerID)
		switch {
		case err == nil, errors.Is(err, listen.ErrEmptyTranscript):
		default:
			slog.Warn("capture: stop at shutdown failed", "session_id", id, "err", err)
		}
	}
}
