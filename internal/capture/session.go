// Package capture owns the lifecycle of one live speech-capture connection.
//
// A [Session] opens a streaming transcription session on an [stt.Provider],
// forwards every transport event in delivery order to a
// [transcript.Reconciler], and exposes a small state machine:
//
//	disconnected → connecting → listening ⇄ speaking → disconnected
//
// with an error state reachable from every non-terminal state. A session
// never reconnects on its own; after a transport failure the caller
// acknowledges the error and decides whether to start again. A restarted
// session continues its transcript: timestamps and duration carry on from
// where the previous connection ended.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/transcript"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/stt"
)

// ErrInvalidState is returned when an operation is not allowed in the
// session's current state.
var ErrInvalidState = errors.New("capture: invalid state")

// ErrAbandoned is returned by [Session.Start] when [Session.Stop] cancelled
// the connection attempt.
var ErrAbandoned = errors.New("capture: connect abandoned")

// State is the connection state of a [Session].
type State int

const (
	Disconnected State = iota
	Connecting
	Listening
	Speaking
	Error
)

// String returns the lower-case state name used on the wire.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Listening:
		return "listening"
	case Speaking:
		return "speaking"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result is what a capture produced by the time it ended.
type Result struct {
	ID      string
	Entries []transcript.Entry

	// StartedAt is when the first connection was established.
	StartedAt time.Time

	// Duration sums the time spent connected over all connections.
	Duration time.Duration

	// Summary is the transport's post-processing summary, if any.
	Summary string
}

// Option configures a [Session].
type Option func(*Session)

// WithID sets the session id. By default a random UUID is used.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithStreamConfig sets the configuration passed to the transport.
func WithStreamConfig(cfg stt.StreamConfig) Option {
	return func(s *Session) { s.streamCfg = cfg }
}

// WithReconcilerConfig tunes the transcript continuation heuristic.
func WithReconcilerConfig(cfg transcript.Config) Option {
	return func(s *Session) { s.recCfg = cfg }
}

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// StateFunc observes state transitions. err is non-nil only for [Error].
type StateFunc func(state State, err error)

// TranscriptFunc observes the transcript after each applied change.
type TranscriptFunc func(transcript.State)

// Session is one live capture. All methods are safe for concurrent use.
type Session struct {
	id        string
	provider  stt.Provider
	streamCfg stt.StreamConfig
	recCfg    transcript.Config
	now       func() time.Time
	metrics   *observe.Metrics

	rec *transcript.Reconciler

	mu        sync.Mutex
	state     State
	err       error
	handle    stt.SessionHandle
	done      chan struct{}
	stopping  bool
	startedAt time.Time
	summary   string

	// connStart is when the current connection opened; zero while not
	// connected. elapsed sums the connections that already ended.
	connStart time.Time
	elapsed   time.Duration

	// Set while Start waits for the transport.
	cancelConnect context.CancelFunc
	connected     chan struct{}
	abandoned     bool

	subMu       sync.Mutex
	nextSub     int
	stateSubs   map[int]StateFunc
	transcrSubs map[int]TranscriptFunc
}

// New returns a disconnected Session that captures through p.
func New(p stt.Provider, opts ...Option) *Session {
	s := &Session{
		provider:    p,
		recCfg:      transcript.DefaultConfig(),
		now:         time.Now,
		stateSubs:   make(map[int]StateFunc),
		transcrSubs: make(map[int]TranscriptFunc),
	}
	for _, o := range opts {
		o(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.rec = transcript.NewReconciler(s.recCfg)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session into [Error], or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// OnState registers fn for state transitions and returns a function that
// removes it. Callbacks run on the goroutine that caused the transition.
func (s *Session) OnState(fn StateFunc) (remove func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.stateSubs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.stateSubs, id)
		s.subMu.Unlock()
	}
}

// OnTranscript registers fn for transcript changes and returns a function
// that removes it. Callbacks for transport events run on the event loop, in
// delivery order.
func (s *Session) OnTranscript(fn TranscriptFunc) (remove func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.transcrSubs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.transcrSubs, id)
		s.subMu.Unlock()
	}
}

// Start opens the transport stream. It is only valid from [Disconnected].
// On failure the session moves to [Error] and the error is returned. A
// [Session.Stop] while connecting cancels ctx passed to the transport and
// makes Start return [ErrAbandoned].
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidState, st)
	}
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	connected := make(chan struct{})
	defer close(connected)

	s.state = Connecting
	s.err = nil
	s.cancelConnect = cancel
	s.connected = connected
	s.abandoned = false
	s.mu.Unlock()
	s.notifyState(Connecting, nil)

	h, err := s.provider.StartStream(connCtx, s.streamCfg)

	s.mu.Lock()
	s.cancelConnect, s.connected = nil, nil
	if s.abandoned {
		s.abandoned = false
		s.state = Disconnected
		s.mu.Unlock()
		if err == nil {
			closeCtx, cancelClose := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			_, _ = h.Close(closeCtx)
			cancelClose()
		}
		slog.Info("capture: connect abandoned", "session_id", s.id)
		s.notifyState(Disconnected, nil)
		return fmt.Errorf("capture: start: %w", ErrAbandoned)
	}
	if err != nil {
		err = fmt.Errorf("capture: could not connect to the transcription service: %w", err)
		s.state = Error
		s.err = err
		s.mu.Unlock()
		observe.Logger(ctx).Warn("capture: start failed", "session_id", s.id, "err", err)
		s.notifyState(Error, err)
		return err
	}

	done := make(chan struct{})
	now := s.now()
	offset := s.elapsed
	s.handle = h
	s.done = done
	if s.startedAt.IsZero() {
		s.startedAt = now
	}
	s.connStart = now
	s.state = Listening
	s.mu.Unlock()

	s.metrics.ActiveCaptures.Add(ctx, 1)
	slog.Info("capture started", "session_id", s.id, "offset", offset)
	s.notifyState(Listening, nil)

	go s.consume(h, done, offset)
	return nil
}

// SendAudio forwards a PCM chunk to the transport.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	h := s.handle
	st := s.state
	s.mu.Unlock()
	if h == nil {
		return fmt.Errorf("%w: send audio while %s", ErrInvalidState, st)
	}
	if err := h.SendAudio(chunk); err != nil {
		return fmt.Errorf("capture: send audio: %w", err)
	}
	return nil
}

// Stop cancels the transport subscription and returns everything captured
// so far. Stopping a session that is not connected returns the transcript
// without error. Stopping while connecting abandons the connection attempt.
func (s *Session) Stop(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.state == Connecting && s.cancelConnect != nil {
		s.abandoned = true
		cancel, connected := s.cancelConnect, s.connected
		s.mu.Unlock()

		cancel()
		select {
		case <-connected:
		case <-ctx.Done():
			return Result{}, fmt.Errorf("capture: stop while connecting: %w", ctx.Err())
		}
		s.mu.Lock()
	}
	if s.handle == nil || s.stopping {
		res := s.resultLocked()
		s.mu.Unlock()
		return res, nil
	}
	s.stopping = true
	h, done := s.handle, s.done
	s.mu.Unlock()

	sum, closeErr := h.Close(ctx)
	select {
	case <-done:
	case <-ctx.Done():
	}

	s.mu.Lock()
	s.handle = nil
	s.stopping = false
	s.state = Disconnected
	s.endConnLocked()
	if sum.Text != "" {
		s.summary = sum.Text
	}
	res := s.resultLocked()
	s.mu.Unlock()

	s.metrics.ActiveCaptures.Add(context.WithoutCancel(ctx), -1)
	slog.Info("capture stopped", "session_id", s.id, "entries", len(res.Entries), "duration", res.Duration)
	s.notifyState(Disconnected, nil)

	if closeErr != nil {
		return res, fmt.Errorf("capture: close transport: %w", closeErr)
	}
	return res, nil
}

// AcknowledgeError moves the session from [Error] back to [Disconnected].
func (s *Session) AcknowledgeError() error {
	s.mu.Lock()
	if s.state != Error {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: acknowledge while %s", ErrInvalidState, st)
	}
	s.state = Disconnected
	s.err = nil
	s.mu.Unlock()
	s.notifyState(Disconnected, nil)
	return nil
}

// ToggleBookmark flips the bookmark of a final entry. It reports false if no
// final entry has the id.
func (s *Session) ToggleBookmark(entryID string) bool {
	st, ok := s.rec.ToggleBookmark(entryID)
	if ok {
		s.notifyTranscript(st)
	}
	return ok
}

// Snapshot returns a copy of the live transcript.
func (s *Session) Snapshot() transcript.State {
	return s.rec.Snapshot()
}

// consume drains the transport's event stream until it closes. offset is
// added to event timestamps so that a reconnected stream continues the
// transcript timeline.
func (s *Session) consume(h stt.SessionHandle, done chan struct{}, offset time.Duration) {
	defer close(done)

	ctx := context.Background()
	for ev := range h.Events() {
		switch ev.Kind {
		case stt.EventTranscript:
			st := s.rec.Apply(transcript.Chunk{
				SpeakerID:   ev.SpeakerID,
				Text:        ev.Text,
				IsFinal:     ev.IsFinal,
				Timestamp:   offset + ev.Timestamp,
				Language:    ev.Language,
				Translation: ev.Translation,
			})
			s.metrics.RecordChunk(ctx, ev.IsFinal)
			s.notifyTranscript(st)
		case stt.EventSpeechStarted:
			s.transition(Listening, Speaking)
		case stt.EventSpeechEnded:
			s.transition(Speaking, Listening)
		}
	}

	s.mu.Lock()
	if s.stopping || s.handle != h {
		s.mu.Unlock()
		return
	}
	next, err := Disconnected, error(nil)
	if terr := h.Err(); terr != nil {
		next = Error
		err = fmt.Errorf("capture: lost connection to the transcription service: %w", terr)
	}
	s.handle = nil
	s.state = next
	s.err = err
	s.endConnLocked()
	s.mu.Unlock()

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	_, _ = h.Close(closeCtx)
	cancel()

	s.metrics.ActiveCaptures.Add(ctx, -1)
	if err != nil {
		slog.Warn("capture: transport failed", "session_id", s.id, "err", err)
	} else {
		slog.Info("capture: transport ended", "session_id", s.id)
	}
	s.notifyState(next, err)
}

// transition moves from one active state to another. It does nothing if the
// session is no longer in from.
func (s *Session) transition(from, to State) {
	s.mu.Lock()
	if s.state != from {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()
	s.notifyState(to, nil)
}

// endConnLocked adds the current connection to the elapsed time. s.mu must
// be held.
func (s *Session) endConnLocked() {
	if s.connStart.IsZero() {
		return
	}
	s.elapsed += s.now().Sub(s.connStart)
	s.connStart = time.Time{}
}

// resultLocked builds a Result from the current transcript. s.mu must be held.
func (s *Session) resultLocked() Result {
	res := Result{
		ID:        s.id,
		Entries:   s.rec.Snapshot().Finals,
		StartedAt: s.startedAt,
		Duration:  s.elapsed,
		Summary:   s.summary,
	}
	if !s.connStart.IsZero() {
		res.Duration += s.now().Sub(s.connStart)
	}
	return res
}

func (s *Session) notifyState(st State, err error) {
	s.subMu.Lock()
	fns := make([]StateFunc, 0, len(s.stateSubs))
	for _, fn := range s.stateSubs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st, err)
	}
}

func (s *Session) notifyTranscript(st transcript.State) {
	s.subMu.Lock()
	fns := make([]TranscriptFunc, 0, len(s.transcrSubs))
	for _, fn := range s.transcrSubs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}
