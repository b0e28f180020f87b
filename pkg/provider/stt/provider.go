// Package stt defines the Provider interface for live speech-to-text transports.
//
// An STT provider wraps a hosted real-time transcription service (e.g., Gladia
// or Deepgram) and exposes a uniform streaming interface. Once opened, a
// SessionHandle accepts raw PCM audio and emits a single ordered stream of
// Event values: partial and final transcript fragments plus speech activity
// markers. Delivery order on the Events channel is the only ordering guarantee
// consumers may rely on.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by SendAudio after the session has been closed.
var ErrSessionClosed = errors.New("stt: session is closed")

// StreamConfig describes the audio format and recognition hints for a new
// streaming session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Zero selects the provider default.
	SampleRate int

	// Channels is the number of audio channels. Zero means mono.
	Channels int

	// Languages lists BCP-47 tags the transport should expect. Multiple entries
	// enable code switching where supported. Empty lets the provider detect.
	Languages []string

	// TranslateTo, when non-empty, asks the transport for realtime translations
	// into this language. Providers without translation support ignore it.
	TranslateTo string
}

// SessionHandle represents an open streaming session.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio. Calling SendAudio after Close
	// returns ErrSessionClosed.
	SendAudio(chunk []byte) error

	// Events returns the ordered event stream. The channel is closed when the
	// session ends, either through Close or because the transport dropped.
	Events() <-chan Event

	// Err reports why the event stream ended. It returns nil while the stream
	// is open and after a clean Close.
	Err() error

	// Close asks the transport to flush, waits a bounded time for trailing
	// events, and releases all resources. The returned Summary is empty when
	// the transport produced none. Calling Close more than once is safe.
	Close(ctx context.Context) (Summary, error)
}

// Provider is the abstraction over any live STT transport.
type Provider interface {
	// StartStream opens a new streaming session. A nil error means the
	// transport has confirmed it is ready to receive audio.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
