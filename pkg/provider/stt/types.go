package stt

import "time"

// EventKind discriminates the values carried on a session's event stream.
type EventKind int

const (
	// EventTranscript carries a partial or final transcript fragment.
	EventTranscript EventKind = iota

	// EventSpeechStarted signals that the transport detected speech.
	EventSpeechStarted

	// EventSpeechEnded signals that the transport detected the end of speech.
	EventSpeechEnded
)

// String returns the kind's name as used in logs.
func (k EventKind) String() string {
	switch k {
	case EventTranscript:
		return "transcript"
	case EventSpeechStarted:
		return "speech_started"
	case EventSpeechEnded:
		return "speech_ended"
	default:
		return "unknown"
	}
}

// Event is a single value emitted by a streaming session.
type Event struct {
	Kind EventKind

	// SpeakerID identifies the speaker, e.g. "speaker_0". Transports without
	// diarization report a constant id.
	SpeakerID string

	// Text is the transcribed speech content. Empty for speech activity events.
	Text string

	// IsFinal reports whether the transport committed to this fragment.
	IsFinal bool

	// Timestamp is the capture-relative time of the fragment.
	Timestamp time.Duration

	// Language is the detected language tag, if the transport reports one.
	Language string

	// Translation is a realtime translation, if the transport produced one.
	Translation string

	// Confidence is the overall confidence score (0.0–1.0). May be zero.
	Confidence float64
}

// Summary is the transport's own post-processing output, if any, delivered
// when the session is stopped.
type Summary struct {
	Text string
}
