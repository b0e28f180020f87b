// Package gladia provides an STT provider backed by Gladia's live
// transcription API. A session is bootstrapped with an authenticated HTTP
// call that returns a pre-signed WebSocket URL; audio and transcript events
// then flow over that WebSocket. It implements the stt.Provider interface.
package gladia

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/stt"
)

const (
	defaultEndpoint       = "https://api.gladia.io/v2/live"
	defaultSampleRate     = 16000
	defaultEndpointing    = 0.5
	defaultSummaryTimeout = 5 * time.Second
	defaultSpeaker        = "speaker_0"
)

var stopRecordingMsg = []byte(`{"type":"stop_recording"}`)

// Option is a functional option for configuring the Gladia Provider.
type Option func(*Provider)

// WithEndpoint overrides the session bootstrap URL.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client used for the session bootstrap call.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithSampleRate sets the provider-level default sample rate in Hz.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithEndpointing sets how many seconds of silence close an utterance.
func WithEndpointing(seconds float64) Option {
	return func(p *Provider) {
		p.endpointing = seconds
	}
}

// WithSummaryTimeout bounds how long Close waits for the post-processing
// summary after asking Gladia to stop recording.
func WithSummaryTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.summaryTimeout = d
	}
}

// Provider implements stt.Provider backed by Gladia live sessions.
type Provider struct {
	apiKey         string
	endpoint       string
	httpClient     *http.Client
	sampleRate     int
	endpointing    float64
	summaryTimeout time.Duration
}

var _ stt.Provider = (*Provider)(nil)

// New creates a new Gladia Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("gladia: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:         apiKey,
		endpoint:       defaultEndpoint,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		sampleRate:     defaultSampleRate,
		endpointing:    defaultEndpointing,
		summaryTimeout: defaultSummaryTimeout,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream bootstraps a live session and dials its WebSocket. The returned
// handle is ready to receive audio.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	wsURL, err := p.initSession(ctx, cfg)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gladia: dial: %w", err)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{
		conn:           conn,
		events:         make(chan stt.Event, 64),
		audio:          make(chan []byte, 256),
		summary:        make(chan string, 1),
		done:           make(chan struct{}),
		readerDone:     make(chan struct{}),
		cancel:         cancel,
		start:          time.Now(),
		summaryTimeout: p.summaryTimeout,
	}

	sess.wg.Add(1)
	sess.writerWG.Add(1)
	go sess.readLoop(sctx)
	go sess.writeLoop(sctx)

	return sess, nil
}

// ---- session bootstrap ----

type languageConfig struct {
	Languages     []string `json:"languages,omitempty"`
	CodeSwitching bool     `json:"code_switching"`
}

type translationConfig struct {
	TargetLanguages []string `json:"target_languages"`
}

type realtimeProcessing struct {
	Translation       bool               `json:"translation"`
	TranslationConfig *translationConfig `json:"translation_config,omitempty"`
}

type postProcessing struct {
	Summarization bool `json:"summarization"`
}

type messagesConfig struct {
	ReceivePartialTranscripts       bool `json:"receive_partial_transcripts"`
	ReceiveFinalTranscripts         bool `json:"receive_final_transcripts"`
	ReceiveSpeechEvents             bool `json:"receive_speech_events"`
	ReceiveRealtimeProcessingEvents bool `json:"receive_realtime_processing_events"`
	ReceivePostProcessingEvents     bool `json:"receive_post_processing_events"`
	ReceiveAcknowledgments          bool `json:"receive_acknowledgments"`
}

type initRequest struct {
	Encoding           string             `json:"encoding"`
	SampleRate         int                `json:"sample_rate"`
	BitDepth           int                `json:"bit_depth"`
	Channels           int                `json:"channels"`
	Endpointing        float64            `json:"endpointing"`
	LanguageConfig     languageConfig     `json:"language_config"`
	RealtimeProcessing realtimeProcessing `json:"realtime_processing"`
	PostProcessing     postProcessing     `json:"post_processing"`
	MessagesConfig     messagesConfig     `json:"messages_config"`
}

type initResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// buildInitRequest constructs the bootstrap payload for cfg.
func (p *Provider) buildInitRequest(cfg stt.StreamConfig) initRequest {
	sr := cfg.SampleRate
	if sr == 0 {
		sr = p.sampleRate
	}
	ch := cfg.Channels
	if ch == 0 {
		ch = 1
	}

	req := initRequest{
		Encoding:    "wav/pcm",
		SampleRate:  sr,
		BitDepth:    16,
		Channels:    ch,
		Endpointing: p.endpointing,
		LanguageConfig: languageConfig{
			Languages:     cfg.Languages,
			CodeSwitching: len(cfg.Languages) != 1,
		},
		PostProcessing: postProcessing{Summarization: true},
		MessagesConfig: messagesConfig{
			ReceivePartialTranscripts:       true,
			ReceiveFinalTranscripts:         true,
			ReceiveSpeechEvents:             true,
			ReceiveRealtimeProcessingEvents: cfg.TranslateTo != "",
			ReceivePostProcessingEvents:     true,
		},
	}
	if cfg.TranslateTo != "" {
		req.RealtimeProcessing = realtimeProcessing{
			Translation:       true,
			TranslationConfig: &translationConfig{TargetLanguages: []string{cfg.TranslateTo}},
		}
	}
	return req
}

// initSession performs the bootstrap call and returns the WebSocket URL.
func (p *Provider) initSession(ctx context.Context, cfg stt.StreamConfig) (string, error) {
	body, err := json.Marshal(p.buildInitRequest(cfg))
	if err != nil {
		return "", fmt.Errorf("gladia: encode init request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gladia: build init request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-gladia-key", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gladia: init session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gladia: init session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out initResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("gladia: decode init response: %w", err)
	}
	if out.URL == "" {
		return "", errors.New("gladia: init response carried no websocket url")
	}
	return out.URL, nil
}

// ---- session ----

// session is a live Gladia streaming session. It implements stt.SessionHandle.
type session struct {
	conn    *websocket.Conn
	events  chan stt.Event
	audio   chan []byte
	summary chan string

	done       chan struct{}
	readerDone chan struct{}
	once       sync.Once
	wg         sync.WaitGroup
	writerWG   sync.WaitGroup
	cancel     context.CancelFunc

	start          time.Time
	summaryTimeout time.Duration

	mu  sync.Mutex
	err error
}

// SendAudio queues a PCM audio chunk for delivery.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return stt.ErrSessionClosed
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return stt.ErrSessionClosed
	}
}

// Events returns the ordered event stream.
func (s *session) Events() <-chan stt.Event { return s.events }

// Err reports why the stream ended, if it ended abnormally.
func (s *session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *session) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// Close stops audio delivery, asks Gladia to stop recording, waits up to the
// summary timeout for the post-processing summary, then tears the connection
// down.
func (s *session) Close(ctx context.Context) (stt.Summary, error) {
	var sum stt.Summary
	s.once.Do(func() {
		close(s.done)
		s.writerWG.Wait()

		if err := s.conn.Write(ctx, websocket.MessageText, stopRecordingMsg); err == nil {
			timer := time.NewTimer(s.summaryTimeout)
			select {
			case text := <-s.summary:
				sum.Text = text
			case <-s.readerDone:
				select {
				case text := <-s.summary:
					sum.Text = text
				default:
				}
			case <-timer.C:
				slog.Debug("gladia: summary wait timed out")
			case <-ctx.Done():
			}
			timer.Stop()
		}

		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
	return sum, nil
}

// writeLoop forwards queued audio as base64 audio_chunk messages.
func (s *session) writeLoop(ctx context.Context) {
	defer s.writerWG.Done()
	for {
		select {
		case chunk := <-s.audio:
			if err := s.writeAudio(ctx, chunk); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case chunk := <-s.audio:
					_ = s.writeAudio(ctx, chunk)
				default:
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *session) writeAudio(ctx context.Context, chunk []byte) error {
	msg, err := encodeAudioChunk(chunk)
	if err != nil {
		return err
	}
	return s.conn.Write(ctx, websocket.MessageText, msg)
}

// readLoop receives JSON messages and dispatches them onto the event stream.
func (s *session) readLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.readerDone)
	defer close(s.events)

	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			select {
			case <-s.done:
			default:
				s.setErr(fmt.Errorf("gladia: connection lost: %w", err))
			}
			return
		}

		msg, ok := parseMessage(data, time.Since(s.start))
		if !ok {
			continue
		}

		switch {
		case msg.err != nil:
			s.setErr(msg.err)
			return
		case msg.summary != "":
			select {
			case s.summary <- msg.summary:
			default:
			}
		case msg.event != nil:
			select {
			case s.events <- *msg.event:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ---- wire format ----

type envelope struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type utterance struct {
	Text         string            `json:"text"`
	Language     string            `json:"language"`
	Speaker      *int              `json:"speaker"`
	Confidence   float64           `json:"confidence"`
	Translations map[string]string `json:"translations"`
}

type transcriptData struct {
	Utterance    utterance         `json:"utterance"`
	Translations map[string]string `json:"translations"`
}

type postProcessingData struct {
	Summarization struct {
		Results json.RawMessage `json:"results"`
	} `json:"summarization"`
	Summary json.RawMessage `json:"summary"`
}

type errorData struct {
	Message string `json:"message"`
}

// parsed is the decoded form of one Gladia message.
type parsed struct {
	event   *stt.Event
	summary string
	err     error
}

// parseMessage decodes a raw Gladia message. at is the capture-relative
// arrival time used as the event timestamp. Returns ok=false for messages
// that carry nothing of interest.
func parseMessage(data []byte, at time.Duration) (parsed, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return parsed{}, false
	}

	switch env.Type {
	case "transcript", "partial_transcript":
		var td transcriptData
		if err := json.Unmarshal(env.Data, &td); err != nil {
			return parsed{}, false
		}
		text := strings.TrimSpace(td.Utterance.Text)
		if text == "" {
			return parsed{}, false
		}
		speaker := defaultSpeaker
		if td.Utterance.Speaker != nil {
			speaker = "speaker_" + strconv.Itoa(*td.Utterance.Speaker)
		}
		return parsed{event: &stt.Event{
			Kind:        stt.EventTranscript,
			SpeakerID:   speaker,
			Text:        text,
			IsFinal:     env.Type == "transcript",
			Timestamp:   at,
			Language:    td.Utterance.Language,
			Translation: firstTranslation(td.Utterance.Translations, td.Translations),
			Confidence:  td.Utterance.Confidence,
		}}, true

	case "speech_start":
		return parsed{event: &stt.Event{Kind: stt.EventSpeechStarted, Timestamp: at}}, true

	case "speech_end":
		return parsed{event: &stt.Event{Kind: stt.EventSpeechEnded, Timestamp: at}}, true

	case "post_processing":
		var pd postProcessingData
		if err := json.Unmarshal(env.Data, &pd); err != nil {
			return parsed{}, false
		}
		summary := rawText(pd.Summarization.Results)
		if summary == "" {
			summary = rawText(pd.Summary)
		}
		if summary == "" {
			return parsed{}, false
		}
		return parsed{summary: summary}, true

	case "error":
		msg := env.Message
		var ed errorData
		if len(env.Data) > 0 && json.Unmarshal(env.Data, &ed) == nil && ed.Message != "" {
			msg = ed.Message
		}
		if msg == "" {
			msg = "transcription error"
		}
		return parsed{err: fmt.Errorf("gladia: %s", msg)}, true
	}
	return parsed{}, false
}

// firstTranslation returns any non-empty translation, preferring the
// utterance-level map.
func firstTranslation(maps ...map[string]string) string {
	for _, m := range maps {
		for _, v := range m {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// rawText returns the string form of a JSON value: strings are unquoted,
// anything else is returned as compact JSON.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return ""
	}
	return buf.String()
}

type audioChunk struct {
	Type string `json:"type"`
	Data struct {
		Chunk string `json:"chunk"`
	} `json:"data"`
}

// encodeAudioChunk wraps raw PCM bytes in Gladia's audio_chunk message.
func encodeAudioChunk(pcm []byte) ([]byte, error) {
	var msg audioChunk
	msg.Type = "audio_chunk"
	msg.Data.Chunk = base64.StdEncoding.EncodeToString(pcm)
	return json.Marshal(msg)
}
