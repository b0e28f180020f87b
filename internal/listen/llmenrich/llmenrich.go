// Package llmenrich implements [listen.Enricher] on top of a language model.
//
// The [Enricher] sends the stored transcript, one numbered line per entry, and
// asks the model for a JSON object holding the cleaned-up entries by index
// plus a short summary. Replies that are not valid JSON are reported as
// errors so the coordinator keeps the stored transcript as it is.
package llmenrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm"
)

const defaultTemperature = 0.2

const systemPromptTemplate = `You clean up live transcripts of bilingual conversations recorded by a language learner.

Target language (being learned): %s
Native language: %s

The speech engine switches languages on the fly, which causes known artifacts:
- the same audio transcribed twice, once correctly and once as phonetic nonsense in the wrong language
- utterances split across several entries
- a wrong detected language
- the same utterance repeated with growing accuracy

For every entry you keep:
- fix obvious transcription typos, never rewrite what was said
- set "language" to the language the text is actually in
- give a translation into the other language of the pair
- put the unmodified input text in "originalText" when you changed the text

Entries marked ★BOOKMARKED were pinned by the learner. Never drop them.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "processedTranscript": [
    {"index": <input index>, "text": "<text>", "translation": "<translation>", "language": "<tag>", "originalText": "<input text>"}
  ],
  "summary": "<one or two sentences about what was discussed>"
}`

// Option is a functional option for configuring an [Enricher].
type Option func(*Enricher)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(e *Enricher) { e.temperature = temp }
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Enricher) { e.metrics = m }
}

// Enricher enriches transcripts with an [llm.Provider]. It is safe for
// concurrent use.
type Enricher struct {
	llm         llm.Provider
	temperature float64
	metrics     *observe.Metrics
}

var _ listen.Enricher = (*Enricher)(nil)

// New returns an Enricher backed by provider.
func New(provider llm.Provider, opts ...Option) *Enricher {
	e := &Enricher{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

// llmResponse is the JSON object the model is asked to produce.
type llmResponse struct {
	ProcessedTranscript []struct {
		Index        *int   `json:"index"`
		Text         string `json:"text"`
		Translation  string `json:"translation"`
		Language     string `json:"language"`
		OriginalText string `json:"originalText"`
	} `json:"processedTranscript"`
	Summary string `json:"summary"`
}

// Enrich implements [listen.Enricher].
func (e *Enricher) Enrich(ctx context.Context, req listen.EnrichRequest) (*listen.EnrichResult, error) {
	if len(req.Entries) == 0 {
		return &listen.EnrichResult{}, nil
	}

	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(req),
		Temperature:  e.temperature,
		JSONMode:     true,
		Messages: []llm.Message{
			{Role: "user", Content: buildUserMessage(req)},
		},
	})
	e.metrics.RecordLLM(ctx, "enrich", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("llmenrich: complete: %w", err)
	}
	return parseResponse(resp.Content)
}

func buildSystemPrompt(req listen.EnrichRequest) string {
	target := orDefault(req.TargetLanguage, "the target language")
	native := orDefault(req.NativeLanguage, "the native language")
	return fmt.Sprintf(systemPromptTemplate, target, native)
}

// buildUserMessage renders the context and one line per entry:
//
//	[3] ★BOOKMARKED speaker_0 (detected: pl): "kocham cię"
func buildUserMessage(req listen.EnrichRequest) string {
	var sb strings.Builder
	sb.WriteString("Context: ")
	sb.WriteString(orDefault(req.ContextLabel, "language practice conversation"))
	sb.WriteByte('\n')
	if req.Summary != "" {
		sb.WriteString("Speech engine summary: ")
		sb.WriteString(req.Summary)
		sb.WriteByte('\n')
	}
	sb.WriteString("\nTranscript:\n")
	for _, en := range req.Entries {
		bookmark := ""
		if en.Bookmarked {
			bookmark = "★BOOKMARKED "
		}
		fmt.Fprintf(&sb, "[%d] %s%s (detected: %s): %q\n",
			en.Index, bookmark, en.Speaker, orDefault(en.Language, "unknown"), en.Text)
	}
	return sb.String()
}

func parseResponse(content string) (*listen.EnrichResult, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return nil, fmt.Errorf("llmenrich: parse response: %w", err)
	}

	res := &listen.EnrichResult{Summary: strings.TrimSpace(r.Summary)}
	for _, p := range r.ProcessedTranscript {
		if p.Index == nil {
			continue
		}
		res.Processed = append(res.Processed, listen.ProcessedEntry{
			Index:        *p.Index,
			Text:         strings.TrimSpace(p.Text),
			Translation:  strings.TrimSpace(p.Translation),
			Language:     strings.TrimSpace(p.Language),
			OriginalText: p.OriginalText,
		})
	}
	return res, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```)
// around the JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
