// Package llmextract implements [vocab.Extractor] on top of a language model.
package llmextract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm"
)

const (
	defaultTemperature = 0.3

	// maxKnownWords caps the known-word context sent to the model.
	maxKnownWords = 50
)

const systemPromptTemplate = `You extract vocabulary for a learner of %s whose native language is %s.

From the chat history, list the %s words and phrases the learner does NOT already know.
For each one give:
- "word": the form used in the chat
- "rootWord": the lemma
- "translation": into %s
- "type": one of noun, verb, adjective, adverb, phrase, other
- "importance": 1 to 5
- "pronunciation", "gender" and "plural" when they apply
- "adjectiveForms" with masculine, feminine, neuter and plural for adjectives
- "conjugations" with a "present" table for verbs, keyed by person
- "examples": example sentences in %s, each followed by its translation in brackets
- "proTip": a short usage tip, at most 60 characters

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"newWords": [ ... ]}`

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithTemperature sets the sampling temperature. Default: 0.3.
func WithTemperature(temp float64) Option {
	return func(e *Extractor) { e.temperature = temp }
}

// WithMetrics sets the metrics instruments. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// Extractor asks an [llm.Provider] for vocabulary. It is safe for
// concurrent use.
type Extractor struct {
	llm         llm.Provider
	temperature float64
	metrics     *observe.Metrics
}

var _ vocab.Extractor = (*Extractor)(nil)

// New returns an Extractor backed by provider.
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{llm: provider, temperature: defaultTemperature}
	for _, o := range opts {
		o(e)
	}
	if e.metrics == nil {
		e.metrics = observe.DefaultMetrics()
	}
	return e
}

type llmWord struct {
	Word           string                       `json:"word"`
	RootWord       string                       `json:"rootWord"`
	Translation    string                       `json:"translation"`
	Type           string                       `json:"type"`
	Importance     int                          `json:"importance"`
	Pronunciation  string                       `json:"pronunciation"`
	Gender         string                       `json:"gender"`
	Plural         string                       `json:"plural"`
	AdjectiveForms *vocab.AdjectiveForms        `json:"adjectiveForms"`
	Conjugations   map[string]map[string]string `json:"conjugations"`
	Examples       []string                     `json:"examples"`
	ProTip         string                       `json:"proTip"`
}

type llmResponse struct {
	NewWords []llmWord `json:"newWords"`
}

// Extract implements [vocab.Extractor].
func (e *Extractor) Extract(ctx context.Context, req vocab.ExtractRequest) ([]vocab.Candidate, error) {
	if len(req.Messages) == 0 {
		return nil, nil
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
	e.metrics.RecordLLM(ctx, "extract", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("llmextract: complete: %w", err)
	}
	return parseResponse(resp.Content)
}

func buildSystemPrompt(req vocab.ExtractRequest) string {
	target := req.TargetLanguage
	if target == "" {
		target = "the target language"
	}
	native := req.NativeLanguage
	if native == "" {
		native = "English"
	}
	return fmt.Sprintf(systemPromptTemplate, target, native, target, native, target)
}

// buildUserMessage renders the known-word context and the history as
// "ROLE: content" turns separated by "---" lines.
func buildUserMessage(req vocab.ExtractRequest) string {
	var sb strings.Builder
	if len(req.KnownWords) > 0 {
		known := req.KnownWords[:min(len(req.KnownWords), maxKnownWords)]
		fmt.Fprintf(&sb, "User already knows: [%s]\n\n", strings.Join(known, ", "))
	} else {
		sb.WriteString("User is a beginner.\n\n")
	}

	sb.WriteString("CHAT HISTORY:\n")
	turns := make([]string, len(req.Messages))
	for i, m := range req.Messages {
		turns[i] = strings.ToUpper(m.Role) + ": " + m.Content
	}
	sb.WriteString(strings.Join(turns, "\n---\n"))
	return sb.String()
}

func parseResponse(content string) ([]vocab.Candidate, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return nil, fmt.Errorf("llmextract: parse response: %w", err)
	}

	out := make([]vocab.Candidate, 0, len(r.NewWords))
	for _, w := range r.NewWords {
		word := strings.ToLower(strings.TrimSpace(w.Word))
		if word == "" {
			continue
		}
		root := strings.ToLower(strings.TrimSpace(w.RootWord))
		if root == "" {
			root = word
		}
		c := vocab.Candidate{
			Word:           word,
			RootWord:       root,
			Translation:    strings.TrimSpace(w.Translation),
			WordType:       strings.ToLower(strings.TrimSpace(w.Type)),
			Importance:     w.Importance,
			Pronunciation:  w.Pronunciation,
			Gender:         w.Gender,
			Plural:         w.Plural,
			AdjectiveForms: w.AdjectiveForms,
			ProTip:         strings.TrimSpace(w.ProTip),
			New:            true,
		}
		if len(w.Examples) > 0 {
			c.Example, c.ExampleTranslation = splitExample(w.Examples[0])
		}
		for name, forms := range w.Conjugations {
			t := vocab.Tense(strings.ToLower(name))
			if !t.Valid() || len(forms) == 0 {
				continue
			}
			if c.Conjugations == nil {
				c.Conjugations = make(map[vocab.Tense]*vocab.TenseTable)
			}
			c.Conjugations[t] = &vocab.TenseTable{Forms: forms}
		}
		out = append(out, c)
	}
	return out, nil
}

// splitExample separates "Kocham cię. (I love you.)" into the sentence and
// its bracketed translation.
func splitExample(s string) (sentence, translation string) {
	s = strings.TrimSpace(s)
	for _, br := range [][2]string{{"(", ")"}, {"[", "]"}} {
		if !strings.HasSuffix(s, br[1]) {
			continue
		}
		if i := strings.LastIndex(s, br[0]); i > 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1 : len(s)-1])
		}
	}
	return s, ""
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
