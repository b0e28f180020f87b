package llmextract

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm"
)

var _ vocab.Completer = (*Extractor)(nil)

// defaultPersons keys conjugation tables of languages without a known
// person list.
var defaultPersons = []string{
	"first_singular", "second_singular", "third_singular",
	"first_plural", "second_plural", "third_plural",
}

// Complete implements [vocab.Completer].
func (e *Extractor) Complete(ctx context.Context, req vocab.CompleteRequest) (vocab.Candidate, error) {
	var prompt string
	switch req.Need {
	case vocab.NeedPresentTense:
		prompt = conjugationPrompt(req.Entry.Word, req.Entry.Translation, req.Entry.LanguageCode, vocab.TensePresent, req.Grammar.Persons)
	case vocab.NeedNounForms:
		prompt = fmt.Sprintf(`For the %s noun %q (meaning: %q), provide:
- "gender": one of %s
- "plural": the plural form of the noun

Respond with ONLY a JSON object: {"gender": "...", "plural": "..."}
EVERY field must be filled.`,
			languageName(req.Entry.LanguageCode), req.Entry.Word, req.Entry.Translation, strings.Join(req.Grammar.Genders, ", "))
	case vocab.NeedAdjectiveForms:
		prompt = fmt.Sprintf(`For the %s adjective %q (meaning: %q), provide all gender forms.

Respond with ONLY a JSON object: {"masculine": "...", "feminine": "...", "neuter": "...", "plural": "..."}
EVERY field must be filled.`,
			languageName(req.Entry.LanguageCode), req.Entry.Word, req.Entry.Translation)
	default:
		return vocab.Candidate{}, nil
	}

	content, err := e.completeJSON(ctx, "complete", prompt)
	if err != nil {
		return vocab.Candidate{}, err
	}

	c := vocab.Candidate{Word: req.Entry.Word}
	switch req.Need {
	case vocab.NeedPresentTense:
		forms, err := parseForms(content)
		if err != nil {
			return vocab.Candidate{}, err
		}
		if len(forms) > 0 {
			c.Conjugations = map[vocab.Tense]*vocab.TenseTable{vocab.TensePresent: {Forms: forms}}
		}
	case vocab.NeedNounForms:
		var r struct {
			Gender string `json:"gender"`
			Plural string `json:"plural"`
		}
		if err := json.Unmarshal([]byte(content), &r); err != nil {
			return vocab.Candidate{}, fmt.Errorf("llmextract: parse noun forms: %w", err)
		}
		gender := strings.ToLower(strings.TrimSpace(r.Gender))
		if len(req.Grammar.Genders) == 0 || slices.Contains(req.Grammar.Genders, gender) {
			c.Gender = gender
		}
		c.Plural = strings.TrimSpace(r.Plural)
	case vocab.NeedAdjectiveForms:
		var af vocab.AdjectiveForms
		if err := json.Unmarshal([]byte(content), &af); err != nil {
			return vocab.Candidate{}, fmt.Errorf("llmextract: parse adjective forms: %w", err)
		}
		if af != (vocab.AdjectiveForms{}) {
			c.AdjectiveForms = &af
		}
	}
	return c, nil
}

// Conjugate implements [vocab.Completer]. Persons whose form varies by
// gender are returned as "person.gender" keys, e.g. "ja.feminine".
func (e *Extractor) Conjugate(ctx context.Context, req vocab.ConjugateRequest) (map[string]string, error) {
	prompt := conjugationPrompt(req.Verb, req.Translation, req.LanguageCode, req.Tense, req.Persons)
	content, err := e.completeJSON(ctx, "conjugate", prompt)
	if err != nil {
		return nil, err
	}
	return parseForms(content)
}

func (e *Extractor) completeJSON(ctx context.Context, kind, prompt string) (string, error) {
	start := time.Now()
	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		Temperature: e.temperature,
		JSONMode:    true,
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
	})
	e.metrics.RecordLLM(ctx, kind, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("llmextract: %s: %w", kind, err)
	}
	if resp == nil {
		return "", fmt.Errorf("llmextract: %s: empty response", kind)
	}
	content := stripMarkdown(resp.Content)
	if !strings.HasPrefix(content, "{") {
		return "", fmt.Errorf("llmextract: %s: response is not a JSON object", kind)
	}
	return content, nil
}

func conjugationPrompt(verb, translation, languageCode string, tense vocab.Tense, persons []string) string {
	if len(persons) == 0 {
		persons = defaultPersons
	}
	keys := make([]string, len(persons))
	for i, p := range persons {
		keys[i] = fmt.Sprintf("  %q: \"...\"", p)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Give me the COMPLETE %s tense conjugation of the %s verb %q", tense, languageName(languageCode), verb)
	if translation != "" {
		fmt.Fprintf(&sb, " (meaning: %q)", translation)
	}
	sb.WriteString(".\n\nRespond with ONLY a JSON object keyed by person:\n{\n")
	sb.WriteString(strings.Join(keys, ",\n"))
	sb.WriteString("\n}\n\n")
	sb.WriteString(`If a form changes with the subject's gender, give an object such as {"masculine": "...", "feminine": "..."} instead of a string.` + "\n")
	sb.WriteString("EVERY field must be filled. No nulls or empty strings.")
	return sb.String()
}

// parseForms reads a person-keyed table. Nested gender variants are
// flattened to "person.gender" keys and blank forms are dropped.
func parseForms(content string) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("llmextract: parse forms: %w", err)
	}
	forms := make(map[string]string, len(raw))
	for person, v := range raw {
		var form string
		if err := json.Unmarshal(v, &form); err == nil {
			if form = strings.TrimSpace(form); form != "" {
				forms[person] = form
			}
			continue
		}
		var variants map[string]string
		if err := json.Unmarshal(v, &variants); err != nil {
			continue
		}
		for gender, f := range variants {
			if f = strings.TrimSpace(f); f != "" {
				forms[person+"."+gender] = f
			}
		}
	}
	return forms, nil
}

// languageName returns the English name of a language code, or the code
// itself when it is unknown.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
