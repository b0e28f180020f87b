package config_test

import (
	"strings"
	"testing"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad log level", "server:\n  log_level: loud\n", "server.log_level"},
		{"tls without key", "server:\n  tls:\n    cert_file: c.pem\n", "server.tls"},
		{"fallback without primary", "providers:\n  llm_fallbacks:\n    - name: groq\n", "providers.llm is not configured"},
		{"unnamed fallback", "providers:\n  llm:\n    name: openai\n  llm_fallbacks:\n    - model: x\n", "llm_fallbacks[0].name"},
		{"negative merge window", "capture:\n  merge_window: -1s\n", "capture.merge_window"},
		{"sample rate", "capture:\n  sample_rate: 4000\n", "capture.sample_rate"},
		{"bad language tag", "capture:\n  languages: [\"pl\", \"not a tag!\"]\n", "capture.languages[1]"},
		{"bad target language", "enrichment:\n  target_language: \"??\"\n", "enrichment.target_language"},
		{"xp per word above cap", "vocabulary:\n  xp_per_word: 150\n", "vocabulary.xp_per_word"},
		{"negative batch", "vocabulary:\n  batch_size: -1\n", "vocabulary.batch_size"},
		{"learned xp", "mastery:\n  learned_xp: 101\n", "mastery.learned_xp"},
		{"sample ratio", "telemetry:\n  trace_sample_ratio: 1.5\n", "telemetry.trace_sample_ratio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: loud
vocabulary:
  xp_per_word: -2
mastery:
  threshold: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"server.log_level", "vocabulary.xp_per_word", "mastery.threshold"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_UnknownProviderOnlyWarns(t *testing.T) {
	t.Parallel()

	yaml := `
providers:
  stt:
    name: my-own-transport
  llm:
    name: openai
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unknown provider names should only warn, got %v", err)
	}
}
