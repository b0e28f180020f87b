package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {"gladia", "deepgram"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks is set but providers.llm is not configured"))
	}

	if cfg.Providers.STT.Name == "" {
		slog.Warn("no STT provider configured; live capture will not be available")
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; enrichment and vocabulary harvesting are disabled")
	}
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; data is kept in memory and lost on restart")
	}

	if cfg.Capture.MergeWindow < 0 {
		errs = append(errs, fmt.Errorf("capture.merge_window %s must not be negative", cfg.Capture.MergeWindow))
	}
	if cfg.Capture.PrefixWindow < 0 {
		errs = append(errs, fmt.Errorf("capture.prefix_window %d must not be negative", cfg.Capture.PrefixWindow))
	}
	if sr := cfg.Capture.SampleRate; sr != 0 && (sr < 8000 || sr > 48000) {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d is out of range [8000, 48000]", sr))
	}
	for i, l := range cfg.Capture.Languages {
		errs = appendLanguageErr(errs, fmt.Sprintf("capture.languages[%d]", i), l)
	}
	errs = appendLanguageErr(errs, "capture.translate_to", cfg.Capture.TranslateTo)

	if cfg.Enrichment.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("enrichment.poll_interval %s must not be negative", cfg.Enrichment.PollInterval))
	}
	errs = appendLanguageErr(errs, "enrichment.target_language", cfg.Enrichment.TargetLanguage)
	errs = appendLanguageErr(errs, "enrichment.native_language", cfg.Enrichment.NativeLanguage)

	if cfg.Vocabulary.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("vocabulary.batch_size %d must not be negative", cfg.Vocabulary.BatchSize))
	}
	if cfg.Vocabulary.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("vocabulary.max_concurrency %d must not be negative", cfg.Vocabulary.MaxConcurrency))
	}
	if xp := cfg.Vocabulary.XPPerWord; xp < 0 || xp > 100 {
		errs = append(errs, fmt.Errorf("vocabulary.xp_per_word %d is out of range [0, 100]", xp))
	}

	if cfg.Mastery.Threshold < 0 {
		errs = append(errs, fmt.Errorf("mastery.threshold %d must not be negative", cfg.Mastery.Threshold))
	}
	if xp := cfg.Mastery.LearnedXP; xp < 0 || xp > 100 {
		errs = append(errs, fmt.Errorf("mastery.learned_xp %d is out of range [0, 100]", xp))
	}

	if r := cfg.Telemetry.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("telemetry.trace_sample_ratio %g is out of range [0, 1]", r))
	}

	return errors.Join(errs...)
}

// appendLanguageErr validates an optional BCP-47 tag.
func appendLanguageErr(errs []error, field, tag string) []error {
	if tag == "" {
		return errs
	}
	if _, err := language.Parse(tag); err != nil {
		return append(errs, fmt.Errorf("%s %q is not a valid language tag: %w", field, tag, err))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
