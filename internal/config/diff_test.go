package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Providers:  config.ProvidersConfig{STT: config.ProviderEntry{Name: "gladia"}, LLM: config.ProviderEntry{Name: "openai"}},
		Storage:    config.StorageConfig{PostgresDSN: "postgres://localhost/db"},
		Capture:    config.CaptureConfig{MergeWindow: 10 * time.Second, Languages: []string{"pl"}},
		Enrichment: config.EnrichmentConfig{PollInterval: 3 * time.Second, TargetLanguage: "pl", NativeLanguage: "en"},
		Vocabulary: config.VocabularyConfig{BatchSize: 50, XPPerWord: 1},
		Mastery:    config.MasteryConfig{Threshold: 5},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()

	d := config.Diff(baseConfig(), baseConfig())
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()

	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug
	new.Enrichment.PollInterval = 5 * time.Second
	new.Vocabulary.XPPerWord = 2

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level: %+v", d)
	}
	if !d.PollIntervalChanged || d.NewPollInterval != 5*time.Second {
		t.Errorf("poll interval: %+v", d)
	}
	if !d.XPPerWordChanged || d.NewXPPerWord != 2 {
		t.Errorf("xp per word: %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"listen addr", func(c *config.Config) { c.Server.ListenAddr = ":9090" }, "server"},
		{"stt provider", func(c *config.Config) { c.Providers.STT.Name = "deepgram" }, "providers"},
		{"fallback added", func(c *config.Config) {
			c.Providers.LLMFallbacks = append(c.Providers.LLMFallbacks, config.ProviderEntry{Name: "groq"})
		}, "providers"},
		{"dsn", func(c *config.Config) { c.Storage.PostgresDSN = "postgres://other/db" }, "storage"},
		{"languages", func(c *config.Config) { c.Capture.Languages = []string{"pl", "en"} }, "capture"},
		{"target language", func(c *config.Config) { c.Enrichment.TargetLanguage = "es" }, "enrichment"},
		{"batch size", func(c *config.Config) { c.Vocabulary.BatchSize = 20 }, "vocabulary"},
		{"threshold", func(c *config.Config) { c.Mastery.Threshold = 3 }, "mastery"},
		{"sample ratio", func(c *config.Config) { c.Telemetry.TraceSampleRatio = 0.1 }, "telemetry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, new := baseConfig(), baseConfig()
			tt.mutate(new)
			d := config.Diff(old, new)
			if !slices.Equal(d.RestartRequired, []string{tt.want}) {
				t.Errorf("RestartRequired = %v, want [%s]", d.RestartRequired, tt.want)
			}
			if d.LogLevelChanged || d.PollIntervalChanged || d.XPPerWordChanged {
				t.Errorf("unexpected hot-reload change: %+v", d)
			}
		})
	}
}
