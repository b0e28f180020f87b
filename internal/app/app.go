// Package app wires all lovelisten subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, and Shutdown tears everything down in order.
//
// For testing, inject stores via functional options (WithListenStore,
// WithVocabStore, etc.). When an option is not provided, New uses PostgreSQL
// if a DSN is configured and in-memory stores otherwise.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/config"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/health"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/listen/llmenrich"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/mastery"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/observe"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/reward"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/store/postgres"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/internal/vocab/llmextract"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/llm"
	"github.com/richardjhorn1-ai/lovelanguages-multilang-sub004/pkg/provider/stt"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT stt.Provider
	LLM llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics

	// Stores. A single postgres.Store may back all four.
	listenStore  listen.Store
	vocabStore   vocab.Store
	masteryStore mastery.Store
	rewardStore  reward.Store
	db           *postgres.Store

	ledger      *reward.Ledger
	coordinator *listen.Coordinator
	poller      *listen.Poller
	harvester   *vocab.Harvester
	bus         *vocab.Bus
	tracker     *mastery.Tracker
	captures    *CaptureManager

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithListenStore injects the listen session store.
func WithListenStore(s listen.Store) Option {
	return func(a *App) { a.listenStore = s }
}

// WithVocabStore injects the dictionary store.
func WithVocabStore(s vocab.Store) Option {
	return func(a *App) { a.vocabStore = s }
}

// WithMasteryStore injects the word score store.
func WithMasteryStore(s mastery.Store) Option {
	return func(a *App) { a.masteryStore = s }
}

// WithRewardStore injects the experience store.
func WithRewardStore(s reward.Store) Option {
	return func(a *App) { a.rewardStore = s }
}

// WithMetrics sets the metrics instruments shared by all subsystems.
// Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). A nil STT provider
// leaves capture unavailable; a nil LLM provider disables enrichment and
// harvesting.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Stores ────────────────────────────────────────────────────────
	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}

	// ── 2. Experience ledger ─────────────────────────────────────────────
	a.ledger = reward.NewLedger(a.rewardStore, reward.WithMetrics(a.metrics))

	// ── 3. Listen sessions ───────────────────────────────────────────────
	var enricher listen.Enricher
	if providers.LLM != nil {
		enricher = llmenrich.New(providers.LLM, llmenrich.WithMetrics(a.metrics))
	}
	a.coordinator = listen.NewCoordinator(a.listenStore, enricher,
		listen.WithLanguages(cfg.Enrichment.TargetLanguage, cfg.Enrichment.NativeLanguage),
		listen.WithMetrics(a.metrics),
	)
	a.poller = listen.NewPoller(a.listenStore, cfg.Enrichment.PollInterval)

	// ── 4. Vocabulary ────────────────────────────────────────────────────
	var (
		extractor vocab.Extractor
		completer vocab.Completer
	)
	if providers.LLM != nil {
		x := llmextract.New(providers.LLM, llmextract.WithMetrics(a.metrics))
		extractor, completer = x, x
	}
	a.bus = vocab.NewBus()
	a.harvester = vocab.NewHarvester(a.vocabStore, extractor,
		vocab.WithBus(a.bus),
		vocab.WithCompleter(completer),
		vocab.WithBatchSize(cfg.Vocabulary.BatchSize),
		vocab.WithMaxConcurrency(cfg.Vocabulary.MaxConcurrency),
		vocab.WithXPPerWord(xpPerWord(cfg.Vocabulary.XPPerWord)),
		vocab.WithCrediter(a.ledger),
		vocab.WithMetrics(a.metrics),
	)

	// ── 5. Mastery ───────────────────────────────────────────────────────
	a.tracker = mastery.NewTracker(a.masteryStore,
		mastery.WithThreshold(cfg.Mastery.Threshold),
		mastery.WithLearnedXP(a.ledger, cfg.Mastery.LearnedXP),
		mastery.WithCelebrator(mastery.CelebratorFunc(logCelebration)),
		mastery.WithMetrics(a.metrics),
	)

	// ── 6. Capture sessions ──────────────────────────────────────────────
	a.captures = NewCaptureManager(CaptureManagerConfig{
		Provider:    providers.STT,
		Config:      cfg.Capture,
		Coordinator: a.coordinator,
		Metrics:     a.metrics,
	})

	slog.Info("app initialised",
		"postgres", a.db != nil,
		"stt", providers.STT != nil,
		"llm", providers.LLM != nil,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStores connects to PostgreSQL when a DSN is configured and any store
// is still missing. Remaining gaps are filled with in-memory stores.
func (a *App) initStores(ctx context.Context) error {
	missing := a.listenStore == nil || a.vocabStore == nil || a.masteryStore == nil || a.rewardStore == nil
	if !missing {
		return nil
	}

	if dsn := a.cfg.Storage.PostgresDSN; dsn != "" {
		db, err := postgres.NewStore(ctx, dsn)
		if err != nil {
			return err
		}
		a.db = db
		a.closers = append(a.closers, func() error {
			db.Close()
			return nil
		})
		if a.listenStore == nil {
			a.listenStore = db
		}
		if a.vocabStore == nil {
			a.vocabStore = db
		}
		if a.masteryStore == nil {
			a.masteryStore = db
		}
		if a.rewardStore == nil {
			a.rewardStore = db
		}
		return nil
	}

	slog.Warn("no postgres_dsn configured, using in-memory stores")
	if a.listenStore == nil {
		a.listenStore = listen.NewMemStore()
	}
	if a.vocabStore == nil {
		a.vocabStore = vocab.NewMemStore()
	}
	if a.masteryStore == nil {
		a.masteryStore = mastery.NewMemStore()
	}
	if a.rewardStore == nil {
		a.rewardStore = reward.NewMemStore()
	}
	return nil
}

func logCelebration(ctx context.Context, c mastery.Celebration) error {
	observe.Logger(ctx).Info("word learned",
		"owner", c.OwnerID,
		"word_id", c.WordID,
		"language", c.LanguageCode,
	)
	return nil
}

// xpPerWord maps an unset config value to the harvester default.
func xpPerWord(n int) int {
	if n <= 0 {
		return vocab.DefaultXPPerWord
	}
	return n
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Metrics returns the shared metrics instruments.
func (a *App) Metrics() *observe.Metrics { return a.metrics }

// Captures returns the live capture manager.
func (a *App) Captures() *CaptureManager { return a.captures }

// Coordinator returns the listen session coordinator.
func (a *App) Coordinator() *listen.Coordinator { return a.coordinator }

// Poller returns the enrichment poller.
func (a *App) Poller() *listen.Poller { return a.poller }

// ListenSessions returns the listen session store.
func (a *App) ListenSessions() listen.Store { return a.listenStore }

// Harvester returns the vocabulary harvester.
func (a *App) Harvester() *vocab.Harvester { return a.harvester }

// Dictionary returns the bus dictionary changes are published on.
func (a *App) Dictionary() *vocab.Bus { return a.bus }

// Tracker returns the mastery tracker.
func (a *App) Tracker() *mastery.Tracker { return a.tracker }

// Ledger returns the experience ledger.
func (a *App) Ledger() *reward.Ledger { return a.ledger }

// HealthCheckers returns the readiness checks for the App's dependencies.
func (a *App) HealthCheckers() []health.Checker {
	var checkers []health.Checker
	if a.db != nil {
		checkers = append(checkers, health.PingCheck("database", a.db))
	}
	checkers = append(checkers, health.Checker{
		Name: "stt",
		Check: func(context.Context) error {
			if a.providers.STT == nil {
				return fmt.Errorf("no stt provider configured")
			}
			return nil
		},
	})
	return checkers
}

// ReloadHooks returns the hooks through which a [config.Watcher] updates
// the running App. The log level hook is left to the caller, which owns the
// logger.
func (a *App) ReloadHooks() config.Hooks {
	return config.Hooks{
		PollInterval: func(d time.Duration) {
			a.poller.SetInterval(d)
			slog.Info("enrichment poll interval updated", "interval", a.poller.Interval())
		},
		XPPerWord: func(n int) {
			n = xpPerWord(n)
			a.harvester.SetXPPerWord(n)
			slog.Info("xp per word updated", "xp_per_word", n)
		},
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops all live captures, waits for background enrichment and then
// runs the closers. It respects the context deadline and is safe to call more
// than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "captures", a.captures.Count(), "closers", len(a.closers))

		a.captures.StopAll(ctx)

		if err := a.coordinator.Wait(ctx); err != nil {
			slog.Warn("enrichment jobs still running at shutdown", "err", err)
			shutdownErr = err
		}

		for i, closer := range a.closers {
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
