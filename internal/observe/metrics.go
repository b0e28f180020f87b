// Package observe provides application-wide observability primitives for
// lovelisten: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all lovelisten metrics.
const meterName = "github.com/richardjhorn1-ai/lovelanguages-multilang-sub004"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks language model latency. Use with attribute:
	//   attribute.String("kind", "enrich"|"extract"|"complete"|"conjugate")
	LLMDuration metric.Float64Histogram

	// EnrichmentDuration tracks a full enrichment pass (load, model, write back).
	EnrichmentDuration metric.Float64Histogram

	// HarvestDuration tracks a full harvest (extraction, upsert, reward).
	HarvestDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// TranscriptChunks counts transport chunks fed to the reconciler. Use with
	// attribute: attribute.Bool("final", ...)
	TranscriptChunks metric.Int64Counter

	// EnrichmentRuns counts enrichment passes by status.
	EnrichmentRuns metric.Int64Counter

	// HarvestedWords counts harvested candidates. Use with attribute:
	//   attribute.Bool("new", ...)
	HarvestedWords metric.Int64Counter

	// EntryCompletions counts dictionary entries completed by the language
	// model. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", "ok"|"error")
	EntryCompletions metric.Int64Counter

	// MasteryPromotions counts words that crossed the mastery threshold.
	MasteryPromotions metric.Int64Counter

	// XPAwarded sums experience points credited to learners.
	XPAwarded metric.Int64Counter

	// --- Gauges ---

	// ActiveCaptures tracks the number of live capture sessions.
	ActiveCaptures metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Language
// model calls over a long transcript can take tens of seconds.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.LLMDuration, err = m.Float64Histogram("lovelisten.llm.duration",
		metric.WithDescription("Latency of language model calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentDuration, err = m.Float64Histogram("lovelisten.enrichment.duration",
		metric.WithDescription("Latency of a transcript enrichment pass."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HarvestDuration, err = m.Float64Histogram("lovelisten.harvest.duration",
		metric.WithDescription("Latency of a vocabulary harvest."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("lovelisten.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("lovelisten.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptChunks, err = m.Int64Counter("lovelisten.transcript.chunks",
		metric.WithDescription("Transcript chunks reconciled, by finality."),
	); err != nil {
		return nil, err
	}
	if met.EnrichmentRuns, err = m.Int64Counter("lovelisten.enrichment.runs",
		metric.WithDescription("Enrichment passes by status."),
	); err != nil {
		return nil, err
	}
	if met.HarvestedWords, err = m.Int64Counter("lovelisten.harvest.words",
		metric.WithDescription("Harvested vocabulary candidates, by novelty."),
	); err != nil {
		return nil, err
	}
	if met.EntryCompletions, err = m.Int64Counter("lovelisten.dictionary.completions",
		metric.WithDescription("Dictionary entries completed by the language model, by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.MasteryPromotions, err = m.Int64Counter("lovelisten.mastery.promotions",
		metric.WithDescription("Words promoted to learned."),
	); err != nil {
		return nil, err
	}
	if met.XPAwarded, err = m.Int64Counter("lovelisten.xp.awarded",
		metric.WithDescription("Experience points credited."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("lovelisten.active_captures",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("lovelisten.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordLLM records the latency of one language model call.
func (m *Metrics) RecordLLM(ctx context.Context, kind string, d time.Duration) {
	m.LLMDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordChunk counts one reconciled transcript chunk.
func (m *Metrics) RecordChunk(ctx context.Context, final bool) {
	m.TranscriptChunks.Add(ctx, 1, metric.WithAttributes(attribute.Bool("final", final)))
}

// RecordEnrichment records the outcome and latency of an enrichment pass.
func (m *Metrics) RecordEnrichment(ctx context.Context, status string, d time.Duration) {
	m.EnrichmentRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.EnrichmentDuration.Record(ctx, d.Seconds())
}

// RecordHarvest records the result of a harvest: total candidates and how
// many of them were new to the learner.
func (m *Metrics) RecordHarvest(ctx context.Context, candidates, fresh int, d time.Duration) {
	m.HarvestDuration.Record(ctx, d.Seconds())
	if known := candidates - fresh; known > 0 {
		m.HarvestedWords.Add(ctx, int64(known), metric.WithAttributes(attribute.Bool("new", false)))
	}
	if fresh > 0 {
		m.HarvestedWords.Add(ctx, int64(fresh), metric.WithAttributes(attribute.Bool("new", true)))
	}
}

// RecordCompletion counts one generated completion of a dictionary entry.
func (m *Metrics) RecordCompletion(ctx context.Context, kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.EntryCompletions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordPromotion counts one mastery promotion.
func (m *Metrics) RecordPromotion(ctx context.Context, language string) {
	m.MasteryPromotions.Add(ctx, 1, metric.WithAttributes(attribute.String("language", language)))
}

// RecordXP adds amount to the awarded experience total.
func (m *Metrics) RecordXP(ctx context.Context, source string, amount int) {
	m.XPAwarded.Add(ctx, int64(amount), metric.WithAttributes(attribute.String("source", source)))
}
