// Package observability provides structured logging context and OpenTelemetry
// metrics with a Prometheus exporter.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/insighthub/engine/internal/models"
)

const (
	meterScope         = "github.com/insighthub/engine/internal/observability"
	defaultServiceName = "insight-engine"
)

// latencyHistogramBoundaries are Prometheus-style buckets (seconds) for request and capability duration histograms.
var latencyHistogramBoundaries = []float64{0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10}

// EngineMetrics is the single metrics interface for the insight engine
// (HTTP, pipeline runs, capability calls). Callers hold a nil interface when
// metrics are disabled and must check before recording.
type EngineMetrics interface {
	RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration)
	RecordItemProcessed(ctx context.Context, outcome string)
	RecordDegradation(ctx context.Context, attribute string)
	RecordCapabilityCall(ctx context.Context, capability, outcome string, duration time.Duration)
	RecordRun(ctx context.Context, duration time.Duration)
}

// MeterProviderShutdown is the subset of the SDK MeterProvider needed for shutdown.
type MeterProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// MeterProviderConfig holds configuration for creating the MeterProvider and metrics.
type MeterProviderConfig struct {
	// ServiceName is used in the resource (default: insight-engine).
	ServiceName string
}

// NewMeterProvider creates a MeterProvider with Prometheus exporter and returns the provider,
// an HTTP handler for /metrics, and EngineMetrics that use the provider's Meter.
// Caller must call provider.Shutdown on exit.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (provider MeterProviderShutdown, metricsHandler http.Handler, metrics EngineMetrics, err error) {
	serviceNameVal := cfg.ServiceName
	if serviceNameVal == "" {
		serviceNameVal = defaultServiceName
	}

	// Use a single resource to avoid Schema URL conflicts when merging with resource.Default().
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceNameVal),
	)

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(
		prometheusexporter.WithRegisterer(reg),
	)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithView(
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "http.server.duration"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
			sdkmetric.NewView(
				sdkmetric.Instrument{Name: "capability_call_duration_seconds"},
				sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: latencyHistogramBoundaries}},
			),
		),
	)
	provider = mp
	meter := mp.Meter(meterScope)

	metrics, err = newMetricsFromMeter(meter)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create metrics instruments: %w", err)
	}

	metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return provider, metricsHandler, metrics, nil
}

func newMetricsFromMeter(meter metric.Meter) (*engineMetricsImpl, error) {
	requestCount, err := meter.Int64Counter(
		"http.server.request_count",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("request_count: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("http.server.duration: %w", err)
	}

	itemsProcessed, err := meter.Int64Counter(
		"pipeline_items_total",
		metric.WithDescription("Feedback items handled by processing runs, per outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline_items_total: %w", err)
	}

	degradations, err := meter.Int64Counter(
		"pipeline_degradations_total",
		metric.WithDescription("Insight attributes committed in degraded form, per attribute"),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline_degradations_total: %w", err)
	}

	capabilityCalls, err := meter.Int64Counter(
		"capability_calls_total",
		metric.WithDescription("Remote capability calls per capability and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("capability_calls_total: %w", err)
	}

	capabilityDuration, err := meter.Float64Histogram(
		"capability_call_duration_seconds",
		metric.WithDescription("Remote capability call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("capability_call_duration_seconds: %w", err)
	}

	runDuration, err := meter.Float64Histogram(
		"pipeline_run_duration_seconds",
		metric.WithDescription("Processing run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline_run_duration_seconds: %w", err)
	}

	return &engineMetricsImpl{
		requestCount:       requestCount,
		requestDuration:    requestDuration,
		itemsProcessed:     itemsProcessed,
		degradations:       degradations,
		capabilityCalls:    capabilityCalls,
		capabilityDuration: capabilityDuration,
		runDuration:        runDuration,
	}, nil
}

type engineMetricsImpl struct {
	requestCount       metric.Int64Counter
	requestDuration    metric.Float64Histogram
	itemsProcessed     metric.Int64Counter
	degradations       metric.Int64Counter
	capabilityCalls    metric.Int64Counter
	capabilityDuration metric.Float64Histogram
	runDuration        metric.Float64Histogram
}

func (m *engineMetricsImpl) RecordRequest(ctx context.Context, method, route, statusClass string, duration time.Duration) {
	attrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.String("status_class", statusClass),
	)
	m.requestCount.Add(ctx, 1, metric.WithAttributeSet(attrs))

	durAttrs := attribute.NewSet(
		attribute.String("method", method),
		attribute.String("route", route),
	)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributeSet(durAttrs))
}

func (m *engineMetricsImpl) RecordItemProcessed(ctx context.Context, outcome string) {
	outcome = normalizeItemOutcome(outcome)
	m.itemsProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *engineMetricsImpl) RecordDegradation(ctx context.Context, attr string) {
	attr = normalizeAttribute(attr)
	m.degradations.Add(ctx, 1, metric.WithAttributes(attribute.String("attribute", attr)))
}

func (m *engineMetricsImpl) RecordCapabilityCall(ctx context.Context, capability, outcome string, duration time.Duration) {
	capability = normalizeCapability(capability)
	outcome = normalizeCallOutcome(outcome)
	m.capabilityCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("outcome", outcome),
	))
	m.capabilityDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("outcome", outcome),
	))
}

func (m *engineMetricsImpl) RecordRun(ctx context.Context, duration time.Duration) {
	m.runDuration.Record(ctx, duration.Seconds())
}

// normalizeItemOutcome maps run item outcomes to a bounded set for cardinality control.
func normalizeItemOutcome(s string) string {
	switch s {
	case "processed", "skipped", "retryable":
		return s
	default:
		return "unknown"
	}
}

// normalizeAttribute maps degradation flags to a bounded set.
func normalizeAttribute(s string) string {
	switch s {
	case models.DegradedSentiment, models.DegradedUrgency, models.DegradedCategories,
		models.DegradedThemes, models.DegradedSummary, models.DegradedActionItems,
		models.DegradedEmbedding:
		return s
	default:
		return "unknown"
	}
}

// normalizeCapability maps capability names to a bounded set.
func normalizeCapability(s string) string {
	switch s {
	case "text_generation", "embedding":
		return s
	default:
		return "unknown"
	}
}

// normalizeCallOutcome maps capability call outcomes to a bounded set.
func normalizeCallOutcome(s string) string {
	switch s {
	case "success", "error":
		return s
	default:
		return "unknown"
	}
}
