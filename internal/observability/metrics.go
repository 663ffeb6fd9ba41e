package observability

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector manages all marketplace metrics
type MetricsCollector struct {
	meter metric.Meter

	// Task lifecycle metrics
	tasksCreated   metric.Int64Counter
	dispatches     metric.Int64Counter
	webhookLatency metric.Float64Histogram

	// Accountability metrics
	feedbackTotal      metric.Int64Counter
	slashesTotal       metric.Int64Counter
	disputesResolved   metric.Int64Counter
	disputesOpen       metric.Int64UpDownCounter
	mirrorFailures     metric.Int64Counter

	// Server for Prometheus scraping
	prometheusServer *http.Server
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	PrometheusPort int  `yaml:"prometheus_port"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("agora")

	tasksCreated, err := meter.Int64Counter(
		"agora.tasks.created.total",
		metric.WithDescription("Total number of tasks created"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tasks_created counter: %w", err)
	}

	dispatches, err := meter.Int64Counter(
		"agora.dispatch.total",
		metric.WithDescription("Total number of webhook dispatch attempts by outcome"),
		metric.WithUnit("{dispatch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create dispatches counter: %w", err)
	}

	webhookLatency, err := meter.Float64Histogram(
		"agora.dispatch.webhook.latency",
		metric.WithDescription("Agent webhook round-trip latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create webhook_latency histogram: %w", err)
	}

	feedbackTotal, err := meter.Int64Counter(
		"agora.feedback.total",
		metric.WithDescription("Total number of accepted feedback submissions"),
		metric.WithUnit("{feedback}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create feedback counter: %w", err)
	}

	slashesTotal, err := meter.Int64Counter(
		"agora.slashes.total",
		metric.WithDescription("Total number of stake slashes applied"),
		metric.WithUnit("{slash}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create slashes counter: %w", err)
	}

	disputesResolved, err := meter.Int64Counter(
		"agora.disputes.resolved.total",
		metric.WithDescription("Total number of disputes resolved by verdict"),
		metric.WithUnit("{dispute}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create disputes_resolved counter: %w", err)
	}

	disputesOpen, err := meter.Int64UpDownCounter(
		"agora.disputes.open",
		metric.WithDescription("Number of disputes awaiting quorum"),
		metric.WithUnit("{dispute}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create disputes_open gauge: %w", err)
	}

	mirrorFailures, err := meter.Int64Counter(
		"agora.slash.mirror.failures.total",
		metric.WithDescription("Total number of best-effort on-chain slash mirror failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mirror_failures counter: %w", err)
	}

	collector := &MetricsCollector{
		meter:            meter,
		tasksCreated:     tasksCreated,
		dispatches:       dispatches,
		webhookLatency:   webhookLatency,
		feedbackTotal:    feedbackTotal,
		slashesTotal:     slashesTotal,
		disputesResolved: disputesResolved,
		disputesOpen:     disputesOpen,
		mirrorFailures:   mirrorFailures,
	}

	if config.PrometheusPort > 0 {
		if err := collector.StartPrometheusServer(config.PrometheusPort); err != nil {
			return nil, fmt.Errorf("start prometheus server: %w", err)
		}
	}

	return collector, nil
}

// StartPrometheusServer starts the Prometheus metrics server
func (m *MetricsCollector) StartPrometheusServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promclient.Handler())

	m.prometheusServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		log.Printf("Prometheus metrics server listening on :%d", port)
		if err := m.prometheusServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Prometheus server error: %v", err)
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics collector
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m.prometheusServer != nil {
		return m.prometheusServer.Shutdown(ctx)
	}
	return nil
}

// RecordTaskCreated records a newly created task
func (m *MetricsCollector) RecordTaskCreated(ctx context.Context) {
	if m.tasksCreated == nil {
		return
	}
	m.tasksCreated.Add(ctx, 1)
}

// RecordDispatch records a webhook dispatch attempt and its latency
func (m *MetricsCollector) RecordDispatch(ctx context.Context, outcome string, latency time.Duration) {
	if m.dispatches == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	m.dispatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.webhookLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(attrs...))
}

// RecordFeedback records an accepted feedback submission
func (m *MetricsCollector) RecordFeedback(ctx context.Context, score int) {
	if m.feedbackTotal == nil {
		return
	}
	m.feedbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("score", score)))
}

// RecordSlash records an applied stake slash
func (m *MetricsCollector) RecordSlash(ctx context.Context) {
	if m.slashesTotal == nil {
		return
	}
	m.slashesTotal.Add(ctx, 1)
}

// RecordMirrorFailure records a failed best-effort on-chain mirror call
func (m *MetricsCollector) RecordMirrorFailure(ctx context.Context) {
	if m.mirrorFailures == nil {
		return
	}
	m.mirrorFailures.Add(ctx, 1)
}

// DisputeOpened increments the open dispute gauge
func (m *MetricsCollector) DisputeOpened(ctx context.Context) {
	if m.disputesOpen == nil {
		return
	}
	m.disputesOpen.Add(ctx, 1)
}

// DisputeResolved records a resolution and decrements the open gauge
func (m *MetricsCollector) DisputeResolved(ctx context.Context, verdict string) {
	if m.disputesResolved == nil {
		return
	}
	m.disputesResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", verdict)))
	m.disputesOpen.Add(ctx, -1)
}
