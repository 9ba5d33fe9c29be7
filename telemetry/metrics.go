// Package telemetry provides OpenTelemetry metrics for the catalog
// client core: request outcomes and retries, cache tier behaviour,
// maintenance sweeps, and feed loads. Metrics are recorded through
// package-level functions that are no-ops until InitMetrics is called,
// so library packages can instrument unconditionally.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const (
	meterName = "github.com/mediakit/catalog-client"
)

// MetricsConfig configures the metrics system.
type MetricsConfig struct {
	// ServiceName is the name of the service for resource attributes.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, OTLP export is disabled.
	OTLPEndpoint string

	// EnablePrometheus enables the Prometheus /metrics endpoint.
	EnablePrometheus bool

	// FlushInterval is how often to export metrics (default: 10s).
	FlushInterval time.Duration
}

// Metrics holds the OpenTelemetry metric instruments.
type Metrics struct {
	requestsTotal      metric.Int64Counter
	requestRetries     metric.Int64Counter
	requestAttempts    metric.Int64Histogram
	requestDuration    metric.Float64Histogram
	cancellationsTotal metric.Int64Counter

	upstreamFetchDuration   metric.Float64Histogram
	upstreamFetchTotal      metric.Int64Counter
	upstreamFetchBytesTotal metric.Int64Counter

	cacheLookupsTotal       metric.Int64Counter
	cacheStoresTotal        metric.Int64Counter
	cacheStoreBytesTotal    metric.Int64Counter
	cacheEvictionsTotal     metric.Int64Counter
	cacheEvictionBytesTotal metric.Int64Counter
	cachePurgesTotal        metric.Int64Counter
	sweepDeletedTotal       metric.Int64Counter
	sweepDuration           metric.Float64Histogram

	feedLoadsTotal metric.Int64Counter
	feedItemsTotal metric.Int64Counter

	meterProvider *sdkmetric.MeterProvider
	promHandler   http.Handler
}

var (
	globalMetrics *Metrics
	initOnce      sync.Once
	initErr       error
)

// InitMetrics initializes the OpenTelemetry metrics system.
// Returns a shutdown function that should be called on application exit.
// Uses sync.Once to ensure single initialisation.
func InitMetrics(ctx context.Context, cfg MetricsConfig) (shutdown func(context.Context) error, err error) {
	initOnce.Do(func() {
		initErr = doInitMetrics(ctx, cfg)
	})

	if initErr != nil {
		return nil, initErr
	}

	return shutdownMetrics, nil
}

func doInitMetrics(ctx context.Context, cfg MetricsConfig) error {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "catalog-client"
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = 10 * time.Second
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return err
	}

	var readers []sdkmetric.Reader
	var promHandler http.Handler

	if cfg.OTLPEndpoint != "" {
		otlpExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetricgrpc.WithInsecure(), // Use WithTLSCredentials for production
		)
		if err != nil {
			return err
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(otlpExporter,
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	if cfg.EnablePrometheus {
		promExp, err := promexporter.New()
		if err != nil {
			return err
		}
		readers = append(readers, promExp)
		promHandler = promhttp.Handler()
	}

	// If no exporters configured, use a no-op periodic reader to still collect metrics
	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewPeriodicReader(noopExporter{},
			sdkmetric.WithInterval(cfg.FlushInterval),
		))
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		opts = append(opts, sdkmetric.WithReader(r))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(meterName)

	requestsTotal, err := meter.Int64Counter(
		"catalog_client_requests_total",
		metric.WithDescription("Total dispatched requests by classified outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	requestRetries, err := meter.Int64Counter(
		"catalog_client_request_retries_total",
		metric.WithDescription("Total automatic retries of transient failures"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return err
	}

	requestAttempts, err := meter.Int64Histogram(
		"catalog_client_request_attempts",
		metric.WithDescription("Attempts used per dispatched request"),
		metric.WithUnit("{attempt}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 4, 5),
	)
	if err != nil {
		return err
	}

	requestDuration, err := meter.Float64Histogram(
		"catalog_client_request_duration_seconds",
		metric.WithDescription("End-to-end request duration including retries"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return err
	}

	cancellationsTotal, err := meter.Int64Counter(
		"catalog_client_cancellations_total",
		metric.WithDescription("Total generation bumps (bulk cancellations)"),
		metric.WithUnit("{cancellation}"),
	)
	if err != nil {
		return err
	}

	upstreamFetchDuration, err := meter.Float64Histogram(
		"catalog_client_upstream_fetch_duration_seconds",
		metric.WithDescription("Duration of raw HTTP exchanges with the server"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60),
	)
	if err != nil {
		return err
	}

	upstreamFetchTotal, err := meter.Int64Counter(
		"catalog_client_upstream_fetch_total",
		metric.WithDescription("Total raw HTTP exchanges with the server"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	upstreamFetchBytesTotal, err := meter.Int64Counter(
		"catalog_client_upstream_fetch_bytes_total",
		metric.WithDescription("Total bytes read from the server"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	cacheLookupsTotal, err := meter.Int64Counter(
		"catalog_client_cache_lookups_total",
		metric.WithDescription("Cache lookups by tier and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	cacheStoresTotal, err := meter.Int64Counter(
		"catalog_client_cache_stores_total",
		metric.WithDescription("Total entries written to the cache"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	cacheStoreBytesTotal, err := meter.Int64Counter(
		"catalog_client_cache_store_bytes_total",
		metric.WithDescription("Total payload bytes written to the cache"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	cacheEvictionsTotal, err := meter.Int64Counter(
		"catalog_client_cache_evictions_total",
		metric.WithDescription("Entries evicted from the memory tier"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	cacheEvictionBytesTotal, err := meter.Int64Counter(
		"catalog_client_cache_eviction_bytes_total",
		metric.WithDescription("Bytes freed by memory tier eviction"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return err
	}

	cachePurgesTotal, err := meter.Int64Counter(
		"catalog_client_cache_purges_total",
		metric.WithDescription("Namespace purges triggered by server switches"),
		metric.WithUnit("{purge}"),
	)
	if err != nil {
		return err
	}

	sweepDeletedTotal, err := meter.Int64Counter(
		"catalog_client_cache_sweep_deleted_total",
		metric.WithDescription("Durable entries removed by maintenance sweeps"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	sweepDuration, err := meter.Float64Histogram(
		"catalog_client_cache_sweep_duration_seconds",
		metric.WithDescription("Duration of maintenance sweep cycles"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return err
	}

	feedLoadsTotal, err := meter.Int64Counter(
		"catalog_client_feed_loads_total",
		metric.WithDescription("Feed page loads by phase and outcome"),
		metric.WithUnit("{load}"),
	)
	if err != nil {
		return err
	}

	feedItemsTotal, err := meter.Int64Counter(
		"catalog_client_feed_items_total",
		metric.WithDescription("Items accumulated across all feed loads"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return err
	}

	globalMetrics = &Metrics{
		requestsTotal:      requestsTotal,
		requestRetries:     requestRetries,
		requestAttempts:    requestAttempts,
		requestDuration:    requestDuration,
		cancellationsTotal: cancellationsTotal,

		upstreamFetchDuration:   upstreamFetchDuration,
		upstreamFetchTotal:      upstreamFetchTotal,
		upstreamFetchBytesTotal: upstreamFetchBytesTotal,

		cacheLookupsTotal:       cacheLookupsTotal,
		cacheStoresTotal:        cacheStoresTotal,
		cacheStoreBytesTotal:    cacheStoreBytesTotal,
		cacheEvictionsTotal:     cacheEvictionsTotal,
		cacheEvictionBytesTotal: cacheEvictionBytesTotal,
		cachePurgesTotal:        cachePurgesTotal,
		sweepDeletedTotal:       sweepDeletedTotal,
		sweepDuration:           sweepDuration,

		feedLoadsTotal: feedLoadsTotal,
		feedItemsTotal: feedItemsTotal,

		meterProvider: mp,
		promHandler:   promHandler,
	}

	return nil
}

// shutdownMetrics shuts down the metrics provider and clears the global state.
func shutdownMetrics(ctx context.Context) error {
	if globalMetrics == nil {
		return nil
	}
	err := globalMetrics.meterProvider.Shutdown(ctx)
	globalMetrics = nil
	return err
}

// PrometheusHandler returns the Prometheus metrics HTTP handler.
// Returns a handler that returns 404 if Prometheus export is not enabled,
// allowing safe registration regardless of initialization order.
func PrometheusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if globalMetrics == nil || globalMetrics.promHandler == nil {
			http.NotFound(w, r)
			return
		}
		globalMetrics.promHandler.ServeHTTP(w, r)
	})
}

// RecordRequest records a completed dispatch by classified outcome.
func RecordRequest(ctx context.Context, outcome string, attempts int, duration time.Duration) {
	if globalMetrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
	}
	globalMetrics.requestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	globalMetrics.requestAttempts.Record(ctx, int64(attempts), metric.WithAttributes(attrs...))
	globalMetrics.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRequestRetry records one automatic retry of a transient failure.
func RecordRequestRetry(ctx context.Context) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.requestRetries.Add(ctx, 1)
}

// RecordCancellation records a generation bump.
func RecordCancellation(ctx context.Context) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.cancellationsTotal.Add(ctx, 1)
}

// RecordUpstreamFetch records a raw HTTP exchange. component labels the
// caller ("catalog" for query dispatch, "image" for cache fills).
func RecordUpstreamFetch(ctx context.Context, component string, duration time.Duration, bytesRead int64, outcome string) {
	if globalMetrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("component", component),
		attribute.String("outcome", outcome),
	}
	globalMetrics.upstreamFetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	globalMetrics.upstreamFetchTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if bytesRead > 0 {
		globalMetrics.upstreamFetchBytesTotal.Add(ctx, bytesRead, metric.WithAttributes(attrs...))
	}
}

// RecordCacheLookup records a cache lookup. tier is "memory" or
// "durable"; result is "hit" or "miss".
func RecordCacheLookup(ctx context.Context, tier, result string) {
	if globalMetrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("tier", tier),
		attribute.String("result", result),
	}
	globalMetrics.cacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCacheStore records an entry written to both tiers.
func RecordCacheStore(ctx context.Context, bytes int64) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.cacheStoresTotal.Add(ctx, 1)
	globalMetrics.cacheStoreBytesTotal.Add(ctx, bytes)
}

// RecordCacheEviction records entries evicted from the memory tier.
func RecordCacheEviction(ctx context.Context, entries int, bytes int64) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.cacheEvictionsTotal.Add(ctx, int64(entries))
	globalMetrics.cacheEvictionBytesTotal.Add(ctx, bytes)
}

// RecordCachePurge records a namespace purge.
func RecordCachePurge(ctx context.Context) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.cachePurgesTotal.Add(ctx, 1)
}

// RecordSweep records a maintenance sweep cycle.
func RecordSweep(ctx context.Context, deleted int, duration time.Duration) {
	if globalMetrics == nil {
		return
	}
	globalMetrics.sweepDeletedTotal.Add(ctx, int64(deleted))
	globalMetrics.sweepDuration.Record(ctx, duration.Seconds())
}

// RecordFeedLoad records a feed page load. phase is "initial" or
// "more"; outcome is "ok" or "error".
func RecordFeedLoad(ctx context.Context, phase, outcome string, items int) {
	if globalMetrics == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	}
	globalMetrics.feedLoadsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if items > 0 {
		globalMetrics.feedItemsTotal.Add(ctx, int64(items), metric.WithAttributes(attrs...))
	}
}

// noopExporter is a no-op metrics exporter for when no exporters are configured.
type noopExporter struct{}

func (noopExporter) Temporality(_ sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.CumulativeTemporality
}

func (noopExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (noopExporter) Export(_ context.Context, _ *metricdata.ResourceMetrics) error {
	return nil
}

func (noopExporter) ForceFlush(_ context.Context) error {
	return nil
}

func (noopExporter) Shutdown(_ context.Context) error {
	return nil
}
