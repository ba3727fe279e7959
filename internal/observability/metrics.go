package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Compile outcomes recorded on compile metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeInternal = "internal_error"
	OutcomeCanceled = "canceled"
)

// CompileMetrics holds metrics for query compilation.
type CompileMetrics struct {
	compileDuration metric.Float64Histogram
	compileCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	joinCount       metric.Int64Histogram
	columnCount     metric.Int64Histogram
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// InitCompileMetrics creates compile metrics on the global meter provider.
func InitCompileMetrics() (*CompileMetrics, error) {
	meter := otel.Meter(meterName)

	compileDuration, err := meter.Float64Histogram(
		"gqljoin.compile.duration",
		metric.WithDescription("Duration of query compilation in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile duration histogram: %w", err)
	}

	compileCounter, err := meter.Int64Counter(
		"gqljoin.compile.total",
		metric.WithDescription("Total number of compile requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"gqljoin.compile.errors.total",
		metric.WithDescription("Total number of failed compile requests by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create compile error counter: %w", err)
	}

	joinCount, err := meter.Int64Histogram(
		"gqljoin.compile.joins",
		metric.WithDescription("Number of LEFT JOIN clauses per compiled statement"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create join count histogram: %w", err)
	}

	columnCount, err := meter.Int64Histogram(
		"gqljoin.compile.columns",
		metric.WithDescription("Number of selected columns per compiled statement"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create column count histogram: %w", err)
	}

	cacheHits, err := meter.Int64Counter(
		"gqljoin.cache.hits",
		metric.WithDescription("Number of compiled statement cache hits"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache hits counter: %w", err)
	}

	cacheMisses, err := meter.Int64Counter(
		"gqljoin.cache.misses",
		metric.WithDescription("Number of compiled statement cache misses"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache misses counter: %w", err)
	}

	return &CompileMetrics{
		compileDuration: compileDuration,
		compileCounter:  compileCounter,
		errorCounter:    errorCounter,
		joinCount:       joinCount,
		columnCount:     columnCount,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}, nil
}

// RecordCompile records one compile request and its outcome.
func (m *CompileMetrics) RecordCompile(ctx context.Context, duration time.Duration, outcome string, cached bool) {
	attrs := []attribute.KeyValue{
		attribute.String("outcome", outcome),
		attribute.Bool("cached", cached),
	}
	m.compileDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))
	m.compileCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordError counts a failed compile by its error code.
func (m *CompileMetrics) RecordError(ctx context.Context, code string) {
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}

// RecordShape records the size of a freshly compiled statement.
func (m *CompileMetrics) RecordShape(ctx context.Context, joins, columns int) {
	m.joinCount.Record(ctx, int64(joins))
	m.columnCount.Record(ctx, int64(columns))
}

// RecordCacheLookup counts a cache hit or miss.
func (m *CompileMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if hit {
		m.cacheHits.Add(ctx, 1)
		return
	}
	m.cacheMisses.Add(ctx, 1)
}
