package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RefreshOutcome describes one attempt to rebuild the schema registry.
type RefreshOutcome struct {
	Trigger  string
	Duration time.Duration
	Failed   bool
	// Changed is set when the published fingerprint differs from the previous one.
	Changed bool
}

// SchemaRefreshMetrics tracks schema reloads. A nil *SchemaRefreshMetrics
// records nothing.
type SchemaRefreshMetrics struct {
	attempts metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram

	lastSuccess atomic.Int64
	types       atomic.Int64
}

// InitSchemaRefreshMetrics registers the schema refresh instruments on the
// global meter provider.
func InitSchemaRefreshMetrics(logger *slog.Logger) (*SchemaRefreshMetrics, error) {
	meter := otel.Meter(meterName)
	m := &SchemaRefreshMetrics{}

	var err error
	if m.attempts, err = meter.Int64Counter("gqljoin.schema.refresh.total",
		metric.WithDescription("Schema refresh attempts")); err != nil {
		return nil, fmt.Errorf("schema refresh counter: %w", err)
	}
	if m.failures, err = meter.Int64Counter("gqljoin.schema.refresh.errors.total",
		metric.WithDescription("Schema refresh attempts that kept the previous registry")); err != nil {
		return nil, fmt.Errorf("schema refresh error counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("gqljoin.schema.refresh.duration",
		metric.WithDescription("Time spent reading and building the schema"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("schema refresh duration histogram: %w", err)
	}

	lastSuccess, err := meter.Int64ObservableGauge("gqljoin.schema.last_success_unix",
		metric.WithDescription("Unix time of the last successful schema refresh"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("schema last success gauge: %w", err)
	}
	types, err := meter.Int64ObservableGauge("gqljoin.schema.types",
		metric.WithDescription("Mapped types in the published registry"))
	if err != nil {
		return nil, fmt.Errorf("schema type gauge: %w", err)
	}

	// Gauges stay silent until a registry has been published.
	observe := func(_ context.Context, o metric.Observer) error {
		if v := m.lastSuccess.Load(); v > 0 {
			o.ObserveInt64(lastSuccess, v)
		}
		if v := m.types.Load(); v > 0 {
			o.ObserveInt64(types, v)
		}
		return nil
	}
	if _, err := meter.RegisterCallback(observe, lastSuccess, types); err != nil {
		return nil, fmt.Errorf("schema gauge callback: %w", err)
	}

	logger.Debug("schema refresh metrics registered")
	return m, nil
}

// RecordRefresh records one refresh attempt.
func (m *SchemaRefreshMetrics) RecordRefresh(ctx context.Context, outcome RefreshOutcome) {
	if m == nil {
		return
	}
	trigger := attribute.String("trigger", outcome.Trigger)
	attrs := metric.WithAttributes(
		trigger,
		attribute.Bool("success", !outcome.Failed),
		attribute.Bool("changed", outcome.Changed),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(outcome.Duration)/float64(time.Millisecond), attrs)

	if outcome.Failed {
		m.failures.Add(ctx, 1, metric.WithAttributes(trigger))
		return
	}
	m.lastSuccess.Store(time.Now().Unix())
}

// SetTypeCount records the size of the published registry.
func (m *SchemaRefreshMetrics) SetTypeCount(n int) {
	if m == nil {
		return
	}
	m.types.Store(int64(n))
}
