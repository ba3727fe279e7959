package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ProtocolGRPC},
		{"grpc", ProtocolGRPC},
		{"GRPC", ProtocolGRPC},
		{"http", ProtocolHTTP},
		{"http/protobuf", ProtocolHTTP},
	}
	for _, tt := range tests {
		got, err := ParseProtocol(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseProtocol("thrift")
	assert.Error(t, err)
}

func TestResolveExporter(t *testing.T) {
	s, err := resolveExporter(ExporterConfig{
		Endpoint:         "https://collector:4318/v1/traces",
		Protocol:         "http/protobuf",
		Compression:      "gzip",
		RetryEnabled:     true,
		RetryMaxAttempts: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, ProtocolHTTP, s.protocol)
	assert.True(t, s.url)
	assert.True(t, s.gzip)
	assert.True(t, s.retry)
	require.NotNil(t, s.tls)
	assert.NotEmpty(t, s.traceHTTPOptions())
	assert.NotEmpty(t, s.logHTTPOptions())

	s, err = resolveExporter(ExporterConfig{Endpoint: "collector:4317", Insecure: true, RetryEnabled: true})
	require.NoError(t, err)
	assert.Nil(t, s.tls)
	assert.False(t, s.url)
	assert.False(t, s.retry, "retry needs a positive attempt count")
	assert.NotEmpty(t, s.traceGRPCOptions())
	assert.NotEmpty(t, s.logGRPCOptions())
}

func TestResolveExporter_TLSErrors(t *testing.T) {
	dir := t.TempDir()
	badCA := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	tests := []struct {
		name string
		cfg  ExporterConfig
	}{
		{name: "missing CA file", cfg: ExporterConfig{TLSCertFile: filepath.Join(dir, "missing.pem")}},
		{name: "unparseable CA file", cfg: ExporterConfig{TLSCertFile: badCA}},
		{name: "client cert without key", cfg: ExporterConfig{TLSClientCertFile: badCA}},
		{name: "bad protocol", cfg: ExporterConfig{Protocol: "udp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveExporter(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestSamplerForRatio(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerForRatio(0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerForRatio(1).Description())
	assert.Contains(t, samplerForRatio(0.25).Description(), "ParentBased")
}

func TestNewTracerProvider_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(Config{ServiceName: "test-service", TraceSampleRatio: 1}, sdktrace.WithSyncer(exporter))
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "work")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "work", spans[0].Name)
	assert.NoError(t, tp.Shutdown(context.Background(), discardLogger()))
}

func TestNewTracerProvider_ZeroRatioDropsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp, err := NewTracerProvider(Config{TraceSampleRatio: 0}, sdktrace.WithSyncer(exporter))
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "work")
	span.End()
	assert.Empty(t, exporter.GetSpans())
}

func TestInitTracerProvider_InstallsGlobal(t *testing.T) {
	prev, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		otel.SetTextMapPropagator(prevProp)
	})

	tp, err := InitTracerProvider(Config{
		ServiceName:      "test-service",
		TraceSampleRatio: 1,
		OTLP:             ExporterConfig{Endpoint: "127.0.0.1:4318", Protocol: "http/protobuf", Insecure: true},
	})
	require.NoError(t, err)
	assert.Same(t, tp.provider, otel.GetTracerProvider())
	assert.ElementsMatch(t, []string{"traceparent", "tracestate", "baggage"}, otel.GetTextMapPropagator().Fields())
	assert.NoError(t, tp.Shutdown(context.Background(), discardLogger()))

	_, err = InitTracerProvider(Config{OTLP: ExporterConfig{Protocol: "udp"}})
	assert.Error(t, err)
}

func TestInitLoggerProvider(t *testing.T) {
	for _, protocol := range []string{"grpc", "http/protobuf"} {
		t.Run(protocol, func(t *testing.T) {
			lp, err := InitLoggerProvider(Config{
				ServiceName: "test-service",
				OTLP:        ExporterConfig{Endpoint: "127.0.0.1:4317", Protocol: protocol, Insecure: true},
			})
			require.NoError(t, err)
			require.NotNil(t, lp.Provider())
			assert.NoError(t, lp.Shutdown(context.Background(), discardLogger()))
		})
	}
}

func TestNewLoggerProvider(t *testing.T) {
	lp, err := NewLoggerProvider(Config{ServiceName: "test-service"}, sdklog.NewSimpleProcessor(nopLogExporter{}))
	require.NoError(t, err)
	assert.NotNil(t, lp.Provider())
	assert.NoError(t, lp.Shutdown(context.Background(), discardLogger()))
}

type nopLogExporter struct{}

func (nopLogExporter) Export(context.Context, []sdklog.Record) error { return nil }
func (nopLogExporter) Shutdown(context.Context) error                { return nil }
func (nopLogExporter) ForceFlush(context.Context) error              { return nil }
