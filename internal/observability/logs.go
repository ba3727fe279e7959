package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// LoggerProvider owns the SDK logger provider that slog records are bridged
// into.
type LoggerProvider struct {
	provider *sdklog.LoggerProvider
}

// InitLoggerProvider builds a batching logger provider that exports over
// OTLP.
func InitLoggerProvider(cfg Config) (*LoggerProvider, error) {
	settings, err := resolveExporter(cfg.OTLP)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	var exporter sdklog.Exporter
	switch settings.protocol {
	case ProtocolGRPC:
		exporter, err = otlploggrpc.New(ctx, settings.logGRPCOptions()...)
	case ProtocolHTTP:
		exporter, err = otlploghttp.New(ctx, settings.logHTTPOptions()...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}
	return NewLoggerProvider(cfg, sdklog.NewBatchProcessor(exporter))
}

// NewLoggerProvider builds a logger provider with the service resource that
// feeds processor.
func NewLoggerProvider(cfg Config, processor sdklog.Processor) (*LoggerProvider, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}
	return &LoggerProvider{provider: sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(processor),
	)}, nil
}

// Provider returns the SDK provider for the slog bridge.
func (lp *LoggerProvider) Provider() *sdklog.LoggerProvider {
	return lp.provider
}

// Shutdown flushes pending records and stops the provider. logger must not
// write through this provider.
func (lp *LoggerProvider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := lp.provider.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown logger provider", slog.String("error", err.Error()))
		return err
	}
	logger.Debug("logger provider stopped")
	return nil
}
