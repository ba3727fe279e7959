package serverapp

import (
	"context"
	"fmt"
	"log/slog"

	"gqljoin/internal/compilecache"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			_ = cleanup.run(context.Background(), a.logger)
		}
	}()

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, compileMetrics, schemaRefreshMetrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	a.logger.Info("loading schema document", slog.String("path", a.cfg.Schema.File))
	manager, schemaCancel, err := startSchemaManager(ctx, a.cfg, a.logger, schemaRefreshMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize schema refresh manager: %w", err)
	}
	cleanup.push("schema manager", func(shutdownCtx context.Context) error {
		schemaCancel()
		return manager.Wait(shutdownCtx)
	})

	cache, err := compilecache.New(a.cfg.Compiler.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize compile cache: %w", err)
	}

	comp, err := buildCompiler(a.cfg, a.logger, manager, cache, compileMetrics)
	if err != nil {
		return fmt.Errorf("failed to initialize compiler: %w", err)
	}

	router, err := buildRouter(a.cfg, a.logger, manager, comp, meterProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}
	handler := wrapHTTPHandler(a.cfg, a.logger, router)

	serverAddr := fmt.Sprintf(":%d", a.cfg.Server.Port)
	srv := buildServer(a.cfg, handler, serverAddr)
	cleanup.push("HTTP server", func(shutdownCtx context.Context) error {
		return srv.Shutdown(shutdownCtx)
	})

	a.stateMu.Lock()
	a.tracerProvider = tracerProvider
	a.meterProvider = meterProvider
	a.compileMetrics = compileMetrics
	a.schemaRefreshMetrics = schemaRefreshMetrics
	a.manager = manager
	a.schemaCancel = schemaCancel
	a.compiler = comp
	a.handler = handler
	a.serverAddr = serverAddr
	a.srv = srv
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
