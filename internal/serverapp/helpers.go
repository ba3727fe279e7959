package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"gqljoin/internal/compilecache"
	"gqljoin/internal/compiler"
	"gqljoin/internal/config"
	"gqljoin/internal/logging"
	"gqljoin/internal/middleware"
	"gqljoin/internal/observability"
	"gqljoin/internal/schemarefresh"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Route paths served by the application.
const (
	compilePath      = "/compile"
	healthPath       = "/health"
	schemaPath       = "/schema"
	schemaReloadPath = "/admin/reload-schema"
	metricsPath      = "/metrics"
)

// InitLogger builds the process logger from configuration and installs it as
// the slog default. When log exports are enabled it also returns the OTLP
// logger provider the records are bridged into; the caller shuts it down
// last.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: os.Stdout,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsOTLP := cfg.Observability.LogsOTLP()
	logger.Info("initializing OpenTelemetry log export",
		slog.String("otlp_endpoint", logsOTLP.Endpoint),
		slog.String("otlp_protocol", logsOTLP.Protocol),
		slog.Bool("insecure", logsOTLP.Insecure),
	)
	loggerProvider, err := observability.InitLoggerProvider(telemetryConfig(cfg, logsOTLP))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize log export: %w", err)
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)
	return logger, loggerProvider, nil
}

func telemetryConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLP: observability.ExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesOTLP := cfg.Observability.TracesOTLP()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesOTLP.Endpoint),
		slog.String("otlp_protocol", tracesOTLP.Protocol),
		slog.Bool("insecure", tracesOTLP.Insecure),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)
	tracerProvider, err := observability.InitTracerProvider(telemetryConfig(cfg, tracesOTLP))
	if err != nil {
		return nil, err
	}
	logger.Info("OpenTelemetry tracing initialized successfully")
	return tracerProvider, nil
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.CompileMetrics, *observability.SchemaRefreshMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return nil, nil, nil, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("service_version", cfg.Observability.ServiceVersion),
		slog.String("environment", cfg.Observability.Environment),
	)

	meterProvider, err := observability.InitMeterProvider(observability.Config{
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Environment:    cfg.Observability.Environment,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	compileMetrics, err := observability.InitCompileMetrics()
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, nil, err
	}

	schemaRefreshMetrics, err := observability.InitSchemaRefreshMetrics(logger.Logger)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, nil, err
	}

	logger.Info("OpenTelemetry metrics initialized successfully")
	return meterProvider, compileMetrics, schemaRefreshMetrics, nil
}

func startSchemaManager(ctx context.Context, cfg *config.Config, logger *logging.Logger, metrics *observability.SchemaRefreshMetrics) (*schemarefresh.Manager, context.CancelFunc, error) {
	manager, err := schemarefresh.NewManager(schemarefresh.Config{
		Path:        cfg.Schema.File,
		Naming:      cfg.Naming,
		Logger:      logger,
		Metrics:     metrics,
		MinInterval: cfg.Schema.RefreshMinInterval,
		MaxInterval: cfg.Schema.RefreshMaxInterval,
	})
	if err != nil {
		return nil, nil, err
	}

	schemaCtx, cancel := context.WithCancel(ctx)
	manager.Start(schemaCtx)
	return manager, cancel, nil
}

func buildCompiler(cfg *config.Config, logger *logging.Logger, source compiler.RegistrySource, cache *compilecache.Cache, metrics *observability.CompileMetrics) (*compiler.Compiler, error) {
	limits := cfg.Compiler.Limits()
	logger.Info("compiler configured",
		slog.Int("max_depth", limits.MaxDepth),
		slog.Int("max_joins", limits.MaxJoins),
		slog.Int("cache_size", cfg.Compiler.CacheSize),
	)
	return compiler.New(compiler.Config{
		Source:  source,
		Limits:  limits,
		Cache:   cache,
		Metrics: metrics,
		Logger:  logger,
	})
}

func buildRouter(cfg *config.Config, logger *logging.Logger, manager *schemarefresh.Manager, comp *compiler.Compiler, meterProvider *observability.MeterProvider) (chi.Router, error) {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.LoggingMiddleware(logger))
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrorDetail{
			Code:    "not_found",
			Message: "no such endpoint",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, middleware.ErrorDetail{
			Code:    "method_not_allowed",
			Message: "method not allowed",
		})
	})

	auth := cfg.Server.Auth
	compileAuth, err := middleware.OIDCAuthMiddleware(middleware.OIDCAuthConfig{
		Enabled:       auth.OIDCEnabled,
		IssuerURL:     auth.OIDCIssuerURL,
		Audience:      auth.OIDCAudience,
		ClockSkew:     auth.OIDCClockSkew,
		CAFile:        auth.OIDCCAFile,
		SkipTLSVerify: auth.OIDCSkipTLSVerify,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("compile endpoint auth: %w", err)
	}
	if auth.OIDCEnabled {
		logger.Info("OIDC authentication enabled for compile endpoint",
			slog.String("issuer", auth.OIDCIssuerURL),
			slog.String("audience", auth.OIDCAudience),
		)
	}

	compile := compileHandler(comp, cfg.Compiler.MaxBodyBytes)
	r.With(compileAuth).Get(compilePath, compile)
	r.With(compileAuth).Post(compilePath, compile)
	r.Get(healthPath, healthHandler(manager))
	r.Get(schemaPath, schemaHandler(manager))

	if cfg.Server.Admin.SchemaReloadEnabled {
		adminAuth, err := middleware.AdminTokenAuthMiddleware(middleware.AdminTokenAuthConfig{
			Token: cfg.Server.Admin.AuthToken,
		})
		if err != nil {
			return nil, fmt.Errorf("schema reload endpoint: %w", err)
		}
		r.With(adminAuth).Post(schemaReloadPath, schemaReloadHandler(manager, comp))
		logger.Info("admin schema reload endpoint enabled", slog.String("path", schemaReloadPath))
	}

	if cfg.Observability.MetricsEnabled && meterProvider != nil {
		r.Handle(metricsPath, meterProvider.Handler())
	}

	return r, nil
}

func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, handler http.Handler) http.Handler {
	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		handler = otelhttp.NewHandler(handler, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRouteName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	if cfg.Server.CORSEnabled {
		handler = middleware.CORSMiddleware(middleware.CORSConfig{
			Enabled:          cfg.Server.CORSEnabled,
			AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
			AllowedMethods:   cfg.Server.CORSAllowedMethods,
			AllowedHeaders:   cfg.Server.CORSAllowedHeaders,
			ExposeHeaders:    cfg.Server.CORSExposeHeaders,
			AllowCredentials: cfg.Server.CORSAllowCredentials,
			MaxAge:           cfg.Server.CORSMaxAge,
		})(handler)
	}

	if cfg.Server.RateLimitEnabled {
		handler = middleware.RateLimitMiddleware(middleware.RateLimitConfig{
			Enabled: cfg.Server.RateLimitEnabled,
			RPS:     cfg.Server.RateLimitRPS,
			Burst:   cfg.Server.RateLimitBurst,
		})(handler)
	}

	return handler
}

// httpRouteName keeps span names bounded to the known routes.
func httpRouteName(r *http.Request) string {
	switch path := strings.TrimSuffix(r.URL.Path, "/"); path {
	case compilePath, healthPath, schemaPath, schemaReloadPath, metricsPath:
		return r.Method + " " + path
	default:
		return r.Method + " other"
	}
}

func buildServer(cfg *config.Config, handler http.Handler, serverAddr string) *http.Server {
	return &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	go func() {
		logAttrs := []any{
			slog.String("address", serverAddr),
			slog.String("compile_endpoint", compilePath),
			slog.String("health_endpoint", healthPath),
			slog.String("schema_file", cfg.Schema.File),
			slog.String("log_level", cfg.Observability.Logging.Level),
			slog.String("log_format", cfg.Observability.Logging.Format),
			slog.Bool("tracing_enabled", cfg.Observability.TracingEnabled),
			slog.Bool("oidc_enabled", cfg.Server.Auth.OIDCEnabled),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", metricsPath))
		}
		if cfg.Server.RateLimitEnabled {
			logAttrs = append(logAttrs,
				slog.Float64("rate_limit_rps", cfg.Server.RateLimitRPS),
				slog.Int("rate_limit_burst", cfg.Server.RateLimitBurst),
			)
		}
		logger.Info("server starting", logAttrs...)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}
