// Package compiler compiles request text against the current schema
// registry, caching results per registry fingerprint.
package compiler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gqljoin/internal/compilecache"
	"gqljoin/internal/gqlrequest"
	"gqljoin/internal/logging"
	"gqljoin/internal/observability"
	"gqljoin/internal/planner"
	"gqljoin/internal/schema"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "gqljoin/compiler"

// RegistrySource supplies the registry to compile against.
type RegistrySource interface {
	Registry() *schema.Registry
}

// StaticRegistry serves one fixed registry.
type StaticRegistry struct {
	Reg *schema.Registry
}

// Registry implements RegistrySource.
func (s StaticRegistry) Registry() *schema.Registry { return s.Reg }

// Config holds compiler dependencies.
type Config struct {
	Source  RegistrySource
	Limits  planner.Limits
	Cache   *compilecache.Cache
	Metrics *observability.CompileMetrics
	Logger  *logging.Logger
	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// Compiler compiles GraphQL operations to SQL. It is safe for concurrent use.
type Compiler struct {
	source  RegistrySource
	limits  planner.Limits
	cache   *compilecache.Cache
	metrics *observability.CompileMetrics
	logger  *logging.Logger
	tracer  trace.Tracer
}

// Result is the outcome of one successful compile.
type Result struct {
	Query         *planner.CompiledQuery
	Analysis      *gqlrequest.Analysis
	Fingerprint   string
	Cached        bool
	OperationHash string
}

// New returns a compiler.
func New(cfg Config) (*Compiler, error) {
	if cfg.Source == nil {
		return nil, errors.New("compiler requires a registry source")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	return &Compiler{
		source:  cfg.Source,
		limits:  cfg.Limits,
		cache:   cfg.Cache,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.WithFields(slog.String("component", "compiler")),
		tracer:  cfg.Tracer,
	}, nil
}

// Limits returns the limits applied to every compile.
func (c *Compiler) Limits() planner.Limits { return c.limits }

// CacheStats reports cache usage. A disabled cache reports zeros.
func (c *Compiler) CacheStats() compilecache.Stats { return c.cache.Stats() }

// PurgeCache drops every cached statement.
func (c *Compiler) PurgeCache() { c.cache.Purge() }

// Compile parses query, selects operationName (which may be empty) and
// compiles it against the current registry.
func (c *Compiler) Compile(ctx context.Context, query, operationName string) (*Result, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "compile",
		trace.WithAttributes(attribute.String("graphql.operation.name", operationName)))
	defer span.End()
	logger := c.logger
	if requestID := logging.GetRequestID(ctx); requestID != "" {
		logger = logger.WithRequestID(requestID)
	}

	result, err := c.compile(ctx, query, operationName)
	if err != nil {
		info := Classify(err)
		span.SetAttributes(attribute.String("gqljoin.error_code", info.Code))
		span.SetStatus(codes.Error, info.Code)
		if info.Internal {
			span.RecordError(err)
		}
		c.recordFailure(ctx, time.Since(start), info)
		level := slog.LevelDebug
		if info.Internal {
			level = slog.LevelError
		}
		logger.Log(ctx, level, "compile failed",
			slog.String("code", info.Code),
			slog.String("operation", operationName),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("gqljoin.operation_hash", result.OperationHash),
		attribute.Bool("gqljoin.cached", result.Cached),
		attribute.Int("gqljoin.joins", len(result.Query.Joins)),
		attribute.Int("gqljoin.columns", len(result.Query.Columns)),
	)
	if c.metrics != nil {
		c.metrics.RecordCompile(ctx, time.Since(start), observability.OutcomeSuccess, result.Cached)
		if !result.Cached {
			c.metrics.RecordShape(ctx, len(result.Query.Joins), len(result.Query.Columns))
		}
	}
	logger.Debug("compiled query",
		slog.String("operation", result.Query.OperationName),
		slog.String("operation_hash", result.OperationHash),
		slog.Bool("cached", result.Cached),
		slog.Int("joins", len(result.Query.Joins)),
		slog.Int("columns", len(result.Query.Columns)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func (c *Compiler) compile(ctx context.Context, query, operationName string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reg := c.source.Registry()
	if reg == nil {
		return nil, ErrSchemaNotReady
	}

	analysis, err := gqlrequest.Analyze(query, operationName)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Analysis:      analysis,
		Fingerprint:   reg.Fingerprint(),
		OperationHash: analysis.OperationHash,
	}

	// Documents without a single selected operation are not cached; the
	// planner reports why.
	cacheable := c.cache != nil && analysis.SelectionError == nil && analysis.OperationHash != ""
	key := compilecache.Key{
		Fingerprint:   result.Fingerprint,
		OperationHash: analysis.OperationHash,
		Limits:        c.limits,
	}
	if cacheable {
		cached, ok := c.cache.Get(key)
		if c.metrics != nil {
			c.metrics.RecordCacheLookup(ctx, ok)
		}
		if ok {
			result.Query = cached
			result.Cached = true
			return result, nil
		}
	}

	compiled, err := planner.Compile(reg, analysis.Document,
		planner.WithOperationName(operationName),
		planner.WithLimits(c.limits),
	)
	if err != nil {
		return nil, err
	}
	if cacheable {
		c.cache.Add(key, compiled)
	}
	result.Query = compiled
	return result, nil
}

func (c *Compiler) recordFailure(ctx context.Context, duration time.Duration, info ErrorInfo) {
	if c.metrics == nil {
		return
	}
	outcome := observability.OutcomeRejected
	switch {
	case info.Internal:
		outcome = observability.OutcomeInternal
	case info.Code == CodeCanceled || info.Code == CodeTimeout:
		outcome = observability.OutcomeCanceled
	}
	c.metrics.RecordCompile(ctx, duration, outcome, false)
	c.metrics.RecordError(ctx, info.Code)
}
