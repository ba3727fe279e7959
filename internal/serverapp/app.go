package serverapp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"gqljoin/internal/compiler"
	"gqljoin/internal/config"
	"gqljoin/internal/logging"
	"gqljoin/internal/observability"
	"gqljoin/internal/schemarefresh"
)

// App owns runtime resources for the gqljoin server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	tracerProvider       *observability.TracerProvider
	meterProvider        *observability.MeterProvider
	compileMetrics       *observability.CompileMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics

	manager      *schemarefresh.Manager
	schemaCancel context.CancelFunc
	compiler     *compiler.Compiler

	handler http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Handler returns the fully wrapped HTTP handler, or nil before Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
