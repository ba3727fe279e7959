package serverapp

import (
	"context"
	"fmt"
)

// Stop reasons returned by WaitForStop.
const (
	StopReasonSignal      = "signal"
	StopReasonServerError = "server_error"
)

// Start launches the HTTP server goroutine. It requires Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
	a.started = true
	return a.serverErrors, nil
}

// WaitForStop blocks until stopCtx is done (typically from
// signal.NotifyContext) or the server reports an error. A nil serverErrors
// falls back to the channel returned by Start.
func (a *App) WaitForStop(stopCtx context.Context, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stopCtx == nil && serverErrors == nil {
		return "", fmt.Errorf("neither a stop context nor a server error channel was provided")
	}

	var done <-chan struct{}
	if stopCtx != nil {
		done = stopCtx.Done()
	}

	select {
	case err := <-serverErrors:
		if err == nil {
			return StopReasonServerError, fmt.Errorf("server stopped unexpectedly")
		}
		return StopReasonServerError, err
	case <-done:
		a.logger.Info("received shutdown signal")
		return StopReasonSignal, nil
	}
}
