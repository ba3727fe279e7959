package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gqljoin/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run invokes every cleanup function even when earlier ones fail and
// returns the joined failures.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		start := time.Now()
		err := item.fn(ctx)
		if logger == nil {
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
			}
			continue
		}
		if err != nil {
			logger.Warn("cleanup error",
				slog.String("component", item.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
			continue
		}
		logger.Info("released "+item.name, slog.Duration("duration", time.Since(start)))
	}
	return errors.Join(errs...)
}

// Shutdown releases every acquired resource. Only the first call does any
// work; later calls return the first call's result.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var shutdownErr error
	ran := false
	a.shutdownOnce.Do(func() {
		ran = true
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.cleanup = cleanupStack{}
		a.started = false
		a.stateMu.Unlock()

		shutdownErr = cleanup.run(ctx, a.logger)
		a.stateMu.Lock()
		a.shutdownErr = shutdownErr
		a.stateMu.Unlock()
	})
	if ran {
		return shutdownErr
	}

	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.shutdownErr
}
