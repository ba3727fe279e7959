// Package schemarefresh loads the schema document into registry snapshots
// and republishes them when the file changes.
package schemarefresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"gqljoin/internal/logging"
	"gqljoin/internal/naming"
	"gqljoin/internal/observability"
	"gqljoin/internal/schema"
)

// Refresh triggers recorded on metrics.
const (
	TriggerStartup = "startup"
	TriggerPoll    = "poll"
	TriggerManual  = "manual"
)

// Snapshot contains an immutable view of the current schema state.
type Snapshot struct {
	Registry *schema.Registry
	Path     string
	// SourceHash is the SHA-256 of the raw document bytes.
	SourceHash  string
	Fingerprint string
	BuiltAt     time.Time
}

// Config controls schema refresh behavior.
type Config struct {
	Path    string
	Naming  naming.Config
	Logger  *logging.Logger
	Metrics *observability.SchemaRefreshMetrics
	// MinInterval <= 0 disables polling; RefreshNow still works.
	MinInterval time.Duration
	MaxInterval time.Duration
}

// Manager maintains and refreshes registry snapshots.
type Manager struct {
	path        string
	naming      naming.Config
	logger      *logging.Logger
	metrics     *observability.SchemaRefreshMetrics
	minInterval time.Duration
	maxInterval time.Duration
	active      atomic.Pointer[Snapshot]
	refreshMu   sync.Mutex
	wg          sync.WaitGroup
}

// NewManager builds the initial snapshot and returns a manager. A schema
// document that fails to build at startup is fatal.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Path == "" {
		return nil, errors.New("schema refresh manager requires a schema file path")
	}
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}

	maxInterval := cfg.MaxInterval
	if maxInterval < cfg.MinInterval {
		maxInterval = cfg.MinInterval
	}

	manager := &Manager{
		path:        cfg.Path,
		naming:      cfg.Naming,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:     cfg.Metrics,
		minInterval: cfg.MinInterval,
		maxInterval: maxInterval,
	}

	start := time.Now()
	snapshot, err := manager.build()
	if err != nil {
		manager.recordRefresh(time.Since(start), false, false, TriggerStartup)
		return nil, err
	}
	manager.publish(snapshot)
	manager.recordRefresh(time.Since(start), true, true, TriggerStartup)
	manager.logger.Info("schema loaded",
		slog.String("path", snapshot.Path),
		slog.Int("types", len(snapshot.Registry.TypeNames())),
		slog.String("fingerprint", snapshot.Fingerprint),
	)

	return manager, nil
}

// Start begins the background refresh loop.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval <= 0 {
		m.logger.Info("schema refresh disabled")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// CurrentSnapshot returns the active snapshot.
func (m *Manager) CurrentSnapshot() *Snapshot {
	return m.active.Load()
}

// Registry returns the active registry.
func (m *Manager) Registry() *schema.Registry {
	if snapshot := m.active.Load(); snapshot != nil {
		return snapshot.Registry
	}
	return nil
}

// RefreshNow rebuilds the registry from disk and swaps it in. On failure the
// previous snapshot stays active.
func (m *Manager) RefreshNow(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	snapshot, err := m.build()
	if err != nil {
		m.recordRefresh(time.Since(start), false, false, TriggerManual)
		m.logger.Warn("manual schema refresh failed", slog.String("error", err.Error()))
		return nil, err
	}

	changed := m.publish(snapshot)
	m.recordRefresh(time.Since(start), true, changed, TriggerManual)
	m.logger.Info("manual schema refresh complete",
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Bool("changed", changed),
	)
	return snapshot, nil
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			interval = m.refreshOnce(interval)
			timer.Reset(interval)
		}
	}
}

// refreshOnce polls the schema file and returns the next polling interval.
// Unchanged files back off toward maxInterval; changes and failures reset it.
func (m *Manager) refreshOnce(interval time.Duration) time.Duration {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	data, err := os.ReadFile(m.path)
	if err != nil {
		m.logger.Warn("schema file check failed", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, false, TriggerPoll)
		return m.minInterval
	}

	current := m.active.Load()
	if current != nil && sourceHash(data) == current.SourceHash {
		m.recordRefresh(time.Since(start), true, false, TriggerPoll)
		return nextInterval(interval, m.minInterval, m.maxInterval)
	}

	m.logger.Info("schema file changed, rebuilding", slog.String("path", m.path))
	snapshot, err := buildFromBytes(m.snapshotConfig(), data)
	if err != nil {
		m.logger.Error("failed to rebuild schema", slog.String("error", err.Error()))
		m.recordRefresh(time.Since(start), false, false, TriggerPoll)
		return m.minInterval
	}

	changed := m.publish(snapshot)
	m.recordRefresh(time.Since(start), true, changed, TriggerPoll)
	m.logger.Info("schema refresh complete",
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Bool("changed", changed),
	)
	return m.minInterval
}

func (m *Manager) build() (*Snapshot, error) {
	snapshot, err := BuildSnapshot(m.snapshotConfig())
	if err != nil {
		return nil, fmt.Errorf("schema refresh: %w", err)
	}
	return snapshot, nil
}

func (m *Manager) snapshotConfig() BuildSnapshotConfig {
	return BuildSnapshotConfig{
		Path:   m.path,
		Naming: m.naming,
		Logger: m.logger.Logger,
	}
}

// publish stores snapshot and reports whether its registry differs from the
// one it replaces.
func (m *Manager) publish(snapshot *Snapshot) bool {
	previous := m.active.Swap(snapshot)
	m.metrics.SetTypeCount(len(snapshot.Registry.TypeNames()))
	return previous == nil || previous.Fingerprint != snapshot.Fingerprint
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}

func (m *Manager) recordRefresh(duration time.Duration, success, changed bool, trigger string) {
	m.metrics.RecordRefresh(context.Background(), observability.RefreshOutcome{
		Trigger:  trigger,
		Duration: duration,
		Failed:   !success,
		Changed:  changed,
	})
}
