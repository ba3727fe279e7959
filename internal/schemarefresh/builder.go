package schemarefresh

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gqljoin/internal/naming"
	"gqljoin/internal/schema"
)

// BuildSnapshotConfig defines inputs for building one registry snapshot.
type BuildSnapshotConfig struct {
	Path   string
	Naming naming.Config
	Logger *slog.Logger
}

// BuildSnapshot reads the schema document at cfg.Path and builds an
// immutable registry from it.
func BuildSnapshot(cfg BuildSnapshotConfig) (*Snapshot, error) {
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", cfg.Path, err)
	}
	return buildFromBytes(cfg, data)
}

func buildFromBytes(cfg BuildSnapshotConfig, data []byte) (*Snapshot, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	doc, err := schema.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file %s: %w", cfg.Path, err)
	}

	registry, err := schema.Build(doc,
		schema.WithNamer(naming.New(cfg.Naming, logger)),
		schema.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema from %s: %w", cfg.Path, err)
	}

	return &Snapshot{
		Registry:    registry,
		Path:        cfg.Path,
		SourceHash:  sourceHash(data),
		Fingerprint: registry.Fingerprint(),
		BuiltAt:     time.Now(),
	}, nil
}

func sourceHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
