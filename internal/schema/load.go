package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load decodes a schema document. JSON documents are accepted as YAML.
// Unknown keys and duplicate mapping keys are rejected.
func Load(r io.Reader) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, &ConfigError{Err: ErrEmptyDocument}
		}
		return Config{}, &ConfigError{
			Message: fmt.Sprintf("%v: %v", ErrInvalidDocument, err),
			Err:     ErrInvalidDocument,
		}
	}
	return cfg, nil
}

// LoadFile reads and decodes the schema document at path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()

	cfg, err := Load(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// BuildFile loads the document at path and builds a registry from it.
func BuildFile(path string, opts ...BuildOption) (*Registry, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return Build(cfg, opts...)
}
