// Package storage persists optimization runs: per-run metadata plus the
// ranked-links artifact, laid out under a local workspace directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

// configKey is the context key for the storage Config.
const configKey contextKey = "storage-config"

// ErrClosed is returned when operating on a closed backend.
var ErrClosed = errors.New("storage backend is closed")

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Config holds storage settings.
type Config struct {
	// WorkspaceRoot is the directory all runs live under.
	WorkspaceRoot string
}

// Validate checks the config for usability.
func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace root must not be empty")
	}
	return nil
}

// DefaultConfig returns the standard workspace location under the user's
// home directory.
func DefaultConfig() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return &Config{
		WorkspaceRoot: filepath.Join(home, ".linktune"),
	}, nil
}

// WithConfig stores the storage config in the context.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFromContext retrieves the storage config from the context, if any.
func ConfigFromContext(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(configKey).(*Config)
	return cfg, ok
}

// RunStore manages run metadata and artifacts.
type RunStore interface {
	// Create writes initial metadata for a new run.
	Create(ctx context.Context, meta *RunMetadata) error

	// Update applies partial updates to an existing run.
	Update(ctx context.Context, runID string, updates RunUpdates) error

	// Get reads a run's metadata.
	Get(ctx context.Context, runID string) (*RunMetadata, error)

	// List returns runs matching the filter, most recent first.
	List(ctx context.Context, filter RunFilter) ([]*RunMetadata, error)

	// WriteArtifact stores a named artifact (e.g. optimized_nodes.txt)
	// inside the run directory.
	WriteArtifact(ctx context.Context, runID, name string, data []byte) error

	// ArtifactPath returns the absolute path an artifact is stored at.
	ArtifactPath(runID, name string) string
}

// Backend is the storage entry point.
type Backend interface {
	// Initialize prepares the backend for use (creates directories, etc.).
	Initialize(ctx context.Context) error

	// Runs returns the run store.
	Runs() RunStore

	// Close releases resources held by the backend.
	Close() error
}

// DefaultFactory builds the default backend; the local file backend
// registers itself here.
var DefaultFactory func(ctx context.Context, cfg *Config) (Backend, error)

// NewBackend creates a backend using the registered default factory.
func NewBackend(ctx context.Context, cfg *Config) (Backend, error) {
	if DefaultFactory == nil {
		return nil, fmt.Errorf("no storage backend factory registered")
	}
	return DefaultFactory(ctx, cfg)
}
