package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

func init() {
	// Register LocalBackend as the default factory
	DefaultFactory = func(ctx context.Context, cfg *Config) (Backend, error) {
		return NewLocalBackend(ctx, cfg)
	}
}

// LocalBackend implements Backend using file-based storage.
//
// Storage layout:
//
//	{workspace}/
//	  runs/
//	    {run-id}/
//	      metadata.json
//	      optimized_nodes.txt
//
// Thread-safety: metadata writes are protected by per-run file locks for
// concurrent access.
type LocalBackend struct {
	cfg      *Config
	runStore *LocalRunStore
	mu       sync.RWMutex
	closed   bool
}

// NewLocalBackend creates a new file-based backend.
func NewLocalBackend(ctx context.Context, cfg *Config) (*LocalBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &LocalBackend{
		cfg: cfg,
		runStore: &LocalRunStore{
			root: filepath.Join(cfg.WorkspaceRoot, "runs"),
		},
	}, nil
}

// Initialize prepares the backend for use.
func (b *LocalBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	if err := os.MkdirAll(b.runStore.root, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", b.runStore.root, err)
	}
	return nil
}

// Runs returns the run store.
func (b *LocalBackend) Runs() RunStore {
	return b.runStore
}

// Close releases resources held by the backend.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// LocalRunStore persists run metadata and artifacts under root.
type LocalRunStore struct {
	root string
}

func (s *LocalRunStore) runDir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *LocalRunStore) metadataPath(runID string) string {
	return filepath.Join(s.runDir(runID), "metadata.json")
}

// ArtifactPath returns the absolute path an artifact is stored at.
func (s *LocalRunStore) ArtifactPath(runID, name string) string {
	return filepath.Join(s.runDir(runID), name)
}

// Create writes initial metadata for a new run.
func (s *LocalRunStore) Create(ctx context.Context, meta *RunMetadata) error {
	if meta.ID == "" {
		return fmt.Errorf("run metadata requires an ID")
	}

	if err := os.MkdirAll(s.runDir(meta.ID), 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	now := time.Now().UTC()
	meta.CreatedAt = now
	meta.UpdatedAt = now

	return s.writeMetadata(meta.ID, meta)
}

// Update applies partial updates to an existing run.
func (s *LocalRunStore) Update(ctx context.Context, runID string, updates RunUpdates) error {
	meta, err := s.Get(ctx, runID)
	if err != nil {
		return err
	}

	if updates.Status != nil {
		meta.Status = *updates.Status
	}
	if updates.CompletedAt != nil {
		meta.CompletedAt = updates.CompletedAt.UTC()
	}
	if updates.Duration != nil {
		meta.Duration = *updates.Duration
	}
	if updates.CandidateCount != nil {
		meta.CandidateCount = *updates.CandidateCount
	}
	if updates.ReachableCount != nil {
		meta.ReachableCount = *updates.ReachableCount
	}
	if updates.ErrorMessage != nil {
		meta.ErrorMessage = *updates.ErrorMessage
	}
	meta.UpdatedAt = time.Now().UTC()

	return s.writeMetadata(runID, meta)
}

// Get reads a run's metadata.
func (s *LocalRunStore) Get(ctx context.Context, runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(s.metadataPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read run metadata: %w", err)
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode run metadata: %w", err)
	}
	return &meta, nil
}

// List returns runs matching the filter, most recent first.
func (s *LocalRunStore) List(ctx context.Context, filter RunFilter) ([]*RunMetadata, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs directory: %w", err)
	}

	var runs []*RunMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Get(ctx, entry.Name())
		if err != nil {
			// A half-written run directory is skipped, not fatal.
			continue
		}
		if filter.Status != "" && meta.Status != filter.Status {
			continue
		}
		runs = append(runs, meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}
	return runs, nil
}

// WriteArtifact stores a named artifact inside the run directory.
func (s *LocalRunStore) WriteArtifact(ctx context.Context, runID, name string, data []byte) error {
	dir := s.runDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	return nil
}

// writeMetadata serializes metadata under a file lock so concurrent updates
// to the same run never interleave.
func (s *LocalRunStore) writeMetadata(runID string, meta *RunMetadata) error {
	path := s.metadataPath(runID)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock run metadata: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run metadata: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write run metadata: %w", err)
	}
	return nil
}
