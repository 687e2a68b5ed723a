package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

// JSONFileBackend keeps the snapshot in one JSON document that is replaced
// atomically: the new content goes to <path>.tmp, is synced, then renamed
// over the canonical file.
type JSONFileBackend struct {
	path   string
	rename func(oldpath, newpath string) error
}

var _ ports.StateBackend = (*JSONFileBackend)(nil)

// NewJSONFileBackend returns a backend rooted at path.
func NewJSONFileBackend(path string) (*JSONFileBackend, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("state file path is empty")
	}
	return &JSONFileBackend{path: path, rename: os.Rename}, nil
}

// Path returns the canonical snapshot location.
func (b *JSONFileBackend) Path() string {
	return b.path
}

// Load returns nil when no snapshot was written yet.
func (b *JSONFileBackend) Load(_ context.Context) (*domain.Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	var snapshot domain.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &domain.CorruptSnapshotError{Err: err}
	}
	return &snapshot, nil
}

// Save writes the full snapshot and atomically replaces the canonical file.
func (b *JSONFileBackend) Save(_ context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("nil snapshot")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if dir := filepath.Dir(b.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := b.path + ".tmp"
	if err := writeSynced(tmp, data); err != nil {
		return err
	}
	if err := b.rename(tmp, b.path); err != nil {
		return fmt.Errorf("replace %s: %w", b.path, err)
	}
	return nil
}

// Close is a no-op for files.
func (b *JSONFileBackend) Close() error {
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
