package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestBuildStateBackendFromDSN(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fileBackend, err := BuildStateBackendFromDSN(ctx, "file:"+filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("file dsn: %v", err)
	}
	if jb, ok := fileBackend.(*JSONFileBackend); !ok || jb.Path() != filepath.Join(dir, "state.json") {
		t.Fatalf("unexpected file backend: %#v", fileBackend)
	}

	bare, err := BuildStateBackendFromDSN(ctx, filepath.Join(dir, "bare.json"))
	if err != nil {
		t.Fatalf("bare path: %v", err)
	}
	if _, ok := bare.(*JSONFileBackend); !ok {
		t.Fatalf("expected json backend for bare path, got %T", bare)
	}

	mem, err := BuildStateBackendFromDSN(ctx, "memory:")
	if err != nil {
		t.Fatalf("memory dsn: %v", err)
	}
	if _, ok := mem.(*MemoryBackend); !ok {
		t.Fatalf("expected memory backend, got %T", mem)
	}

	lite, err := BuildStateBackendFromDSN(ctx, "sqlite:"+filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("sqlite dsn: %v", err)
	}
	defer lite.Close()
	if _, ok := lite.(*SQLBackend); !ok {
		t.Fatalf("expected sql backend, got %T", lite)
	}

	if _, err := BuildStateBackendFromDSN(ctx, "redis://localhost"); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := BuildStateBackendFromDSN(ctx, "  "); err == nil {
		t.Fatalf("expected empty dsn error")
	}
}
