package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"BananaBot/internal/config"
)

func TestNewFlushesTelemetryWhenStateBackendFails(t *testing.T) {
	shutdowns := 0
	original := setupTelemetry
	setupTelemetry = func(context.Context, *slog.Logger, config.ObservabilityConfig) (func(context.Context) error, error) {
		return func(context.Context) error {
			shutdowns++
			return nil
		}, nil
	}
	t.Cleanup(func() { setupTelemetry = original })

	cfg := config.Config{State: config.StateConfig{DSN: "redis://localhost/0"}}
	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err == nil || !strings.Contains(err.Error(), "state backend") {
		t.Fatalf("expected state backend error, got %v", err)
	}
	if shutdowns != 1 {
		t.Fatalf("telemetry shutdown called %d times, want 1", shutdowns)
	}
}
