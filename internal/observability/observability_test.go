package observability

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"BananaBot/internal/config"
	"BananaBot/internal/domain"
)

func TestWrapSlogHandlerAddsJobIdentifiers(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(WrapSlogHandler(slog.NewTextHandler(&buf, nil)))

	ctx := WithJob(context.Background(), "run-7", "c1", "alice")
	log.InfoContext(ctx, "stage finished")

	out := buf.String()
	if !strings.Contains(out, "run_id=run-7") || !strings.Contains(out, "event_id=c1") {
		t.Fatalf("expected job identifiers in %q", out)
	}
	if tenant, ok := TenantFromContext(ctx); !ok || tenant != "alice" {
		t.Fatalf("unexpected tenant %q", tenant)
	}
}

func TestSpansWithoutProviderAreSafe(t *testing.T) {
	t.Parallel()

	ctx, job := StartJobSpan(context.Background(), "run-1", domain.Event{ID: "c1"})
	_, stage := StartStageSpan(ctx, domain.StageFetch)
	stage.RecordError(domain.ErrTooLarge)
	stage.End()
	job.End()

	if id, ok := EventIDFromContext(ctx); !ok || id != "c1" {
		t.Fatalf("expected event id on context, got %q", id)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordDecision(context.Background(), domain.Allow)
	m.RecordJob(context.Background(), domain.JobResult{Stage: domain.StageDone}, time.Second)

	real, err := NewMetrics()
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	real.RecordDecision(context.Background(), domain.DenyCooldown)
}

func TestSetupDisabledReturnsNoopShutdown(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), config.ObservabilityConfig{})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestConfiguredSampler(t *testing.T) {
	t.Parallel()

	for _, ratio := range []float64{-1, 0, 0.25, 1, 2} {
		if configuredSampler(ratio) == nil {
			t.Fatalf("nil sampler for %v", ratio)
		}
	}
	if !strings.Contains(configuredSampler(0.25).Description(), "TraceIDRatioBased") {
		t.Fatalf("unexpected sampler %s", configuredSampler(0.25).Description())
	}
}
