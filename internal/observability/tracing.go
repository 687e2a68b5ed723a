package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"BananaBot/internal/domain"
)

const tracerName = "bananabot/pipeline"

type contextKey string

const (
	eventIDKey contextKey = "observability.event_id"
	runIDKey   contextKey = "observability.run_id"
	tenantKey  contextKey = "observability.tenant"
)

// Span is the application-level tracing span contract.
type Span interface {
	End()
	RecordError(error)
}

type otelSpan struct {
	inner trace.Span
}

// WithJob tags ctx with the identifiers of one pipeline run.
func WithJob(ctx context.Context, runID, eventID, tenant string) context.Context {
	if runID = strings.TrimSpace(runID); runID != "" {
		ctx = context.WithValue(ctx, runIDKey, runID)
	}
	if eventID = strings.TrimSpace(eventID); eventID != "" {
		ctx = context.WithValue(ctx, eventIDKey, eventID)
	}
	if tenant = strings.TrimSpace(tenant); tenant != "" {
		ctx = context.WithValue(ctx, tenantKey, tenant)
	}
	return ctx
}

// StartJobSpan opens the root span of one pipeline run.
func StartJobSpan(ctx context.Context, runID string, event domain.Event) (context.Context, Span) {
	ctx = WithJob(ctx, runID, event.ID, event.Tenant())
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bananabot.job",
		trace.WithAttributes(
			attribute.String("bananabot.run_id", runID),
			attribute.String("bananabot.event_id", event.ID),
			attribute.String("bananabot.tenant", event.Tenant()),
		),
	)
	return ctx, otelSpan{inner: span}
}

// StartStageSpan opens a child span for one pipeline stage.
func StartStageSpan(ctx context.Context, stage domain.Stage) (context.Context, Span) {
	attrs := []attribute.KeyValue{attribute.String("bananabot.stage", string(stage))}
	if eventID, ok := EventIDFromContext(ctx); ok {
		attrs = append(attrs, attribute.String("bananabot.event_id", eventID))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "bananabot."+string(stage),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, otelSpan{inner: span}
}

// EventIDFromContext extracts the event id of the current run.
func EventIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(eventIDKey).(string)
	return value, ok && value != ""
}

// RunIDFromContext extracts the run id of the current run.
func RunIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(runIDKey).(string)
	return value, ok && value != ""
}

// TenantFromContext extracts the tenant of the current run.
func TenantFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(tenantKey).(string)
	return value, ok && value != ""
}

func (s otelSpan) End() {
	if s.inner == nil {
		return
	}
	s.inner.End()
}

func (s otelSpan) RecordError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}
