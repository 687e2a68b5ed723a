package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"BananaBot/internal/domain"
)

const meterName = "bananabot"

// Metrics records job outcomes and admission decisions. A nil *Metrics is a no-op.
type Metrics struct {
	decisions metric.Int64Counter
	jobs      metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMetrics registers instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	decisions, err := meter.Int64Counter("bananabot.admission.decisions",
		metric.WithDescription("Admission decisions by outcome"))
	if err != nil {
		return nil, err
	}
	jobs, err := meter.Int64Counter("bananabot.jobs",
		metric.WithDescription("Pipeline runs by final stage and commit state"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("bananabot.job.duration",
		metric.WithDescription("Pipeline run duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &Metrics{decisions: decisions, jobs: jobs, duration: duration}, nil
}

// RecordDecision counts one admission decision.
func (m *Metrics) RecordDecision(ctx context.Context, decision domain.Decision) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", string(decision))))
}

// RecordJob counts one pipeline run and its duration.
func (m *Metrics) RecordJob(ctx context.Context, result domain.JobResult, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("stage", string(result.Stage)),
		attribute.Bool("committed", result.Committed),
	)
	m.jobs.Add(ctx, 1, attrs)
	m.duration.Record(ctx, took.Seconds(), attrs)
}
