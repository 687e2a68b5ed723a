package usecase

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"BananaBot/internal/admission"
	"BananaBot/internal/domain"
	"BananaBot/internal/matcher"
	"BananaBot/internal/observability"
	"BananaBot/internal/ports"
)

// Outcome summarises what the handler did with one event.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeDenied    Outcome = "denied"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Handled is the result of Handler.Handle.
type Handled struct {
	Outcome  Outcome
	Decision domain.Decision
	Job      *domain.JobResult
}

// HandlerDeps wires the matcher, admission and pipeline into one event handler.
type HandlerDeps struct {
	Matcher            *matcher.Matcher
	Store              ports.StateStore
	Admission          *admission.Controller
	Pipeline           *Pipeline
	Replier            ports.Replier
	Replies            ReplyPolicy
	DefaultInstruction string
	Pacing             time.Duration
	Metrics            *observability.Metrics
	Logger             *slog.Logger
	Now                func() time.Time
}

// Handler processes one feed event end to end.
type Handler struct {
	matcher            *matcher.Matcher
	store              ports.StateStore
	admission          *admission.Controller
	pipeline           *Pipeline
	replier            ports.Replier
	replies            ReplyPolicy
	defaultInstruction domain.Instruction
	pacing             time.Duration
	metrics            *observability.Metrics
	logger             *slog.Logger
	now                func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handler{
		matcher:            deps.Matcher,
		store:              deps.Store,
		admission:          deps.Admission,
		pipeline:           deps.Pipeline,
		replier:            deps.Replier,
		replies:            deps.Replies,
		defaultInstruction: domain.Instruction(strings.TrimSpace(deps.DefaultInstruction)),
		pacing:             deps.Pacing,
		metrics:            deps.Metrics,
		logger:             logger,
		now:                now,
	}
}

// Handle matches, deduplicates and admits event, then runs the pipeline.
// Pipeline runs and posted deny replies are followed by the pacing delay.
// An admission that cannot be persisted fails the event without running it.
func (h *Handler) Handle(ctx context.Context, event domain.Event) Handled {
	if !h.matcher.Mentions(event.Body) {
		return Handled{Outcome: OutcomeIgnored}
	}

	log := h.logger.With("event_id", event.ID, "tenant", event.Tenant())

	if h.store.IsProcessed(event.ID) {
		log.DebugContext(ctx, "event already processed")
		return Handled{Outcome: OutcomeDuplicate}
	}

	instruction, ok := h.matcher.Match(event.Body)
	if !ok && h.defaultInstruction != "" {
		instruction, ok = h.defaultInstruction, true
	}
	if !ok {
		log.InfoContext(ctx, "mention without instruction", "error", domain.ErrEmptyInstruction)
		h.markProcessed(ctx, log, event.ID)
		return Handled{Outcome: OutcomeInvalid}
	}

	decision, err := h.admission.Admit(event.Tenant(), h.now())
	if err != nil {
		log.ErrorContext(ctx, "admission not persisted; refusing job", "error", err)
		h.markProcessed(ctx, log, event.ID)
		return Handled{Outcome: OutcomeFailed, Decision: decision}
	}
	h.metrics.RecordDecision(ctx, decision)
	if !decision.Allowed() {
		log.InfoContext(ctx, "event denied", "decision", decision)
		if text := h.replies.DenyReply(decision); text != "" && h.replier != nil {
			if err := h.replier.Reply(ctx, event, text); err != nil {
				log.WarnContext(ctx, "deny reply failed", "error", err)
			}
			defer h.pace(ctx)
		}
		h.markProcessed(ctx, log, event.ID)
		return Handled{Outcome: OutcomeDenied, Decision: decision}
	}

	log.InfoContext(ctx, "event admitted", "instruction", string(instruction))
	job := h.pipeline.Process(ctx, event, instruction)
	h.pace(ctx)
	outcome := OutcomeCompleted
	if job.Failed() {
		outcome = OutcomeFailed
	}
	return Handled{Outcome: outcome, Decision: decision, Job: &job}
}

func (h *Handler) markProcessed(ctx context.Context, log *slog.Logger, eventID string) {
	if err := h.store.MarkProcessed(eventID); err != nil {
		log.ErrorContext(ctx, "mark processed failed", "error", err)
	}
}

func (h *Handler) pace(ctx context.Context) {
	if h.pacing <= 0 {
		return
	}
	timer := time.NewTimer(h.pacing)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
