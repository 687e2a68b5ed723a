package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"BananaBot/internal/domain"
	"BananaBot/internal/observability"
	"BananaBot/internal/ports"
)

const defaultRetryDelay = 2 * time.Second

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Narrator, Alerter, Audit, Metrics and Reference are optional.
type PipelineDeps struct {
	Fetcher     ports.Fetcher
	Transformer ports.Transformer
	Reference   *domain.Image
	Publisher   ports.Publisher
	Narrator    ports.Narrator
	Replier     ports.Replier
	Store       ports.StateStore
	Alerter     ports.Alerter
	Audit       ports.AuditSink
	Metrics     *observability.Metrics
	DayKey      func(time.Time) string
	RetryDelay  time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// Pipeline runs fetch, transform, publish, narrate and reply for one admitted event.
type Pipeline struct {
	fetcher     ports.Fetcher
	transformer ports.Transformer
	reference   *domain.Image
	publisher   ports.Publisher
	narrator    ports.Narrator
	replier     ports.Replier
	store       ports.StateStore
	alerter     ports.Alerter
	audit       ports.AuditSink
	metrics     *observability.Metrics
	dayKey      func(time.Time) string
	retryDelay  time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	dayKey := deps.DayKey
	if dayKey == nil {
		dayKey = func(t time.Time) string { return t.UTC().Format("2006-01-02") }
	}
	delay := deps.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}
	return &Pipeline{
		fetcher:     deps.Fetcher,
		transformer: deps.Transformer,
		reference:   deps.Reference,
		publisher:   deps.Publisher,
		narrator:    deps.Narrator,
		replier:     deps.Replier,
		store:       deps.Store,
		alerter:     deps.Alerter,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		dayKey:      dayKey,
		retryDelay:  delay,
		logger:      logger,
		now:         now,
	}
}

// Process executes the stages in order. A failure at or before publish marks
// the event processed without charging usage and sends no reply. Usage is
// charged and the event marked processed right after publish succeeds;
// narration and reply failures are logged and swallowed.
func (p *Pipeline) Process(ctx context.Context, event domain.Event, instruction domain.Instruction) domain.JobResult {
	started := p.now()
	result := domain.JobResult{
		RunID:       uuid.NewString(),
		EventID:     event.ID,
		Tenant:      event.Tenant(),
		Instruction: instruction,
	}

	ctx, span := observability.StartJobSpan(ctx, result.RunID, event)
	defer span.End()
	defer func() { p.metrics.RecordJob(ctx, result, p.now().Sub(started)) }()

	url, err := p.produce(ctx, event, instruction, &result)
	if err != nil {
		span.RecordError(err)
		result.Err = err
		p.abandon(ctx, event, &result)
		return result
	}
	result.ImageURL = url

	p.commit(ctx, event, &result)

	result.Stage = domain.StageNarrate
	result.NarrationURL = p.narrate(ctx, instruction)

	result.Stage = domain.StageReply
	if p.replier != nil {
		stageCtx, stageSpan := observability.StartStageSpan(ctx, domain.StageReply)
		if err := p.replier.Reply(stageCtx, event, FormatReply(instruction, result.ImageURL, result.NarrationURL)); err != nil {
			stageSpan.RecordError(err)
			p.logger.WarnContext(ctx, "reply failed", "error", err)
		} else {
			result.Replied = true
		}
		stageSpan.End()
	}

	result.Stage = domain.StageDone
	p.logger.InfoContext(ctx, "job completed",
		"tenant", result.Tenant,
		"image_url", result.ImageURL,
		"narrated", result.NarrationURL != "",
		"replied", result.Replied,
		"usage_today", result.UsageToday,
	)

	if p.audit != nil && result.Committed {
		if err := p.audit.JobCompleted(ctx, result); err != nil {
			p.logger.WarnContext(ctx, "audit event failed", "error", err)
		}
	}
	return result
}

// produce runs the stages up to and including publish.
func (p *Pipeline) produce(ctx context.Context, event domain.Event, instruction domain.Instruction, result *domain.JobResult) (string, error) {
	result.Stage = domain.StageFetch
	image, err := stage(ctx, domain.StageFetch, func(ctx context.Context) (domain.Image, error) {
		return p.fetcher.Fetch(ctx, event.AttachmentURL)
	})
	if err != nil {
		return "", err
	}

	result.Stage = domain.StageTransform
	edited, err := stage(ctx, domain.StageTransform, func(ctx context.Context) (domain.Image, error) {
		out, err := p.transformer.Transform(ctx, ports.TransformRequest{Image: image, Reference: p.reference, Instruction: instruction})
		if err == nil && out.Empty() {
			err = domain.ErrNoResult
		}
		return out, err
	})
	if err != nil {
		return "", err
	}

	result.Stage = domain.StagePublish
	return stage(ctx, domain.StagePublish, func(ctx context.Context) (string, error) {
		return p.publish(ctx, edited.Data, extensionFor(edited.MIME))
	})
}

func stage[T any](ctx context.Context, name domain.Stage, run func(context.Context) (T, error)) (T, error) {
	ctx, span := observability.StartStageSpan(ctx, name)
	defer span.End()
	out, err := run(ctx)
	if err != nil {
		span.RecordError(err)
		return out, &domain.StageError{Stage: name, Err: err}
	}
	return out, nil
}

// publish uploads data, retrying once after a fixed delay.
func (p *Pipeline) publish(ctx context.Context, data []byte, ext string) (string, error) {
	var url string
	attempt := 0
	backoff := retry.WithMaxRetries(1, retry.NewConstant(p.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		published, err := p.publisher.Publish(ctx, data, ext)
		if err != nil {
			p.logger.WarnContext(ctx, "publish attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		url = published
		return nil
	})
	if err != nil {
		return "", err
	}
	return url, nil
}

func (p *Pipeline) commit(ctx context.Context, event domain.Event, result *domain.JobResult) {
	if p.store == nil {
		return
	}
	usage, usageErr := p.store.IncrementUsage(p.dayKey(p.now()), 1)
	markErr := p.store.MarkProcessed(event.ID)
	result.UsageToday = usage
	if err := errors.Join(usageErr, markErr); err != nil {
		result.Err = fmt.Errorf("commit: %w", err)
		p.logger.ErrorContext(ctx, "commit failed", "error", err)
		p.alert(ctx, fmt.Sprintf("🍌 commit failed for %s: %v", event.ID, err))
		return
	}
	result.Committed = true
}

func (p *Pipeline) abandon(ctx context.Context, event domain.Event, result *domain.JobResult) {
	level := slog.LevelError
	var verr *domain.ValidationError
	if errors.As(result.Err, &verr) {
		level = slog.LevelWarn
	}
	p.logger.Log(ctx, level, "job failed", "stage", result.Stage, "tenant", result.Tenant, "error", result.Err)

	if p.store != nil {
		if err := p.store.MarkProcessed(event.ID); err != nil {
			p.logger.ErrorContext(ctx, "mark processed failed", "error", err)
		}
	}
	if level == slog.LevelError {
		p.alert(ctx, fmt.Sprintf("🍌 job %s failed at %s: %v", event.ID, result.Stage, result.Err))
	}
}

// narrate returns the narration URL, or "" when narration is off or failed.
func (p *Pipeline) narrate(ctx context.Context, instruction domain.Instruction) string {
	if p.narrator == nil {
		return ""
	}
	ctx, span := observability.StartStageSpan(ctx, domain.StageNarrate)
	defer span.End()

	audio, err := p.narrator.Synthesize(ctx, NarrationText(instruction))
	if err != nil || len(audio) == 0 {
		span.RecordError(err)
		p.logger.WarnContext(ctx, "narration skipped", "error", err)
		return ""
	}
	url, err := p.publish(ctx, audio, "mp3")
	if err != nil {
		span.RecordError(err)
		p.logger.WarnContext(ctx, "narration publish failed", "error", err)
		return ""
	}
	return url
}

func (p *Pipeline) alert(ctx context.Context, message string) {
	if p.alerter == nil {
		return
	}
	if err := p.alerter.Alert(ctx, message); err != nil {
		p.logger.WarnContext(ctx, "alert failed", "error", err)
	}
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
