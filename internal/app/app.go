package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"BananaBot/internal/admission"
	"BananaBot/internal/config"
	"BananaBot/internal/infrastructure/audit"
	"BananaBot/internal/infrastructure/fetch"
	"BananaBot/internal/infrastructure/github"
	"BananaBot/internal/infrastructure/llm"
	"BananaBot/internal/infrastructure/reddit"
	"BananaBot/internal/infrastructure/scheduler"
	"BananaBot/internal/infrastructure/storage"
	"BananaBot/internal/infrastructure/telegram"
	"BananaBot/internal/infrastructure/voice"
	"BananaBot/internal/logging"
	"BananaBot/internal/matcher"
	"BananaBot/internal/observability"
	"BananaBot/internal/ports"
	"BananaBot/internal/server"
	"BananaBot/internal/state"
	"BananaBot/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var setupTelemetry = observability.Setup

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *state.Store
	supervisor *usecase.Supervisor
	digest     *usecase.UsageDigest
	server     *server.Server
	telemetry  func(context.Context) error
}

// New opens the state backend and builds every component from cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging)
	}

	telemetry, err := setupTelemetry(ctx, baseLogger.With("component", "observability"), cfg.Observability)
	if err != nil {
		return nil, fmt.Errorf("setup observability: %w", err)
	}
	fail := func(err error, closers ...func() error) (*Application, error) {
		errs := []error{err}
		for _, closeFn := range closers {
			errs = append(errs, closeFn())
		}
		return nil, errors.Join(append(errs, telemetry(ctx))...)
	}
	var metrics *observability.Metrics
	if cfg.Observability.Enabled {
		if metrics, err = observability.NewMetrics(); err != nil {
			baseLogger.Warn("metrics disabled", "error", err)
		}
	}

	backend, err := storage.BuildStateBackendFromDSN(ctx, cfg.State.DSN)
	if err != nil {
		return fail(fmt.Errorf("state backend: %w", err))
	}
	store, err := state.Open(ctx, backend, baseLogger.With("component", "state"))
	if err != nil {
		return fail(fmt.Errorf("open state: %w", err), backend.Close)
	}

	ctrl := admission.NewController(store, admission.Policy{
		Allowlist:   cfg.Limits.Allowlist,
		Cooldown:    cfg.Limits.Cooldown(),
		HourlyCap:   cfg.Limits.HourlyCap,
		DailyBudget: cfg.Limits.DailyBudget,
		Location:    cfg.Limits.Location(),
	}, nil)

	redditClient := reddit.NewClient(cfg.Reddit, baseLogger.With("component", "reddit"))

	var alerter ports.Alerter
	if cfg.Notifications.Telegram.Enabled() {
		alerter = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	var narrator ports.Narrator
	if client := voice.NewClient(cfg.ElevenLabs); client != nil {
		narrator = client
	}

	var sink ports.AuditSink
	if cfg.Audit.SinkURL != "" {
		ce, err := audit.NewCloudEventsSink(cfg.Audit.SinkURL, cfg.Audit.Source)
		if err != nil {
			return fail(fmt.Errorf("audit sink: %w", err), store.Close)
		}
		sink = ce
	}

	reference, err := llm.LoadReference(cfg.Gemini.ReferenceImage)
	if err != nil {
		return fail(fmt.Errorf("gemini reference: %w", err), store.Close)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher: fetch.NewDownloader(fetch.Options{
			MaxBytes:          cfg.Fetch.MaxBytes,
			AllowedExtensions: cfg.Fetch.AllowedExtensions,
			Timeout:           cfg.Fetch.Timeout,
			ResolvePages:      cfg.Fetch.ResolvePages,
			UserAgent:         cfg.Reddit.UserAgent,
		}),
		Transformer: llm.NewGeminiClient(cfg.Gemini),
		Reference:   reference,
		Publisher:   github.NewPublisher(cfg.GitHub),
		Narrator:    narrator,
		Replier:     redditClient,
		Store:       store,
		Alerter:     alerter,
		Audit:       sink,
		Metrics:     metrics,
		DayKey:      ctrl.DayKey,
		RetryDelay:  cfg.Worker.PublishRetryDelay,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	handler := usecase.NewHandler(usecase.HandlerDeps{
		Matcher: matcher.New(matcher.Options{
			Triggers: cfg.Matcher.Triggers,
			Quotes:   cfg.Matcher.Quotes,
		}),
		Store:     store,
		Admission: ctrl,
		Pipeline:  pipeline,
		Replier:   redditClient,
		Replies: usecase.ReplyPolicy{
			Mode:            cfg.Limits.RateLimitMode,
			CapacityMessage: cfg.Limits.RateLimitMessage,
			CooldownMessage: cfg.Limits.CooldownMessage,
		},
		DefaultInstruction: cfg.Matcher.DefaultInstruction,
		Pacing:             cfg.Worker.Pacing,
		Metrics:            metrics,
		Logger:             baseLogger.With("component", "handler"),
	})

	supervisor := usecase.NewSupervisor(usecase.SupervisorDeps{
		Feed:        redditClient,
		Handler:     handler,
		Scope:       cfg.Reddit.Scope(),
		Backoff:     cfg.Worker.ReconnectBackoff,
		MaxPerRun:   cfg.Worker.MaxPerRun,
		RecentLimit: cfg.Worker.RecentLimit,
		Logger:      baseLogger.With("component", "supervisor"),
	})

	application := &Application{
		cfg:        cfg,
		logger:     baseLogger,
		store:      store,
		supervisor: supervisor,
		telemetry:  telemetry,
	}

	if alerter != nil && cfg.Mode == config.ModeStream {
		application.digest = usecase.NewUsageDigest(
			scheduler.NewTickerScheduler(cfg.Worker.DigestInterval),
			alerter, store, ctrl, supervisor.Status,
			baseLogger.With("component", "digest"),
		)
	}
	if cfg.Status.Addr != "" {
		application.server = server.New(
			baseLogger.With("component", "status"),
			usecase.NewReporter(supervisor, store, ctrl, nil),
			cfg.Observability.ServiceName,
		)
	}

	return application, nil
}

// Run executes the configured mode and releases resources on return.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if a.server != nil {
		go func() {
			a.logger.Info("status endpoint listening", "addr", a.cfg.Status.Addr)
			if err := a.server.Start(a.cfg.Status.Addr); err != nil {
				a.logger.Error("status endpoint stopped", "error", err)
			}
		}()
	}

	if a.cfg.Mode == config.ModeOnce {
		summary, err := a.supervisor.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("run once: %w", err)
		}
		a.logger.Info("run once complete", "scanned", summary.Scanned, "committed", summary.Committed)
		return nil
	}

	if a.digest != nil {
		if err := a.digest.Start(ctx); err != nil {
			a.logger.Warn("usage digest disabled", "error", err)
		}
	}
	return a.supervisor.Run(ctx)
}

func (a *Application) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.digest != nil {
		if err := a.digest.Stop(ctx); err != nil {
			a.logger.Warn("stop usage digest", "error", err)
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("stop status endpoint", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("close state", "error", err)
	}
	if a.telemetry != nil {
		if err := a.telemetry(ctx); err != nil {
			a.logger.Warn("flush telemetry", "error", err)
		}
	}
}
