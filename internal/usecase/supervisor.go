package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"sync"
	"time"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

const defaultBackoff = 10 * time.Second

var errStreamEnded = errors.New("feed stream ended")

// SupervisorDeps configures the outer loop.
type SupervisorDeps struct {
	Feed        ports.FeedSource
	Handler     *Handler
	Scope       string
	Backoff     time.Duration
	MaxPerRun   int
	RecentLimit int
	Logger      *slog.Logger
	Now         func() time.Time
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	StartedAt   time.Time       `json:"started_at"`
	Connected   bool            `json:"connected"`
	Reconnects  int             `json:"reconnects"`
	EventsSeen  int             `json:"events_seen"`
	LastEventAt time.Time       `json:"last_event_at,omitzero"`
	LastError   string          `json:"last_error,omitempty"`
	Outcomes    map[Outcome]int `json:"outcomes"`
}

// RunSummary reports what a one-shot pass did.
type RunSummary struct {
	Scanned   int
	Committed int
	Outcomes  map[Outcome]int
	Stopped   string
}

// Supervisor owns the feed subscription and feeds events to the handler one at a time.
type Supervisor struct {
	feed        ports.FeedSource
	handler     *Handler
	scope       string
	backoff     time.Duration
	maxPerRun   int
	recentLimit int
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	status Status
}

// NewSupervisor returns the process's outer loop.
func NewSupervisor(deps SupervisorDeps) *Supervisor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	backoff := deps.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	recent := deps.RecentLimit
	if recent <= 0 {
		recent = 200
	}
	return &Supervisor{
		feed:        deps.Feed,
		handler:     deps.Handler,
		scope:       deps.Scope,
		backoff:     backoff,
		maxPerRun:   deps.MaxPerRun,
		recentLimit: recent,
		logger:      logger,
		now:         now,
		status:      Status{StartedAt: now(), Outcomes: map[Outcome]int{}},
	}
}

// Run consumes the stream until ctx is cancelled. Any subscription failure is
// logged and followed by a fresh subscription after the backoff.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("supervisor started", "scope", s.scope)
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			s.setConnected(false, nil)
			s.logger.Info("supervisor stopped")
			return nil
		}
		s.setConnected(false, err)
		s.logger.Error("subscription failed; reconnecting", "error", err, "backoff", s.backoff)

		timer := time.NewTimer(s.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("supervisor stopped")
			return nil
		case <-timer.C:
		}
		s.mu.Lock()
		s.status.Reconnects++
		s.mu.Unlock()
	}
}

func (s *Supervisor) consume(ctx context.Context) error {
	s.setConnected(true, nil)
	for event, err := range s.feed.Stream(ctx, s.scope) {
		if err != nil {
			return err
		}
		s.record(s.handler.Handle(ctx, event))
	}
	return errStreamEnded
}

// RunOnce handles the latest comments oldest to newest and returns. It stops
// after maxPerRun committed jobs or at the first daily budget denial.
func (s *Supervisor) RunOnce(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{Outcomes: map[Outcome]int{}}
	events, err := s.feed.Recent(ctx, s.scope, s.recentLimit)
	if err != nil {
		return summary, err
	}
	for _, event := range events {
		if ctx.Err() != nil {
			summary.Stopped = "cancelled"
			break
		}
		if s.maxPerRun > 0 && summary.Committed >= s.maxPerRun {
			summary.Stopped = "max_per_run"
			break
		}
		handled := s.handler.Handle(ctx, event)
		s.record(handled)
		summary.Scanned++
		summary.Outcomes[handled.Outcome]++
		if handled.Job != nil && handled.Job.Committed {
			summary.Committed++
		}
		if handled.Decision == domain.DenyDailyBudget {
			summary.Stopped = "daily_budget"
			break
		}
	}
	s.logger.Info("run finished",
		"scanned", summary.Scanned,
		"committed", summary.Committed,
		"stopped", summary.Stopped,
	)
	return summary, nil
}

// Status returns a copy of the current counters.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.status
	out.Outcomes = maps.Clone(s.status.Outcomes)
	return out
}

func (s *Supervisor) record(handled Handled) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.EventsSeen++
	s.status.LastEventAt = s.now()
	s.status.Outcomes[handled.Outcome]++
}

func (s *Supervisor) setConnected(connected bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Connected = connected
	if err != nil {
		s.status.LastError = err.Error()
	}
}
