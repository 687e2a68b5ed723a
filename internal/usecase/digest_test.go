package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"BananaBot/internal/admission"
	"BananaBot/internal/ports/mocks"
	"BananaBot/internal/usecase"
)

type manualScheduler struct {
	job     func(time.Time)
	stopped bool
}

func (s *manualScheduler) Start(_ context.Context, job func(time.Time)) error {
	s.job = job
	return nil
}

func (s *manualScheduler) Stop(context.Context) error {
	s.stopped = true
	return nil
}

func TestUsageDigestMessage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.store.IncrementUsage(f.dayKey(), 3); err != nil {
		t.Fatalf("increment: %v", err)
	}
	ctrl := admission.NewController(f.store, admission.Policy{HourlyCap: -1, DailyBudget: 20}, nil)
	status := func() usecase.Status {
		return usecase.Status{StartedAt: f.now.Add(-2 * time.Hour), EventsSeen: 12345, Reconnects: 2}
	}

	msg := usecase.NewUsageDigest(nil, nil, f.store, ctrl, status, nil).Message(f.now)

	for _, want := range []string{
		"usage for 2025-03-01",
		"daily: 3 of 20",
		"this hour: 0 (no limit)",
		"events seen: 12,345, reconnects: 2",
		"up since 2 hours ago",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("digest %q missing %q", msg, want)
		}
	}
}

func TestUsageDigestSendsOnTick(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctrl := admission.NewController(f.store, f.policy, nil)
	driver := &manualScheduler{}
	alerter := mocks.NewMockAlerter(t)
	alerter.On("Alert", mock.Anything, mock.MatchedBy(func(msg string) bool {
		return strings.HasPrefix(msg, "🍌 usage for 2025-03-01")
	})).Return(nil).Once()

	digest := usecase.NewUsageDigest(driver, alerter, f.store, ctrl, nil, nil)
	if err := digest.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	driver.job(f.now)
	if err := digest.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !driver.stopped {
		t.Fatal("expected scheduler to be stopped")
	}
}

func TestReporterAssemblesStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.store.IncrementUsage(f.dayKey(), 4); err != nil {
		t.Fatalf("increment: %v", err)
	}
	for _, id := range []string{"a", "b"} {
		if err := f.store.MarkProcessed(id); err != nil {
			t.Fatalf("mark: %v", err)
		}
	}
	ctrl := admission.NewController(f.store, admission.Policy{HourlyCap: 10, DailyBudget: 95}, nil)
	if _, err := ctrl.Admit("alice", f.now); err != nil {
		t.Fatalf("admit: %v", err)
	}
	sup := usecase.NewSupervisor(usecase.SupervisorDeps{Handler: f.handler(), Now: f.clock})

	report := usecase.NewReporter(sup, f.store, ctrl, f.clock).Report()

	if report.Day != "2025-03-01" || report.UsageToday != 4 || report.DailyBudget != 95 {
		t.Fatalf("unexpected usage fields %+v", report)
	}
	if report.HourlyUsed != 1 || report.HourlyCap != 10 || report.ProcessedEvents != 2 {
		t.Fatalf("unexpected counters %+v", report)
	}
	if !report.Supervisor.StartedAt.Equal(f.now) {
		t.Fatalf("unexpected start time %v", report.Supervisor.StartedAt)
	}
}
