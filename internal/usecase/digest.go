package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"BananaBot/internal/admission"
	"BananaBot/internal/ports"
)

// UsageReader exposes the daily usage counters.
type UsageReader interface {
	Usage(dayKey string) int
}

// UsageDigest periodically sends a usage summary to the operator channel.
type UsageDigest struct {
	driver    ports.Scheduler
	alerter   ports.Alerter
	usage     UsageReader
	admission *admission.Controller
	status    func() Status
	logger    *slog.Logger
}

// NewUsageDigest wires the ticker driver with the alert channel. status may be nil.
func NewUsageDigest(driver ports.Scheduler, alerter ports.Alerter, usage UsageReader, ctrl *admission.Controller, status func() Status, logger *slog.Logger) *UsageDigest {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &UsageDigest{
		driver:    driver,
		alerter:   alerter,
		usage:     usage,
		admission: ctrl,
		status:    status,
		logger:    logger,
	}
}

// Start registers the digest with the provided scheduler.
func (d *UsageDigest) Start(ctx context.Context) error {
	if d.driver == nil || d.alerter == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if err := d.alerter.Alert(ctx, d.Message(trigger)); err != nil {
			d.logger.Warn("usage digest failed", "error", err)
		}
	}

	return d.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (d *UsageDigest) Stop(ctx context.Context) error {
	if d.driver == nil {
		return nil
	}

	return d.driver.Stop(ctx)
}

// Message renders the digest for now.
func (d *UsageDigest) Message(now time.Time) string {
	policy := d.admission.Policy()
	day := d.admission.DayKey(now)

	var b strings.Builder
	fmt.Fprintf(&b, "🍌 usage for %s\n", day)
	fmt.Fprintf(&b, "daily: %s\n", limitLine(d.usage.Usage(day), policy.DailyBudget))
	fmt.Fprintf(&b, "this hour: %s\n", limitLine(d.admission.HourlyUsed(now), policy.HourlyCap))
	if d.status != nil {
		st := d.status()
		fmt.Fprintf(&b, "events seen: %s, reconnects: %d\n", humanize.Comma(int64(st.EventsSeen)), st.Reconnects)
		fmt.Fprintf(&b, "up since %s", humanize.RelTime(st.StartedAt, now, "ago", "from now"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func limitLine(used, limit int) string {
	if limit < 0 {
		return fmt.Sprintf("%d (no limit)", used)
	}
	return fmt.Sprintf("%d of %d", used, limit)
}
