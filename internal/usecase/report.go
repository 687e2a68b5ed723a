package usecase

import (
	"time"

	"BananaBot/internal/admission"
)

// LedgerReader is the read side of the state store used for reporting.
type LedgerReader interface {
	UsageReader
	LedgerSize() int
}

// Report is the operator-facing status document.
type Report struct {
	Supervisor      Status `json:"supervisor"`
	Day             string `json:"day"`
	UsageToday      int    `json:"usage_today"`
	DailyBudget     int    `json:"daily_budget"`
	HourlyUsed      int    `json:"hourly_used"`
	HourlyCap       int    `json:"hourly_cap"`
	ProcessedEvents int    `json:"processed_events"`
}

// Reporter assembles a Report from live components.
type Reporter struct {
	supervisor *Supervisor
	ledger     LedgerReader
	admission  *admission.Controller
	now        func() time.Time
}

// NewReporter builds a Reporter. now defaults to time.Now.
func NewReporter(sup *Supervisor, ledger LedgerReader, ctrl *admission.Controller, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{supervisor: sup, ledger: ledger, admission: ctrl, now: now}
}

// Report captures the current state.
func (r *Reporter) Report() Report {
	now := r.now()
	policy := r.admission.Policy()
	day := r.admission.DayKey(now)
	return Report{
		Supervisor:      r.supervisor.Status(),
		Day:             day,
		UsageToday:      r.ledger.Usage(day),
		DailyBudget:     policy.DailyBudget,
		HourlyUsed:      r.admission.HourlyUsed(now),
		HourlyCap:       policy.HourlyCap,
		ProcessedEvents: r.ledger.LedgerSize(),
	}
}
