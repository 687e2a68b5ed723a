package domain

// Decision is the outcome of admission for one event.
type Decision string

const (
	Allow              Decision = "allow"
	DenyNotAllowlisted Decision = "deny_not_allowlisted"
	DenyCooldown       Decision = "deny_cooldown"
	DenyHourlyCap      Decision = "deny_hourly_cap"
	DenyDailyBudget    Decision = "deny_daily_budget"
)

// Allowed reports whether the decision admits the event.
func (d Decision) Allowed() bool {
	return d == Allow
}
