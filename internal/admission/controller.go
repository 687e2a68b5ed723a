package admission

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"BananaBot/internal/domain"
)

// Store is the slice of the durable state the controller consults.
type Store interface {
	LastAction(tenant string) time.Time
	SetLastAction(tenant string, at time.Time) error
	Usage(dayKey string) int
}

// Policy holds the admission limits. Negative caps disable their check.
type Policy struct {
	Allowlist   []string
	Cooldown    time.Duration
	HourlyCap   int
	DailyBudget int
	Location    *time.Location
}

// Controller decides whether a tenant may start a job now.
type Controller struct {
	mu        sync.Mutex
	store     Store
	window    *HourlyWindow
	policy    Policy
	allowlist map[string]struct{}
}

// NewController wires the durable store with a fresh in-memory window.
func NewController(store Store, policy Policy, window *HourlyWindow) *Controller {
	if window == nil {
		window = NewHourlyWindow(time.Hour)
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	allow := make(map[string]struct{}, len(policy.Allowlist))
	for _, name := range policy.Allowlist {
		if name = normalizeTenant(name); name != "" {
			allow[name] = struct{}{}
		}
	}
	return &Controller{store: store, window: window, policy: policy, allowlist: allow}
}

// DayKey converts now to the calendar date used to bucket daily usage.
func (c *Controller) DayKey(now time.Time) string {
	return DayKey(now, c.policy.Location)
}

// DayKey formats now as YYYY-MM-DD in loc.
func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format("2006-01-02")
}

// Evaluate returns the decision for tenant at now without reserving anything.
// The first matching denial wins: allowlist, cooldown, daily budget, hourly cap.
func (c *Controller) Evaluate(tenant string, now time.Time) domain.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateLocked(tenant, now)
}

// Admit evaluates and, on Allow, reserves the tenant's cooldown slot and an
// hourly slot before returning, so the decision and the reservation are one
// step. When the cooldown cannot be persisted nothing is reserved and the
// error is returned; the caller must not start the job.
func (c *Controller) Admit(tenant string, now time.Time) (domain.Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	decision := c.evaluateLocked(tenant, now)
	if !decision.Allowed() {
		return decision, nil
	}
	if err := c.store.SetLastAction(normalizeTenant(tenant), now); err != nil {
		return decision, fmt.Errorf("reserve cooldown: %w", err)
	}
	c.window.Increment(now)
	return decision, nil
}

// HourlyUsed reports admissions in the current window.
func (c *Controller) HourlyUsed(now time.Time) int {
	return c.window.Count(now)
}

// Policy returns the configured limits.
func (c *Controller) Policy() Policy {
	return c.policy
}

func (c *Controller) evaluateLocked(tenant string, now time.Time) domain.Decision {
	key := normalizeTenant(tenant)

	if len(c.allowlist) > 0 {
		if _, ok := c.allowlist[key]; !ok {
			return domain.DenyNotAllowlisted
		}
	}

	if last := c.store.LastAction(key); !last.IsZero() && now.Sub(last) < c.policy.Cooldown {
		return domain.DenyCooldown
	}

	if c.policy.DailyBudget >= 0 && c.store.Usage(c.DayKey(now)) >= c.policy.DailyBudget {
		return domain.DenyDailyBudget
	}

	if c.policy.HourlyCap >= 0 && c.window.Count(now) >= c.policy.HourlyCap {
		return domain.DenyHourlyCap
	}

	return domain.Allow
}

func normalizeTenant(tenant string) string {
	return strings.ToLower(strings.TrimSpace(tenant))
}
