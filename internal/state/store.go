package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

const (
	// LedgerMax is the ledger size that triggers a trim on the next write.
	LedgerMax = 5000
	// LedgerKeep is how many of the most recent ids survive a trim.
	LedgerKeep = 3000

	saveTimeout = 10 * time.Second
)

// Store is the single writer of the persisted ledger, cooldown record and
// usage counters. Every mutation persists a complete new snapshot before it
// becomes visible to readers.
type Store struct {
	mu       sync.RWMutex
	backend  ports.StateBackend
	snapshot *domain.Snapshot
	index    map[string]struct{}
	logger   *slog.Logger
}

var _ ports.StateStore = (*Store)(nil)

// Open loads the last fully written snapshot. A missing or corrupt snapshot
// yields an empty state; any other backend failure is returned.
func Open(ctx context.Context, backend ports.StateBackend, logger *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("state backend is not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}

	snapshot, err := backend.Load(ctx)
	var corrupt *domain.CorruptSnapshotError
	switch {
	case errors.As(err, &corrupt):
		logger.Warn("state snapshot unreadable, starting empty", "error", err)
		snapshot = nil
	case err != nil:
		return nil, fmt.Errorf("load state: %w", err)
	}

	s := &Store{backend: backend, logger: logger}
	s.install(normalize(snapshot))
	return s, nil
}

// IsProcessed reports ledger membership.
func (s *Store) IsProcessed(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[eventID]
	return ok
}

// MarkProcessed appends eventID to the ledger. Re-adding a present id is a no-op.
func (s *Store) MarkProcessed(eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("mark processed: empty event id")
	}
	return s.update(func(next *domain.Snapshot) bool {
		if _, ok := s.index[eventID]; ok {
			return false
		}
		next.Processed = append(next.Processed, eventID)
		return true
	})
}

// LastAction returns the last admission time for tenant, or the zero time.
func (s *Store) LastAction(tenant string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.snapshot.UserLastCall[tenantKey(tenant)]
	if !ok {
		return time.Time{}
	}
	return fromUnixSeconds(ts)
}

// SetLastAction records an admission for tenant.
func (s *Store) SetLastAction(tenant string, at time.Time) error {
	key := tenantKey(tenant)
	return s.update(func(next *domain.Snapshot) bool {
		next.UserLastCall[key] = toUnixSeconds(at)
		return true
	})
}

// Usage returns the committed job count for a day key.
func (s *Store) Usage(dayKey string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Usage[dayKey]
}

// IncrementUsage adds delta to a day's counter and returns the new value.
func (s *Store) IncrementUsage(dayKey string, delta int) (int, error) {
	var value int
	err := s.update(func(next *domain.Snapshot) bool {
		value = next.Usage[dayKey] + delta
		next.Usage[dayKey] = value
		return true
	})
	if err != nil {
		return s.Usage(dayKey), err
	}
	return value, nil
}

// LedgerSize returns how many event ids the ledger holds.
func (s *Store) LedgerSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshot.Processed)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Clone()
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// update applies mutate to a copy of the state, trims it, persists the copy
// and only then swaps it in. A failed save leaves the visible state intact.
func (s *Store) update(mutate func(next *domain.Snapshot) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snapshot.Clone()
	if !mutate(next) {
		return nil
	}
	trim(next)

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.backend.Save(ctx, next); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	s.install(next)
	return nil
}

func (s *Store) install(snapshot *domain.Snapshot) {
	index := make(map[string]struct{}, len(snapshot.Processed))
	for _, id := range snapshot.Processed {
		index[id] = struct{}{}
	}
	s.snapshot = snapshot
	s.index = index
}

func trim(snapshot *domain.Snapshot) {
	if len(snapshot.Processed) > LedgerMax {
		snapshot.Processed = append([]string(nil), snapshot.Processed[len(snapshot.Processed)-LedgerKeep:]...)
	}
	if len(snapshot.UserLastCall) > LedgerMax {
		type entry struct {
			tenant string
			at     float64
		}
		entries := make([]entry, 0, len(snapshot.UserLastCall))
		for tenant, at := range snapshot.UserLastCall {
			entries = append(entries, entry{tenant: tenant, at: at})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].at > entries[j].at })
		kept := make(map[string]float64, LedgerKeep)
		for _, e := range entries[:LedgerKeep] {
			kept[e.tenant] = e.at
		}
		snapshot.UserLastCall = kept
	}
}

func normalize(snapshot *domain.Snapshot) *domain.Snapshot {
	if snapshot == nil {
		return domain.NewSnapshot()
	}
	out := snapshot.Clone()
	lowered := make(map[string]float64, len(out.UserLastCall))
	for tenant, at := range out.UserLastCall {
		key := tenantKey(tenant)
		if prev, ok := lowered[key]; !ok || at > prev {
			lowered[key] = at
		}
	}
	out.UserLastCall = lowered
	return out
}

func tenantKey(tenant string) string {
	return strings.ToLower(strings.TrimSpace(tenant))
}

func toUnixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}
