package admission

import (
	"sync"
	"time"
)

// HourlyWindow counts admissions in a fixed window that restarts once a full
// window has elapsed since it began. It lives in memory only: a restart
// resets it, the durable daily budget remains the real ceiling.
type HourlyWindow struct {
	mu     sync.Mutex
	length time.Duration
	start  time.Time
	count  int
}

// NewHourlyWindow returns a window of the given length (one hour when <= 0).
func NewHourlyWindow(length time.Duration) *HourlyWindow {
	if length <= 0 {
		length = time.Hour
	}
	return &HourlyWindow{length: length}
}

// Count returns admissions granted in the window containing now.
func (w *HourlyWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollLocked(now)
	return w.count
}

// Increment records one admission at now.
func (w *HourlyWindow) Increment(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rollLocked(now)
	w.count++
}

func (w *HourlyWindow) rollLocked(now time.Time) {
	if w.start.IsZero() || now.Sub(w.start) >= w.length {
		w.start = now
		w.count = 0
	}
}
