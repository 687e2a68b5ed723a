package domain

// Snapshot is the persisted state document: dedup ledger, per-tenant
// last-action timestamps (unix seconds) and per-day usage counters.
type Snapshot struct {
	Processed    []string           `json:"processed"`
	Usage        map[string]int     `json:"usage"`
	UserLastCall map[string]float64 `json:"user_last_call"`
}

// NewSnapshot returns an empty, fully initialised snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Processed:    []string{},
		Usage:        map[string]int{},
		UserLastCall: map[string]float64{},
	}
}

// Clone deep-copies the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return NewSnapshot()
	}
	out := &Snapshot{
		Processed:    append([]string(nil), s.Processed...),
		Usage:        make(map[string]int, len(s.Usage)),
		UserLastCall: make(map[string]float64, len(s.UserLastCall)),
	}
	if out.Processed == nil {
		out.Processed = []string{}
	}
	for k, v := range s.Usage {
		out.Usage[k] = v
	}
	for k, v := range s.UserLastCall {
		out.UserLastCall[k] = v
	}
	return out
}
