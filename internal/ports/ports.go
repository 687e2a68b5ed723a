package ports

import (
	"context"
	"iter"
	"time"

	"BananaBot/internal/domain"
)

// FeedSource yields comments for a topic filter.
type FeedSource interface {
	// Stream subscribes from "now". The sequence ends after yielding an error.
	Stream(ctx context.Context, scope string) iter.Seq2[domain.Event, error]
	// Recent returns the latest comments ordered oldest to newest.
	Recent(ctx context.Context, scope string, limit int) ([]domain.Event, error)
}

// Replier posts a reply under an event.
type Replier interface {
	Reply(ctx context.Context, event domain.Event, text string) error
}

// TransformRequest carries everything the transformation model needs.
type TransformRequest struct {
	Image       domain.Image
	Reference   *domain.Image
	Instruction domain.Instruction
}

// Transformer edits an image according to a natural-language instruction.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (domain.Image, error)
}

// Fetcher downloads an event attachment under size and type limits.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (domain.Image, error)
}

// Publisher hosts an artifact and returns its public URL.
type Publisher interface {
	Publish(ctx context.Context, data []byte, ext string) (string, error)
}

// Narrator synthesizes speech for a short text.
type Narrator interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// StateBackend loads and persists whole state snapshots.
type StateBackend interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snapshot *domain.Snapshot) error
	Close() error
}

// StateStore is the durable ledger, cooldown and usage store.
type StateStore interface {
	IsProcessed(eventID string) bool
	MarkProcessed(eventID string) error
	LastAction(tenant string) time.Time
	SetLastAction(tenant string, at time.Time) error
	Usage(dayKey string) int
	IncrementUsage(dayKey string, delta int) (int, error)
}

// Alerter notifies operators about failures and usage.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}

// AuditSink records committed jobs to an external system.
type AuditSink interface {
	JobCompleted(ctx context.Context, result domain.JobResult) error
}

// Scheduler controls periodic jobs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
