package audit

import (
	"context"
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	ceevent "github.com/cloudevents/sdk-go/v2/event"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/google/uuid"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

// JobCompletedType is the CloudEvents type emitted for every committed job.
const JobCompletedType = "io.bananabot.job.completed"

// CloudEventsSink posts job records to an HTTP CloudEvents receiver.
type CloudEventsSink struct {
	client cloudevents.Client
	source string
}

var _ ports.AuditSink = (*CloudEventsSink)(nil)

type jobCompleted struct {
	RunID        string    `json:"run_id"`
	EventID      string    `json:"event_id"`
	Tenant       string    `json:"tenant"`
	Instruction  string    `json:"instruction"`
	Stage        string    `json:"stage"`
	ImageURL     string    `json:"image_url"`
	NarrationURL string    `json:"narration_url,omitempty"`
	Replied      bool      `json:"replied"`
	UsageToday   int       `json:"usage_today"`
	CompletedAt  time.Time `json:"completed_at"`
}

// NewCloudEventsSink builds a binary-mode HTTP sender targeting sinkURL.
func NewCloudEventsSink(sinkURL, source string) (*CloudEventsSink, error) {
	protocol, err := cehttp.New(cehttp.WithTarget(sinkURL))
	if err != nil {
		return nil, fmt.Errorf("cloudevents protocol: %w", err)
	}
	client, err := cloudevents.NewClient(protocol, cloudevents.WithTimeNow())
	if err != nil {
		return nil, fmt.Errorf("cloudevents client: %w", err)
	}
	if source == "" {
		source = "bananabot"
	}
	return &CloudEventsSink{client: client, source: source}, nil
}

// JobCompleted emits one event per committed job.
func (s *CloudEventsSink) JobCompleted(ctx context.Context, result domain.JobResult) error {
	id := result.RunID
	if id == "" {
		id = uuid.NewString()
	}

	event := ceevent.New()
	event.SetID(id)
	event.SetType(JobCompletedType)
	event.SetSource(s.source)
	event.SetSubject(result.EventID)
	if err := event.SetData(ceevent.ApplicationJSON, jobCompleted{
		RunID:        result.RunID,
		EventID:      result.EventID,
		Tenant:       result.Tenant,
		Instruction:  string(result.Instruction),
		Stage:        string(result.Stage),
		ImageURL:     result.ImageURL,
		NarrationURL: result.NarrationURL,
		Replied:      result.Replied,
		UsageToday:   result.UsageToday,
		CompletedAt:  time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("encode job event: %w", err)
	}

	res := s.client.Send(ctx, event)
	if cloudevents.IsUndelivered(res) {
		return fmt.Errorf("deliver job event: %w", res)
	}
	if !cloudevents.IsACK(res) {
		return fmt.Errorf("job event rejected: %w", res)
	}
	return nil
}
