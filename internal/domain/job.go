package domain

// Stage enumerates pipeline milestones.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StagePublish   Stage = "publish"
	StageNarrate   Stage = "narrate"
	StageReply     Stage = "reply"
	StageDone      Stage = "done"
)

// JobResult describes how far one admitted event got through the pipeline.
type JobResult struct {
	RunID        string
	EventID      string
	Tenant       string
	Instruction  Instruction
	Stage        Stage
	Committed    bool
	ImageURL     string
	NarrationURL string
	Replied      bool
	UsageToday   int
	Err          error
}

// Failed reports whether the job stopped before its commit point.
func (r JobResult) Failed() bool {
	return !r.Committed
}
