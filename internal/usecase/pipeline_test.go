package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"BananaBot/internal/admission"
	"BananaBot/internal/domain"
	"BananaBot/internal/infrastructure/fetch"
	"BananaBot/internal/infrastructure/storage"
	"BananaBot/internal/matcher"
	"BananaBot/internal/ports"
	"BananaBot/internal/ports/mocks"
	"BananaBot/internal/state"
	"BananaBot/internal/usecase"
)

var (
	rawImage    = domain.Image{Data: []byte("raw"), MIME: "image/jpeg"}
	editedImage = domain.Image{Data: []byte("edited"), MIME: "image/png"}
)

type fixture struct {
	now         time.Time
	store       *state.Store
	ctrl        *admission.Controller
	fetcher     *mocks.MockFetcher
	transformer *mocks.MockTransformer
	publisher   *mocks.MockPublisher
	replier     *mocks.MockReplier
	alerter     *mocks.MockAlerter
	audit       *mocks.MockAuditSink
	narrator    ports.Narrator
	reference   *domain.Image
	fetchImpl   ports.Fetcher
	policy      admission.Policy
	replies     usecase.ReplyPolicy

	defaultInstruction string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := state.Open(context.Background(), storage.NewMemoryBackend(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return &fixture{
		now:         time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC),
		store:       store,
		fetcher:     mocks.NewMockFetcher(t),
		transformer: mocks.NewMockTransformer(t),
		publisher:   mocks.NewMockPublisher(t),
		replier:     mocks.NewMockReplier(t),
		alerter:     mocks.NewMockAlerter(t),
		audit:       mocks.NewMockAuditSink(t),
		policy:      admission.Policy{HourlyCap: -1, DailyBudget: -1},
	}
}

func (f *fixture) clock() time.Time { return f.now }

func (f *fixture) dayKey() string { return admission.DayKey(f.now, time.UTC) }

func (f *fixture) pipeline() *usecase.Pipeline {
	var fetcher ports.Fetcher = f.fetcher
	if f.fetchImpl != nil {
		fetcher = f.fetchImpl
	}
	return usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:     fetcher,
		Transformer: f.transformer,
		Reference:   f.reference,
		Publisher:   f.publisher,
		Narrator:    f.narrator,
		Replier:     f.replier,
		Store:       f.store,
		Alerter:     f.alerter,
		Audit:       f.audit,
		DayKey:      func(t time.Time) string { return admission.DayKey(t, time.UTC) },
		RetryDelay:  time.Millisecond,
		Now:         f.clock,
	})
}

func (f *fixture) handler() *usecase.Handler {
	f.ctrl = admission.NewController(f.store, f.policy, nil)
	return usecase.NewHandler(usecase.HandlerDeps{
		Matcher:   matcher.New(matcher.Options{}),
		Store:     f.store,
		Admission: f.ctrl,
		Pipeline:  f.pipeline(),
		Replier:   f.replier,
		Replies:   f.replies,
		Now:       f.clock,

		DefaultInstruction: f.defaultInstruction,
	})
}

func (f *fixture) expectHappyPath(eventURL string) {
	f.fetcher.On("Fetch", mock.Anything, eventURL).Return(rawImage, nil).Once()
	f.transformer.On("Transform", mock.Anything, ports.TransformRequest{Image: rawImage, Instruction: "make it sunset"}).Return(editedImage, nil).Once()
	f.publisher.On("Publish", mock.Anything, editedImage.Data, "png").Return("https://raw.example/out.png", nil).Once()
}

func sunsetEvent(id string) domain.Event {
	return domain.Event{ID: id, Body: `hey u/bananas "make it sunset"`, Author: "Alice", AttachmentURL: "https://i.example/" + id + ".jpg"}
}

func TestProcessCommitsAfterPublishAndReplies(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := sunsetEvent("c1")
	f.expectHappyPath(ev.AttachmentURL)
	f.replier.On("Reply", mock.Anything, ev, "🍌 Edit done: make it sunset\n\nhttps://raw.example/out.png").Return(nil).Once()
	f.audit.On("JobCompleted", mock.Anything, mock.MatchedBy(func(r domain.JobResult) bool {
		return r.Committed && r.EventID == "c1" && r.UsageToday == 1
	})).Return(nil).Once()

	result := f.pipeline().Process(context.Background(), ev, "make it sunset")

	if !result.Committed || result.Stage != domain.StageDone || !result.Replied {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := f.store.Usage(f.dayKey()); got != 1 {
		t.Fatalf("expected usage 1, got %d", got)
	}
	if !f.store.IsProcessed("c1") {
		t.Fatal("expected event to be processed")
	}
}

func TestOversizeAttachmentAbortsDuringFetch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	f := newFixture(t)
	f.fetchImpl = fetch.NewDownloader(fetch.Options{Client: server.Client(), MaxBytes: 16})
	h := f.handler()

	ev := sunsetEvent("c-big")
	ev.AttachmentURL = server.URL + "/huge.png"
	handled := h.Handle(context.Background(), ev)

	if handled.Outcome != usecase.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", handled.Outcome)
	}
	if handled.Job.Stage != domain.StageFetch || !errors.Is(handled.Job.Err, domain.ErrTooLarge) {
		t.Fatalf("expected fetch-stage too-large failure, got %+v", handled.Job)
	}
	f.transformer.AssertNotCalled(t, "Transform", mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	f.replier.AssertNotCalled(t, "Reply", mock.Anything, mock.Anything, mock.Anything)
	if !f.store.IsProcessed("c-big") {
		t.Fatal("expected oversize event to be marked processed")
	}
	if got := f.store.Usage(f.dayKey()); got != 0 {
		t.Fatalf("expected usage uncharged, got %d", got)
	}
}

func TestPublishRetriedOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := sunsetEvent("c2")
	f.fetcher.On("Fetch", mock.Anything, ev.AttachmentURL).Return(rawImage, nil).Once()
	f.transformer.On("Transform", mock.Anything, mock.Anything).Return(editedImage, nil).Once()
	f.publisher.On("Publish", mock.Anything, editedImage.Data, "png").Return("", errors.New("connection reset")).Once()
	f.publisher.On("Publish", mock.Anything, editedImage.Data, "png").Return("https://raw.example/retry.png", nil).Once()
	f.replier.On("Reply", mock.Anything, ev, mock.Anything).Return(nil).Once()
	f.audit.On("JobCompleted", mock.Anything, mock.Anything).Return(nil).Once()

	result := f.pipeline().Process(context.Background(), ev, "make it sunset")

	if !result.Committed || result.ImageURL != "https://raw.example/retry.png" {
		t.Fatalf("unexpected result %+v", result)
	}
	f.publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestPublishFailureLeavesUsageUncharged(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := sunsetEvent("c3")
	publishErr := &domain.PublishError{Status: "502 Bad Gateway"}
	f.fetcher.On("Fetch", mock.Anything, ev.AttachmentURL).Return(rawImage, nil).Once()
	f.transformer.On("Transform", mock.Anything, mock.Anything).Return(editedImage, nil).Once()
	f.publisher.On("Publish", mock.Anything, mock.Anything, "png").Return("", publishErr).Twice()
	f.alerter.On("Alert", mock.Anything, mock.MatchedBy(func(msg string) bool {
		return strings.Contains(msg, "c3") && strings.Contains(msg, "publish")
	})).Return(nil).Once()

	result := f.pipeline().Process(context.Background(), ev, "make it sunset")

	var perr *domain.PublishError
	if result.Committed || !errors.As(result.Err, &perr) {
		t.Fatalf("expected uncommitted publish failure, got %+v", result)
	}
	if result.Stage != domain.StagePublish {
		t.Fatalf("expected publish stage, got %s", result.Stage)
	}
	if got := f.store.Usage(f.dayKey()); got != 0 {
		t.Fatalf("expected usage 0, got %d", got)
	}
	if !f.store.IsProcessed("c3") {
		t.Fatal("failed event should still be marked processed")
	}
}

func TestTransformWithoutResultIsTerminal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ev := sunsetEvent("c4")
	f.fetcher.On("Fetch", mock.Anything, ev.AttachmentURL).Return(rawImage, nil).Once()
	f.transformer.On("Transform", mock.Anything, mock.Anything).Return(domain.Image{}, nil).Once()
	f.alerter.On("Alert", mock.Anything, mock.Anything).Return(errors.New("telegram down")).Once()

	result := f.pipeline().Process(context.Background(), ev, "make it sunset")

	if !errors.Is(result.Err, domain.ErrNoResult) || result.Stage != domain.StageTransform {
		t.Fatalf("expected no-result transform failure, got %+v", result)
	}
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestNarrationPublishedAlongsideImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	narrator := mocks.NewMockNarrator(t)
	narrator.On("Synthesize", mock.Anything, "Edit applied: make it sunset").Return([]byte("ID3"), nil).Once()
	f.narrator = narrator

	ev := sunsetEvent("c5")
	f.expectHappyPath(ev.AttachmentURL)
	f.publisher.On("Publish", mock.Anything, []byte("ID3"), "mp3").Return("https://raw.example/voice.mp3", nil).Once()
	f.replier.On("Reply", mock.Anything, ev, mock.MatchedBy(func(text string) bool {
		return strings.HasSuffix(text, "\n\n🔊 Narration: https://raw.example/voice.mp3")
	})).Return(nil).Once()
	f.audit.On("JobCompleted", mock.Anything, mock.Anything).Return(nil).Once()

	result := f.pipeline().Process(context.Background(), ev, "make it sunset")
	if result.NarrationURL != "https://raw.example/voice.mp3" {
		t.Fatalf("unexpected narration url %q", result.NarrationURL)
	}
}

func TestNarrationAndReplyFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	narrator := mocks.NewMockNarrator(t)
	narrator.On("Synthesize", mock.Anything, mock.Anything).Return(nil, errors.New("quota")).Once()
	f.narrator = narrator

	ev := sunsetEvent("c6")
	f.expectHappyPath(ev.AttachmentURL)
	f.replier.On("Reply", mock.Anything, ev, "🍌 Edit done: make it sunset\n\nhttps://raw.example/out.png").Return(errors.New("403")).Once()
	f.audit.On("JobCompleted", mock.Anything, mock.Anything).Return(errors.New("sink down")).Once()

	result := f.pipeline().Process(context.Background(), ev, "make it sunset")

	if !result.Committed || result.Replied || result.Failed() {
		t.Fatalf("expected committed job without reply, got %+v", result)
	}
	if got := f.store.Usage(f.dayKey()); got != 1 {
		t.Fatalf("expected usage 1, got %d", got)
	}
}

func TestReferenceImageIsSentForBlending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	reference := &domain.Image{Data: []byte("texture"), MIME: "image/png"}
	f.reference = reference

	ev := sunsetEvent("c7")
	f.fetcher.On("Fetch", mock.Anything, ev.AttachmentURL).Return(rawImage, nil).Once()
	f.transformer.On("Transform", mock.Anything, ports.TransformRequest{Image: rawImage, Reference: reference, Instruction: "make it sunset"}).Return(editedImage, nil).Once()
	f.publisher.On("Publish", mock.Anything, editedImage.Data, "png").Return("https://raw.example/blend.png", nil).Once()
	f.replier.On("Reply", mock.Anything, ev, mock.Anything).Return(nil).Once()
	f.audit.On("JobCompleted", mock.Anything, mock.Anything).Return(nil).Once()

	if result := f.pipeline().Process(context.Background(), ev, "make it sunset"); !result.Committed {
		t.Fatalf("expected committed blend job, got %+v", result)
	}
}
