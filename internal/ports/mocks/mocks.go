// Package mocks holds testify mocks for the driven ports.
package mocks

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"

	"BananaBot/internal/domain"
	"BananaBot/internal/ports"
)

// TestingT is the subset of *testing.T the constructors need.
type TestingT interface {
	mock.TestingT
	Cleanup(func())
}

func register(m *mock.Mock, t TestingT) {
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
}

// MockFetcher is a mock of ports.Fetcher.
type MockFetcher struct{ mock.Mock }

// NewMockFetcher creates a mock that asserts its expectations on cleanup.
func NewMockFetcher(t TestingT) *MockFetcher {
	m := &MockFetcher{}
	register(&m.Mock, t)
	return m
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (domain.Image, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(domain.Image), args.Error(1)
}

// MockTransformer is a mock of ports.Transformer.
type MockTransformer struct{ mock.Mock }

// NewMockTransformer creates a mock that asserts its expectations on cleanup.
func NewMockTransformer(t TestingT) *MockTransformer {
	m := &MockTransformer{}
	register(&m.Mock, t)
	return m
}

func (m *MockTransformer) Transform(ctx context.Context, req ports.TransformRequest) (domain.Image, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(domain.Image), args.Error(1)
}

// MockPublisher is a mock of ports.Publisher.
type MockPublisher struct{ mock.Mock }

// NewMockPublisher creates a mock that asserts its expectations on cleanup.
func NewMockPublisher(t TestingT) *MockPublisher {
	m := &MockPublisher{}
	register(&m.Mock, t)
	return m
}

func (m *MockPublisher) Publish(ctx context.Context, data []byte, ext string) (string, error) {
	args := m.Called(ctx, data, ext)
	return args.String(0), args.Error(1)
}

// MockNarrator is a mock of ports.Narrator.
type MockNarrator struct{ mock.Mock }

// NewMockNarrator creates a mock that asserts its expectations on cleanup.
func NewMockNarrator(t TestingT) *MockNarrator {
	m := &MockNarrator{}
	register(&m.Mock, t)
	return m
}

func (m *MockNarrator) Synthesize(ctx context.Context, text string) ([]byte, error) {
	args := m.Called(ctx, text)
	audio, _ := args.Get(0).([]byte)
	return audio, args.Error(1)
}

// MockReplier is a mock of ports.Replier.
type MockReplier struct{ mock.Mock }

// NewMockReplier creates a mock that asserts its expectations on cleanup.
func NewMockReplier(t TestingT) *MockReplier {
	m := &MockReplier{}
	register(&m.Mock, t)
	return m
}

func (m *MockReplier) Reply(ctx context.Context, event domain.Event, text string) error {
	return m.Called(ctx, event, text).Error(0)
}

// MockAlerter is a mock of ports.Alerter.
type MockAlerter struct{ mock.Mock }

// NewMockAlerter creates a mock that asserts its expectations on cleanup.
func NewMockAlerter(t TestingT) *MockAlerter {
	m := &MockAlerter{}
	register(&m.Mock, t)
	return m
}

func (m *MockAlerter) Alert(ctx context.Context, message string) error {
	return m.Called(ctx, message).Error(0)
}

// MockAuditSink is a mock of ports.AuditSink.
type MockAuditSink struct{ mock.Mock }

// NewMockAuditSink creates a mock that asserts its expectations on cleanup.
func NewMockAuditSink(t TestingT) *MockAuditSink {
	m := &MockAuditSink{}
	register(&m.Mock, t)
	return m
}

func (m *MockAuditSink) JobCompleted(ctx context.Context, result domain.JobResult) error {
	return m.Called(ctx, result).Error(0)
}

// MockFeedSource is a mock of ports.FeedSource.
type MockFeedSource struct{ mock.Mock }

// NewMockFeedSource creates a mock that asserts its expectations on cleanup.
func NewMockFeedSource(t TestingT) *MockFeedSource {
	m := &MockFeedSource{}
	register(&m.Mock, t)
	return m
}

func (m *MockFeedSource) Stream(ctx context.Context, scope string) iter.Seq2[domain.Event, error] {
	return m.Called(ctx, scope).Get(0).(iter.Seq2[domain.Event, error])
}

func (m *MockFeedSource) Recent(ctx context.Context, scope string, limit int) ([]domain.Event, error) {
	args := m.Called(ctx, scope, limit)
	events, _ := args.Get(0).([]domain.Event)
	return events, args.Error(1)
}

var (
	_ ports.Fetcher     = (*MockFetcher)(nil)
	_ ports.Transformer = (*MockTransformer)(nil)
	_ ports.Publisher   = (*MockPublisher)(nil)
	_ ports.Narrator    = (*MockNarrator)(nil)
	_ ports.Replier     = (*MockReplier)(nil)
	_ ports.Alerter     = (*MockAlerter)(nil)
	_ ports.AuditSink   = (*MockAuditSink)(nil)
	_ ports.FeedSource  = (*MockFeedSource)(nil)
)
