package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/sancovp/metasync/internal/tracker"
)

const storeScopeName = "github.com/sancovp/metasync/internal/tracker"

// InstrumentedStore wraps a tracker.IssueStore with OTel tracing and
// metrics. Every method gets a span and is counted in metasync.tracker.*
// metrics. Use WrapStore to create one; it returns the original store
// unchanged when telemetry is disabled.
type InstrumentedStore struct {
	inner  tracker.IssueStore
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapStore returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStore(s tracker.IssueStore) tracker.IssueStore {
	if !Enabled() {
		return s
	}
	m := Meter(storeScopeName)
	ops, _ := m.Int64Counter("metasync.tracker.operations",
		metric.WithDescription("Total tracker operations executed"),
	)
	dur, _ := m.Float64Histogram("metasync.tracker.operation.duration",
		metric.WithDescription("Tracker operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("metasync.tracker.errors",
		metric.WithDescription("Total tracker operation errors"),
	)
	return &InstrumentedStore{
		inner:  s,
		tracer: Tracer(storeScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named tracker operation.
func (s *InstrumentedStore) op(ctx context.Context, name, repo string) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	attrs := []attribute.KeyValue{
		attribute.String("tracker.operation", name),
		attribute.String("tracker.repo", repo),
	}
	ctx, span := s.tracer.Start(ctx, "tracker."+name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now(), attrs
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStore) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (s *InstrumentedStore) SearchIssues(ctx context.Context, repo, titleContains string) ([]tracker.IssueSummary, error) {
	ctx, span, t, attrs := s.op(ctx, "SearchIssues", repo)
	v, err := s.inner.SearchIssues(ctx, repo, titleContains)
	s.done(ctx, span, t, err, attrs)
	return v, err
}

func (s *InstrumentedStore) FetchIssue(ctx context.Context, repo string, number int) (*tracker.IssueSummary, error) {
	ctx, span, t, attrs := s.op(ctx, "FetchIssue", repo)
	v, err := s.inner.FetchIssue(ctx, repo, number)
	s.done(ctx, span, t, err, attrs)
	return v, err
}

func (s *InstrumentedStore) CreateIssue(ctx context.Context, repo, title, body string, labels []string) (*tracker.IssueSummary, error) {
	ctx, span, t, attrs := s.op(ctx, "CreateIssue", repo)
	v, err := s.inner.CreateIssue(ctx, repo, title, body, labels)
	s.done(ctx, span, t, err, attrs)
	return v, err
}

func (s *InstrumentedStore) EditIssue(ctx context.Context, repo string, number int, opts tracker.EditOptions) error {
	ctx, span, t, attrs := s.op(ctx, "EditIssue", repo)
	err := s.inner.EditIssue(ctx, repo, number, opts)
	s.done(ctx, span, t, err, attrs)
	return err
}

func (s *InstrumentedStore) SetIssueState(ctx context.Context, repo string, number int, state tracker.IssueState) error {
	ctx, span, t, attrs := s.op(ctx, "SetIssueState", repo)
	err := s.inner.SetIssueState(ctx, repo, number, state)
	s.done(ctx, span, t, err, attrs)
	return err
}

func (s *InstrumentedStore) AddComment(ctx context.Context, repo string, number int, body string) error {
	ctx, span, t, attrs := s.op(ctx, "AddComment", repo)
	err := s.inner.AddComment(ctx, repo, number, body)
	s.done(ctx, span, t, err, attrs)
	return err
}

func (s *InstrumentedStore) GetLabels(ctx context.Context, repo string, number int) ([]string, error) {
	ctx, span, t, attrs := s.op(ctx, "GetLabels", repo)
	v, err := s.inner.GetLabels(ctx, repo, number)
	s.done(ctx, span, t, err, attrs)
	return v, err
}

func (s *InstrumentedStore) ListComments(ctx context.Context, repo string, number int) ([]string, error) {
	ctx, span, t, attrs := s.op(ctx, "ListComments", repo)
	v, err := s.inner.ListComments(ctx, repo, number)
	s.done(ctx, span, t, err, attrs)
	return v, err
}
