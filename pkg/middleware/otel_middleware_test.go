package middleware

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/vharness/pkg/harness"
)

// recordingProvider hands out spans that remember what was set on them.
type recordingProvider struct {
	noop.TracerProvider
	spans []*recordingSpan
}

func (p *recordingProvider) Tracer(string, ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{p: p}
}

type recordingTracer struct {
	noop.Tracer
	p *recordingProvider
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	span := &recordingSpan{name: name, kind: cfg.SpanKind(), attrs: cfg.Attributes()}
	t.p.spans = append(t.p.spans, span)
	return trace.ContextWithSpan(ctx, span), span
}

type recordingSpan struct {
	noop.Span
	name   string
	kind   trace.SpanKind
	attrs  []attribute.KeyValue
	errs   []error
	status codes.Code
	ended  bool
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }
func (s *recordingSpan) SetStatus(code codes.Code, _ string)          { s.status = code }
func (s *recordingSpan) End(...trace.SpanEndOption)                   { s.ended = true }

func (s *recordingSpan) attr(key string) (attribute.Value, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOpenTelemetryMiddleware_RecordsSpan(t *testing.T) {
	tp := &recordingProvider{}
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithAttributeExtractor(func(*harness.Dispatch) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)
	d := &harness.Dispatch{ID: 4, Kind: harness.DispatchEvent, DispatcherID: "disp-1", HandlerID: 9}

	err := mw.Handle(context.Background(), d, func(ctx context.Context) error {
		if trace.SpanFromContext(ctx) != trace.Span(tp.spans[0]) {
			t.Fatal("expected the span to be carried by the context passed to next")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(tp.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tp.spans))
	}
	span := tp.spans[0]
	if span.name != SpanName {
		t.Errorf("span name = %q, want %q", span.name, SpanName)
	}
	if span.kind != trace.SpanKindInternal {
		t.Errorf("span kind = %v, want internal", span.kind)
	}
	if !span.ended || span.status != codes.Ok {
		t.Errorf("span ended=%v status=%v, want ended with Ok", span.ended, span.status)
	}

	wantAttrs := map[string]attribute.Value{
		"vharness.dispatcher_id": attribute.StringValue("disp-1"),
		"vharness.dispatch_id":   attribute.Int64Value(4),
		"vharness.kind":          attribute.StringValue("event"),
		"vharness.handler_id":    attribute.Int64Value(9),
		"test.attr":              attribute.StringValue("ok"),
	}
	for key, want := range wantAttrs {
		got, ok := span.attr(key)
		if !ok || got != want {
			t.Errorf("attribute %s = %v (present=%v), want %v", key, got.Emit(), ok, want.Emit())
		}
	}
}

func TestOpenTelemetryMiddleware_ErrorPropagates(t *testing.T) {
	tp := &recordingProvider{}
	mw := OpenTelemetry(WithTracerProvider(tp))
	wantErr := errors.New("boom")

	err := mw.Handle(context.Background(), &harness.Dispatch{Kind: harness.DispatchInvoke}, func(context.Context) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped error %v, got %v", wantErr, err)
	}

	span := tp.spans[0]
	if span.status != codes.Error {
		t.Errorf("status = %v, want Error", span.status)
	}
	if len(span.errs) != 1 || !errors.Is(span.errs[0], wantErr) {
		t.Errorf("recorded errors = %v, want [%v]", span.errs, wantErr)
	}
	if _, ok := span.attr("vharness.handler_id"); ok {
		t.Error("handler_id must only be set for events")
	}
}

func TestOpenTelemetryMiddleware_FilterSkipsSpan(t *testing.T) {
	tp := &recordingProvider{}
	mw := OpenTelemetry(
		WithTracerProvider(tp),
		WithTracerName("custom"),
		WithDispatchFilter(func(d *harness.Dispatch) bool { return d.Kind != harness.DispatchPost }),
	)

	called := false
	err := mw.Handle(context.Background(), &harness.Dispatch{Kind: harness.DispatchPost}, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err=%v called=%v, want nil and true", err, called)
	}
	if len(tp.spans) != 0 {
		t.Fatalf("filtered dispatch created %d spans", len(tp.spans))
	}
}

func TestOpenTelemetryMiddleware_DefaultsToGlobalProvider(t *testing.T) {
	mw := OpenTelemetry()
	err := mw.Handle(context.Background(), &harness.Dispatch{}, func(ctx context.Context) error {
		if ctx == nil {
			t.Fatal("nil context passed to next")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
