package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vharness/pkg/harness"
)

const (
	defaultTracerName = "vharness"

	// SpanName is the name of every dispatch span.
	SpanName = "vharness.dispatch"
)

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "vharness").
	TracerName string

	// TracerProvider supplies the tracer.
	// Default: the global provider, otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// Filter determines which dispatches to trace.
	// If nil, all dispatches are traced.
	Filter func(d *harness.Dispatch) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(d *harness.Dispatch) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithDispatchFilter sets a filter function for dispatches.
func WithDispatchFilter(filter func(d *harness.Dispatch) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(d *harness.Dispatch) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates middleware that traces every dispatch.
//
// Each span carries the dispatcher id, the dispatch id and kind, and for
// UI events the handler id. Failures are recorded on the span and set its
// status. The span's context is passed down the chain, so middleware
// further in can attach child spans.
func OpenTelemetry(opts ...OTelOption) harness.Middleware {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	tracer := config.TracerProvider.Tracer(config.TracerName)

	return harness.MiddlewareFunc(func(ctx context.Context, d *harness.Dispatch, next func(context.Context) error) error {
		if config.Filter != nil && !config.Filter(d) {
			return next(ctx)
		}

		attrs := []attribute.KeyValue{
			attribute.String("vharness.dispatcher_id", d.DispatcherID),
			attribute.Int64("vharness.dispatch_id", int64(d.ID)),
			attribute.String("vharness.kind", d.Kind.String()),
		}
		if d.Kind == harness.DispatchEvent {
			attrs = append(attrs, attribute.Int64("vharness.handler_id", int64(d.HandlerID)))
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(d)...)
		}

		spanCtx, span := tracer.Start(ctx, SpanName,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		err := next(spanCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}
