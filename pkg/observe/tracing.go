package observe

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/slicestore/pkg/store"
)

// Default tracer name for store spans.
const defaultTracerName = "slicestore"

// TracingConfig configures the OpenTelemetry observer.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "slicestore").
	TracerName string

	// Provider is the tracer provider (default: the global provider).
	Provider trace.TracerProvider

	// Context returns the parent context for new spans.
	// Default: context.Background.
	Context func() context.Context

	// IncludeFields records the written field names on set spans.
	IncludeFields bool
}

// TracingOption configures the OpenTelemetry observer.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = tp
	}
}

// WithParentContext sets the function supplying parent contexts.
func WithParentContext(fn func() context.Context) TracingOption {
	return func(c *TracingConfig) {
		c.Context = fn
	}
}

// WithIncludeFields enables recording written field names.
func WithIncludeFields(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeFields = include
	}
}

// Tracing records one span per Set and per notification pass.
type Tracing struct {
	tracer        trace.Tracer
	parent        func() context.Context
	includeFields bool
}

// NewTracing creates the tracing observer.
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{
		TracerName: defaultTracerName,
		Context:    context.Background,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	if config.Context == nil {
		config.Context = context.Background
	}

	return &Tracing{
		tracer:        config.Provider.Tracer(config.TracerName),
		parent:        config.Context,
		includeFields: config.IncludeFields,
	}
}

func keyStrings(keys []store.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// ObserveSet implements store.Observer.
func (t *Tracing) ObserveSet(ev store.SetEvent) {
	attrs := []attribute.KeyValue{
		attribute.Int64("slicestore.seq", int64(ev.Seq)),
		attribute.Bool("slicestore.global", ev.Global),
		attribute.StringSlice("slicestore.keys", keyStrings(ev.Keys)),
		attribute.Bool("slicestore.batched", ev.Batched),
	}
	if t.includeFields {
		attrs = append(attrs, attribute.StringSlice("slicestore.fields", ev.Fields))
	}

	_, span := t.tracer.Start(t.parent(), "slicestore.set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
		trace.WithTimestamp(ev.Start),
	)
	defer span.End(trace.WithTimestamp(ev.Start.Add(ev.Duration)))

	if ev.Err != nil {
		span.RecordError(ev.Err)
		span.SetStatus(codes.Error, ev.Err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// ObserveDispatch implements store.Observer.
func (t *Tracing) ObserveDispatch(ev store.DispatchEvent) {
	_, span := t.tracer.Start(t.parent(), "slicestore.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int64("slicestore.seq", int64(ev.Seq)),
			attribute.Bool("slicestore.global", ev.Global),
			attribute.StringSlice("slicestore.keys", keyStrings(ev.Keys)),
			attribute.Int("slicestore.invoked", ev.Invoked),
		),
	)
	defer span.End()

	if len(ev.Faults) == 0 {
		span.SetStatus(codes.Ok, "")
		return
	}

	msgs := make([]string, 0, len(ev.Faults))
	for _, f := range ev.Faults {
		span.RecordError(f, trace.WithAttributes(attribute.String("slicestore.key", f.Key)))
		msgs = append(msgs, f.FormatCompact())
	}
	span.SetStatus(codes.Error, strings.Join(msgs, "; "))
}

// ObserveRegistry implements store.Observer. Registry changes are not traced.
func (t *Tracing) ObserveRegistry(store.RegistryEvent) {}
