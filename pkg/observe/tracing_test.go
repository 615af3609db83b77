package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vango-dev/slicestore/pkg/store"
)

func newRecordedTracing(opts ...TracingOption) (*Tracing, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	opts = append([]TracingOption{WithTracerProvider(tp)}, opts...)
	return NewTracing(opts...), sr
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracingSetSpan(t *testing.T) {
	tr, sr := newRecordedTracing(WithIncludeFields(true), WithTracerName("test"))
	s := newObservedStore(tr)

	_ = s.Set(increment, "count")

	var set sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		if span.Name() == "slicestore.set" {
			set = span
		}
	}
	if set == nil {
		t.Fatal("expected a slicestore.set span")
	}
	if set.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", set.Status().Code)
	}
	if v, ok := attrValue(set.Attributes(), "slicestore.keys"); !ok || len(v.AsStringSlice()) != 1 || v.AsStringSlice()[0] != "count" {
		t.Errorf("slicestore.keys = %v", v.AsStringSlice())
	}
	if v, ok := attrValue(set.Attributes(), "slicestore.fields"); !ok || v.AsStringSlice()[0] != "count" {
		t.Errorf("slicestore.fields = %v", v.AsStringSlice())
	}
	if v, _ := attrValue(set.Attributes(), "slicestore.seq"); v.AsInt64() != 1 {
		t.Errorf("slicestore.seq = %d, want 1", v.AsInt64())
	}
	if set.EndTime().Before(set.StartTime()) {
		t.Error("span ends before it starts")
	}
	if set.InstrumentationScope().Name != "test" {
		t.Errorf("tracer name = %q, want test", set.InstrumentationScope().Name)
	}
}

func TestTracingSetterFault(t *testing.T) {
	tr, sr := newRecordedTracing()
	s := newObservedStore(tr)

	_ = s.Set(func(store.State) store.State { panic("boom") })

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1 (no dispatch after a setter fault)", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", spans[0].Status().Code)
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected the setter fault to be recorded as an event")
	}
}

func TestTracingDispatchFaults(t *testing.T) {
	tr, sr := newRecordedTracing()
	s := newObservedStore(tr)
	s.Subscribe("count", func() { panic("bad") })
	s.Subscribe("count", func() {})

	_ = s.Set(increment, "count")

	var dispatch sdktrace.ReadOnlySpan
	for _, span := range sr.Ended() {
		if span.Name() == "slicestore.dispatch" {
			dispatch = span
		}
	}
	if dispatch == nil {
		t.Fatal("expected a slicestore.dispatch span")
	}
	if dispatch.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", dispatch.Status().Code)
	}
	if v, _ := attrValue(dispatch.Attributes(), "slicestore.invoked"); v.AsInt64() != 2 {
		t.Errorf("slicestore.invoked = %d, want 2", v.AsInt64())
	}
}

type ctxKey struct{}

func TestTracingParentContext(t *testing.T) {
	called := false
	tr, _ := newRecordedTracing(WithParentContext(func() context.Context {
		called = true
		return context.WithValue(context.Background(), ctxKey{}, "x")
	}))
	tr.ObserveSet(store.SetEvent{Global: true})
	if !called {
		t.Error("parent context function was not used")
	}
}

func TestSetupTracingWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "", "slicestore")
	if err != nil {
		t.Fatalf("SetupTracing() error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error: %v", err)
	}
}
