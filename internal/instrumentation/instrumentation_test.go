package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNew(t *testing.T) {
	t.Run("Disabled Uses Noop Providers", func(t *testing.T) {
		inst, err := New(Config{})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer func() { _ = inst.Shutdown(context.Background()) }()

		if inst.Metrics() == nil {
			t.Fatal("expected metrics holder")
		}
		_, span := inst.Tracer("upstream").Start(context.Background(), "noop")
		if span.SpanContext().IsValid() {
			t.Error("expected non-recording span from noop provider")
		}
		span.End()
	})

	t.Run("Enabled Installs SDK Tracer", func(t *testing.T) {
		inst, err := New(Config{Enabled: true, ServiceName: "test"})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		_, span := inst.Tracer("upstream").Start(context.Background(), "real")
		if !span.SpanContext().IsValid() {
			t.Error("expected valid span context from sdk provider")
		}
		span.End()

		if err := inst.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
		if err := inst.Shutdown(context.Background()); err != nil {
			t.Errorf("second Shutdown() error = %v", err)
		}
	})

	t.Run("Resource Carries Service Name", func(t *testing.T) {
		inst, err := New(Config{ServiceName: "tracksearch-test"})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		found := false
		for _, kv := range inst.Resource().Attributes() {
			if string(kv.Key) == "service.name" && kv.Value.AsString() == "tracksearch-test" {
				found = true
			}
		}
		if !found {
			t.Error("service.name attribute missing from resource")
		}
	})

	t.Run("Nil Instrumentation Is Safe", func(t *testing.T) {
		var inst *Instrumentation
		if inst.Metrics() != nil {
			t.Error("expected nil metrics")
		}
		_, span := inst.Tracer("x").Start(context.Background(), "op")
		span.End()
		if err := inst.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	metrics := Noop().Metrics()

	tc := []struct {
		name      string
		operation string
		status    int
	}{
		{"search ok", "search", 200},
		{"tracks unauthorized", "tracks", 401},
		{"features no response", "audio_features", 0},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			metrics.RecordUpstreamRequest(ctx, tt.operation, tt.status, 12.5)
		})
	}

	metrics.RecordRateLimited(ctx, "search")
	metrics.RecordTokenRefresh(ctx, false, true)
	metrics.RecordTokenRefresh(ctx, true, false)
	metrics.RecordHTTPRequest(ctx, "GET", "/api/v1/search", 200, 3.2)

	t.Run("Nil Metrics", func(t *testing.T) {
		var m *Metrics
		m.RecordUpstreamRequest(ctx, "search", 200, 1)
		m.RecordRateLimited(ctx, "search")
		m.RecordTokenRefresh(ctx, false, true)
		m.RecordHTTPRequest(ctx, "GET", "/health", 200, 1)
	})
}

func TestTracingHelpers(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	inst, err := New(Config{TracerProvider: tp})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("Error Span", func(t *testing.T) {
		_, span := inst.Tracer("upstream").Start(context.Background(), "spotify.search")
		AddUpstreamAttributes(span, "search", 2)
		AddErrorKind(span, "rate_limited")
		RecordError(span, errors.New("boom"))
		span.End()

		spans := recorder.Ended()
		got := spans[len(spans)-1]
		if got.Status().Code != codes.Error {
			t.Errorf("expected error status, got %v", got.Status().Code)
		}
		attrs := map[string]bool{}
		for _, kv := range got.Attributes() {
			attrs[string(kv.Key)] = true
		}
		for _, k := range []string{AttrUpstreamOperation, AttrUpstreamAttempt, AttrErrorKind} {
			if !attrs[k] {
				t.Errorf("missing attribute %s", k)
			}
		}
	})

	t.Run("Success Span", func(t *testing.T) {
		_, span := inst.Tracer("upstream").Start(context.Background(), "spotify.tracks")
		SetSpanSuccess(span)
		span.End()

		spans := recorder.Ended()
		if spans[len(spans)-1].Status().Code != codes.Ok {
			t.Error("expected ok status")
		}
	})

	t.Run("Nil Span", func(t *testing.T) {
		RecordError(nil, errors.New("x"))
		SetSpanSuccess(nil)
		AddUpstreamAttributes(nil, "search", 1)
		AddErrorKind(nil, "")
	})
}
