package estimator

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/NERVsystems/ecoroute/pkg/tracing"
)

func TestEstimateSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracing.UseProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	defer tracing.UseProvider(noop.NewTracerProvider())

	cached, err := NewCachedProvider(SyntheticProvider{}, 4, nil)
	if err != nil {
		t.Fatal(err)
	}
	e := newTestEstimator(cached, 0)

	if _, err := e.Estimate(context.Background(), "Ferry Building", "Coit Tower"); err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}
	e.Estimate(context.Background(), "Coit Tower", "coit tower")

	ended := recorder.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}

	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[tracing.AttrEstimateOutcome] != OutcomeSuccess {
		t.Errorf("outcome attribute = %q, want %q", attrs[tracing.AttrEstimateOutcome], OutcomeSuccess)
	}
	if attrs[tracing.AttrEstimateRoutes] != "3" {
		t.Errorf("routes attribute = %q, want 3", attrs[tracing.AttrEstimateRoutes])
	}

	events := map[string]bool{}
	for _, ev := range ended[0].Events() {
		events[ev.Name] = true
	}
	if !events["simulated_delay"] || !events["route_cache"] {
		t.Errorf("expected simulated_delay and route_cache events, got %v", events)
	}

	for _, kv := range ended[1].Attributes() {
		if string(kv.Key) == tracing.AttrEstimateOutcome && kv.Value.AsString() != OutcomeDuplicateAddress {
			t.Errorf("second span outcome = %s, want %s", kv.Value.AsString(), OutcomeDuplicateAddress)
		}
	}
}
