package tracing

import (
	"context"
	"errors"
	"testing"
)

func TestHashUserID_Is16HexChars(t *testing.T) {
	h := hashUserID("user-123")
	if len(h) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%q)", len(h), h)
	}
	for _, c := range h {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			t.Fatalf("expected lowercase hex, got %q", h)
		}
	}
}

func TestHashUserID_Deterministic(t *testing.T) {
	if hashUserID("same") != hashUserID("same") {
		t.Error("expected same input to hash identically")
	}
	if hashUserID("a") == hashUserID("b") {
		t.Error("expected different inputs to hash differently")
	}
}

func TestSampler_RateZeroAlwaysSkips(t *testing.T) {
	s := NewSampler(0)
	for i := 0; i < 50; i++ {
		if s.sample() {
			t.Fatal("rate=0 sampler sampled a trace")
		}
	}
}

func TestSampler_RateOneAlwaysSamples(t *testing.T) {
	s := NewSampler(1)
	for i := 0; i < 50; i++ {
		if !s.sample() {
			t.Fatal("rate=1 sampler skipped a trace")
		}
	}
}

func TestStartTrace_SampledOutReturnsEmptyID(t *testing.T) {
	tracer := New(NewSampler(0), nil, false)
	tr := tracer.StartTrace(context.Background(), "user-1", "session-1", 42)
	if tr.ID != "" {
		t.Fatalf("expected empty id for sampled-out trace, got %q", tr.ID)
	}
}

func TestStartSpan_NoOpOnSampledOutTrace(t *testing.T) {
	tracer := New(NewSampler(0), nil, false)
	tr := tracer.StartTrace(context.Background(), "user-1", "session-1", 42)

	span := tr.StartSpan(SpanVectorSearch, "")
	if span != nil {
		t.Fatal("expected nil span on sampled-out trace")
	}
	span.End(nil) // must not panic
}

func TestTrace_SpansRecordedInOrder(t *testing.T) {
	tracer := New(NewSampler(1), nil, false)
	tr := tracer.StartTrace(context.Background(), "user-1", "session-1", 10)

	s1 := tr.StartSpan(SpanQueryAnalysis, "")
	s1.End(map[string]any{"ok": true})
	s2 := tr.StartSpan(SpanVectorSearch, "")
	s2.End(nil)

	spans := tr.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != SpanQueryAnalysis || spans[1].Name != SpanVectorSearch {
		t.Errorf("expected spans in start order, got %+v", spans)
	}
	if spans[0].Status != SpanOK {
		t.Errorf("expected ok status after End, got %v", spans[0].Status)
	}
}

func TestEndTrace_ClosesDanglingSpansAsError(t *testing.T) {
	tracer := New(NewSampler(1), nil, false)
	tr := tracer.StartTrace(context.Background(), "user-1", "session-1", 10)

	_ = tr.StartSpan(SpanLLMGeneration, "") // never closed

	tracer.EndTrace(context.Background(), tr, true, "factual", "hybrid", 100, 5, 3, 0.8)

	spans := tr.Spans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status != SpanError {
		t.Errorf("expected dangling span closed as error, got %v", spans[0].Status)
	}
	if spans[0].Error != "span not properly closed" {
		t.Errorf("unexpected error message: %q", spans[0].Error)
	}
}

func TestEndTrace_FinalizesSummaryFields(t *testing.T) {
	tracer := New(NewSampler(1), nil, false)
	tr := tracer.StartTrace(context.Background(), "user-1", "session-1", 10)

	tracer.EndTrace(context.Background(), tr, true, "factual", "hybrid", 100, 5, 3, 0.9)

	if !tr.Success || tr.QueryType != "factual" || tr.Strategy != "hybrid" {
		t.Errorf("expected summary fields set, got %+v", tr)
	}
	if tr.TokensUsed != 100 || tr.ChunksRetrieved != 5 || tr.ChunksUsed != 3 {
		t.Errorf("expected counters set, got %+v", tr)
	}
	if tr.Groundedness != 0.9 {
		t.Errorf("expected groundedness 0.9, got %v", tr.Groundedness)
	}
	if tr.EndedAt.Before(tr.StartedAt) {
		t.Error("expected EndedAt after StartedAt")
	}
}

func TestEndTrace_NoOpOnSampledOutTrace(t *testing.T) {
	tracer := New(NewSampler(0), nil, true)
	tr := tracer.StartTrace(context.Background(), "user-1", "session-1", 10)
	// Must not panic even with persistence enabled and a nil pool.
	tracer.EndTrace(context.Background(), tr, false, "", "", 0, 0, 0, 0)
}

func TestSpanEndError_SetsErrorStatusAndMessage(t *testing.T) {
	tracer := New(NewSampler(1), nil, false)
	tr := tracer.StartTrace(context.Background(), "user-1", "session-1", 10)

	span := tr.StartSpan(SpanLLMGeneration, "")
	span.EndError(errors.New("upstream timeout"), nil)

	if span.Status != SpanError {
		t.Errorf("expected error status, got %v", span.Status)
	}
	if span.Error != "upstream timeout" {
		t.Errorf("expected error message preserved, got %q", span.Error)
	}
}

func TestSeverityFor_MapsKindsAsExpected(t *testing.T) {
	cases := map[AlertKind]Severity{
		AlertHighLatency:   SeverityCritical,
		AlertHighErrorRate: SeverityCritical,
		AlertLowCacheHit:   SeverityWarning,
	}
	for kind, want := range cases {
		if got := severityFor(kind); got != want {
			t.Errorf("severityFor(%v) = %v, want %v", kind, got, want)
		}
	}
}
