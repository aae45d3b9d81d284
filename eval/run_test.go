package eval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
)

type fakePipeline struct {
	byQuery map[string]PipelineResult
	errFor  map[string]error
}

func (f *fakePipeline) Answer(ctx context.Context, query string, uc relstore.UserContext) (PipelineResult, error) {
	if err, ok := f.errFor[query]; ok {
		return PipelineResult{}, err
	}
	return f.byQuery[query], nil
}

func TestRunner_Run_ComputesMetricsWithoutStore(t *testing.T) {
	pipeline := &fakePipeline{
		byQuery: map[string]PipelineResult{
			"q1": {
				Answer:               "the policy allows remote work",
				RetrievedChunkIDs:    []string{"c1", "c2"},
				RetrievedDocumentIDs: []string{"d1"},
				ComponentLatencies:   map[string]time.Duration{"vector_search": 5 * time.Millisecond},
			},
		},
	}
	runner := NewRunner(pipeline, nil)

	queries := []GoldenQuery{
		{ID: "g1", Query: "q1", Category: "factual", RelevantChunkIDs: []string{"c2"}, KeyFacts: []string{"remote work"}},
	}

	run, err := runner.Run(context.Background(), queries, RunOptions{EvaluateGeneration: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Status != RunCompleted {
		t.Fatalf("expected completed status, got %v", run.Status)
	}
	if len(run.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(run.Results))
	}
	res := run.Results[0]
	if res.PrecisionAtK[1] != 0 {
		t.Errorf("expected precision@1 = 0 (c1 not relevant), got %v", res.PrecisionAtK[1])
	}
	if res.KeyFactsCoverage != 1.0 {
		t.Errorf("expected full key facts coverage, got %v", res.KeyFactsCoverage)
	}
	if run.CategoryMetrics["factual"].KeyFactsCoverage != 1.0 {
		t.Errorf("expected per-category metrics to include factual, got %+v", run.CategoryMetrics)
	}
}

func TestRunner_Run_SkipsErroredQueriesInAggregates(t *testing.T) {
	pipeline := &fakePipeline{
		byQuery: map[string]PipelineResult{
			"ok": {Answer: "fine", RetrievedChunkIDs: []string{"c1"}},
		},
		errFor: map[string]error{"broken": errors.New("upstream failure")},
	}
	runner := NewRunner(pipeline, nil)

	queries := []GoldenQuery{
		{ID: "g1", Query: "ok", RelevantChunkIDs: []string{"c1"}},
		{ID: "g2", Query: "broken", RelevantChunkIDs: []string{"c1"}},
	}

	run, err := runner.Run(context.Background(), queries, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results recorded, got %d", len(run.Results))
	}
	if run.Results[1].Error == "" {
		t.Error("expected second result to carry the pipeline error")
	}
	// Aggregate should reflect only the one successful query.
	if run.Aggregate.PrecisionAtK[1] != 1.0 {
		t.Errorf("expected aggregate precision@1 = 1.0 from the one successful query, got %v", run.Aggregate.PrecisionAtK[1])
	}
}

func TestCompareRuns_LatencyDeltaIsLowerIsBetter(t *testing.T) {
	a := EvaluationRun{Aggregate: AggregateMetrics{
		PrecisionAtK: map[int]float64{5: 0.8},
		RecallAtK:    map[int]float64{20: 0.6},
		Groundedness: 0.9,
		LatencyMs:    100,
	}}
	b := EvaluationRun{Aggregate: AggregateMetrics{
		PrecisionAtK: map[int]float64{5: 0.5},
		RecallAtK:    map[int]float64{20: 0.4},
		Groundedness: 0.7,
		LatencyMs:    300,
	}}

	delta := CompareRuns(a, b)
	if delta.DeltaPrecisionAt5 <= 0 {
		t.Errorf("expected positive precision delta, got %v", delta.DeltaPrecisionAt5)
	}
	if delta.DeltaRecallAt20 <= 0 {
		t.Errorf("expected positive recall delta, got %v", delta.DeltaRecallAt20)
	}
	if delta.DeltaGroundedness <= 0 {
		t.Errorf("expected positive groundedness delta, got %v", delta.DeltaGroundedness)
	}
	// a is faster than b, so a.latency - b.latency is negative.
	if delta.DeltaLatencyMs >= 0 {
		t.Errorf("expected negative latency delta when a is faster, got %v", delta.DeltaLatencyMs)
	}
}
