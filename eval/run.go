package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/PeterKuehne/vexora-sub003/guardrails"
)

// PipelineResult is one golden query's outcome from the retrieval +
// generation pipeline, the shape a Pipeline implementation must return.
type PipelineResult struct {
	Answer               string
	RetrievedChunks       []guardrails.SourceContext
	RetrievedChunkIDs     []string
	RetrievedDocumentIDs  []string
	ComponentLatencies    map[string]time.Duration
}

// Pipeline is the narrow interface the harness drives a golden query
// through. It is satisfied by the root engine's Answer method, split
// out as an interface (mirroring retrieval.PermissionStore) so the
// harness can run against an in-memory fake in tests.
type Pipeline interface {
	Answer(ctx context.Context, query string, uc relstore.UserContext) (PipelineResult, error)
}

// RunOptions configures one evaluation run.
type RunOptions struct {
	Label              string
	Config             map[string]any
	PrivilegedIdentity relstore.UserContext
	EvaluateGeneration bool
}

// Runner drives golden queries through a Pipeline under a privileged
// identity (bypassing the caller's own document permissions) and scores
// each result, following eval/evaluator.go's Run control flow: per-test
// accumulation, then overall and per-category averaging.
type Runner struct {
	pipeline Pipeline
	store    *Store
}

// NewRunner builds a Runner. store may be nil to run without
// persistence (useful for one-off comparisons in tests).
func NewRunner(pipeline Pipeline, store *Store) *Runner {
	return &Runner{pipeline: pipeline, store: store}
}

// Run executes queries against the pipeline end to end: creates the run
// record (pending -> running), scores each query, aggregates, persists,
// and marks the run completed or failed.
func (r *Runner) Run(ctx context.Context, queries []GoldenQuery, opts RunOptions) (*EvaluationRun, error) {
	run := &EvaluationRun{
		Label:           opts.Label,
		Config:          opts.Config,
		Status:          RunPending,
		CategoryMetrics: make(map[string]AggregateMetrics),
		StartedAt:       time.Now(),
	}
	if r.store != nil {
		id, err := r.store.CreateRun(ctx, run)
		if err != nil {
			return nil, fmt.Errorf("eval: create run: %w", err)
		}
		run.ID = id
	}
	run.Status = RunRunning
	if r.store != nil {
		if err := r.store.UpdateRunStatus(ctx, run.ID, RunRunning, ""); err != nil {
			return nil, fmt.Errorf("eval: mark run running: %w", err)
		}
	}

	for _, q := range queries {
		result := r.runQuery(ctx, q, opts.EvaluateGeneration, opts.PrivilegedIdentity)
		run.Results = append(run.Results, result)
		if r.store != nil {
			if err := r.store.InsertResult(ctx, run.ID, result); err != nil {
				run.Status = RunFailed
				run.ErrorMessage = err.Error()
				run.CompletedAt = time.Now()
				_ = r.store.UpdateRunStatus(ctx, run.ID, RunFailed, run.ErrorMessage)
				return run, fmt.Errorf("eval: persist result: %w", err)
			}
		}
	}

	run.Aggregate, run.CategoryMetrics = aggregate(queries, run.Results)
	run.Status = RunCompleted
	run.CompletedAt = time.Now()
	if r.store != nil {
		if err := r.store.CompleteRun(ctx, run); err != nil {
			return run, fmt.Errorf("eval: complete run: %w", err)
		}
	}
	return run, nil
}

func (r *Runner) runQuery(ctx context.Context, q GoldenQuery, evaluateGeneration bool, identity relstore.UserContext) QueryResult {
	start := time.Now()
	result := QueryResult{GoldenQueryID: q.ID}

	pr, err := r.pipeline.Answer(ctx, q.Query, identity)
	if err != nil {
		result.Error = err.Error()
		result.LatencyMs = time.Since(start).Milliseconds()
		return result
	}

	result.RetrievedChunkIDs = pr.RetrievedChunkIDs
	result.RetrievedDocumentIDs = pr.RetrievedDocumentIDs
	result.ComponentLatencies = pr.ComponentLatencies
	result.ResponsePreview = previewOf(pr.Answer, 500)

	result.PrecisionAtK = make(map[int]float64, len(PrecisionKValues))
	for _, k := range PrecisionKValues {
		result.PrecisionAtK[k] = precisionAtK(pr.RetrievedChunkIDs, pr.RetrievedDocumentIDs, q.RelevantChunkIDs, q.RelevantDocumentIDs, k)
	}
	result.RecallAtK = make(map[int]float64, len(RecallKValues))
	for _, k := range RecallKValues {
		result.RecallAtK[k] = recallAtK(pr.RetrievedChunkIDs, pr.RetrievedDocumentIDs, q.RelevantChunkIDs, q.RelevantDocumentIDs, k)
	}
	result.MRR = mrr(pr.RetrievedChunkIDs, pr.RetrievedDocumentIDs, q.RelevantChunkIDs, q.RelevantDocumentIDs)

	if evaluateGeneration {
		result.Groundedness = groundedness(pr.Answer, pr.RetrievedChunks)
		result.AnswerRelevance = answerRelevance(q.Query, pr.Answer)
		result.KeyFactsCoverage = keyFactsCoverage(pr.Answer, q.KeyFacts)
		result.HallucinationDetected = hallucinationDetected(pr.Answer, q.ForbiddenContent)
	}

	result.LatencyMs = time.Since(start).Milliseconds()
	return result
}

func previewOf(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// aggregate computes overall and per-category averages over a run's
// results, skipping errored queries, following eval/evaluator.go's Run
// accumulation (exclude errors so they don't depress averages with
// artificial zeros).
func aggregate(queries []GoldenQuery, results []QueryResult) (AggregateMetrics, map[string]AggregateMetrics) {
	categoryOf := make(map[string]string, len(queries))
	for _, q := range queries {
		categoryOf[q.ID] = q.Category
	}

	overall := newAccumulator()
	byCategory := make(map[string]*accumulator)

	for _, res := range results {
		if res.Error != "" {
			continue
		}
		overall.add(res)
		cat := categoryOf[res.GoldenQueryID]
		if cat == "" {
			continue
		}
		acc, ok := byCategory[cat]
		if !ok {
			acc = newAccumulator()
			byCategory[cat] = acc
		}
		acc.add(res)
	}

	catMetrics := make(map[string]AggregateMetrics, len(byCategory))
	for cat, acc := range byCategory {
		catMetrics[cat] = acc.mean()
	}
	return overall.mean(), catMetrics
}

type accumulator struct {
	n                int
	precisionSum     map[int]float64
	recallSum        map[int]float64
	mrrSum           float64
	groundednessSum  float64
	relevanceSum     float64
	keyFactsSum      float64
	latencyMsSum     float64
}

func newAccumulator() *accumulator {
	return &accumulator{
		precisionSum: make(map[int]float64, len(PrecisionKValues)),
		recallSum:    make(map[int]float64, len(RecallKValues)),
	}
}

func (a *accumulator) add(res QueryResult) {
	a.n++
	for _, k := range PrecisionKValues {
		a.precisionSum[k] += res.PrecisionAtK[k]
	}
	for _, k := range RecallKValues {
		a.recallSum[k] += res.RecallAtK[k]
	}
	a.mrrSum += res.MRR
	a.groundednessSum += res.Groundedness
	a.relevanceSum += res.AnswerRelevance
	a.keyFactsSum += res.KeyFactsCoverage
	a.latencyMsSum += float64(res.LatencyMs)
}

func (a *accumulator) mean() AggregateMetrics {
	if a.n == 0 {
		return AggregateMetrics{
			PrecisionAtK: make(map[int]float64),
			RecallAtK:    make(map[int]float64),
		}
	}
	n := float64(a.n)
	m := AggregateMetrics{
		PrecisionAtK:     make(map[int]float64, len(a.precisionSum)),
		RecallAtK:        make(map[int]float64, len(a.recallSum)),
		MRR:              a.mrrSum / n,
		Groundedness:     a.groundednessSum / n,
		AnswerRelevance:  a.relevanceSum / n,
		KeyFactsCoverage: a.keyFactsSum / n,
		LatencyMs:        a.latencyMsSum / n,
	}
	for k, v := range a.precisionSum {
		m.PrecisionAtK[k] = v / n
	}
	for k, v := range a.recallSum {
		m.RecallAtK[k] = v / n
	}
	return m
}
