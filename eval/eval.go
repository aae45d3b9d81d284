// Package eval is the C9 Evaluation Harness: run golden queries through
// the retrieval + generation pipeline under a privileged identity,
// score each result against its ground truth, and persist run-level
// aggregates. Grounded on eval/evaluator.go's control flow (create
// report, run each test case, accumulate metrics, compute per-category
// averages) and eval/metrics.go's word-overlap scoring functions,
// widened from the fixed GoReason engine/Answer shape to the
// GoldenQuery/EvaluationRun model and the
// retrieval/promptcompose/llmdriver pipeline.
package eval

import (
	"time"
)

// Difficulty is a GoldenQuery's hand-assessed difficulty band.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// RunStatus is an EvaluationRun's lifecycle state.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// PrecisionKValues and RecallKValues are the k values the harness
// always scores at.
var (
	PrecisionKValues = []int{1, 3, 5, 10, 20}
	RecallKValues    = []int{5, 20}
)

// GoldenQuery is a hand-curated evaluation item with known-relevant
// documents/chunks, key facts the answer should cover, and content the
// answer must never surface.
type GoldenQuery struct {
	ID                  string
	Query               string
	ExpectedAnswer      string
	RelevantDocumentIDs []string
	RelevantChunkIDs    []string
	Category            string // router.QueryType
	Difficulty           Difficulty
	KeyFacts             []string
	ForbiddenContent     []string
}

// QueryResult is one GoldenQuery's scored outcome within a run.
type QueryResult struct {
	GoldenQueryID         string
	RetrievedChunkIDs     []string
	RetrievedDocumentIDs  []string
	ResponsePreview       string
	ComponentLatencies    map[string]time.Duration
	PrecisionAtK          map[int]float64
	RecallAtK             map[int]float64
	MRR                   float64
	Groundedness          float64
	AnswerRelevance       float64
	KeyFactsCoverage      float64
	HallucinationDetected bool
	LatencyMs             int64
	Error                 string
}

// AggregateMetrics are averaged scores over a set of QueryResults.
type AggregateMetrics struct {
	PrecisionAtK     map[int]float64
	RecallAtK        map[int]float64
	MRR              float64
	Groundedness     float64
	AnswerRelevance  float64
	KeyFactsCoverage float64
	LatencyMs        float64
}

// EvaluationRun is one pass of a golden dataset through the pipeline.
type EvaluationRun struct {
	ID              string
	Label           string
	Config          map[string]any
	Status          RunStatus
	ErrorMessage    string
	Results         []QueryResult
	Aggregate       AggregateMetrics
	CategoryMetrics map[string]AggregateMetrics
	StartedAt       time.Time
	CompletedAt     time.Time
}

// RunDelta is the difference between two completed runs. Latency is
// lower-is-better: DeltaLatencyMs is a.LatencyMs - b.LatencyMs, so a
// negative delta means b was slower.
type RunDelta struct {
	DeltaPrecisionAt5 float64
	DeltaRecallAt20   float64
	DeltaGroundedness float64
	DeltaLatencyMs    float64
}

// CompareRuns computes a's metrics minus b's, using the same
// lower-is-better convention for the latency delta's sign.
func CompareRuns(a, b EvaluationRun) RunDelta {
	return RunDelta{
		DeltaPrecisionAt5: a.Aggregate.PrecisionAtK[5] - b.Aggregate.PrecisionAtK[5],
		DeltaRecallAt20:   a.Aggregate.RecallAtK[20] - b.Aggregate.RecallAtK[20],
		DeltaGroundedness: a.Aggregate.Groundedness - b.Aggregate.Groundedness,
		DeltaLatencyMs:    a.Aggregate.LatencyMs - b.Aggregate.LatencyMs,
	}
}
