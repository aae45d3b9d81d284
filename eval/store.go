package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists GoldenQuery/EvaluationRun/QueryResult data. Following
// relstore's documented shape (sibling packages issue their own queries
// via Store.Pool() rather than relstore growing one method per caller),
// Store queries the pool directly instead of routing through relstore
// methods -- the same pattern tracing.Tracer uses for rag_traces.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a relstore pool for evaluation persistence.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadGoldenQueries reads the full golden dataset.
func (s *Store) LoadGoldenQueries(ctx context.Context) ([]GoldenQuery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, query, expected_chunk_ids, expected_document_ids,
		       expected_facts, forbidden_content, category
		FROM golden_dataset
	`)
	if err != nil {
		return nil, fmt.Errorf("eval: load golden queries: %w", err)
	}
	defer rows.Close()

	var queries []GoldenQuery
	for rows.Next() {
		var q GoldenQuery
		var expectedFacts *string
		var category *string
		if err := rows.Scan(&q.ID, &q.Query, &q.RelevantChunkIDs, &q.RelevantDocumentIDs,
			&expectedFacts, &q.ForbiddenContent, &category); err != nil {
			return nil, fmt.Errorf("eval: scan golden query: %w", err)
		}
		if expectedFacts != nil {
			q.KeyFacts = splitNonEmpty(*expectedFacts, "\n")
		}
		if category != nil {
			q.Category = *category
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// InsertGoldenQuery adds one golden query to the dataset.
func (s *Store) InsertGoldenQuery(ctx context.Context, q GoldenQuery) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO golden_dataset (query, expected_chunk_ids, expected_document_ids, expected_facts, forbidden_content, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id::text
	`, q.Query, q.RelevantChunkIDs, q.RelevantDocumentIDs, joinNonEmpty(q.KeyFacts, "\n"), q.ForbiddenContent, q.Category).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("eval: insert golden query: %w", err)
	}
	return id, nil
}

// UpdateGoldenQuery overwrites one golden query's fields in place.
func (s *Store) UpdateGoldenQuery(ctx context.Context, q GoldenQuery) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE golden_dataset
		SET query = $2, expected_chunk_ids = $3, expected_document_ids = $4,
		    expected_facts = $5, forbidden_content = $6, category = $7
		WHERE id = $1::uuid
	`, q.ID, q.Query, q.RelevantChunkIDs, q.RelevantDocumentIDs,
		joinNonEmpty(q.KeyFacts, "\n"), q.ForbiddenContent, q.Category)
	if err != nil {
		return fmt.Errorf("eval: update golden query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("eval: golden query %s not found", q.ID)
	}
	return nil
}

// DeleteGoldenQuery removes one golden query from the dataset.
func (s *Store) DeleteGoldenQuery(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM golden_dataset WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("eval: delete golden query: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("eval: golden query %s not found", id)
	}
	return nil
}

// CreateRun inserts a new run in pending status and returns its id.
func (s *Store) CreateRun(ctx context.Context, run *EvaluationRun) (string, error) {
	configJSON, err := json.Marshal(run.Config)
	if err != nil {
		return "", fmt.Errorf("eval: marshal config: %w", err)
	}
	var id string
	err = s.pool.QueryRow(ctx, `
		INSERT INTO evaluation_runs (label, status, config, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id::text
	`, run.Label, string(RunPending), configJSON, run.StartedAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("eval: create run: %w", err)
	}
	return id, nil
}

// UpdateRunStatus transitions a run's status, optionally recording an
// error message (used for the failed status).
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status RunStatus, errMessage string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE evaluation_runs SET status = $2, error_message = NULLIF($3, '') WHERE id = $1::uuid
	`, runID, string(status), errMessage)
	if err != nil {
		return fmt.Errorf("eval: update run status: %w", err)
	}
	return nil
}

// InsertResult persists one golden query's scored result for a run.
func (s *Store) InsertResult(ctx context.Context, runID string, res QueryResult) error {
	precisionJSON, err := json.Marshal(res.PrecisionAtK)
	if err != nil {
		return fmt.Errorf("eval: marshal precision: %w", err)
	}
	recallJSON, err := json.Marshal(res.RecallAtK)
	if err != nil {
		return fmt.Errorf("eval: marshal recall: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO evaluation_results (
			run_id, golden_query_id, precision_at_k, recall_at_k, mrr, groundedness,
			answer_relevance, key_facts_coverage, hallucination_detected,
			retrieved_chunk_ids, retrieved_document_ids, response_preview, latency_ms
		) VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, runID, res.GoldenQueryID, precisionJSON, recallJSON, res.MRR, res.Groundedness,
		res.AnswerRelevance, res.KeyFactsCoverage, res.HallucinationDetected,
		res.RetrievedChunkIDs, res.RetrievedDocumentIDs, res.ResponsePreview, res.LatencyMs)
	if err != nil {
		return fmt.Errorf("eval: insert result: %w", err)
	}
	return nil
}

// CompleteRun writes a run's final aggregate metrics and marks it
// completed.
func (s *Store) CompleteRun(ctx context.Context, run *EvaluationRun) error {
	catJSON, err := json.Marshal(run.CategoryMetrics)
	if err != nil {
		return fmt.Errorf("eval: marshal category metrics: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE evaluation_runs SET
			status = $2, avg_precision_at_5 = $3, avg_recall_at_20 = $4,
			avg_groundedness = $5, avg_latency_ms = $6, category_metrics = $7,
			completed_at = $8
		WHERE id = $1::uuid
	`, run.ID, string(RunCompleted), run.Aggregate.PrecisionAtK[5], run.Aggregate.RecallAtK[20],
		run.Aggregate.Groundedness, run.Aggregate.LatencyMs, catJSON, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("eval: complete run: %w", err)
	}
	return nil
}

// LoadRun reads back a run's summary row (without per-query results).
func (s *Store) LoadRun(ctx context.Context, runID string) (*EvaluationRun, error) {
	run := &EvaluationRun{ID: runID}
	var status string
	var configJSON, catJSON []byte
	var errMessage *string
	var avgPrecision5, avgRecall20, avgGroundedness, avgLatency *float64
	err := s.pool.QueryRow(ctx, `
		SELECT label, status, config, error_message, avg_precision_at_5, avg_recall_at_20,
		       avg_groundedness, avg_latency_ms, category_metrics, started_at, completed_at
		FROM evaluation_runs WHERE id = $1::uuid
	`, runID).Scan(&run.Label, &status, &configJSON, &errMessage, &avgPrecision5, &avgRecall20,
		&avgGroundedness, &avgLatency, &catJSON, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("eval: run %s not found", runID)
		}
		return nil, fmt.Errorf("eval: load run: %w", err)
	}
	run.Status = RunStatus(status)
	if errMessage != nil {
		run.ErrorMessage = *errMessage
	}
	if len(configJSON) > 0 {
		_ = json.Unmarshal(configJSON, &run.Config)
	}
	run.Aggregate = AggregateMetrics{
		PrecisionAtK: map[int]float64{},
		RecallAtK:    map[int]float64{},
	}
	if avgPrecision5 != nil {
		run.Aggregate.PrecisionAtK[5] = *avgPrecision5
	}
	if avgRecall20 != nil {
		run.Aggregate.RecallAtK[20] = *avgRecall20
	}
	if avgGroundedness != nil {
		run.Aggregate.Groundedness = *avgGroundedness
	}
	if avgLatency != nil {
		run.Aggregate.LatencyMs = *avgLatency
	}
	if len(catJSON) > 0 {
		_ = json.Unmarshal(catJSON, &run.CategoryMetrics)
	}
	return run, nil
}

// ListRuns reads back the most recent evaluation run summaries, newest
// first, without their per-query results.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]EvaluationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, label, status, error_message, avg_precision_at_5, avg_recall_at_20,
		       avg_groundedness, avg_latency_ms, category_metrics, started_at, completed_at
		FROM evaluation_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("eval: list runs: %w", err)
	}
	defer rows.Close()

	var runs []EvaluationRun
	for rows.Next() {
		var run EvaluationRun
		var status string
		var catJSON []byte
		var errMessage *string
		var avgPrecision5, avgRecall20, avgGroundedness, avgLatency *float64
		if err := rows.Scan(&run.ID, &run.Label, &status, &errMessage, &avgPrecision5, &avgRecall20,
			&avgGroundedness, &avgLatency, &catJSON, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("eval: scan run: %w", err)
		}
		run.Status = RunStatus(status)
		if errMessage != nil {
			run.ErrorMessage = *errMessage
		}
		run.Aggregate = AggregateMetrics{PrecisionAtK: map[int]float64{}, RecallAtK: map[int]float64{}}
		if avgPrecision5 != nil {
			run.Aggregate.PrecisionAtK[5] = *avgPrecision5
		}
		if avgRecall20 != nil {
			run.Aggregate.RecallAtK[20] = *avgRecall20
		}
		if avgGroundedness != nil {
			run.Aggregate.Groundedness = *avgGroundedness
		}
		if avgLatency != nil {
			run.Aggregate.LatencyMs = *avgLatency
		}
		if len(catJSON) > 0 {
			_ = json.Unmarshal(catJSON, &run.CategoryMetrics)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LoadResults reads back every per-query result recorded for a run.
func (s *Store) LoadResults(ctx context.Context, runID string) ([]QueryResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT golden_query_id::text, precision_at_k, recall_at_k, mrr, groundedness,
		       answer_relevance, key_facts_coverage, hallucination_detected,
		       retrieved_chunk_ids, retrieved_document_ids, response_preview, latency_ms
		FROM evaluation_results WHERE run_id = $1::uuid ORDER BY created_at
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("eval: load results: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var r QueryResult
		var precisionJSON, recallJSON []byte
		if err := rows.Scan(&r.GoldenQueryID, &precisionJSON, &recallJSON, &r.MRR, &r.Groundedness,
			&r.AnswerRelevance, &r.KeyFactsCoverage, &r.HallucinationDetected,
			&r.RetrievedChunkIDs, &r.RetrievedDocumentIDs, &r.ResponsePreview, &r.LatencyMs); err != nil {
			return nil, fmt.Errorf("eval: scan result: %w", err)
		}
		if len(precisionJSON) > 0 {
			_ = json.Unmarshal(precisionJSON, &r.PrecisionAtK)
		}
		if len(recallJSON) > 0 {
			_ = json.Unmarshal(recallJSON, &r.RecallAtK)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinNonEmpty(parts []string, sep string) string {
	return strings.Join(parts, sep)
}
