// Package tracing is the C8 trace/span state machine: per-request
// trace trees with named spans, Bernoulli-sampled persistence, and the
// monitoring read-side (aggregation queries, alert generation). The
// span/trace shape (named spans pushed onto a stack, each with
// start/end/status/metadata) is grounded on the other_examples
// tracelangchaingo handler's spanEntry/Handler design, re-expressed
// without an OpenTelemetry dependency since persistence here is one
// relational table, not an external trace exporter. Following
// relstore's documented shape (sibling packages issue their own
// queries via Store.Pool() rather than relstore growing one method per
// caller, the same escape hatch graph/traversal.go uses for its
// store.DB()), tracing queries the pool directly instead of routing
// through relstore methods.
package tracing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SpanName is the closed set of spans a request may open.
type SpanName string

const (
	SpanQueryAnalysis      SpanName = "query_analysis"
	SpanEmbeddingGen       SpanName = "embedding_generation"
	SpanVectorSearch       SpanName = "vector_search"
	SpanGraphTraversal     SpanName = "graph_traversal"
	SpanReranking          SpanName = "reranking"
	SpanContextCompression SpanName = "context_compression"
	SpanLLMGeneration      SpanName = "llm_generation"
	SpanGuardrailsInput    SpanName = "guardrails_input"
	SpanGuardrailsOutput   SpanName = "guardrails_output"
)

// SpanStatus is a Span's lifecycle state.
type SpanStatus string

const (
	SpanRunning SpanStatus = "running"
	SpanOK      SpanStatus = "ok"
	SpanError   SpanStatus = "error"
)

// Span is one node in a trace tree.
type Span struct {
	ID           string         `json:"id"`
	ParentSpanID string         `json:"parent_span_id,omitempty"`
	Name         SpanName       `json:"name"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      time.Time      `json:"ended_at,omitempty"`
	Duration     time.Duration  `json:"duration_ns,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Status       SpanStatus     `json:"status"`
	Error        string         `json:"error,omitempty"`
}

// Trace is the tree of spans for one request.
type Trace struct {
	ID              string
	HashedUserID    string
	SessionID       string
	QueryLength     int
	QueryType       string
	Strategy        string
	Success         bool
	TotalLatencyMs  int
	TokensUsed      int
	ChunksRetrieved int
	ChunksUsed      int
	Groundedness    float64
	StartedAt       time.Time
	EndedAt         time.Time

	mu    sync.Mutex
	spans []*Span
}

// hashUserID SHA-256-hashes a user id and keeps the first 16 hex chars,
// so traces never persist a raw identifier.
func hashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:16]
}

// Sampler decides whether a given trace is persisted. Bernoulli with a
// configured rate; rate<=0 always skips, rate>=1 always samples.
type Sampler struct {
	Rate float64
	rand *rand.Rand
}

// NewSampler builds a Sampler with its own source so concurrent
// requests don't contend on the global rand lock.
func NewSampler(rate float64) *Sampler {
	return &Sampler{Rate: rate, rand: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (s *Sampler) sample() bool {
	if s.Rate <= 0 {
		return false
	}
	if s.Rate >= 1 {
		return true
	}
	return s.rand.Float64() < s.Rate
}

// traceRow is the flat, persistence-ready shape of a Trace, matching
// the rag_traces table's column set.
type traceRow struct {
	ID              string
	HashedUserID    string
	SessionID       string
	QueryLength     int
	QueryType       string
	Strategy        string
	Success         bool
	TotalLatencyMs  int
	TokensUsed      int
	ChunksRetrieved int
	ChunksUsed      int
	Groundedness    float64
	StartedAt       time.Time
	EndedAt         time.Time
	SpansJSON       []byte
}

// Tracer opens and closes traces, applying sampling and, when sampled
// and persistence is enabled, writing the finished trace straight to
// the pool -- following relstore's documented shape where sibling
// packages issue their own queries via Store.Pool() instead of
// relstore growing one method per caller.
type Tracer struct {
	Sampler *Sampler
	Pool    *pgxpool.Pool
	Enabled bool // persistence toggle, independent of sampling
}

// New builds a Tracer. A nil Pool or Enabled=false means traces are
// built in memory but never persisted.
func New(sampler *Sampler, pool *pgxpool.Pool, enabled bool) *Tracer {
	return &Tracer{Sampler: sampler, Pool: pool, Enabled: enabled}
}

// StartTrace begins a trace for one request. If sampling skips this
// trace, the returned Trace has an empty ID and every subsequent
// Span/End call on it is a no-op.
func (t *Tracer) StartTrace(ctx context.Context, userID, sessionID string, queryLength int) *Trace {
	if !t.Sampler.sample() {
		return &Trace{}
	}
	return &Trace{
		ID:           uuid.NewString(),
		HashedUserID: hashUserID(userID),
		SessionID:    sessionID,
		QueryLength:  queryLength,
		StartedAt:    time.Now(),
	}
}

// StartSpan opens a new span. Returns nil if tr is a no-op (sampled
// out) trace, so callers can unconditionally defer span.End(...) with a
// nil-safe method.
func (tr *Trace) StartSpan(name SpanName, parentSpanID string) *Span {
	if tr == nil || tr.ID == "" {
		return nil
	}
	span := &Span{
		ID:           uuid.NewString(),
		ParentSpanID: parentSpanID,
		Name:         name,
		StartedAt:    time.Now(),
		Status:       SpanRunning,
	}
	tr.mu.Lock()
	tr.spans = append(tr.spans, span)
	tr.mu.Unlock()
	return span
}

// End closes a span with ok status and the given metadata.
func (s *Span) End(metadata map[string]any) {
	s.close(SpanOK, "", metadata)
}

// EndError closes a span with error status.
func (s *Span) EndError(err error, metadata map[string]any) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	s.close(SpanError, msg, metadata)
}

func (s *Span) close(status SpanStatus, errMsg string, metadata map[string]any) {
	if s == nil || s.Status != SpanRunning {
		return
	}
	s.EndedAt = time.Now()
	s.Duration = s.EndedAt.Sub(s.StartedAt)
	s.Status = status
	s.Error = errMsg
	s.Metadata = metadata
	RecordSpan(s.Name, s.Duration)
}

// closeDangling forces any still-running span to error status, per the
// invariant that a Span must end before its Trace ends.
func (tr *Trace) closeDangling() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, s := range tr.spans {
		if s.Status == SpanRunning {
			s.close(SpanError, "span not properly closed", s.Metadata)
		}
	}
}

// EndTrace closes any dangling spans, finalizes summary fields, and
// persists the trace if enabled and a pool is configured. Persistence
// failures are logged, never propagated -- a trace write failure must
// not fail the request it describes.
func (t *Tracer) EndTrace(ctx context.Context, tr *Trace, success bool, queryType, strategy string, tokensUsed, chunksRetrieved, chunksUsed int, groundedness float64) {
	if tr == nil || tr.ID == "" {
		return
	}
	tr.closeDangling()
	tr.EndedAt = time.Now()
	tr.Success = success
	tr.QueryType = queryType
	tr.Strategy = strategy
	tr.TokensUsed = tokensUsed
	tr.ChunksRetrieved = chunksRetrieved
	tr.ChunksUsed = chunksUsed
	tr.Groundedness = groundedness
	tr.TotalLatencyMs = int(tr.EndedAt.Sub(tr.StartedAt).Milliseconds())
	RecordRequest(queryType, strategy)

	if !t.Enabled || t.Pool == nil {
		return
	}

	spansJSON, err := json.Marshal(tr.spans)
	if err != nil {
		slog.Error("tracing: marshal spans failed", "trace_id", tr.ID, "error", err)
		return
	}

	row := traceRow{
		ID: tr.ID, HashedUserID: tr.HashedUserID, SessionID: tr.SessionID,
		QueryLength: tr.QueryLength, QueryType: tr.QueryType, Strategy: tr.Strategy,
		Success: tr.Success, TotalLatencyMs: tr.TotalLatencyMs, TokensUsed: tr.TokensUsed,
		ChunksRetrieved: tr.ChunksRetrieved, ChunksUsed: tr.ChunksUsed,
		Groundedness: tr.Groundedness,
		StartedAt:    tr.StartedAt, EndedAt: tr.EndedAt, SpansJSON: spansJSON,
	}
	if err := insertTrace(ctx, t.Pool, row); err != nil {
		slog.Error("tracing: persist trace failed", "trace_id", tr.ID, "error", err)
		return
	}
	recordSampled()
}

// insertTrace writes one sampled trace row directly against the pool.
func insertTrace(ctx context.Context, pool *pgxpool.Pool, row traceRow) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO rag_traces (
			id, hashed_user_id, session_id, query_length, query_type, strategy,
			success, total_latency_ms, tokens_used, chunks_retrieved, chunks_used,
			groundedness, started_at, ended_at, spans
		) VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, row.ID, row.HashedUserID, row.SessionID, row.QueryLength, row.QueryType, row.Strategy,
		row.Success, row.TotalLatencyMs, row.TokensUsed, row.ChunksRetrieved, row.ChunksUsed,
		row.Groundedness, row.StartedAt, row.EndedAt, row.SpansJSON)
	return err
}

// Spans returns a snapshot of the trace's spans, safe to call
// concurrently with StartSpan.
func (tr *Trace) Spans() []*Span {
	if tr == nil {
		return nil
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make([]*Span, len(tr.spans))
	copy(out, tr.spans)
	return out
}
