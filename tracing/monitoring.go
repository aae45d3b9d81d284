package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

// RealtimeMetrics is the last-5-minutes snapshot for the monitoring
// dashboard's live tile.
type RealtimeMetrics struct {
	QueriesPerSecond float64
	MeanLatencyMs    float64
	ErrorRate        float64
}

// DailyMetrics is the rolling-24h aggregate for the monitoring dashboard.
type DailyMetrics struct {
	Total           int
	MeanLatencyMs   float64
	P50LatencyMs    float64
	P95LatencyMs    float64
	P99LatencyMs    float64
	ErrorRate       float64
	MeanGroundedness float64
}

// ComponentLatency is the mean duration of one span name over the last hour.
type ComponentLatency struct {
	Name         SpanName
	MeanDuration time.Duration
}

// Distribution is a generic label -> count bucket, used for both
// query-type and retrieval-strategy distributions over 24h.
type Distribution struct {
	Label string
	Count int
}

// Dashboard fetches every monitoring read-side query. Sub-queries fan
// out in parallel via errgroup so one dashboard load costs one
// round-trip's worth of wall-clock time instead of five sequential
// ones.
func Dashboard(ctx context.Context, pool *pgxpool.Pool) (*DashboardSnapshot, error) {
	var snap DashboardSnapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Realtime, err = realtimeMetrics(gctx, pool)
		return err
	})
	g.Go(func() (err error) {
		snap.Daily, err = dailyMetrics(gctx, pool)
		return err
	})
	g.Go(func() (err error) {
		snap.ComponentLatencies, err = componentLatencies(gctx, pool)
		return err
	})
	g.Go(func() (err error) {
		snap.QueryTypeDistribution, err = queryTypeDistribution(gctx, pool)
		return err
	})
	g.Go(func() (err error) {
		snap.StrategyDistribution, err = strategyDistribution(gctx, pool)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DashboardSnapshot bundles every monitoring read-side query result for
// one GET /monitoring/dashboard response.
type DashboardSnapshot struct {
	Realtime              RealtimeMetrics
	Daily                 DailyMetrics
	ComponentLatencies    []ComponentLatency
	QueryTypeDistribution []Distribution
	StrategyDistribution  []Distribution
}

// HourlyBucket is one hour's aggregate within the requested window, for
// GET /monitoring/hourly.
type HourlyBucket struct {
	HourStart     time.Time
	Total         int
	MeanLatencyMs float64
	ErrorRate     float64
}

// Hourly buckets rag_traces into per-hour aggregates over the last
// `hours` hours.
func Hourly(ctx context.Context, pool *pgxpool.Pool, hours int) ([]HourlyBucket, error) {
	if hours <= 0 {
		hours = 24
	}
	rows, err := pool.Query(ctx, `
		SELECT date_trunc('hour', started_at) AS bucket,
		       COUNT(*), AVG(total_latency_ms),
		       SUM(CASE WHEN NOT success THEN 1 ELSE 0 END)
		FROM rag_traces
		WHERE started_at > NOW() - ($1::text || ' hours')::interval
		GROUP BY bucket ORDER BY bucket
	`, hours)
	if err != nil {
		return nil, fmt.Errorf("tracing: hourly metrics: %w", err)
	}
	defer rows.Close()

	var out []HourlyBucket
	for rows.Next() {
		var b HourlyBucket
		var count int
		var meanLatency, errorCount *float64
		if err := rows.Scan(&b.HourStart, &count, &meanLatency, &errorCount); err != nil {
			return nil, fmt.Errorf("tracing: scan hourly bucket: %w", err)
		}
		b.Total = count
		if meanLatency != nil {
			b.MeanLatencyMs = *meanLatency
		}
		if count > 0 && errorCount != nil {
			b.ErrorRate = *errorCount / float64(count)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// RecentTrace is one row of the recent-traces admin listing, leaving
// out the span tree for a compact response.
type RecentTrace struct {
	ID              string
	SessionID       string
	QueryType       string
	Strategy        string
	Success         bool
	TotalLatencyMs  int
	ChunksRetrieved int
	Groundedness    float64
	StartedAt       time.Time
}

// RecentTraces returns the most recent traces, newest first.
func RecentTraces(ctx context.Context, pool *pgxpool.Pool, limit int) ([]RecentTrace, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := pool.Query(ctx, `
		SELECT id::text, session_id, COALESCE(query_type, ''), COALESCE(strategy, ''),
		       success, total_latency_ms, chunks_retrieved, COALESCE(groundedness, 0), started_at
		FROM rag_traces ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("tracing: recent traces: %w", err)
	}
	defer rows.Close()

	var out []RecentTrace
	for rows.Next() {
		var t RecentTrace
		if err := rows.Scan(&t.ID, &t.SessionID, &t.QueryType, &t.Strategy, &t.Success,
			&t.TotalLatencyMs, &t.ChunksRetrieved, &t.Groundedness, &t.StartedAt); err != nil {
			return nil, fmt.Errorf("tracing: scan recent trace: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TraceStats is the summary returned by GET /monitoring/traces/stats,
// reusing the same window-bounded aggregate query as the dashboard's
// daily tile but over a caller-chosen window.
type TraceStats struct {
	Total         int
	MeanLatencyMs float64
	P95LatencyMs  float64
	ErrorRate     float64
	SampledCount  int
}

// Stats aggregates rag_traces over the last `hours` hours.
func Stats(ctx context.Context, pool *pgxpool.Pool, hours int) (TraceStats, error) {
	if hours <= 0 {
		hours = 24
	}
	var s TraceStats
	var meanLatency, p95, errorCount *float64
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*), AVG(total_latency_ms),
		       PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY total_latency_ms),
		       SUM(CASE WHEN NOT success THEN 1 ELSE 0 END)
		FROM rag_traces WHERE started_at > NOW() - ($1::text || ' hours')::interval
	`, hours).Scan(&s.Total, &meanLatency, &p95, &errorCount)
	if err != nil {
		return s, fmt.Errorf("tracing: trace stats: %w", err)
	}
	if meanLatency != nil {
		s.MeanLatencyMs = *meanLatency
	}
	if p95 != nil {
		s.P95LatencyMs = *p95
	}
	if s.Total > 0 && errorCount != nil {
		s.ErrorRate = *errorCount / float64(s.Total)
	}
	s.SampledCount = s.Total
	return s, nil
}

func realtimeMetrics(ctx context.Context, pool *pgxpool.Pool) (RealtimeMetrics, error) {
	var m RealtimeMetrics
	var count int
	var meanLatency, errorCount *float64
	err := pool.QueryRow(ctx, `
		SELECT COUNT(*), AVG(total_latency_ms), SUM(CASE WHEN NOT success THEN 1 ELSE 0 END)
		FROM rag_traces WHERE started_at > NOW() - INTERVAL '5 minutes'
	`).Scan(&count, &meanLatency, &errorCount)
	if err != nil {
		return m, fmt.Errorf("tracing: realtime metrics: %w", err)
	}
	m.QueriesPerSecond = float64(count) / (5 * 60)
	if meanLatency != nil {
		m.MeanLatencyMs = *meanLatency
	}
	if count > 0 && errorCount != nil {
		m.ErrorRate = *errorCount / float64(count)
	}
	return m, nil
}

func dailyMetrics(ctx context.Context, pool *pgxpool.Pool) (DailyMetrics, error) {
	var d DailyMetrics
	var count int
	var meanLatency, p50, p95, p99, errorCount, meanGroundedness *float64
	err := pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			AVG(total_latency_ms),
			PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY total_latency_ms),
			PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY total_latency_ms),
			PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY total_latency_ms),
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END),
			AVG(groundedness)
		FROM rag_traces WHERE started_at > NOW() - INTERVAL '24 hours'
	`).Scan(&count, &meanLatency, &p50, &p95, &p99, &errorCount, &meanGroundedness)
	if err != nil {
		return d, fmt.Errorf("tracing: daily metrics: %w", err)
	}
	d.Total = count
	if meanLatency != nil {
		d.MeanLatencyMs = *meanLatency
	}
	if p50 != nil {
		d.P50LatencyMs = *p50
	}
	if p95 != nil {
		d.P95LatencyMs = *p95
	}
	if p99 != nil {
		d.P99LatencyMs = *p99
	}
	if count > 0 && errorCount != nil {
		d.ErrorRate = *errorCount / float64(count)
	}
	if meanGroundedness != nil {
		d.MeanGroundedness = *meanGroundedness
	}
	return d, nil
}

func componentLatencies(ctx context.Context, pool *pgxpool.Pool) ([]ComponentLatency, error) {
	rows, err := pool.Query(ctx, `
		SELECT span->>'name' AS name, AVG((span->>'duration_ns')::bigint)
		FROM rag_traces, jsonb_array_elements(spans) AS span
		WHERE started_at > NOW() - INTERVAL '1 hour'
		GROUP BY span->>'name'
	`)
	if err != nil {
		return nil, fmt.Errorf("tracing: component latencies: %w", err)
	}
	defer rows.Close()

	var out []ComponentLatency
	for rows.Next() {
		var name string
		var meanNanos float64
		if err := rows.Scan(&name, &meanNanos); err != nil {
			return nil, fmt.Errorf("tracing: scan component latency: %w", err)
		}
		out = append(out, ComponentLatency{Name: SpanName(name), MeanDuration: time.Duration(meanNanos)})
	}
	return out, rows.Err()
}

func queryTypeDistribution(ctx context.Context, pool *pgxpool.Pool) ([]Distribution, error) {
	return labelCounts(ctx, pool, "query_type")
}

func strategyDistribution(ctx context.Context, pool *pgxpool.Pool) ([]Distribution, error) {
	return labelCounts(ctx, pool, "strategy")
}

func labelCounts(ctx context.Context, pool *pgxpool.Pool, column string) ([]Distribution, error) {
	// column is one of two fixed literals supplied internally above,
	// never caller input, so string-building the identifier is safe.
	rows, err := pool.Query(ctx, fmt.Sprintf(`
		SELECT COALESCE(%s, 'unknown'), COUNT(*)
		FROM rag_traces WHERE started_at > NOW() - INTERVAL '24 hours'
		GROUP BY %s
	`, column, column))
	if err != nil {
		return nil, fmt.Errorf("tracing: %s distribution: %w", column, err)
	}
	defer rows.Close()

	var out []Distribution
	for rows.Next() {
		var d Distribution
		if err := rows.Scan(&d.Label, &d.Count); err != nil {
			return nil, fmt.Errorf("tracing: scan %s distribution: %w", column, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
