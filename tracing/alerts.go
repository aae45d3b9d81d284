package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AlertKind is the fixed set of conditions the generator checks.
type AlertKind string

const (
	AlertHighLatency  AlertKind = "high_latency"
	AlertHighErrorRate AlertKind = "high_error_rate"
	AlertLowCacheHit  AlertKind = "low_cache_hit_rate"
)

// Severity is an alert's urgency, mapped per-kind by severityFor.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// dedupWindow is the rolling window within which a second alert of the
// same kind is suppressed.
const dedupWindow = time.Hour

// Thresholds configures the alert generator's trigger points.
type Thresholds struct {
	P95LatencyMs  float64
	ErrorRate     float64
	CacheHitRate  float64
}

// severityFor maps a kind to the severity an alert of that kind fires
// with. High latency and error rate are critical (user-facing
// correctness/availability); a thin cache is a warning (cost/perf, not
// correctness).
func severityFor(kind AlertKind) Severity {
	switch kind {
	case AlertHighLatency, AlertHighErrorRate:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// CheckAlerts computes the current dashboard snapshot and, for each
// threshold exceeded, fires an alert unless one of the same kind
// already fired within dedupWindow.
func CheckAlerts(ctx context.Context, pool *pgxpool.Pool, cacheHitRate float64, thresholds Thresholds) ([]AlertKind, error) {
	snap, err := Dashboard(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("tracing: check alerts: %w", err)
	}

	var candidates []struct {
		kind    AlertKind
		message string
	}
	if thresholds.P95LatencyMs > 0 && snap.Daily.P95LatencyMs > thresholds.P95LatencyMs {
		candidates = append(candidates, struct {
			kind    AlertKind
			message string
		}{AlertHighLatency, fmt.Sprintf("p95 latency %.0fms exceeds threshold %.0fms", snap.Daily.P95LatencyMs, thresholds.P95LatencyMs)})
	}
	if thresholds.ErrorRate > 0 && snap.Daily.ErrorRate > thresholds.ErrorRate {
		candidates = append(candidates, struct {
			kind    AlertKind
			message string
		}{AlertHighErrorRate, fmt.Sprintf("error rate %.2f%% exceeds threshold %.2f%%", snap.Daily.ErrorRate*100, thresholds.ErrorRate*100)})
	}
	if thresholds.CacheHitRate > 0 && cacheHitRate < thresholds.CacheHitRate {
		candidates = append(candidates, struct {
			kind    AlertKind
			message string
		}{AlertLowCacheHit, fmt.Sprintf("cache hit rate %.2f%% below threshold %.2f%%", cacheHitRate*100, thresholds.CacheHitRate*100)})
	}

	var fired []AlertKind
	for _, c := range candidates {
		exists, err := recentAlertExists(ctx, pool, string(c.kind))
		if err != nil {
			return fired, err
		}
		if exists {
			continue
		}
		if err := insertAlert(ctx, pool, string(c.kind), c.message, string(severityFor(c.kind))); err != nil {
			return fired, err
		}
		fired = append(fired, c.kind)
	}
	return fired, nil
}

func recentAlertExists(ctx context.Context, pool *pgxpool.Pool, kind string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM monitoring_alerts
			WHERE kind = $1 AND fired_at > NOW() - $2::interval
		)
	`, kind, dedupWindow.String()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("tracing: recent alert lookup: %w", err)
	}
	return exists, nil
}

func insertAlert(ctx context.Context, pool *pgxpool.Pool, kind, message, severity string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO monitoring_alerts (kind, message, severity) VALUES ($1, $2, $3)
	`, kind, message, severity)
	if err != nil {
		return fmt.Errorf("tracing: insert alert: %w", err)
	}
	return nil
}

// Alert is one row of the monitoring_alerts table, as surfaced to the
// /monitoring/alerts admin endpoint.
type Alert struct {
	ID             string
	Kind           string
	Message        string
	Severity       string
	Acknowledged   bool
	AcknowledgedBy string
	FiredAt        time.Time
}

// ListAlerts returns the most recent alerts, newest first.
func ListAlerts(ctx context.Context, pool *pgxpool.Pool, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := pool.Query(ctx, `
		SELECT id::text, kind, message, severity, acknowledged, COALESCE(acknowledged_by, ''), fired_at
		FROM monitoring_alerts ORDER BY fired_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("tracing: list alerts: %w", err)
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.Kind, &a.Message, &a.Severity, &a.Acknowledged, &a.AcknowledgedBy, &a.FiredAt); err != nil {
			return nil, fmt.Errorf("tracing: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AcknowledgeAlert marks an alert as handled by the given operator.
func AcknowledgeAlert(ctx context.Context, pool *pgxpool.Pool, alertID, by string) error {
	_, err := pool.Exec(ctx, `
		UPDATE monitoring_alerts SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = NOW()
		WHERE id = $1::uuid
	`, alertID, by)
	if err != nil {
		return fmt.Errorf("tracing: acknowledge alert: %w", err)
	}
	return nil
}
