package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	vexora "github.com/PeterKuehne/vexora-sub003"
	"github.com/PeterKuehne/vexora-sub003/tracing"
)

// GET /monitoring/dashboard
func (s *server) handleDashboard(c *gin.Context) {
	snap, err := tracing.Dashboard(c.Request.Context(), s.engine.Pool())
	if err != nil {
		log.Error().Err(err).Msg("dashboard query")
		writeError(c, vexora.KindAdapterError, "failed to load dashboard", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GET /monitoring/hourly?hours=N
func (s *server) handleHourly(c *gin.Context) {
	hours := queryInt(c, "hours", 24)
	buckets, err := tracing.Hourly(c.Request.Context(), s.engine.Pool(), hours)
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to load hourly buckets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

// GET /monitoring/health mirrors GET /health for operators already
// scoped to the monitoring group.
func (s *server) handleMonitoringHealth(c *gin.Context) {
	s.handleHealth(c)
}

// GET /monitoring/alerts?limit
func (s *server) handleListAlerts(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	alerts, err := tracing.ListAlerts(c.Request.Context(), s.engine.Pool(), limit)
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to list alerts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// POST /monitoring/alerts/:id/acknowledge
func (s *server) handleAcknowledgeAlert(c *gin.Context) {
	by := c.GetHeader("X-User-Id")
	if by == "" {
		by = "unknown"
	}
	if err := tracing.AcknowledgeAlert(c.Request.Context(), s.engine.Pool(), c.Param("id"), by); err != nil {
		writeError(c, vexora.KindNotFound, "alert not found", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /monitoring/alerts/check runs the threshold generator against
// the current dashboard snapshot and fires any newly-triggered alerts.
func (s *server) handleCheckAlerts(c *gin.Context) {
	cfg := s.engine.Config()
	ctx := c.Request.Context()

	hits, misses, _, err := s.engine.Cache().Stats(ctx)
	var hitRate float64
	if err == nil && hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	fired, err := tracing.CheckAlerts(ctx, s.engine.Pool(), hitRate, tracing.Thresholds{
		P95LatencyMs: float64(cfg.AlertP95LatencyMs),
		ErrorRate:    cfg.AlertErrorRate,
		CacheHitRate: cfg.AlertCacheHitRate,
	})
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to check alerts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fired": fired})
}

// GET /monitoring/cache
func (s *server) handleCacheStats(c *gin.Context) {
	hits, misses, keyCount, err := s.engine.Cache().Stats(c.Request.Context())
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to load cache stats", err)
		return
	}
	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}
	c.JSON(http.StatusOK, gin.H{
		"hits":     hits,
		"misses":   misses,
		"keyCount": keyCount,
		"hitRate":  hitRate,
	})
}

// POST /monitoring/cache/flush
func (s *server) handleCacheFlush(c *gin.Context) {
	if err := s.engine.Cache().Flush(c.Request.Context()); err != nil {
		writeError(c, vexora.KindAdapterError, "failed to flush cache", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /monitoring/traces/recent?limit
func (s *server) handleRecentTraces(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	traces, err := tracing.RecentTraces(c.Request.Context(), s.engine.Pool(), limit)
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to load recent traces", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": traces})
}

// GET /monitoring/traces/stats?hours
func (s *server) handleTraceStats(c *gin.Context) {
	hours := queryInt(c, "hours", 24)
	stats, err := tracing.Stats(c.Request.Context(), s.engine.Pool(), hours)
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to load trace stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
