package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	vexora "github.com/PeterKuehne/vexora-sub003"
	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/PeterKuehne/vexora-sub003/eval"
)

type runEvaluationRequest struct {
	Label              string            `json:"label"`
	Config             map[string]any    `json:"config"`
	EvaluateGeneration bool              `json:"evaluateGeneration"`
	PrivilegedIdentity relstore.UserContext `json:"privilegedIdentity"`
}

// POST /evaluation/run
func (s *server) handleRunEvaluation(c *gin.Context) {
	var req runEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, vexora.KindValidation, "invalid JSON: "+err.Error(), nil)
		return
	}

	ctx := context.Background()
	queries, err := s.store.LoadGoldenQueries(ctx)
	if err != nil {
		log.Error().Err(err).Msg("load golden dataset")
		writeError(c, vexora.KindAdapterError, "failed to load golden dataset", err)
		return
	}
	if len(queries) == 0 {
		writeError(c, vexora.KindValidation, "golden dataset is empty", nil)
		return
	}

	identity := req.PrivilegedIdentity
	if identity.UserID == "" {
		identity.UserID = "eval-harness"
		identity.Role = "admin"
	}

	run, err := s.runner.Run(ctx, queries, eval.RunOptions{
		Label:              req.Label,
		Config:             req.Config,
		PrivilegedIdentity: identity,
		EvaluateGeneration: req.EvaluateGeneration,
	})
	if err != nil {
		log.Error().Err(err).Msg("run evaluation")
		writeError(c, vexora.KindAdapterError, "evaluation run failed", err)
		return
	}
	c.JSON(http.StatusOK, runJSON(run))
}

// GET /evaluation/runs?limit
func (s *server) handleListRuns(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	runs, err := s.store.ListRuns(c.Request.Context(), limit)
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to list evaluation runs", err)
		return
	}
	out := make([]gin.H, len(runs))
	for i, r := range runs {
		out[i] = runJSON(&r)
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

// GET /evaluation/runs/:id
func (s *server) handleGetRun(c *gin.Context) {
	run, err := s.store.LoadRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, vexora.KindNotFound, "evaluation run not found", err)
		return
	}
	c.JSON(http.StatusOK, runJSON(run))
}

// GET /evaluation/runs/:id/results
func (s *server) handleGetRunResults(c *gin.Context) {
	results, err := s.store.LoadResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to load evaluation results", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// GET /evaluation/compare?a=runId&b=runId
func (s *server) handleCompareRuns(c *gin.Context) {
	aID, bID := c.Query("a"), c.Query("b")
	if aID == "" || bID == "" {
		writeError(c, vexora.KindValidation, "both a and b run ids are required", nil)
		return
	}
	ctx := c.Request.Context()
	a, err := s.store.LoadRun(ctx, aID)
	if err != nil {
		writeError(c, vexora.KindNotFound, "run a not found", err)
		return
	}
	b, err := s.store.LoadRun(ctx, bID)
	if err != nil {
		writeError(c, vexora.KindNotFound, "run b not found", err)
		return
	}
	delta := eval.CompareRuns(*a, *b)
	c.JSON(http.StatusOK, gin.H{
		"a":     runJSON(a),
		"b":     runJSON(b),
		"delta": delta,
	})
}

// GET /evaluation/golden-dataset
func (s *server) handleListGoldenQueries(c *gin.Context) {
	queries, err := s.store.LoadGoldenQueries(c.Request.Context())
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to load golden dataset", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": queries})
}

// POST /evaluation/golden-dataset
func (s *server) handleCreateGoldenQuery(c *gin.Context) {
	var q eval.GoldenQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		writeError(c, vexora.KindValidation, "invalid JSON: "+err.Error(), nil)
		return
	}
	id, err := s.store.InsertGoldenQuery(c.Request.Context(), q)
	if err != nil {
		writeError(c, vexora.KindAdapterError, "failed to insert golden query", err)
		return
	}
	q.ID = id
	c.JSON(http.StatusCreated, q)
}

// PUT /evaluation/golden-dataset/:id
func (s *server) handleUpdateGoldenQuery(c *gin.Context) {
	var q eval.GoldenQuery
	if err := c.ShouldBindJSON(&q); err != nil {
		writeError(c, vexora.KindValidation, "invalid JSON: "+err.Error(), nil)
		return
	}
	q.ID = c.Param("id")
	if err := s.store.UpdateGoldenQuery(c.Request.Context(), q); err != nil {
		writeError(c, vexora.KindNotFound, "golden query not found", err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// DELETE /evaluation/golden-dataset/:id
func (s *server) handleDeleteGoldenQuery(c *gin.Context) {
	if err := s.store.DeleteGoldenQuery(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, vexora.KindNotFound, "golden query not found", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /evaluation/golden-dataset/bulk
func (s *server) handleBulkGoldenQueries(c *gin.Context) {
	var queries []eval.GoldenQuery
	if err := c.ShouldBindJSON(&queries); err != nil {
		writeError(c, vexora.KindValidation, "invalid JSON: "+err.Error(), nil)
		return
	}
	ctx := c.Request.Context()
	ids := make([]string, 0, len(queries))
	for _, q := range queries {
		id, err := s.store.InsertGoldenQuery(ctx, q)
		if err != nil {
			writeError(c, vexora.KindAdapterError, fmt.Sprintf("failed to insert golden query after %d inserted", len(ids)), err)
			return
		}
		ids = append(ids, id)
	}
	c.JSON(http.StatusCreated, gin.H{"ids": ids, "count": len(ids)})
}

func runJSON(run *eval.EvaluationRun) gin.H {
	if run == nil {
		return gin.H{}
	}
	return gin.H{
		"id":              run.ID,
		"label":           run.Label,
		"config":          run.Config,
		"status":          run.Status,
		"errorMessage":    run.ErrorMessage,
		"aggregate":       run.Aggregate,
		"categoryMetrics": run.CategoryMetrics,
		"startedAt":       run.StartedAt.Format(time.RFC3339),
		"completedAt":     run.CompletedAt.Format(time.RFC3339),
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
