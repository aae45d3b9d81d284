package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	vexora "github.com/PeterKuehne/vexora-sub003"
	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/PeterKuehne/vexora-sub003/eval"
)

// server holds the dependencies every handler needs, following
// GoReason's own cmd/server handler{engine} shape, widened for the
// evaluation harness and the admin monitoring surface.
type server struct {
	engine *vexora.Engine
	store  *eval.Store
	runner *eval.Runner

	runs map[string]context.CancelFunc
}

// userContextFromHeaders extracts the caller's row-level-security
// identity from request headers. Full OAuth2/JWT authentication is out
// of scope (this layer is a thin adapter around the core per the
// system's stated boundaries); a gateway in front of this service is
// expected to set these headers after verifying the caller.
func userContextFromHeaders(c *gin.Context) relstore.UserContext {
	uc := relstore.UserContext{
		UserID:     c.GetHeader("X-User-Id"),
		Role:       c.GetHeader("X-User-Role"),
		Department: c.GetHeader("X-User-Department"),
	}
	if uc.UserID == "" {
		uc.UserID = "anonymous"
	}
	return uc
}

// GET /health
func (s *server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	report := s.engine.HealthCheck(ctx)
	status := http.StatusOK
	if report.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	services := make(gin.H, len(report.Services))
	for name, svc := range report.Services {
		services[name] = svc.Status
	}

	c.JSON(status, gin.H{
		"status":        report.Status,
		"services":      services,
		"uptimeSeconds": report.UptimeSeconds,
	})
}

// GET /models?search&family
func (s *server) handleModels(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	models, err := s.engine.ChatDriver().ListModels(ctx)
	if err != nil {
		log.Error().Err(err).Msg("list models")
		writeCoreError(c, vexora.NewError(vexora.KindAdapterError, "failed to list models", err))
		return
	}

	search := strings.ToLower(c.Query("search"))
	family := strings.ToLower(c.Query("family"))
	filtered := make([]string, 0, len(models))
	for _, m := range models {
		lower := strings.ToLower(m)
		if search != "" && !strings.Contains(lower, search) {
			continue
		}
		if family != "" && !strings.Contains(lower, family) {
			continue
		}
		filtered = append(filtered, m)
	}

	defaultModel := s.engine.Config().LLM.Model
	c.JSON(http.StatusOK, gin.H{
		"models":       filtered,
		"defaultModel": defaultModel,
		"totalCount":   len(filtered),
	})
}

// writeCoreError maps a vexora.CoreError onto its taxonomy's HTTP status
// and writes the uniform error envelope every handler in this package
// returns on failure: {error, code, statusCode, details?, timestamp,
// path, method}.
func writeCoreError(c *gin.Context, err error) {
	ce := vexora.AsCoreError(err)
	writeErrorEnvelope(c, ce.Kind.HTTPStatus(), string(ce.Kind), ce.Message, causeDetails(ce.Cause))
}

// writeError builds a CoreError of the given kind and writes it as the
// uniform error envelope, for handlers that don't already have one.
func writeError(c *gin.Context, kind vexora.ErrorKind, message string, cause error) {
	writeCoreError(c, vexora.NewError(kind, message, cause))
}

func writeErrorEnvelope(c *gin.Context, statusCode int, code, message string, details string) {
	body := gin.H{
		"error":      message,
		"code":       code,
		"statusCode": statusCode,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
	}
	if details != "" {
		body["details"] = details
	}
	c.JSON(statusCode, body)
}

func causeDetails(cause error) string {
	if cause == nil {
		return ""
	}
	return cause.Error()
}
