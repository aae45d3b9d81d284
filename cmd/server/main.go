package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	vexora "github.com/PeterKuehne/vexora-sub003"
	"github.com/PeterKuehne/vexora-sub003/eval"
)

func main() {
	envPath := flag.String("env", "", "Path to a .env file to load before reading environment variables")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	if *envPath != "" {
		if err := godotenv.Load(*envPath); err != nil {
			log.Warn().Err(err).Str("path", *envPath).Msg("could not load env file, continuing with existing environment")
		}
	}

	cfg := vexora.LoadConfig()
	if !cfg.TraceEnabled {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := vexora.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("creating engine")
	}
	defer engine.Close()

	goldenStore := eval.NewStore(engine.Pool())
	runner := eval.NewRunner(vexora.EvalPipeline{Engine: engine}, goldenStore)

	apiKey := os.Getenv("VEXORA_API_KEY")
	corsOrigins := os.Getenv("VEXORA_CORS_ORIGINS")

	s := &server{engine: engine, store: goldenStore, runner: runner, runs: make(map[string]context.CancelFunc)}

	router := gin.New()
	// Middleware chain: recovery -> cors -> auth -> logging -> routes
	router.Use(recoveryMiddleware())
	router.Use(corsMiddleware(corsOrigins))
	router.Use(authMiddleware(apiKey))
	router.Use(logMiddleware())

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/chat", s.handleChat)
	router.GET("/models", s.handleModels)

	evalGroup := router.Group("/evaluation")
	{
		evalGroup.POST("/run", s.handleRunEvaluation)
		evalGroup.GET("/runs", s.handleListRuns)
		evalGroup.GET("/runs/:id", s.handleGetRun)
		evalGroup.GET("/runs/:id/results", s.handleGetRunResults)
		evalGroup.GET("/compare", s.handleCompareRuns)
		evalGroup.GET("/golden-dataset", s.handleListGoldenQueries)
		evalGroup.POST("/golden-dataset", s.handleCreateGoldenQuery)
		evalGroup.PUT("/golden-dataset/:id", s.handleUpdateGoldenQuery)
		evalGroup.DELETE("/golden-dataset/:id", s.handleDeleteGoldenQuery)
		evalGroup.POST("/golden-dataset/bulk", s.handleBulkGoldenQueries)
	}

	monGroup := router.Group("/monitoring")
	{
		monGroup.GET("/dashboard", s.handleDashboard)
		monGroup.GET("/hourly", s.handleHourly)
		monGroup.GET("/health", s.handleMonitoringHealth)
		monGroup.GET("/alerts", s.handleListAlerts)
		monGroup.POST("/alerts/:id/acknowledge", s.handleAcknowledgeAlert)
		monGroup.POST("/alerts/check", s.handleCheckAlerts)
		monGroup.GET("/cache", s.handleCacheStats)
		monGroup.POST("/cache/flush", s.handleCacheFlush)
		monGroup.GET("/traces/recent", s.handleRecentTraces)
		monGroup.GET("/traces/stats", s.handleTraceStats)
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming /chat responses
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
}
