// Package vexora composes the C1-C8 components into a permission-aware
// RAG engine, the way goreason.Engine (goreason.go) composes its
// store/chunker/llm/reasoning packages into one Engine type with a
// single New constructor and a handful of request-shaped methods.
// Where GoReason has one embedded SQLite store serving every concern,
// New here wires seven independently replaceable adapters
// (adapters/vectorstore, adapters/graphstore, adapters/relstore,
// adapters/cacheadapter, adapters/llmadapter x2, adapters/rerankadapter)
// plus the six in-process components (router, guardrails, retrieval,
// promptcompose, llmdriver, tracing).
package vexora

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PeterKuehne/vexora-sub003/adapters/cacheadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/graphstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/rerankadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/vectorstore"
	"github.com/PeterKuehne/vexora-sub003/eval"
	"github.com/PeterKuehne/vexora-sub003/guardrails"
	"github.com/PeterKuehne/vexora-sub003/llmdriver"
	"github.com/PeterKuehne/vexora-sub003/promptcompose"
	"github.com/PeterKuehne/vexora-sub003/retrieval"
	"github.com/PeterKuehne/vexora-sub003/router"
	"github.com/PeterKuehne/vexora-sub003/tracing"
)

// Engine is the assembled pipeline: one value per request-serving
// process, safe for concurrent use across goroutines the way
// goreason.Engine is (its store is a single *sql.DB, safe for
// concurrent queries; ours is a handful of connection-pooled clients).
type Engine struct {
	cfg Config

	relStore *relstore.Store
	cache    cacheadapter.Cache
	vectors  vectorstore.VectorStore
	graph    graphstore.GraphStore
	embedder llmadapter.Embedder
	chat     llmadapter.ChatDriver
	reranker rerankadapter.Reranker

	router    router.Options
	retrieval *retrieval.Engine
	llmDriver *llmdriver.Driver
	tracer    *tracing.Tracer
	limiter   guardrails.RateLimiter

	startedAt time.Time
	closers   []func()
}

// New builds an Engine from configuration, dialing every configured
// adapter. Adapters whose endpoint is left unconfigured (empty BaseURL)
// are wired as disabled/no-op where the architecture allows it (cache,
// reranker, graph); the relational store and vector store and LLM chat
// driver are load-bearing and a dial failure is returned to the caller.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	relStore, err := relstore.New(ctx, relstore.Config{
		DSN:             cfg.RelationalDSN,
		MaxConns:        cfg.RelationalMaxConns,
		MaxConnLifetime: cfg.RelationalMaxConnLifetime,
		RunMigrations:   cfg.RelationalRunMigrations,
	})
	if err != nil {
		return nil, fmt.Errorf("vexora: connect relational store: %w", err)
	}

	vectors, err := vectorstore.New(ctx, vectorstore.Config{
		Host:             cfg.VectorHost,
		Port:             cfg.VectorPort,
		APIKey:           cfg.Vector.APIKey,
		UseTLS:           cfg.VectorUseTLS,
		CollectionName:   cfg.VectorCollectionName,
		VectorSize:       cfg.VectorSize,
		InitializeSchema: cfg.VectorInitializeSchema,
	})
	if err != nil {
		relStore.Close()
		return nil, fmt.Errorf("vexora: connect vector store: %w", err)
	}

	var graph graphstore.GraphStore
	if cfg.GraphURI != "" && cfg.GraphEnabled {
		graph, err = graphstore.New(ctx, graphstore.Config{
			URI:      cfg.GraphURI,
			Username: cfg.GraphUsername,
			Password: cfg.GraphPassword,
			Database: cfg.GraphDatabase,
		})
		if err != nil {
			relStore.Close()
			return nil, fmt.Errorf("vexora: connect graph store: %w", err)
		}
	}

	var cache cacheadapter.Cache
	if cfg.Cache.BaseURL != "" {
		cache, err = cacheadapter.New(ctx, cacheadapter.Config{
			Addr:     cfg.Cache.BaseURL,
			Password: cfg.Cache.APIKey,
			DB:       cfg.CacheDB,
		})
		if err != nil {
			relStore.Close()
			return nil, fmt.Errorf("vexora: connect cache: %w", err)
		}
	} else {
		cache = cacheadapter.NewNoop()
	}

	embedder, err := llmadapter.NewEmbedder(llmadapter.Config{
		Provider: cfg.Embedding.Provider,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		relStore.Close()
		return nil, fmt.Errorf("vexora: build embedder: %w", err)
	}

	chat, err := llmadapter.NewChatDriver(llmadapter.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		relStore.Close()
		return nil, fmt.Errorf("vexora: build chat driver: %w", err)
	}

	var reranker rerankadapter.Reranker
	if cfg.Reranker.BaseURL != "" {
		reranker = rerankadapter.New(rerankadapter.Config{
			BaseURL: cfg.Reranker.BaseURL,
			Model:   cfg.Reranker.Model,
			Timeout: cfg.RerankTimeout,
		})
	}

	retrievalEngine := retrieval.New(vectors, graph, relStore, cache, embedder, reranker)
	tracer := tracing.New(tracing.NewSampler(cfg.TraceSampleRate), relStore.Pool(), cfg.TracePersist)

	e := &Engine{
		cfg:       cfg,
		relStore:  relStore,
		cache:     cache,
		vectors:   vectors,
		graph:     graph,
		embedder:  embedder,
		chat:      chat,
		reranker:  reranker,
		router:    router.Options{GraphEnabled: cfg.GraphEnabled},
		retrieval: retrievalEngine,
		llmDriver: llmdriver.New(chat, cfg.LLM.Model),
		tracer:    tracer,
		limiter:   guardrails.NewInMemoryRateLimiter(),
		startedAt: time.Now(),
		closers:   []func(){relStore.Close},
	}
	return e, nil
}

// ServiceHealth is one dependency's health-check outcome, surfaced on
// GET /health.
type ServiceHealth struct {
	Status  string
	Latency *time.Duration
	Error   *string
}

// HealthReport is the full GET /health response body: overall status
// plus one ServiceHealth per external dependency.
type HealthReport struct {
	Status        string
	UptimeSeconds float64
	Services      map[string]ServiceHealth
}

// HealthCheck pings every configured adapter and rolls the results up
// into one overall status: ok only if every dependency reports ok,
// degraded if any dependency, the relational store included, reports
// anything else.
func (e *Engine) HealthCheck(ctx context.Context) HealthReport {
	services := map[string]ServiceHealth{}

	dbStatus, dbLatency, dbErr := e.relStore.HealthCheck(ctx)
	services["database"] = ServiceHealth{Status: string(dbStatus), Latency: dbLatency, Error: dbErr}

	vecStatus, vecLatency, vecErr := e.vectors.HealthCheck(ctx)
	services["vector"] = ServiceHealth{Status: string(vecStatus), Latency: vecLatency, Error: vecErr}

	llmStatus, llmLatency, llmErr := e.chat.HealthCheck(ctx)
	services["llm"] = ServiceHealth{Status: string(llmStatus), Latency: llmLatency, Error: llmErr}

	cacheStatus, cacheLatency, cacheErr := e.cache.HealthCheck(ctx)
	services["cache"] = ServiceHealth{Status: string(cacheStatus), Latency: cacheLatency, Error: cacheErr}

	if e.graph != nil {
		graphStatus, graphLatency, graphErr := e.graph.HealthCheck(ctx)
		services["graph"] = ServiceHealth{Status: string(graphStatus), Latency: graphLatency, Error: graphErr}
	}

	overall := "ok"
	if string(dbStatus) != "ok" {
		overall = "degraded"
	}
	for _, svc := range services {
		if svc.Status != "ok" {
			overall = "degraded"
		}
	}

	return HealthReport{
		Status:        overall,
		UptimeSeconds: time.Since(e.startedAt).Seconds(),
		Services:      services,
	}
}

// Pool exposes the relational connection pool for sibling packages
// (tracing, eval) that issue their own queries against it, the same
// escape hatch relstore.Store.Pool() documents.
func (e *Engine) Pool() *pgxpool.Pool { return e.relStore.Pool() }

// Cache exposes the configured cache adapter, for the monitoring
// endpoints that report/flush cache state.
func (e *Engine) Cache() cacheadapter.Cache { return e.cache }

// ChatDriver exposes the configured chat adapter, for the /models
// endpoint's model listing.
func (e *Engine) ChatDriver() llmadapter.ChatDriver { return e.chat }

// RelStore exposes the relational store, for callers that need
// WithUserContext-scoped access.
func (e *Engine) RelStore() *relstore.Store { return e.relStore }

// Tracer exposes the configured tracer, with the same
// sampling/persistence configuration the request path uses.
func (e *Engine) Tracer() *tracing.Tracer { return e.tracer }

// Config exposes the engine's resolved configuration.
func (e *Engine) Config() Config { return e.cfg }

// Close runs the Engine's registered closers, which release the
// relational store's connection pool. The vector, graph, cache and LLM
// adapter clients are not closed by it.
func (e *Engine) Close() {
	for _, c := range e.closers {
		c()
	}
}

// AnswerRequest carries one /chat call's inputs, independent of
// transport (gin binds the HTTP body into this shape; the evaluation
// harness builds it directly).
type AnswerRequest struct {
	Query        string
	UserContext  relstore.UserContext
	SessionID    string
	Model        string
	History      []promptcompose.Turn
	Options      llmadapter.ChatOptions
	RAGOverrides RAGOverrides
}

// RAGOverrides lets one request override the Engine's configured
// defaults for retrieval tuning, mirroring the /chat endpoint's
// optional "rag" request field.
type RAGOverrides struct {
	SearchLimit     int
	SearchThreshold float64
	HybridAlpha     float64
	Rerank          *bool
	UseGraph        *bool
}

// noAccessibleDocumentsMessage is the fixed denial answer returned in
// place of a generated completion when permission resolution (retrieval
// step 1) finds the caller cannot see any document. It is a normal,
// successful answer, not an error: the trace is still persisted, marked
// unsuccessful.
const noAccessibleDocumentsMessage = "Es wurden keine Dokumente gefunden, auf die Sie Zugriff haben. Bitte wenden Sie sich an Ihren Administrator, falls Sie glauben, dass dies ein Fehler ist."

// AnswerResult is the full outcome of one Answer call.
type AnswerResult struct {
	Content      string
	Hits         []retrieval.Hit
	GraphContext *retrieval.GraphContext
	Flags        retrieval.Flags
	Guardrail    guardrails.OutputResult
	Metadata     llmadapter.StreamMetadata
	TraceID      string
}

// Answer runs the full per-request pipeline synchronously: input
// guardrails (C3), query analysis (C2), retrieval (C4), prompt
// composition (C6), generation (C6), output guardrails (C7), all under
// one trace (C8). It is the engine's batch (non-streaming) path; the
// transport's streaming /chat path uses AnswerStream instead and
// applies output guardrails only after the stream has fully drained.
func (e *Engine) Answer(ctx context.Context, req AnswerRequest) (*AnswerResult, error) {
	tr := e.tracer.StartTrace(ctx, req.UserContext.UserID, req.SessionID, len(req.Query))
	success := false
	var queryType, strategy string
	var tokensUsed, chunksRetrieved, chunksUsed int
	var groundedness float64
	defer func() {
		e.tracer.EndTrace(ctx, tr, success, queryType, strategy, tokensUsed, chunksRetrieved, chunksUsed, groundedness)
	}()

	inputSpan := tr.StartSpan(tracing.SpanGuardrailsInput, "")
	inputResult := e.validateInput(req.Query, req.UserContext.UserID)
	if inputSpan != nil {
		inputSpan.End(map[string]any{"valid": inputResult.Valid, "rate_limited": inputResult.RateLimited})
	}
	if !inputResult.Valid {
		return nil, NewError(inputErrorKind(inputResult), "input failed guardrails", fmt.Errorf("%v", inputResult.Errors))
	}

	analysisSpan := tr.StartSpan(tracing.SpanQueryAnalysis, "")
	analysis := router.Analyze(inputResult.SanitizedQuery, e.router)
	queryType = string(analysis.QueryType)
	strategy = string(analysis.Strategy)
	if analysisSpan != nil {
		analysisSpan.End(map[string]any{"query_type": queryType, "strategy": strategy})
	}

	retrieveReq := e.buildRetrievalRequest(inputResult.SanitizedQuery, analysis, req)
	retrieveSpan := tr.StartSpan(tracing.SpanVectorSearch, "")
	retrieveResp, err := e.retrieval.Retrieve(ctx, retrieveReq)
	if retrieveSpan != nil {
		if err != nil {
			retrieveSpan.EndError(err, nil)
		} else {
			retrieveSpan.End(map[string]any{"hits": len(retrieveResp.Hits)})
		}
	}
	if err != nil {
		return nil, NewError(KindAdapterError, "retrieval failed", err)
	}
	chunksRetrieved = len(retrieveResp.Hits)
	if retrieveResp.Flags.NoAccessibleDocuments {
		return &AnswerResult{
			Content: noAccessibleDocumentsMessage,
			Hits:    retrieveResp.Hits,
			Flags:   retrieveResp.Flags,
			TraceID: tr.ID,
		}, nil
	}

	promptReq := promptcompose.Request{
		Query:        inputResult.SanitizedQuery,
		Hits:         hitsForPrompt(retrieveResp.Hits),
		GraphContext: graphSummary(retrieveResp.GraphContext),
		History:      req.History,
	}
	messages := promptcompose.Compose(promptReq)
	chunksUsed = len(retrieveResp.Hits)

	genSpan := tr.StartSpan(tracing.SpanLLMGeneration, "")
	completion, err := e.llmDriver.Generate(ctx, messages, req.Model, req.Options)
	if genSpan != nil {
		if err != nil {
			genSpan.EndError(err, nil)
		} else {
			genSpan.End(map[string]any{"total_tokens": completion.TotalTokens})
		}
	}
	if err != nil {
		return nil, NewError(KindAdapterError, "generation failed", err)
	}
	tokensUsed = completion.TotalTokens

	outputSpan := tr.StartSpan(tracing.SpanGuardrailsOutput, "")
	outputResult := e.validateOutput(completion.Content, retrieveResp.Hits)
	groundedness = outputResult.Groundedness
	if outputSpan != nil {
		outputSpan.End(map[string]any{"groundedness": groundedness, "valid": outputResult.Valid})
	}

	success = true
	return &AnswerResult{
		Content:      outputResult.FinalResponse,
		Hits:         retrieveResp.Hits,
		GraphContext: retrieveResp.GraphContext,
		Flags:        retrieveResp.Flags,
		Guardrail:    outputResult,
		Metadata: llmadapter.StreamMetadata{
			Model:            completion.Model,
			PromptTokens:     completion.PromptTokens,
			CompletionTokens: completion.CompletionTokens,
			TotalTokens:      completion.TotalTokens,
		},
		TraceID: tr.ID,
	}, nil
}

// AnswerStream runs the same pipeline through query analysis and
// retrieval, then opens a streaming completion the caller drains token
// by token. Output guardrails (C7) require the full answer text, so the
// transport must call ApplyOutputGuardrails once the stream ends.
type StreamResult struct {
	Session *llmdriver.StreamSession
	Hits    []retrieval.Hit
	Flags   retrieval.Flags
	TraceID string

	// DeniedMessage is set instead of Session when permission resolution
	// found no accessible documents: the caller should emit this text as
	// the complete answer and skip draining/Finish, the trace having
	// already been closed with success=false.
	DeniedMessage string

	trace     *tracing.Trace
	tracer    *tracing.Tracer
	queryType string
	strategy  string
	chunksHit int
	outputCfg guardrails.OutputConfig
}

func (e *Engine) AnswerStream(ctx context.Context, req AnswerRequest) (*StreamResult, error) {
	tr := e.tracer.StartTrace(ctx, req.UserContext.UserID, req.SessionID, len(req.Query))

	inputResult := e.validateInput(req.Query, req.UserContext.UserID)
	if !inputResult.Valid {
		e.tracer.EndTrace(ctx, tr, false, "", "", 0, 0, 0, 0)
		return nil, NewError(inputErrorKind(inputResult), "input failed guardrails", fmt.Errorf("%v", inputResult.Errors))
	}

	analysis := router.Analyze(inputResult.SanitizedQuery, e.router)
	retrieveReq := e.buildRetrievalRequest(inputResult.SanitizedQuery, analysis, req)
	retrieveResp, err := e.retrieval.Retrieve(ctx, retrieveReq)
	if err != nil {
		e.tracer.EndTrace(ctx, tr, false, string(analysis.QueryType), string(analysis.Strategy), 0, 0, 0, 0)
		return nil, NewError(KindAdapterError, "retrieval failed", err)
	}
	if retrieveResp.Flags.NoAccessibleDocuments {
		e.tracer.EndTrace(ctx, tr, false, string(analysis.QueryType), string(analysis.Strategy), 0, 0, 0, 0)
		return &StreamResult{
			Hits:          retrieveResp.Hits,
			Flags:         retrieveResp.Flags,
			TraceID:       tr.ID,
			DeniedMessage: noAccessibleDocumentsMessage,
		}, nil
	}

	messages := promptcompose.Compose(promptcompose.Request{
		Query:        inputResult.SanitizedQuery,
		Hits:         hitsForPrompt(retrieveResp.Hits),
		GraphContext: graphSummary(retrieveResp.GraphContext),
		History:      req.History,
	})

	session, err := e.llmDriver.GenerateStream(ctx, messages, req.Model, req.Options)
	if err != nil {
		e.tracer.EndTrace(ctx, tr, false, string(analysis.QueryType), string(analysis.Strategy), 0, len(retrieveResp.Hits), 0, 0)
		return nil, NewError(KindAdapterError, "streaming generation failed", err)
	}

	return &StreamResult{
		Session:   session,
		Hits:      retrieveResp.Hits,
		Flags:     retrieveResp.Flags,
		TraceID:   tr.ID,
		trace:     tr,
		tracer:    e.tracer,
		queryType: string(analysis.QueryType),
		strategy:  string(analysis.Strategy),
		chunksHit: len(retrieveResp.Hits),
		outputCfg: guardrails.OutputConfig{
			GroundednessThreshold: e.cfg.GroundednessThreshold,
			MaxResponseLength:     e.cfg.MaxResponseLength,
			RequireCitations:      e.cfg.RequireCitations,
		},
	}, nil
}

// Finish applies output guardrails to a fully-drained streaming answer
// and closes the trace the stream opened. Call once, after the last
// Session.Next has returned ok=false.
func (sr *StreamResult) Finish(ctx context.Context, fullAnswer string, success bool) guardrails.OutputResult {
	sources := make([]guardrails.SourceContext, len(sr.Hits))
	for i, h := range sr.Hits {
		sources[i] = guardrails.SourceContext{Label: fmt.Sprintf("Source %d", i+1), Text: h.Content}
	}
	result := guardrails.ValidateOutput(fullAnswer, sources, sr.outputCfg)
	meta := sr.Session.Metadata()
	sr.tracer.EndTrace(ctx, sr.trace, success, sr.queryType, sr.strategy, meta.TotalTokens, sr.chunksHit, len(sr.Hits), result.Groundedness)
	return result
}

// inputErrorKind maps a failed input-guardrail result onto the taxonomy:
// a rate-limited caller gets KindRateLimited (HTTP 429), every other
// input rejection (length, disallowed content) gets KindValidation.
func inputErrorKind(r guardrails.InputResult) ErrorKind {
	if r.RateLimited {
		return KindRateLimited
	}
	return KindValidation
}

func (e *Engine) validateInput(query, userID string) guardrails.InputResult {
	cfg := guardrails.InputConfig{
		MinLength:           e.cfg.MinQueryLength,
		MaxLength:           e.cfg.MaxQueryLength,
		MaxQueriesPerMinute: e.cfg.MaxQueriesPerMinute,
	}
	if !e.cfg.GuardrailsEnabled {
		return guardrails.InputResult{Valid: true, SanitizedQuery: query}
	}
	return guardrails.ValidateInput(query, userID, cfg, e.limiter)
}

func (e *Engine) validateOutput(answer string, hits []retrieval.Hit) guardrails.OutputResult {
	sources := make([]guardrails.SourceContext, len(hits))
	for i, h := range hits {
		sources[i] = guardrails.SourceContext{Label: fmt.Sprintf("Source %d", i+1), Text: h.Content}
	}
	cfg := guardrails.OutputConfig{
		GroundednessThreshold: e.cfg.GroundednessThreshold,
		MaxResponseLength:     e.cfg.MaxResponseLength,
		RequireCitations:      e.cfg.RequireCitations,
	}
	return guardrails.ValidateOutput(answer, sources, cfg)
}

func (e *Engine) buildRetrievalRequest(query string, analysis router.QueryAnalysis, req AnswerRequest) retrieval.Request {
	rr := retrieval.Request{
		Query:              query,
		Analysis:           analysis,
		UserContext:        req.UserContext,
		SearchLimit:        e.cfg.SearchLimit,
		SearchThreshold:    e.cfg.SearchThreshold,
		HybridAlpha:        e.cfg.HybridAlpha,
		Rerank:             e.cfg.RerankEnabled,
		RerankTopK:         e.cfg.RerankTopK,
		EnableExpansion:    e.cfg.ExpansionEnabled,
		MaxDocsToExpand:    e.cfg.ExpansionMaxDocs,
		MaxChunksPerDoc:    e.cfg.ExpansionMaxChunks,
		ExpansionThreshold: e.cfg.ExpansionThreshold,
		UseGraph:           e.cfg.GraphEnabled,
		GraphMaxDepth:      e.cfg.GraphMaxDepth,
		GraphMaxNodes:      e.cfg.GraphMaxNodes,
		EmbeddingModel:     e.cfg.Embedding.Model,
		LevelFilter:        analysis.RecommendedLevelFilter,
	}

	ov := req.RAGOverrides
	if ov.SearchLimit > 0 {
		rr.SearchLimit = ov.SearchLimit
	}
	if ov.SearchThreshold > 0 {
		rr.SearchThreshold = ov.SearchThreshold
	}
	if ov.HybridAlpha > 0 {
		rr.HybridAlpha = ov.HybridAlpha
	}
	if ov.Rerank != nil {
		rr.Rerank = *ov.Rerank
	}
	if ov.UseGraph != nil {
		rr.UseGraph = *ov.UseGraph
	}
	return rr
}

func hitsForPrompt(hits []retrieval.Hit) []promptcompose.Hit {
	out := make([]promptcompose.Hit, len(hits))
	for i, h := range hits {
		out[i] = promptcompose.Hit{DocumentDisplayName: h.DocumentDisplayName, Content: h.Content}
	}
	return out
}

func graphSummary(gc *retrieval.GraphContext) string {
	if gc == nil {
		return ""
	}
	return gc.Summary
}

// EvalPipeline adapts an Engine to eval.Pipeline's narrower
// Answer(ctx, query, uc) signature, so the evaluation harness (C9) can
// drive real queries through the full stack under a privileged
// identity without the Engine itself overloading its richer Answer
// method.
type EvalPipeline struct {
	Engine *Engine
}

func (p EvalPipeline) Answer(ctx context.Context, query string, uc relstore.UserContext) (eval.PipelineResult, error) {
	return p.Engine.evalAnswer(ctx, query, uc)
}

func (e *Engine) evalAnswer(ctx context.Context, query string, uc relstore.UserContext) (eval.PipelineResult, error) {
	start := time.Now()
	res, err := e.Answer(ctx, AnswerRequest{Query: query, UserContext: uc})
	if err != nil {
		return eval.PipelineResult{}, err
	}

	sources := make([]guardrails.SourceContext, len(res.Hits))
	chunkIDs := make([]string, len(res.Hits))
	docIDs := make([]string, 0, len(res.Hits))
	seenDocs := make(map[string]bool)
	for i, h := range res.Hits {
		sources[i] = guardrails.SourceContext{Label: fmt.Sprintf("Source %d", i+1), Text: h.Content}
		chunkIDs[i] = h.ChunkID
		if !seenDocs[h.DocumentID] {
			seenDocs[h.DocumentID] = true
			docIDs = append(docIDs, h.DocumentID)
		}
	}

	return eval.PipelineResult{
		Answer:               res.Content,
		RetrievedChunks:      sources,
		RetrievedChunkIDs:    chunkIDs,
		RetrievedDocumentIDs: docIDs,
		ComponentLatencies:   map[string]time.Duration{"total": time.Since(start)},
	}, nil
}
