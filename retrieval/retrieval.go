// Package retrieval is the C4 Retrieval Engine: permission-filtered
// hybrid search, optional reranking, document expansion, and optional
// graph enrichment. It is grounded on retrieval/retrieval.go's Engine
// and Search, restructured so each step talks to one of the C1
// adapters (adapters/vectorstore,
// adapters/relstore, adapters/graphstore, adapters/cacheadapter,
// adapters/llmadapter, adapters/rerankadapter) instead of one embedded
// SQLite store, and threaded with context.Context cancellation at every
// adapter call.
package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PeterKuehne/vexora-sub003/adapters/cacheadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/graphstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/rerankadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/vectorstore"
	"github.com/PeterKuehne/vexora-sub003/router"
)

// Hit is one ranked passage returned to the prompt composer, carrying
// enough provenance to cite and to expand from.
type Hit struct {
	ChunkID             string
	DocumentID          string
	DocumentDisplayName string
	Content             string
	Heading             string
	PageNumber          int
	Score               float64
	Source              string // "primary" or "expansion"
}

// GraphContext is the node/edge set a graph-enrichment traversal
// produced, alongside a deterministic natural-language summary.
type GraphContext struct {
	Entities      []graphstore.Entity
	Relationships []graphstore.Relationship
	Summary       string
}

// Flags records pipeline degrade/skip decisions surfaced to the caller.
type Flags struct {
	NoAccessibleDocuments bool
	ExpansionApplied      bool
	Warnings              []string
}

// Request carries one retrieve() call's inputs; Retrieve returns the
// matching {hits, flags} pair.
type Request struct {
	Query               string
	Analysis            router.QueryAnalysis
	UserContext         relstore.UserContext
	SearchLimit         int
	SearchThreshold     float64
	HybridAlpha         float64
	Rerank              bool
	RerankTopK          int
	EnableExpansion     bool
	MaxDocsToExpand     int
	MaxChunksPerDoc     int
	ExpansionThreshold  float64
	UseGraph            bool
	GraphMaxDepth       int
	GraphMaxNodes       int
	EmbeddingModel      string
	LevelFilter         []int
}

// Response is the retrieve() result.
type Response struct {
	Hits         []Hit
	Flags        Flags
	GraphContext *GraphContext
}

// PermissionStore is the narrow slice of relstore.Store the retrieval
// engine depends on, split out as an interface so the pipeline can be
// exercised against an in-memory fake in tests instead of a live
// Postgres instance.
type PermissionStore interface {
	AccessibleDocumentIDs(ctx context.Context, uc relstore.UserContext) ([]string, error)
	LexicalSearch(ctx context.Context, query string, allowedDocumentIDs []string, limit int) ([]relstore.LexicalChunkScore, error)
}

// Engine composes the C1 adapters into the retrieval pipeline.
type Engine struct {
	vectors  vectorstore.VectorStore
	graph    graphstore.GraphStore // nil disables graph enrichment
	rel      PermissionStore
	cache    cacheadapter.Cache
	embedder llmadapter.Embedder
	reranker rerankadapter.Reranker // nil disables reranking
}

// New builds a retrieval Engine. graph and reranker may be nil to run
// without those optional adapters.
func New(vectors vectorstore.VectorStore, graph graphstore.GraphStore, rel PermissionStore, cache cacheadapter.Cache, embedder llmadapter.Embedder, reranker rerankadapter.Reranker) *Engine {
	return &Engine{vectors: vectors, graph: graph, rel: rel, cache: cache, embedder: embedder, reranker: reranker}
}

const (
	defaultSearchLimit     = 20
	defaultExpansionScore  = 0.1
	embedCacheTTL          = 24 * time.Hour
	rerankCacheTTL         = time.Hour
)

// Retrieve runs the seven-step algorithm in order. Any single step's
// failure degrades that step (empty or identity result) and appends a
// warning; the pipeline continues unless step 1 (permission resolution)
// or the step-3 hybrid search call fails, or ctx is cancelled, and those
// errors are surfaced to the caller.
func (e *Engine) Retrieve(ctx context.Context, req Request) (*Response, error) {
	if req.SearchLimit <= 0 {
		req.SearchLimit = defaultSearchLimit
	}
	flags := Flags{}

	// Step 1: permission resolution.
	allowedDocIDs, err := e.rel.AccessibleDocumentIDs(ctx, req.UserContext)
	if err != nil {
		return nil, fmt.Errorf("retrieval: resolve accessible documents: %w", err)
	}
	if len(allowedDocIDs) == 0 {
		flags.NoAccessibleDocuments = true
		return &Response{Flags: flags}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 2: embedding, with cache-by-hash(query,model) and degrade to
	// pure lexical (alpha=0) on adapter error.
	alpha := req.HybridAlpha
	embedding, err := e.embedQuery(ctx, req.Query, req.EmbeddingModel)
	if err != nil {
		slog.Warn("retrieval: embedding failed, degrading to lexical-only", "error", err)
		flags.Warnings = append(flags.Warnings, "embedding unavailable, degraded to lexical-only search")
		alpha = 0
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 3: hybrid search.
	lexical, err := e.rel.LexicalSearch(ctx, req.Query, allowedDocIDs, req.SearchLimit*3)
	if err != nil {
		slog.Warn("retrieval: lexical search failed", "error", err)
		flags.Warnings = append(flags.Warnings, "lexical search unavailable")
	}
	lexicalScores := make(map[string]float64, len(lexical))
	for _, l := range lexical {
		lexicalScores[l.ChunkID] = l.Score
	}

	scored, err := e.vectors.HybridSearch(ctx, vectorstore.SearchParams{
		QueryEmbedding:     embedding,
		LexicalScores:      lexicalScores,
		Limit:              req.SearchLimit,
		Threshold:          req.SearchThreshold,
		Alpha:              alpha,
		AllowedDocumentIDs: allowedDocIDs,
		LevelFilter:        req.LevelFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieval: hybrid search: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(scored))
	for _, sc := range scored {
		hits = append(hits, Hit{
			ChunkID:    sc.ID,
			DocumentID: sc.DocumentID,
			Content:    sc.Content,
			Heading:    sc.Heading,
			PageNumber: sc.PageNumber,
			Score:      sc.Score,
			Source:     "primary",
		})
	}

	// Step 4: reranking.
	if req.Rerank && e.reranker != nil && len(hits) > 0 {
		reranked, err := e.rerankHits(ctx, req.Query, hits, req.RerankTopK)
		if err != nil {
			slog.Warn("retrieval: rerank failed, keeping original order", "error", err)
			flags.Warnings = append(flags.Warnings, "rerank unavailable, kept original order")
		} else {
			hits = reranked
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 5: document expansion.
	if req.EnableExpansion {
		expanded, applied, err := e.expand(ctx, hits, allowedDocIDs, req)
		if err != nil {
			slog.Warn("retrieval: expansion failed", "error", err)
			flags.Warnings = append(flags.Warnings, "document expansion unavailable")
		} else {
			hits = expanded
			flags.ExpansionApplied = applied
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 6: graph enrichment.
	var graphCtx *GraphContext
	if req.UseGraph && req.Analysis.RequiresGraph && e.graph != nil {
		gc, err := e.graphEnrich(ctx, req)
		if err != nil {
			slog.Warn("retrieval: graph enrichment failed", "error", err)
			flags.Warnings = append(flags.Warnings, "graph enrichment unavailable")
		} else {
			graphCtx = gc
		}
	}

	return &Response{Hits: hits, Flags: flags, GraphContext: graphCtx}, nil
}

func (e *Engine) embedQuery(ctx context.Context, query, model string) ([]float32, error) {
	key := embedCacheKey(query, model)
	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, key); err == nil {
			return decodeEmbedding(cached), nil
		}
	}

	embedding, err := e.embedder.Embed(ctx, query, model)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		_ = e.cache.Set(ctx, key, encodeEmbedding(embedding), embedCacheTTL)
	}
	return embedding, nil
}

func embedCacheKey(query, model string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(query))
	return "embed:" + hex.EncodeToString(h.Sum(nil))
}

func encodeEmbedding(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return strings.Join(parts, ",")
}

func decodeEmbedding(s string) []float32 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		var f float64
		fmt.Sscanf(p, "%g", &f)
		out = append(out, float32(f))
	}
	return out
}

func (e *Engine) rerankHits(ctx context.Context, query string, hits []Hit, topK int) ([]Hit, error) {
	documents := make([]string, len(hits))
	chunkIDs := make([]string, len(hits))
	for i, h := range hits {
		documents[i] = h.Content
		chunkIDs[i] = h.ChunkID
	}

	cacheKey := rerankCacheKey(query, chunkIDs)
	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, cacheKey); err == nil {
			return applyRerankOrder(hits, decodeRerankOrder(cached)), nil
		}
	}

	scored, err := e.reranker.Rerank(ctx, query, documents, topK)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		_ = e.cache.Set(ctx, cacheKey, encodeRerankOrder(scored), rerankCacheTTL)
	}
	return applyRerankOrder(hits, scored), nil
}

func applyRerankOrder(hits []Hit, scored []rerankadapter.Scored) []Hit {
	out := make([]Hit, 0, len(scored))
	for _, s := range scored {
		if s.OriginalIndex < 0 || s.OriginalIndex >= len(hits) {
			continue
		}
		h := hits[s.OriginalIndex]
		h.Score = s.Score
		out = append(out, h)
	}
	return out
}

func encodeRerankOrder(scored []rerankadapter.Scored) string {
	parts := make([]string, len(scored))
	for i, s := range scored {
		parts[i] = fmt.Sprintf("%d:%g", s.OriginalIndex, s.Score)
	}
	return strings.Join(parts, ",")
}

func decodeRerankOrder(s string) []rerankadapter.Scored {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]rerankadapter.Scored, 0, len(parts))
	for _, p := range parts {
		var idx int
		var score float64
		if _, err := fmt.Sscanf(p, "%d:%g", &idx, &score); err != nil {
			continue
		}
		out = append(out, rerankadapter.Scored{OriginalIndex: idx, Score: score})
	}
	return out
}

func rerankCacheKey(query string, chunkIDs []string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	for _, id := range chunkIDs {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return "rerank:" + hex.EncodeToString(h.Sum(nil))
}

// expand takes unique documents among hits with score >= ExpansionThreshold,
// keeps the top MaxDocsToExpand, and for each fetches up to MaxChunksPerDoc
// additional level-2 chunks not already present, tagged "expansion" with a
// fixed low score. Original-order primacy is preserved: expansion chunks
// are appended after the primary hits.
func (e *Engine) expand(ctx context.Context, hits []Hit, allowedDocIDs []string, req Request) ([]Hit, bool, error) {
	seenChunks := make(map[string]bool, len(hits))
	seenDocs := make(map[string]bool)
	var candidateDocs []string
	for _, h := range hits {
		seenChunks[h.ChunkID] = true
		if h.Score >= req.ExpansionThreshold && !seenDocs[h.DocumentID] {
			seenDocs[h.DocumentID] = true
			candidateDocs = append(candidateDocs, h.DocumentID)
		}
	}
	if len(candidateDocs) == 0 {
		return hits, false, nil
	}

	maxDocs := req.MaxDocsToExpand
	if maxDocs <= 0 || maxDocs > len(candidateDocs) {
		maxDocs = len(candidateDocs)
	}
	candidateDocs = candidateDocs[:maxDocs]

	maxPerDoc := req.MaxChunksPerDoc
	if maxPerDoc <= 0 {
		maxPerDoc = 5
	}

	applied := false
	for _, docID := range candidateDocs {
		chunks, err := e.vectors.ChunksByDocumentIDs(ctx, []string{docID}, maxPerDoc*3, []int{2})
		if err != nil {
			return hits, applied, err
		}
		added := 0
		for _, c := range chunks {
			if added >= maxPerDoc {
				break
			}
			if seenChunks[c.ID] {
				continue
			}
			seenChunks[c.ID] = true
			hits = append(hits, Hit{
				ChunkID:    c.ID,
				DocumentID: c.DocumentID,
				Content:    c.Content,
				Heading:    c.Heading,
				PageNumber: c.PageNumber,
				Score:      defaultExpansionScore,
				Source:     "expansion",
			})
			added++
			applied = true
		}
	}
	return hits, applied, nil
}

// graphEnrich resolves router-extracted entities via the graph store and,
// if any resolve, traverses with strategy=neighborhood up to the request's
// depth/node bounds, producing a deterministic natural-language summary.
func (e *Engine) graphEnrich(ctx context.Context, req Request) (*GraphContext, error) {
	if len(req.Analysis.Entities) == 0 {
		return nil, nil
	}

	entities, err := e.graph.FindByText(ctx, req.Analysis.Entities)
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}

	startIDs := make([]string, len(entities))
	for i, ent := range entities {
		startIDs[i] = ent.ID
	}

	depth := req.GraphMaxDepth
	if depth <= 0 {
		depth = 2
	}
	maxNodes := req.GraphMaxNodes
	if maxNodes <= 0 {
		maxNodes = 25
	}

	result, err := e.graph.Traverse(ctx, graphstore.TraverseParams{
		StartEntityIDs: startIDs,
		Strategy:       graphstore.StrategyNeighborhood,
		MaxDepth:       depth,
		MaxNodes:       maxNodes,
	})
	if err != nil {
		return nil, err
	}

	return &GraphContext{
		Entities:      result.Entities,
		Relationships: result.Relationships,
		Summary:       summarizeGraph(result),
	}, nil
}
