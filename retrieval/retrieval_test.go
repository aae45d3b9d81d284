package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/PeterKuehne/vexora-sub003/adapters/cacheadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/graphstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/rerankadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/vectorstore"
)

type fakeVectorStore struct {
	hybrid func(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.ScoredChunk, error)
	chunks func(ctx context.Context, documentIDs []string, limit int, levelFilter []int) ([]vectorstore.Chunk, error)
}

func (f *fakeVectorStore) HybridSearch(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.ScoredChunk, error) {
	return f.hybrid(ctx, params)
}
func (f *fakeVectorStore) ChunksByDocumentIDs(ctx context.Context, documentIDs []string, limit int, levelFilter []int) ([]vectorstore.Chunk, error) {
	if f.chunks == nil {
		return nil, nil
	}
	return f.chunks(ctx, documentIDs, limit, levelFilter)
}
func (f *fakeVectorStore) UpsertChunks(ctx context.Context, chunks []vectorstore.Chunk, embeddings [][]float32) error {
	return nil
}
func (f *fakeVectorStore) DeleteByDocumentID(ctx context.Context, documentID string) error { return nil }
func (f *fakeVectorStore) HealthCheck(ctx context.Context) (vectorstore.Status, *time.Duration, *string) {
	return vectorstore.StatusOK, nil, nil
}

type fakePermissionStore struct {
	allowedDocIDs []string
	lexical       []relstore.LexicalChunkScore
}

func (f *fakePermissionStore) AccessibleDocumentIDs(ctx context.Context, uc relstore.UserContext) ([]string, error) {
	return f.allowedDocIDs, nil
}
func (f *fakePermissionStore) LexicalSearch(ctx context.Context, query string, allowedDocumentIDs []string, limit int) ([]relstore.LexicalChunkScore, error) {
	return f.lexical, nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, model string) ([]float32, error) {
	return f.vec, f.err
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeEmbedder) HealthCheck(ctx context.Context) (llmadapter.Status, *time.Duration, *string) {
	return llmadapter.StatusOK, nil, nil
}

func TestRetrieve_NoAccessibleDocumentsShortCircuits(t *testing.T) {
	e := New(
		&fakeVectorStore{},
		nil,
		&fakePermissionStore{allowedDocIDs: nil},
		cacheadapter.NewNoop(),
		&fakeEmbedder{vec: []float32{0.1, 0.2}},
		nil,
	)
	resp, err := e.Retrieve(context.Background(), Request{Query: "what is the rated voltage"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Flags.NoAccessibleDocuments {
		t.Error("expected NoAccessibleDocuments flag")
	}
	if len(resp.Hits) != 0 {
		t.Errorf("expected no hits, got %d", len(resp.Hits))
	}
}

func TestRetrieve_HybridSearchReturnsHits(t *testing.T) {
	vs := &fakeVectorStore{
		hybrid: func(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.ScoredChunk, error) {
			return []vectorstore.ScoredChunk{
				{Chunk: vectorstore.Chunk{ID: "c1", DocumentID: "d1", Content: "the motor runs at 400 volts"}, Score: 0.9},
			}, nil
		},
	}
	e := New(vs, nil, &fakePermissionStore{allowedDocIDs: []string{"d1"}}, cacheadapter.NewNoop(), &fakeEmbedder{vec: []float32{0.1}}, nil)

	resp, err := e.Retrieve(context.Background(), Request{Query: "what voltage does the motor run at"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].ChunkID != "c1" {
		t.Errorf("expected one hit c1, got %+v", resp.Hits)
	}
}

func TestRetrieve_EmbeddingFailureDegradesToLexicalOnly(t *testing.T) {
	var capturedAlpha float64 = -1
	vs := &fakeVectorStore{
		hybrid: func(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.ScoredChunk, error) {
			capturedAlpha = params.Alpha
			return nil, nil
		},
	}
	e := New(vs, nil, &fakePermissionStore{allowedDocIDs: []string{"d1"}}, cacheadapter.NewNoop(),
		&fakeEmbedder{err: context.DeadlineExceeded}, nil)

	resp, err := e.Retrieve(context.Background(), Request{Query: "test query", HybridAlpha: 0.7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if capturedAlpha != 0 {
		t.Errorf("expected alpha degraded to 0, got %v", capturedAlpha)
	}
	if len(resp.Flags.Warnings) == 0 {
		t.Error("expected a warning about degraded embedding")
	}
}

func TestRetrieve_ExpansionAppendsWithoutReorderingPrimary(t *testing.T) {
	vs := &fakeVectorStore{
		hybrid: func(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.ScoredChunk, error) {
			return []vectorstore.ScoredChunk{
				{Chunk: vectorstore.Chunk{ID: "c1", DocumentID: "d1", Content: "primary hit"}, Score: 0.9},
			}, nil
		},
		chunks: func(ctx context.Context, documentIDs []string, limit int, levelFilter []int) ([]vectorstore.Chunk, error) {
			return []vectorstore.Chunk{
				{ID: "c1", DocumentID: "d1", Content: "primary hit", Level: 2},
				{ID: "c2", DocumentID: "d1", Content: "additional chunk", Level: 2},
			}, nil
		},
	}
	e := New(vs, nil, &fakePermissionStore{allowedDocIDs: []string{"d1"}}, cacheadapter.NewNoop(), &fakeEmbedder{vec: []float32{0.1}}, nil)

	resp, err := e.Retrieve(context.Background(), Request{
		Query:              "test query",
		EnableExpansion:    true,
		ExpansionThreshold: 0.5,
		MaxDocsToExpand:    1,
		MaxChunksPerDoc:    5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Hits) != 2 {
		t.Fatalf("expected primary + expansion hit, got %d", len(resp.Hits))
	}
	if resp.Hits[0].ChunkID != "c1" || resp.Hits[0].Source != "primary" {
		t.Errorf("expected primary hit first, got %+v", resp.Hits[0])
	}
	if resp.Hits[1].ChunkID != "c2" || resp.Hits[1].Source != "expansion" {
		t.Errorf("expected expansion hit second, got %+v", resp.Hits[1])
	}
	if !resp.Flags.ExpansionApplied {
		t.Error("expected ExpansionApplied flag")
	}
}

func TestRetrieve_GraphEnrichmentSkippedWhenNotRequired(t *testing.T) {
	vs := &fakeVectorStore{
		hybrid: func(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.ScoredChunk, error) {
			return nil, nil
		},
	}
	e := New(vs, &fakeGraphStore{}, &fakePermissionStore{allowedDocIDs: []string{"d1"}}, cacheadapter.NewNoop(), &fakeEmbedder{vec: []float32{0.1}}, nil)

	resp, err := e.Retrieve(context.Background(), Request{Query: "test", UseGraph: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.GraphContext != nil {
		t.Error("expected no graph context when analysis does not require graph")
	}
}

type fakeGraphStore struct{}

func (fakeGraphStore) UpsertEntities(ctx context.Context, entities []graphstore.Entity) error { return nil }
func (fakeGraphStore) UpsertRelationships(ctx context.Context, relationships []graphstore.Relationship) error {
	return nil
}
func (fakeGraphStore) FindByText(ctx context.Context, terms []string) ([]graphstore.Entity, error) {
	return nil, nil
}
func (fakeGraphStore) Traverse(ctx context.Context, params graphstore.TraverseParams) (*graphstore.TraversalResult, error) {
	return &graphstore.TraversalResult{}, nil
}
func (fakeGraphStore) DeleteForDocument(ctx context.Context, documentID string) error { return nil }
func (fakeGraphStore) HealthCheck(ctx context.Context) (graphstore.Status, *time.Duration, *string) {
	return graphstore.StatusOK, nil, nil
}

var _ rerankadapter.Reranker = (*fakeReranker)(nil)

type fakeReranker struct {
	scored []rerankadapter.Scored
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]rerankadapter.Scored, error) {
	return f.scored, nil
}
func (f *fakeReranker) HealthCheck(ctx context.Context) (rerankadapter.Status, *time.Duration, *string) {
	return rerankadapter.StatusOK, nil, nil
}

func TestRetrieve_RerankReordersHits(t *testing.T) {
	vs := &fakeVectorStore{
		hybrid: func(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.ScoredChunk, error) {
			return []vectorstore.ScoredChunk{
				{Chunk: vectorstore.Chunk{ID: "c1"}, Score: 0.5},
				{Chunk: vectorstore.Chunk{ID: "c2"}, Score: 0.4},
			}, nil
		},
	}
	rr := &fakeReranker{scored: []rerankadapter.Scored{{OriginalIndex: 1, Score: 0.99}, {OriginalIndex: 0, Score: 0.2}}}
	e := New(vs, nil, &fakePermissionStore{allowedDocIDs: []string{"d1"}}, cacheadapter.NewNoop(), &fakeEmbedder{vec: []float32{0.1}}, rr)

	resp, err := e.Retrieve(context.Background(), Request{Query: "test", Rerank: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Hits) != 2 || resp.Hits[0].ChunkID != "c2" {
		t.Errorf("expected reranked order c2,c1, got %+v", resp.Hits)
	}
}
