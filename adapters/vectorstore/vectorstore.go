// Package vectorstore is the C1 external-adapter client for the vector
// database. It is grounded on store.go's (sqlite-vec) shape of a chunk
// row, and on Tangerg-lynx's Qdrant provider
// (ai/providers/vectorstores/qdrant/store.go) for the real
// github.com/qdrant/go-client calls: collection lifecycle, point upsert,
// and query-by-vector with a payload filter.
//
// HybridSearch blends a vector-similarity score with a lexical score the
// caller supplies: both scores are min-max normalized to [0,1] and
// linearly combined by alpha (0 = pure lexical, 1 = pure vector). This
// is deliberately NOT retrieval/retrieval.go's reciprocal-rank fusion
// of vector+FTS+graph -- the alpha blend requires a score-level
// combination, not a rank-level one.
package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Chunk is one retrievable unit of document content. Level places it in
// the document's hierarchy: 0 is a whole-document summary, 1 a section,
// 2 a paragraph. ParentChunkID references the enclosing level-0/1 chunk
// and is empty at level 0.
type Chunk struct {
	ID            string
	DocumentID    string
	Content       string
	Heading       string
	PageNumber    int
	Level         int
	ParentChunkID string
	Metadata      map[string]any
}

// ScoredChunk is a Chunk carrying its blended relevance score plus the
// component scores that produced it, so callers can explain a result.
type ScoredChunk struct {
	Chunk
	VectorScore float64
	LexicalScore float64
	Score       float64
}

// SearchParams carries one hybridSearch call's inputs.
type SearchParams struct {
	QueryEmbedding     []float32
	LexicalScores      map[string]float64 // chunkID -> lexical score, precomputed by the caller
	Limit              int
	Threshold          float64
	Alpha              float64  // 0=lexical, 1=vector
	AllowedDocumentIDs []string // RLS-resolved accessible document set; nil means unrestricted
	LevelFilter        []int    // hierarchy levels to restrict the search to; nil/empty means unrestricted
}

// Status is the uniform health-check result shared by every C1 adapter.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// VectorStore is the adapter contract the retrieval engine depends on.
type VectorStore interface {
	HybridSearch(ctx context.Context, params SearchParams) ([]ScoredChunk, error)
	ChunksByDocumentIDs(ctx context.Context, documentIDs []string, limit int, levelFilter []int) ([]Chunk, error)
	UpsertChunks(ctx context.Context, chunks []Chunk, embeddings [][]float32) error
	DeleteByDocumentID(ctx context.Context, documentID string) error
	HealthCheck(ctx context.Context) (Status, *time.Duration, *string)
}

const payloadContentKey = "content"
const payloadDocumentIDKey = "document_id"
const payloadHeadingKey = "heading"
const payloadPageKey = "page_number"
const payloadLevelKey = "level"
const payloadParentChunkIDKey = "parent_chunk_id"

// Config configures the Qdrant-backed store.
type Config struct {
	Host             string
	Port             int
	APIKey           string
	UseTLS           bool
	CollectionName   string
	VectorSize       uint64
	InitializeSchema bool
}

type qdrantStore struct {
	client         *qdrant.Client
	collectionName string
}

// New builds a Qdrant-backed VectorStore, creating the collection if
// InitializeSchema is set and it does not already exist.
func New(ctx context.Context, cfg Config) (VectorStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create qdrant client: %w", err)
	}

	store := &qdrantStore{client: client, collectionName: cfg.CollectionName}

	if cfg.InitializeSchema {
		if err := store.ensureCollection(ctx, cfg.VectorSize); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *qdrantStore) ensureCollection(ctx context.Context, size uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.collectionName)
	if err != nil {
		return fmt.Errorf("vectorstore: check collection existence: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     size,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: create collection %s: %w", s.collectionName, err)
	}
	return nil
}

func (s *qdrantStore) UpsertChunks(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("vectorstore: chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		payload := map[string]*qdrant.Value{}
		contentVal, err := qdrant.NewValue(c.Content)
		if err != nil {
			return fmt.Errorf("vectorstore: encode content payload: %w", err)
		}
		payload[payloadContentKey] = contentVal
		docVal, err := qdrant.NewValue(c.DocumentID)
		if err != nil {
			return fmt.Errorf("vectorstore: encode document_id payload: %w", err)
		}
		payload[payloadDocumentIDKey] = docVal
		if c.Heading != "" {
			if v, err := qdrant.NewValue(c.Heading); err == nil {
				payload[payloadHeadingKey] = v
			}
		}
		if c.PageNumber != 0 {
			if v, err := qdrant.NewValue(int64(c.PageNumber)); err == nil {
				payload[payloadPageKey] = v
			}
		}
		if v, err := qdrant.NewValue(int64(c.Level)); err == nil {
			payload[payloadLevelKey] = v
		}
		if c.ParentChunkID != "" {
			if v, err := qdrant.NewValue(c.ParentChunkID); err == nil {
				payload[payloadParentChunkIDKey] = v
			}
		}
		for k, v := range c.Metadata {
			val, err := qdrant.NewValue(v)
			if err != nil {
				continue
			}
			payload[k] = val
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(id),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vectorstore: upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *qdrantStore) HybridSearch(ctx context.Context, params SearchParams) ([]ScoredChunk, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(params.QueryEmbedding...),
		Limit:          qdrantUint64(uint64(limit * 3)), // overfetch; lexical blend may reorder
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if filter := buildFilter(params.AllowedDocumentIDs, params.LevelFilter); filter != nil {
		queryPoints.Filter = filter
	}

	scoredPoints, err := s.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query collection %s: %w", s.collectionName, err)
	}

	candidates := make([]ScoredChunk, 0, len(scoredPoints))
	for _, p := range scoredPoints {
		chunk, vecScore := chunkFromPoint(p)
		lex := params.LexicalScores[chunk.ID]
		candidates = append(candidates, ScoredChunk{Chunk: chunk, VectorScore: vecScore, LexicalScore: lex})
	}

	blendScores(candidates, params.Alpha)

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	out := candidates[:0]
	for _, c := range candidates {
		if c.Score < params.Threshold {
			continue
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// blendScores min-max normalizes vector and lexical scores independently
// across the candidate set, then combines them as
// alpha*vector + (1-alpha)*lexical, writing the result into Score.
func blendScores(candidates []ScoredChunk, alpha float64) {
	if len(candidates) == 0 {
		return
	}
	vecMin, vecMax := candidates[0].VectorScore, candidates[0].VectorScore
	lexMin, lexMax := candidates[0].LexicalScore, candidates[0].LexicalScore
	for _, c := range candidates {
		vecMin, vecMax = minF(vecMin, c.VectorScore), maxF(vecMax, c.VectorScore)
		lexMin, lexMax = minF(lexMin, c.LexicalScore), maxF(lexMax, c.LexicalScore)
	}
	for i := range candidates {
		nv := normalize(candidates[i].VectorScore, vecMin, vecMax)
		nl := normalize(candidates[i].LexicalScore, lexMin, lexMax)
		candidates[i].Score = alpha*nv + (1-alpha)*nl
	}
}

func normalize(v, min, max float64) float64 {
	if max-min < 1e-9 {
		return 0
	}
	return (v - min) / (max - min)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func chunkFromPoint(p *qdrant.ScoredPoint) (Chunk, float64) {
	c := Chunk{Metadata: map[string]any{}}
	if id := p.GetId(); id != nil {
		c.ID = id.GetUuid()
	}
	payload := p.GetPayload()
	for k, v := range payload {
		switch k {
		case payloadContentKey:
			c.Content = v.GetStringValue()
		case payloadDocumentIDKey:
			c.DocumentID = v.GetStringValue()
		case payloadHeadingKey:
			c.Heading = v.GetStringValue()
		case payloadPageKey:
			c.PageNumber = int(v.GetIntegerValue())
		case payloadLevelKey:
			c.Level = int(v.GetIntegerValue())
		case payloadParentChunkIDKey:
			c.ParentChunkID = v.GetStringValue()
		default:
			c.Metadata[k] = qdrantScalar(v)
		}
	}
	return c, float64(p.GetScore())
}

func qdrantScalar(v *qdrant.Value) any {
	switch k := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue
	case *qdrant.Value_BoolValue:
		return k.BoolValue
	default:
		return nil
	}
}

func documentIDFilter(documentIDs []string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatchKeywords(payloadDocumentIDKey, documentIDs...),
		},
	}
}

// buildFilter combines an optional document-id restriction with an
// optional hierarchy-level restriction into one Qdrant filter. Returns
// nil when neither restriction applies.
func buildFilter(documentIDs []string, levels []int) *qdrant.Filter {
	var must []*qdrant.Condition
	if len(documentIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(payloadDocumentIDKey, documentIDs...))
	}
	if len(levels) > 0 {
		levelsInt64 := make([]int64, len(levels))
		for i, l := range levels {
			levelsInt64[i] = int64(l)
		}
		must = append(must, qdrant.NewMatchInts(payloadLevelKey, levelsInt64...))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func (s *qdrantStore) ChunksByDocumentIDs(ctx context.Context, documentIDs []string, limit int, levelFilter []int) ([]Chunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	scrollLimit := uint32(limit)
	if scrollLimit == 0 {
		scrollLimit = 100
	}
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collectionName,
		Filter:         buildFilter(documentIDs, levelFilter),
		Limit:          &scrollLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorstore: scroll collection %s: %w", s.collectionName, err)
	}

	out := make([]Chunk, 0, len(points))
	for _, p := range points {
		c := Chunk{Metadata: map[string]any{}}
		if id := p.GetId(); id != nil {
			c.ID = id.GetUuid()
		}
		for k, v := range p.GetPayload() {
			switch k {
			case payloadContentKey:
				c.Content = v.GetStringValue()
			case payloadDocumentIDKey:
				c.DocumentID = v.GetStringValue()
			case payloadHeadingKey:
				c.Heading = v.GetStringValue()
			case payloadPageKey:
				c.PageNumber = int(v.GetIntegerValue())
			case payloadLevelKey:
				c.Level = int(v.GetIntegerValue())
			case payloadParentChunkIDKey:
				c.ParentChunkID = v.GetStringValue()
			default:
				c.Metadata[k] = qdrantScalar(v)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *qdrantStore) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collectionName,
		Points:         qdrant.NewPointsSelectorFilter(documentIDFilter([]string{documentID})),
	})
	if err != nil {
		return fmt.Errorf("vectorstore: delete document %s: %w", documentID, err)
	}
	return nil
}

// HealthCheck confirms the collection is reachable. The go-client package
// exposes no bare ping RPC, so CollectionExists (used elsewhere for schema
// init) doubles as the liveness probe.
func (s *qdrantStore) HealthCheck(ctx context.Context) (Status, *time.Duration, *string) {
	start := time.Now()
	_, err := s.client.CollectionExists(ctx, s.collectionName)
	elapsed := time.Since(start)
	if err != nil {
		msg := err.Error()
		return StatusDown, &elapsed, &msg
	}
	return StatusOK, &elapsed, nil
}

func qdrantUint64(v uint64) *uint64 { return &v }
