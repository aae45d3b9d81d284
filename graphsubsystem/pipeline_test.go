package graphsubsystem

import (
	"context"
	"testing"
	"time"

	"github.com/PeterKuehne/vexora-sub003/adapters/graphstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/vectorstore"
)

type fakeGraphStore struct {
	entities      []graphstore.Entity
	relationships []graphstore.Relationship
}

func (f *fakeGraphStore) UpsertEntities(ctx context.Context, entities []graphstore.Entity) error {
	f.entities = append(f.entities, entities...)
	return nil
}
func (f *fakeGraphStore) UpsertRelationships(ctx context.Context, relationships []graphstore.Relationship) error {
	f.relationships = append(f.relationships, relationships...)
	return nil
}
func (f *fakeGraphStore) FindByText(ctx context.Context, terms []string) ([]graphstore.Entity, error) {
	return nil, nil
}
func (f *fakeGraphStore) Traverse(ctx context.Context, params graphstore.TraverseParams) (*graphstore.TraversalResult, error) {
	return &graphstore.TraversalResult{}, nil
}
func (f *fakeGraphStore) DeleteForDocument(ctx context.Context, documentID string) error { return nil }
func (f *fakeGraphStore) HealthCheck(ctx context.Context) (graphstore.Status, *time.Duration, *string) {
	return graphstore.StatusOK, nil, nil
}

func TestPipeline_BuildExtractsResolvesAndPersists(t *testing.T) {
	graph := &fakeGraphStore{}
	resolver := NewResolver(graph, nil, nil, "")
	pipeline := NewPipeline(NewExtractor(nil, ""), resolver)

	chunks := []vectorstore.Chunk{
		{ID: "c1", DocumentID: "d1", Content: "Herr Schmidt works at Acme GmbH."},
		{ID: "c2", DocumentID: "d1", Content: "Acme GmbH must comply with ISO 9001."},
	}

	resolved, err := pipeline.Build(context.Background(), chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) == 0 {
		t.Fatal("expected at least one resolved entity")
	}
	if len(graph.entities) != len(resolved) {
		t.Errorf("expected every resolved entity persisted, got %d entities for %d resolved", len(graph.entities), len(resolved))
	}

	var sawAcme bool
	for _, e := range resolved {
		if e.Type == EntityOrganization && len(e.ChunkIDs) == 2 {
			sawAcme = true
		}
	}
	if !sawAcme {
		t.Errorf("expected Acme GmbH mentions from both chunks to merge into one entity, got %+v", resolved)
	}
}

func TestPipeline_BuildFailsOnlyWhenEveryChunkFails(t *testing.T) {
	resolver := NewResolver(nil, nil, nil, "")
	pipeline := NewPipeline(NewExtractor(nil, ""), resolver)

	_, err := pipeline.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty chunk set should not error: %v", err)
	}
}
