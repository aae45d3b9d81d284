package graphsubsystem

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/PeterKuehne/vexora-sub003/adapters/graphstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/vectorstore"
	"github.com/google/uuid"
)

// defaultConcurrency and perChunkTimeout mirror
// graph/builder.go's Build: bound how many chunks are extracted at once
// and give a single slow chunk a timeout rather than blocking the run.
const (
	defaultConcurrency = 16
	perChunkTimeout    = 90 * time.Second
)

// Pipeline runs extraction over a batch of chunks, resolves the
// resulting mentions into stable entities, and persists both entities
// and relationships.
type Pipeline struct {
	Extractor   *Extractor
	Resolver    *Resolver
	Concurrency int
}

// NewPipeline builds a Pipeline with the default concurrency.
func NewPipeline(extractor *Extractor, resolver *Resolver) *Pipeline {
	return &Pipeline{Extractor: extractor, Resolver: resolver, Concurrency: defaultConcurrency}
}

// Build extracts entities and relationships from every chunk
// concurrently (bounded by Concurrency, each chunk capped at
// perChunkTimeout), resolves the pooled mentions, and persists the
// result. It fails only if every chunk's extraction failed.
func (p *Pipeline) Build(ctx context.Context, chunks []vectorstore.Chunk) ([]ResolvedEntity, error) {
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var allEntities []ExtractedEntity
	var allRelationships []ExtractedRelationship
	var failed, succeeded int

	for _, chunk := range chunks {
		chunk := chunk
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			chunkCtx, cancel := context.WithTimeout(ctx, perChunkTimeout)
			defer cancel()

			result, err := p.Extractor.Extract(chunkCtx, chunk.ID, chunk.DocumentID, chunk.Content)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			succeeded++
			allEntities = append(allEntities, result.Entities...)
			allRelationships = append(allRelationships, result.Relationships...)
		}()
	}
	wg.Wait()

	if succeeded == 0 && failed > 0 {
		return nil, fmt.Errorf("graphsubsystem: extraction failed for all %d chunks", failed)
	}

	resolved, err := p.Resolver.Resolve(ctx, allEntities)
	if err != nil {
		return nil, fmt.Errorf("graphsubsystem: resolve entities: %w", err)
	}

	if err := p.Resolver.Persist(ctx, resolved); err != nil {
		return nil, err
	}

	if err := p.persistRelationships(ctx, resolved, allRelationships); err != nil {
		return nil, err
	}

	return resolved, nil
}

// persistRelationships maps each extracted relationship's source/target
// names onto the resolved entity that absorbed that surface form, then
// upserts the relationship into the graph store. Relationships whose
// endpoints resolved to the same entity, or whose source or target name
// is not an alias of any resolved entity, are skipped; the graph
// store's MERGE semantics make this idempotent to re-run.
func (p *Pipeline) persistRelationships(ctx context.Context, resolved []ResolvedEntity, relationships []ExtractedRelationship) error {
	nameToID := make(map[string]string)
	for _, e := range resolved {
		for _, alias := range e.Aliases {
			nameToID[canonicalize(alias)] = e.ID
		}
	}

	var graphRels []graphstore.Relationship
	seen := make(map[string]bool)
	for _, r := range relationships {
		sourceID, sourceOK := nameToID[canonicalize(r.Source)]
		targetID, targetOK := nameToID[canonicalize(r.Target)]
		if !sourceOK || !targetOK || sourceID == targetID {
			continue
		}
		key := sourceID + "|" + targetID + "|" + string(r.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		graphRels = append(graphRels, graphstore.Relationship{
			ID: uuid.NewString(), SourceEntityID: sourceID, TargetEntityID: targetID,
			Type: string(r.Type), DocumentID: r.DocumentID,
		})
	}

	if len(graphRels) == 0 || p.Resolver.Graph == nil {
		return nil
	}
	if err := p.Resolver.Graph.UpsertRelationships(ctx, graphRels); err != nil {
		return fmt.Errorf("graphsubsystem: persist relationships: %w", err)
	}
	return nil
}
