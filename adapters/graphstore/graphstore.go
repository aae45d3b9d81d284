// Package graphstore is the C1 external-adapter client for the graph
// database. Entity/relationship shapes and the BFS-traversal semantics
// are grounded on graph/traversal.go (in-memory adjacency BFS over
// store.AllRelationships) and graph/entity.go (entity/relation type
// constants); here the BFS is expressed as Cypher and pushed down
// to Neo4j instead of walking an in-memory adjacency map, since that is
// the idiomatic way to do multi-hop traversal against a real graph
// database. The retrieved example pack contains no direct
// neo4j-go-driver call site (only its presence in one repo's go.mod),
// so the driver calls below follow the driver's documented session/
// ExecuteRead shape rather than a pack-grounded call site.
package graphstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Entity is a node in the knowledge graph.
type Entity struct {
	ID            string
	Name          string
	Type          string // PERSON, ORGANIZATION, PROJECT, PRODUCT, DOCUMENT, TOPIC, LOCATION, DATE, REGULATION
	CanonicalForm string
	Aliases       []string
	DocumentIDs   []string
}

// Relationship is a directed edge between two entities.
type Relationship struct {
	ID             string
	SourceEntityID string
	TargetEntityID string
	Type           string // WORKS_FOR, MANAGES, CREATED, MENTIONS, REFERENCES, ABOUT, PART_OF, REPORTS_TO, COLLABORATES_WITH, APPROVED_BY
	DocumentID     string
}

// Strategy selects how Traverse expands from the start entities.
type Strategy string

const (
	StrategyNeighborhood Strategy = "neighborhood"
	StrategyShortestPath Strategy = "shortest_path"
	StrategyCommunity    Strategy = "community"
)

// TraverseParams carries one traverse call's inputs.
type TraverseParams struct {
	StartEntityIDs    []string
	Strategy          Strategy
	MaxDepth          int
	MaxNodes          int
	RelationshipTypes []string // empty means any type
}

// TraversalResult is the node/edge set a traversal produced.
type TraversalResult struct {
	Entities      []Entity
	Relationships []Relationship
}

// Status is the uniform health-check result shared by every C1 adapter.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// GraphStore is the adapter contract the graph subsystem depends on.
type GraphStore interface {
	UpsertEntities(ctx context.Context, entities []Entity) error
	UpsertRelationships(ctx context.Context, relationships []Relationship) error
	FindByText(ctx context.Context, terms []string) ([]Entity, error)
	Traverse(ctx context.Context, params TraverseParams) (*TraversalResult, error)
	DeleteForDocument(ctx context.Context, documentID string) error
	HealthCheck(ctx context.Context) (Status, *time.Duration, *string)
}

const entityLabel = "Entity"

type neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config configures the Neo4j connection.
type Config struct {
	URI      string
	Username string
	Password string
	Database string // "" uses the server default database
}

// New builds a Neo4j-backed GraphStore.
func New(ctx context.Context, cfg Config) (GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("graphstore: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("graphstore: verify connectivity: %w", err)
	}
	return &neo4jStore{driver: driver, database: cfg.Database}, nil
}

func (s *neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *neo4jStore) UpsertEntities(ctx context.Context, entities []Entity) error {
	if len(entities) == 0 {
		return nil
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	rows := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, map[string]any{
			"id":            e.ID,
			"name":          e.Name,
			"type":          e.Type,
			"canonicalForm": e.CanonicalForm,
			"aliases":       e.Aliases,
			"documentIds":   e.DocumentIDs,
		})
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			UNWIND $rows AS row
			MERGE (e:`+entityLabel+` {id: row.id})
			SET e.name = row.name,
			    e.type = row.type,
			    e.canonicalForm = row.canonicalForm,
			    e.aliases = row.aliases,
			    e.documentIds = row.documentIds
		`, map[string]any{"rows": rows})
	})
	if err != nil {
		return fmt.Errorf("graphstore: upsert entities: %w", err)
	}
	return nil
}

func (s *neo4jStore) UpsertRelationships(ctx context.Context, relationships []Relationship) error {
	if len(relationships) == 0 {
		return nil
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	// Relationship type becomes part of the Cypher pattern, so group by
	// type to keep the query parameterized on everything else.
	byType := map[string][]map[string]any{}
	for _, r := range relationships {
		byType[r.Type] = append(byType[r.Type], map[string]any{
			"id":       r.ID,
			"sourceId": r.SourceEntityID,
			"targetId": r.TargetEntityID,
			"docId":    r.DocumentID,
		})
	}

	for relType, rows := range byType {
		relType := sanitizeRelType(relType)
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, `
				UNWIND $rows AS row
				MATCH (src:`+entityLabel+` {id: row.sourceId})
				MATCH (dst:`+entityLabel+` {id: row.targetId})
				MERGE (src)-[r:`+relType+` {id: row.id}]->(dst)
				SET r.documentId = row.docId
			`, map[string]any{"rows": rows})
		})
		if err != nil {
			return fmt.Errorf("graphstore: upsert relationships of type %s: %w", relType, err)
		}
	}
	return nil
}

func (s *neo4jStore) FindByText(ctx context.Context, terms []string) ([]Entity, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			UNWIND $terms AS term
			MATCH (e:`+entityLabel+`)
			WHERE toLower(e.name) = term OR toLower(e.name) CONTAINS term
			RETURN DISTINCT e.id AS id, e.name AS name, e.type AS type, e.canonicalForm AS canonicalForm, e.documentIds AS documentIds
		`, map[string]any{"terms": lowered})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: find by text: %w", err)
	}
	return entitiesFromRecords(result.([]*neo4j.Record)), nil
}

func (s *neo4jStore) Traverse(ctx context.Context, params TraverseParams) (*TraversalResult, error) {
	if len(params.StartEntityIDs) == 0 {
		return &TraversalResult{}, nil
	}
	depth := params.MaxDepth
	if depth <= 0 {
		depth = 2
	}
	maxNodes := params.MaxNodes
	if maxNodes <= 0 {
		maxNodes = 50
	}

	switch params.Strategy {
	case StrategyShortestPath:
		return s.traverseShortestPath(ctx, params.StartEntityIDs, depth, maxNodes)
	case StrategyCommunity:
		return s.traverseCommunity(ctx, params.StartEntityIDs, depth, maxNodes)
	default:
		return s.traverseNeighborhood(ctx, params.StartEntityIDs, depth, maxNodes)
	}
}

func (s *neo4jStore) traverseNeighborhood(ctx context.Context, startIDs []string, depth, maxNodes int) (*TraversalResult, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (start:%s)
			WHERE start.id IN $startIds
			CALL {
				WITH start
				MATCH path = (start)-[*1..%d]-(n:%s)
				RETURN path
				LIMIT $maxNodes
			}
			WITH collect(path) AS paths
			UNWIND paths AS p
			UNWIND nodes(p) AS n
			WITH collect(DISTINCT n) AS nodes, paths
			UNWIND paths AS p2
			UNWIND relationships(p2) AS r
			RETURN nodes, collect(DISTINCT r) AS rels
		`, entityLabel, depth, entityLabel), map[string]any{
			"startIds": startIDs,
			"maxNodes": maxNodes,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: traverse neighborhood: %w", err)
	}
	return traversalFromRecords(result.([]*neo4j.Record), maxNodes), nil
}

func (s *neo4jStore) traverseShortestPath(ctx context.Context, startIDs []string, depth, maxNodes int) (*TraversalResult, error) {
	if len(startIDs) < 2 {
		return s.traverseNeighborhood(ctx, startIDs, depth, maxNodes)
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (a:%s {id: $sourceId}), (b:%s {id: $targetId})
			MATCH p = shortestPath((a)-[*..%d]-(b))
			RETURN nodes(p) AS nodes, relationships(p) AS rels
		`, entityLabel, entityLabel, depth), map[string]any{
			"sourceId": startIDs[0],
			"targetId": startIDs[1],
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: traverse shortest path: %w", err)
	}
	return traversalFromRecords(result.([]*neo4j.Record), maxNodes), nil
}

// traverseCommunity approximates community detection: real community
// algorithms (Louvain, label propagation) require the APOC/GDS plugin,
// which is not guaranteed to be installed, so this ranks the
// neighborhood by node degree and keeps the top maxNodes instead.
func (s *neo4jStore) traverseCommunity(ctx context.Context, startIDs []string, depth, maxNodes int) (*TraversalResult, error) {
	session := s.session(ctx)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, fmt.Sprintf(`
			MATCH (start:%s)
			WHERE start.id IN $startIds
			MATCH path = (start)-[*1..%d]-(n:%s)
			WITH DISTINCT n, size([(n)--() | 1]) AS degree
			ORDER BY degree DESC
			LIMIT $maxNodes
			WITH collect(n) AS nodes
			UNWIND nodes AS a
			UNWIND nodes AS b
			OPTIONAL MATCH (a)-[r]-(b)
			RETURN nodes, collect(DISTINCT r) AS rels
		`, entityLabel, depth, entityLabel), map[string]any{
			"startIds": startIDs,
			"maxNodes": maxNodes,
		})
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("graphstore: traverse community: %w", err)
	}
	return traversalFromRecords(result.([]*neo4j.Record), maxNodes), nil
}

func (s *neo4jStore) DeleteForDocument(ctx context.Context, documentID string) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH ()-[r]->()
			WHERE r.documentId = $docId
			DELETE r
		`, map[string]any{"docId": documentID})
	})
	if err != nil {
		return fmt.Errorf("graphstore: delete relationships for document %s: %w", documentID, err)
	}

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MATCH (e:`+entityLabel+`)
			WHERE $docId IN e.documentIds
			SET e.documentIds = [id IN e.documentIds WHERE id <> $docId]
			WITH e
			WHERE size(e.documentIds) = 0
			DETACH DELETE e
		`, map[string]any{"docId": documentID})
	})
	if err != nil {
		return fmt.Errorf("graphstore: delete orphaned entities for document %s: %w", documentID, err)
	}
	return nil
}

func (s *neo4jStore) HealthCheck(ctx context.Context) (Status, *time.Duration, *string) {
	start := time.Now()
	err := s.driver.VerifyConnectivity(ctx)
	elapsed := time.Since(start)
	if err != nil {
		msg := err.Error()
		return StatusDown, &elapsed, &msg
	}
	return StatusOK, &elapsed, nil
}

func entitiesFromRecords(records []*neo4j.Record) []Entity {
	out := make([]Entity, 0, len(records))
	for _, rec := range records {
		e := Entity{}
		if v, ok := rec.Get("id"); ok && v != nil {
			e.ID, _ = v.(string)
		}
		if v, ok := rec.Get("name"); ok && v != nil {
			e.Name, _ = v.(string)
		}
		if v, ok := rec.Get("type"); ok && v != nil {
			e.Type, _ = v.(string)
		}
		if v, ok := rec.Get("canonicalForm"); ok && v != nil {
			e.CanonicalForm, _ = v.(string)
		}
		if v, ok := rec.Get("documentIds"); ok && v != nil {
			if list, ok := v.([]any); ok {
				for _, id := range list {
					if s, ok := id.(string); ok {
						e.DocumentIDs = append(e.DocumentIDs, s)
					}
				}
			}
		}
		out = append(out, e)
	}
	return out
}

func traversalFromRecords(records []*neo4j.Record, maxNodes int) *TraversalResult {
	result := &TraversalResult{}
	seenNodes := map[string]bool{}
	seenRels := map[string]bool{}

	for _, rec := range records {
		if v, ok := rec.Get("nodes"); ok {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					node, ok := item.(neo4j.Node)
					if !ok {
						continue
					}
					id := fmt.Sprint(node.Props["id"])
					if seenNodes[id] || len(result.Entities) >= maxNodes {
						continue
					}
					seenNodes[id] = true
					result.Entities = append(result.Entities, entityFromNode(node))
				}
			}
		}
		if v, ok := rec.Get("rels"); ok {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					rel, ok := item.(neo4j.Relationship)
					if !ok {
						continue
					}
					id := fmt.Sprint(rel.Props["id"])
					if seenRels[id] {
						continue
					}
					seenRels[id] = true
					result.Relationships = append(result.Relationships, relationshipFromEdge(rel))
				}
			}
		}
	}
	return result
}

func entityFromNode(node neo4j.Node) Entity {
	e := Entity{}
	if v, ok := node.Props["id"].(string); ok {
		e.ID = v
	}
	if v, ok := node.Props["name"].(string); ok {
		e.Name = v
	}
	if v, ok := node.Props["type"].(string); ok {
		e.Type = v
	}
	if v, ok := node.Props["canonicalForm"].(string); ok {
		e.CanonicalForm = v
	}
	if v, ok := node.Props["aliases"].([]any); ok {
		for _, a := range v {
			if s, ok := a.(string); ok {
				e.Aliases = append(e.Aliases, s)
			}
		}
	}
	return e
}

func relationshipFromEdge(rel neo4j.Relationship) Relationship {
	r := Relationship{Type: rel.Type}
	if v, ok := rel.Props["id"].(string); ok {
		r.ID = v
	}
	if v, ok := rel.Props["documentId"].(string); ok {
		r.DocumentID = v
	}
	return r
}

// sanitizeRelType keeps a relationship type safe to splice into a Cypher
// pattern: uppercase letters, digits, and underscores only.
func sanitizeRelType(t string) string {
	t = strings.ToUpper(strings.TrimSpace(t))
	var b strings.Builder
	for _, r := range t {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "RELATED_TO"
	}
	return b.String()
}
