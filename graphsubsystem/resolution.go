package graphsubsystem

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/PeterKuehne/vexora-sub003/adapters/graphstore"
	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
	"github.com/PeterKuehne/vexora-sub003/adapters/relstore"
	"github.com/google/uuid"
)

// defaultSimilarityThreshold is the minimum pairwise similarity for two
// mentions to cluster into one resolved entity.
const defaultSimilarityThreshold = 0.85

// fuzzyThreshold and abbreviationScore are the signal-specific cutoffs
// and scores that feed the max-over-signals similarity used below.
const (
	fuzzyThreshold    = 0.8
	abbreviationScore = 0.85
	aliasScore        = 0.95
	cosineMin         = 0.85
)

// mention is one extracted entity occurrence carried through resolution.
type mention struct {
	ExtractedEntity
	embedding []float32
}

// ResolvedEntity is the output of clustering: one real-world entity with
// every surface form and chunk/document it was mentioned in folded in.
type ResolvedEntity struct {
	ID            string
	CanonicalForm string
	Type          EntityType
	Aliases       []string
	MergedFrom    []string // canonical forms of the mentions that merged into this one
	Confidence    float64
	ChunkIDs      []string
	DocumentIDs   []string
}

// Resolver clusters raw mentions into stable entities and persists them.
type Resolver struct {
	Graph               graphstore.GraphStore
	Relational          *relstore.Store
	Embedder            llmadapter.Embedder // optional; nil disables the embedding-cosine signal
	EmbeddingModel      string
	SimilarityThreshold float64
}

// NewResolver builds a Resolver. embedder may be nil to skip the
// embedding-cosine similarity signal.
func NewResolver(graph graphstore.GraphStore, relational *relstore.Store, embedder llmadapter.Embedder, embeddingModel string) *Resolver {
	return &Resolver{
		Graph: graph, Relational: relational, Embedder: embedder, EmbeddingModel: embeddingModel,
		SimilarityThreshold: defaultSimilarityThreshold,
	}
}

// Resolve groups mentions by entity type (entities of different types
// never merge), blocks within each type group by the first 3 characters
// of the canonicalized name to keep pairwise comparison near-linear, and
// clusters within each block by multi-signal similarity.
func (r *Resolver) Resolve(ctx context.Context, entities []ExtractedEntity) ([]ResolvedEntity, error) {
	threshold := r.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultSimilarityThreshold
	}

	mentions := make([]mention, len(entities))
	for i, e := range entities {
		mentions[i] = mention{ExtractedEntity: e}
	}
	if r.Embedder != nil {
		for i := range mentions {
			vec, err := r.Embedder.Embed(ctx, mentions[i].Name, r.EmbeddingModel)
			if err == nil {
				mentions[i].embedding = vec
			}
		}
	}

	byType := make(map[EntityType][]mention)
	for _, m := range mentions {
		byType[m.Type] = append(byType[m.Type], m)
	}

	var resolved []ResolvedEntity
	for _, entityType := range sortedEntityTypes(byType) {
		group := byType[entityType]
		for _, block := range blockGroup(group) {
			for _, c := range cluster(block, threshold) {
				resolved = append(resolved, mergeCluster(c, entityType))
			}
		}
	}
	return resolved, nil
}

// blockGroup partitions one entity type's mentions into blocks using a
// union-find over each mention's block keys (the first 3 characters of
// its canonicalized name, plus -- so an abbreviation can still reach the
// name it abbreviates -- the initials of a multi-word name). Two
// mentions land in the same block whenever they share any key, directly
// or transitively; cluster() still does the actual pairwise similarity
// comparison within a block.
func blockGroup(group []mention) [][]mention {
	n := len(group)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	byKey := make(map[string][]int)
	for i, m := range group {
		for _, key := range blockKeys(m.Name) {
			byKey[key] = append(byKey[key], i)
		}
	}
	for _, idxs := range byKey {
		for i := 1; i < len(idxs); i++ {
			union(idxs[0], idxs[i])
		}
	}

	components := make(map[int][]mention)
	var order []int
	for i, m := range group {
		root := find(i)
		if _, ok := components[root]; !ok {
			order = append(order, root)
		}
		components[root] = append(components[root], m)
	}
	sort.Ints(order)

	out := make([][]mention, 0, len(order))
	for _, root := range order {
		out = append(out, components[root])
	}
	return out
}

// blockKeys returns the first-3-characters prefix key always, plus the
// initials key for a multi-word name so "IBM" and "International
// Business Machines" block together.
func blockKeys(name string) []string {
	keys := []string{blockKey(name)}
	words := strings.Fields(name)
	if len(words) < 2 {
		return keys
	}
	var initials strings.Builder
	for _, w := range words {
		r := []rune(w)
		if len(r) == 0 {
			continue
		}
		initials.WriteRune(r[0])
	}
	if initials.Len() > 0 {
		keys = append(keys, strings.ToLower(initials.String()))
	}
	return keys
}

func sortedEntityTypes(m map[EntityType][]mention) []EntityType {
	keys := make([]EntityType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// blockKey is the first 3 characters of the canonicalized form, used to
// avoid an O(n^2) comparison across an entire entity type's mentions.
func blockKey(name string) string {
	c := canonicalize(name)
	if len(c) <= 3 {
		return c
	}
	return c[:3]
}

func canonicalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// cluster performs greedy single-link clustering: a mention joins the
// first existing cluster any of whose members it is similar enough to,
// otherwise it starts a new one. This is simpler than full hierarchical
// clustering but still groups mentions wherever pairwise similarity
// exceeds the threshold, without needing a fixed cluster count ahead of
// time.
func cluster(mentions []mention, threshold float64) [][]mention {
	var clusters [][]mention
	for _, m := range mentions {
		placed := false
		for ci, c := range clusters {
			for _, existing := range c {
				if similarity(m, existing) >= threshold {
					clusters[ci] = append(clusters[ci], m)
					placed = true
					break
				}
			}
			if placed {
				break
			}
		}
		if !placed {
			clusters = append(clusters, []mention{m})
		}
	}
	return clusters
}

// similarity is the max over every available signal: exact match,
// alias match (same canonical form after stripping legal suffixes),
// embedding cosine similarity, fuzzy Levenshtein similarity, and
// abbreviation match (all-caps initials matching a longer form).
func similarity(a, b mention) float64 {
	best := 0.0

	if canonicalize(a.Name) == canonicalize(b.Name) {
		best = math.Max(best, 1.0)
	}
	if aliasMatch(a.Name, b.Name) {
		best = math.Max(best, aliasScore)
	}
	if a.embedding != nil && b.embedding != nil {
		if cos := cosineSimilarity(a.embedding, b.embedding); cos >= cosineMin {
			best = math.Max(best, cos)
		}
	}
	if fuzzy := fuzzySimilarity(a.Name, b.Name); fuzzy >= fuzzyThreshold {
		best = math.Max(best, fuzzy)
	}
	if isAbbreviation(a.Name, b.Name) || isAbbreviation(b.Name, a.Name) {
		best = math.Max(best, abbreviationScore)
	}
	return best
}

// aliasMatch strips common legal-entity suffixes before comparing, so
// "Acme GmbH" and "Acme" canonicalize to the same alias.
func aliasMatch(a, b string) bool {
	strip := func(s string) string {
		s = canonicalize(s)
		for _, suffix := range []string{" gmbh", " ag", " kg", " inc.", " inc", " corp.", " corp", " ltd.", " ltd", " llc"} {
			s = strings.TrimSuffix(s, suffix)
		}
		return strings.TrimSpace(s)
	}
	return strip(a) == strip(b)
}

func fuzzySimilarity(a, b string) float64 {
	a, b = canonicalize(a), canonicalize(b)
	if a == "" || b == "" {
		return 0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(maxLen)
}

// isAbbreviation reports whether short is the uppercased initials of
// every word in long, e.g. "IBM" against "International Business
// Machines".
func isAbbreviation(short, long string) bool {
	short = strings.TrimSpace(short)
	words := strings.Fields(long)
	if len(short) < 2 || len(words) < 2 || len(short) != len(words) {
		return false
	}
	var initials strings.Builder
	for _, w := range words {
		r := []rune(w)
		if len(r) == 0 {
			return false
		}
		initials.WriteRune(r[0])
	}
	return strings.EqualFold(initials.String(), short)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// mergeCluster picks the highest-confidence mention's name as the
// canonical form, unions aliases/chunk/document ids, and records every
// distinct surface form that merged into it.
func mergeCluster(c []mention, entityType EntityType) ResolvedEntity {
	sort.SliceStable(c, func(i, j int) bool { return c[i].Confidence > c[j].Confidence })

	aliasSeen := make(map[string]bool)
	chunkSeen := make(map[string]bool)
	docSeen := make(map[string]bool)
	var aliases, chunkIDs, documentIDs []string
	var confidenceSum float64

	for _, m := range c {
		confidenceSum += m.Confidence
		if !aliasSeen[canonicalize(m.Name)] {
			aliasSeen[canonicalize(m.Name)] = true
			aliases = append(aliases, m.Name)
		}
		if m.ChunkID != "" && !chunkSeen[m.ChunkID] {
			chunkSeen[m.ChunkID] = true
			chunkIDs = append(chunkIDs, m.ChunkID)
		}
		if m.DocumentID != "" && !docSeen[m.DocumentID] {
			docSeen[m.DocumentID] = true
			documentIDs = append(documentIDs, m.DocumentID)
		}
	}

	return ResolvedEntity{
		ID:            uuid.NewString(),
		CanonicalForm: c[0].Name,
		Type:          entityType,
		Aliases:       aliases,
		MergedFrom:    aliases,
		Confidence:    confidenceSum / float64(len(c)),
		ChunkIDs:      chunkIDs,
		DocumentIDs:   documentIDs,
	}
}

// Persist writes resolved entities to the graph store and mirrors them
// into the relational store, following relstore.MirrorEntities.
func (r *Resolver) Persist(ctx context.Context, entities []ResolvedEntity) error {
	graphEntities := make([]graphstore.Entity, len(entities))
	mirrorEntities := make([]relstore.MirrorEntity, len(entities))
	for i, e := range entities {
		graphEntities[i] = graphstore.Entity{
			ID: e.ID, Name: e.CanonicalForm, Type: string(e.Type),
			CanonicalForm: canonicalize(e.CanonicalForm), Aliases: e.Aliases, DocumentIDs: e.DocumentIDs,
		}
		mirrorEntities[i] = relstore.MirrorEntity{
			ID: e.ID, Name: e.CanonicalForm, Type: string(e.Type),
			CanonicalForm: canonicalize(e.CanonicalForm), Aliases: e.Aliases, MergedFrom: e.MergedFrom,
			DocumentIDs: e.DocumentIDs,
		}
	}
	if r.Graph != nil {
		if err := r.Graph.UpsertEntities(ctx, graphEntities); err != nil {
			return fmt.Errorf("graphsubsystem: persist entities to graph: %w", err)
		}
	}
	if r.Relational != nil {
		if err := r.Relational.MirrorEntities(ctx, mirrorEntities); err != nil {
			return fmt.Errorf("graphsubsystem: mirror entities to relational store: %w", err)
		}
	}
	return nil
}
