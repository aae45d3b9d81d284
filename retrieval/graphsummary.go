package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PeterKuehne/vexora-sub003/adapters/graphstore"
)

// summarizeGraph produces a deterministic natural-language summary of a
// traversal result: entities grouped by node type, each group listing
// its entity names in sorted order, and relationships counted by edge
// type. Determinism matters here: the same traversal
// result must always produce the same summary text so a trace replay or
// an evaluation run is reproducible.
func summarizeGraph(result *graphstore.TraversalResult) string {
	if result == nil || len(result.Entities) == 0 {
		return ""
	}

	byType := make(map[string][]string)
	for _, e := range result.Entities {
		byType[e.Type] = append(byType[e.Type], e.Name)
	}

	var typeParts []string
	for _, t := range sortedKeys(byType) {
		names := byType[t]
		sort.Strings(names)
		typeParts = append(typeParts, fmt.Sprintf("%d %s (%s)", len(names), strings.ToLower(t), strings.Join(names, ", ")))
	}

	var b strings.Builder
	b.WriteString("Knowledge graph context: found ")
	b.WriteString(strings.Join(typeParts, "; "))
	b.WriteString(".")

	if len(result.Relationships) > 0 {
		byRelType := make(map[string]int)
		for _, r := range result.Relationships {
			byRelType[r.Type]++
		}
		var relParts []string
		for _, t := range sortedKeys(byRelType) {
			relParts = append(relParts, fmt.Sprintf("%d %s", byRelType[t], strings.ToLower(t)))
		}
		b.WriteString(" Relationships: ")
		b.WriteString(strings.Join(relParts, ", "))
		b.WriteString(".")
	}

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
