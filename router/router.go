// Package router is the C2 Query Router: a pure, deterministic function
// that classifies a query's type and intent and recommends a retrieval
// strategy. It is grounded on retrieval/helpers.go's
// extractQueryEntities (capitalized-phrase/quoted-term/domain-pattern
// extraction) and isSynthesisQuery (exhaustive-intent pattern set) and
// retrieval/translations.go's German+English pattern pairing, widened
// from single-purpose term extraction into full intent classification.
package router

import (
	"regexp"
	"strings"
	"unicode"
)

// QueryType is the classified intent of a query.
type QueryType string

const (
	TypeFactual     QueryType = "factual"
	TypeComparative QueryType = "comparative"
	TypeProcedural  QueryType = "procedural"
	TypeRelational  QueryType = "relational"
	TypeAggregative QueryType = "aggregative"
	TypeTemporal    QueryType = "temporal"
)

// Strategy selects how the retrieval engine (C4) should search.
type Strategy string

const (
	StrategyVectorOnly      Strategy = "vector_only"
	StrategyHybrid          Strategy = "hybrid"
	StrategyHybridWithGraph Strategy = "hybrid_with_graph"
	StrategyTableFocused    Strategy = "table_focused"
	StrategyMultiIndex      Strategy = "multi_index"
)

// QueryAnalysis is the router's transient output for one query.
type QueryAnalysis struct {
	QueryType              QueryType
	Entities                []string
	IsMultiHop              bool
	RequiresGraph           bool
	RequiresTable           bool
	Strategy                Strategy
	RecommendedLevelFilter  []int
	Confidence              float64
}

// Options carries the caller-supplied context analyze needs beyond the
// query string itself.
type Options struct {
	GraphEnabled bool
}

// typePatterns pairs each query type with the German+English regex set
// that identifies it, following retrieval/translations.go's bilingual
// pattern pairing.
var typePatterns = map[QueryType][]*regexp.Regexp{
	TypeFactual: compileAll(
		`\bwhat is\b`, `\bwho is\b`, `\bwhat are\b`, `\bdefine\b`,
		`\bwas ist\b`, `\bwer ist\b`, `\bdefiniere\b`,
	),
	TypeRelational: compileAll(
		`\bwho leads\b`, `\breports to\b`, `\brelationship between\b`, `\bconnected (to|with)\b`,
		`\bwer leitet\b`, `\bberichtet an\b`, `\bbeziehung zwischen\b`,
	),
	TypeTemporal: compileAll(
		`\bwhen\b`, `\bdeadline\b`, `\bdate\b`, `\bsince when\b`,
		`\bwann\b`, `\bfrist\b`, `\bdatum\b`,
	),
	TypeAggregative: compileAll(
		`\blist\b`, `\bhow many\b`, `\ball\b`, `\boverview\b`, `\benumerate\b`,
		`\bliste\b`, `\bwie viele\b`, `\büberblick\b`,
	),
	TypeProcedural: compileAll(
		`\bhow do i\b`, `\bhow to\b`, `\bsteps\b`, `\bprocess\b`,
		`\bwie (kann|muss) ich\b`, `\bschritte\b`, `\bvorgehen\b`,
	),
	TypeComparative: compileAll(
		`\bcompare\b`, `\bdifference\b`, `\bvs\.?\b`, `\bversus\b`,
		`\bvergleiche\b`, `\bunterschied\b`,
	),
}

// typeOrder is the tie-break order when multiple types match the same
// number of patterns: earlier entries win, with factual as the default
// fallback when nothing else matches.
var typeOrder = []QueryType{
	TypeRelational, TypeTemporal, TypeAggregative, TypeProcedural, TypeComparative, TypeFactual,
}

var multiHopIndicators = compileAll(
	`\band the latter\b`, `\bindirectly\b`, `\bconnected with\b`, `\bin turn\b`,
	`\bund (der|die|das) letztere\b`, `\bindirekt\b`,
)

var tableIndicators = compileAll(
	`\btable\b`, `\bspreadsheet\b`, `\brow\b`, `\bcolumn\b`,
	`\btabelle\b`, `\bspalte\b`, `\bzeile\b`,
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "this": true, "that": true,
	"der": true, "die": true, "das": true, "und": true, "von": true, "für": true,
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Analyze classifies query and recommends a retrieval strategy. It is a
// pure function: identical inputs always produce identical output.
func Analyze(query string, opts Options) QueryAnalysis {
	queryType, matchCount := classifyType(query)
	entities := extractEntities(query)
	isMultiHop := matchesAny(query, multiHopIndicators) || (len(entities) >= 2 && queryType == TypeRelational)
	requiresTable := matchesAny(query, tableIndicators)
	requiresGraph := opts.GraphEnabled && (isMultiHop || queryType == TypeRelational || len(entities) >= 2)

	return QueryAnalysis{
		QueryType:              queryType,
		Entities:               entities,
		IsMultiHop:             isMultiHop,
		RequiresGraph:          requiresGraph,
		RequiresTable:          requiresTable,
		Strategy:               selectStrategy(requiresGraph, requiresTable, queryType),
		RecommendedLevelFilter: levelFilter(queryType, isMultiHop),
		Confidence:             confidence(query, matchCount),
	}
}

func selectStrategy(requiresGraph, requiresTable bool, queryType QueryType) Strategy {
	switch {
	case requiresGraph:
		return StrategyHybridWithGraph
	case requiresTable:
		return StrategyTableFocused
	case queryType == TypeAggregative:
		return StrategyMultiIndex
	default:
		return StrategyHybrid
	}
}

func levelFilter(queryType QueryType, isMultiHop bool) []int {
	if queryType == TypeAggregative {
		return []int{0, 1, 2}
	}
	if isMultiHop || queryType == TypeRelational || queryType == TypeComparative || queryType == TypeProcedural {
		return []int{1, 2}
	}
	return []int{1, 2}
}

func confidence(query string, matchCount int) float64 {
	c := 0.7
	c += 0.05 * float64(matchCount)

	trimmed := strings.TrimSpace(query)
	if len(trimmed) > 50 {
		c += 0.05 * float64((len(trimmed)-50)/50)
	}
	tokenCount := len(strings.Fields(trimmed))
	if len(trimmed) < 20 || tokenCount < 4 {
		c -= 0.1
	}

	if c < 0.3 {
		c = 0.3
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

func classifyType(query string) (QueryType, int) {
	best := TypeFactual
	bestCount := 0
	for _, t := range typeOrder {
		count := 0
		for _, re := range typePatterns[t] {
			if re.MatchString(query) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			best = t
		}
	}
	return best, bestCount
}

func matchesAny(query string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

// extractEntities pulls candidate entity names from a query: quoted
// substrings, capitalized noun phrases, company-suffix patterns, and
// "Projekt X"-style patterns, deduplicated and capped at 50 chars each.
func extractEntities(query string) []string {
	var entities []string
	seen := make(map[string]bool)

	add := func(s string) {
		s = strings.TrimSpace(s)
		if len(s) > 50 {
			s = s[:50]
		}
		lower := strings.ToLower(s)
		if s == "" || seen[lower] || len([]rune(s)) < 2 {
			return
		}
		seen[lower] = true
		entities = append(entities, s)
	}

	inQuote := false
	var quoted strings.Builder
	for _, r := range query {
		if r == '"' || r == '\'' {
			if inQuote {
				add(quoted.String())
				quoted.Reset()
			}
			inQuote = !inQuote
			continue
		}
		if inQuote {
			quoted.WriteRune(r)
		}
	}

	words := strings.Fields(query)
	var phrase []string
	flushPhrase := func() {
		if len(phrase) > 0 {
			add(strings.Join(phrase, " "))
			phrase = nil
		}
	}
	for i, w := range words {
		clean := strings.Trim(w, ".,;:!?\"'()[]")
		if clean == "" {
			flushPhrase()
			continue
		}
		if strings.EqualFold(clean, "projekt") && i+1 < len(words) {
			add(clean + " " + strings.Trim(words[i+1], ".,;:!?\"'()[]"))
			continue
		}
		firstRune := []rune(clean)[0]
		if unicode.IsUpper(firstRune) && !stopWords[strings.ToLower(clean)] {
			phrase = append(phrase, clean)
		} else {
			flushPhrase()
		}
		if hasCompanySuffix(clean) {
			add(clean)
		}
	}
	flushPhrase()

	return entities
}

var companySuffixes = []string{"gmbh", "ag", "kg", "inc.", "inc", "corp", "corp.", "ltd", "ltd.", "llc"}

func hasCompanySuffix(word string) bool {
	lower := strings.ToLower(word)
	for _, suffix := range companySuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
