package guardrails

import (
	"regexp"
	"strconv"
)

// Citation is one `[Source i]` reference resolved back to the source
// chunk it points at.
type Citation struct {
	Text      string // the matched citation token, e.g. "[Source 2]"
	Index     int    // 1-based source index as written in the answer
	SourceRef string // the resolved source's Label, empty if unresolved
	Verified  bool   // whether Index falls within the supplied sources
}

var citationRefPattern = regexp.MustCompile(`\[Source\s+(\d+)[^\]]*\]`)

// ExtractCitations finds every `[Source i]`-shaped token in an answer and
// resolves it against the sources the prompt was built from, adapted from
// reasoning/citation.go's ExtractCitations/matchCitationToChunk pattern set
// down to the single citation shape promptcompose.BuildContextBlock emits.
func ExtractCitations(answer string, sources []SourceContext) []Citation {
	matches := citationRefPattern.FindAllStringSubmatch(answer, -1)
	seen := make(map[string]bool, len(matches))
	citations := make([]Citation, 0, len(matches))

	for _, m := range matches {
		token := m[0]
		if seen[token] {
			continue
		}
		seen[token] = true

		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		c := Citation{Text: token, Index: idx}
		if idx >= 1 && idx <= len(sources) {
			c.SourceRef = sources[idx-1].Label
			c.Verified = true
		}
		citations = append(citations, c)
	}

	return citations
}
