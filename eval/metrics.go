package eval

import (
	"strings"

	"github.com/PeterKuehne/vexora-sub003/guardrails"
)

// precisionAtK computes |retrieved[:k] ∩ relevant| / k. It scores at the
// chunk level when relevantChunkIDs is non-empty, falling back to the
// document level when a golden query defines no relevant chunks.
func precisionAtK(retrievedChunkIDs, retrievedDocumentIDs, relevantChunkIDs, relevantDocumentIDs []string, k int) float64 {
	retrieved, relevant := chunkOrDocumentLevel(retrievedChunkIDs, retrievedDocumentIDs, relevantChunkIDs, relevantDocumentIDs)
	if k <= 0 {
		return 0
	}
	topK := retrieved
	if len(topK) > k {
		topK = topK[:k]
	}
	hits := intersectionCount(topK, relevant)
	return float64(hits) / float64(k)
}

// recallAtK computes |retrieved[:k] ∩ relevant| / |relevant|, returning
// 1.0 when there is nothing relevant to find.
func recallAtK(retrievedChunkIDs, retrievedDocumentIDs, relevantChunkIDs, relevantDocumentIDs []string, k int) float64 {
	retrieved, relevant := chunkOrDocumentLevel(retrievedChunkIDs, retrievedDocumentIDs, relevantChunkIDs, relevantDocumentIDs)
	if len(relevant) == 0 {
		return 1.0
	}
	topK := retrieved
	if len(topK) > k {
		topK = topK[:k]
	}
	hits := intersectionCount(topK, relevant)
	return float64(hits) / float64(len(relevant))
}

// mrr returns 1/rank of the first relevant id in retrieved, or 0 if none
// of the relevant ids appear.
func mrr(retrievedChunkIDs, retrievedDocumentIDs, relevantChunkIDs, relevantDocumentIDs []string) float64 {
	retrieved, relevant := chunkOrDocumentLevel(retrievedChunkIDs, retrievedDocumentIDs, relevantChunkIDs, relevantDocumentIDs)
	if len(relevant) == 0 {
		return 0
	}
	relevantSet := toSet(relevant)
	for i, id := range retrieved {
		if relevantSet[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// chunkOrDocumentLevel picks chunk ids when relevant chunk ids are
// defined, falling back to document ids otherwise.
func chunkOrDocumentLevel(retrievedChunkIDs, retrievedDocumentIDs, relevantChunkIDs, relevantDocumentIDs []string) (retrieved, relevant []string) {
	if len(relevantChunkIDs) > 0 {
		return retrievedChunkIDs, relevantChunkIDs
	}
	return retrievedDocumentIDs, relevantDocumentIDs
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func intersectionCount(a, b []string) int {
	set := toSet(b)
	count := 0
	for _, id := range a {
		if set[id] {
			count++
		}
	}
	return count
}

// groundedness scores an answer against its retrieved chunks using the
// guardrails package's per-sentence word-overlap heuristic (the C7
// output-validation groundedness formula, itself adapted from this
// package's own sentence-scoring logic).
func groundedness(answer string, chunks []guardrails.SourceContext) float64 {
	result := guardrails.ValidateOutput(answer, chunks, guardrails.OutputConfig{})
	return result.Groundedness
}

// answerRelevance scores the non-stopword overlap between the query and
// the answer, normalized to [0,1]. Adapted from eval/metrics.go's
// computeRelevance, which scored retrieved-chunk relevance the same way.
func answerRelevance(query, answer string) float64 {
	queryWords := significantWords(query)
	if len(queryWords) == 0 {
		return 0.5
	}
	answerLower := strings.ToLower(answer)
	matched := 0
	for w := range queryWords {
		if strings.Contains(answerLower, w) {
			matched++
		}
	}
	return clamp(float64(matched) / float64(len(queryWords)))
}

// keyFactsCoverage is the fraction of keyFacts strings found
// case-insensitively in the answer.
func keyFactsCoverage(answer string, keyFacts []string) float64 {
	if len(keyFacts) == 0 {
		return 1.0
	}
	answerLower := strings.ToLower(answer)
	found := 0
	for _, fact := range keyFacts {
		if strings.Contains(answerLower, strings.ToLower(fact)) {
			found++
		}
	}
	return float64(found) / float64(len(keyFacts))
}

// hallucinationDetected reports whether the answer contains any
// forbidden-content string, case-insensitively.
func hallucinationDetected(answer string, forbiddenContent []string) bool {
	answerLower := strings.ToLower(answer)
	for _, forbidden := range forbiddenContent {
		if forbidden == "" {
			continue
		}
		if strings.Contains(answerLower, strings.ToLower(forbidden)) {
			return true
		}
	}
	return false
}

// significantWords lowercases and strips short/common words, the same
// stopword filter eval/metrics.go used for its word-overlap relevance
// score.
func significantWords(text string) map[string]bool {
	stopWords := map[string]bool{
		"the": true, "are": true, "was": true, "were": true,
		"for": true, "with": true, "what": true, "which": true,
		"who": true, "how": true, "where": true, "when": true,
		"that": true, "this": true, "and": true,
	}
	words := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		w = strings.Trim(strings.ToLower(w), ".,;:!?\"'()[]")
		if len(w) > 2 && !stopWords[w] {
			words[w] = true
		}
	}
	return words
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
