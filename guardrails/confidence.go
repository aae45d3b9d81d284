package guardrails

import "strings"

// ConfidenceWeights controls the relative importance of confidence factors.
type ConfidenceWeights struct {
	SourceCoverage   float64
	CitationAccuracy float64
	SelfConsistency  float64
	AnswerLength     float64
}

// DefaultConfidenceWeights returns balanced weights, unchanged from
// reasoning/confidence.go's DefaultConfidenceWeights.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{
		SourceCoverage:   0.3,
		CitationAccuracy: 0.3,
		SelfConsistency:  0.25,
		AnswerLength:     0.15,
	}
}

// computeConfidence scores an answer's overall trustworthiness, adapted
// from reasoning/confidence.go's ComputeConfidence: source coverage,
// citation accuracy (reusing the Citations already extracted for
// OutputResult instead of re-extracting), self-consistency, and answer
// substantiveness, weighted and clamped to [0,1].
func computeConfidence(answer string, sources []SourceContext, citations []Citation, weights ConfidenceWeights) float64 {
	score := sourceCoverageScore(answer, sources)*weights.SourceCoverage +
		citationAccuracyScore(citations)*weights.CitationAccuracy +
		selfConsistencyScore(answer)*weights.SelfConsistency +
		answerLengthScore(answer)*weights.AnswerLength

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// sourceCoverageScore measures what fraction of the top 5 sources are
// referenced by name or by a recognizable phrase from their text.
func sourceCoverageScore(answer string, sources []SourceContext) float64 {
	if len(sources) == 0 {
		return 0
	}

	lower := strings.ToLower(answer)
	checkCount := len(sources)
	if checkCount > 5 {
		checkCount = 5
	}

	referenced := 0
	for _, src := range sources[:checkCount] {
		if src.Label != "" && strings.Contains(lower, strings.ToLower(src.Label)) {
			referenced++
			continue
		}
		words := strings.Fields(src.Text)
		if len(words) > 5 {
			phrase := strings.Join(words[:5], " ")
			if strings.Contains(lower, strings.ToLower(phrase)) {
				referenced++
			}
		}
	}

	return float64(referenced) / float64(checkCount)
}

// citationAccuracyScore measures what fraction of extracted citations
// resolved to an actual source.
func citationAccuracyScore(citations []Citation) float64 {
	if len(citations) == 0 {
		return 0.5
	}
	verified := 0
	for _, c := range citations {
		if c.Verified {
			verified++
		}
	}
	return float64(verified) / float64(len(citations))
}

// selfConsistencyScore penalizes contradictory language and uncertainty
// markers that suggest the model is hedging or contradicting itself.
func selfConsistencyScore(answer string) float64 {
	lower := strings.ToLower(answer)
	score := 1.0

	for _, c := range []string{"on the other hand", "however, it also", "contradicts", "inconsistent"} {
		if strings.Contains(lower, c) {
			score -= 0.15
		}
	}
	for _, u := range []string{"i'm not sure", "it's unclear", "cannot determine", "insufficient information", "not enough context"} {
		if strings.Contains(lower, u) {
			score -= 0.2
		}
	}

	if score < 0 {
		return 0
	}
	return score
}

// answerLengthScore rewards substantive answers over terse or
// rambling ones.
func answerLengthScore(answer string) float64 {
	words := len(strings.Fields(answer))
	switch {
	case words < 10:
		return 0.2
	case words < 30:
		return 0.5
	case words < 100:
		return 0.8
	case words < 500:
		return 1.0
	default:
		return 0.9
	}
}
