package guardrails

import "testing"

func TestComputeConfidence_HighForGroundedCitedAnswer(t *testing.T) {
	sources := []SourceContext{
		{Label: "doc1", Text: "The motor operates at a rated voltage of four hundred volts under normal load."},
	}
	answer := "The motor operates at a rated voltage of four hundred volts under normal load, per doc1. [Source 1]"
	citations := ExtractCitations(answer, sources)

	conf := computeConfidence(answer, sources, citations, DefaultConfidenceWeights())
	if conf < 0.5 {
		t.Errorf("expected reasonably high confidence, got %v", conf)
	}
	if conf > 1.0 || conf < 0.0 {
		t.Errorf("expected confidence clamped to [0,1], got %v", conf)
	}
}

func TestComputeConfidence_LowForHedgingShortAnswer(t *testing.T) {
	answer := "I'm not sure, it's unclear."
	conf := computeConfidence(answer, nil, nil, DefaultConfidenceWeights())
	// coverage 0*0.3 + neutral no-citation accuracy 0.5*0.3 + two hedges
	// 0.6*0.25 + five words 0.2*0.15 = 0.33.
	if conf > 0.33+1e-9 {
		t.Errorf("expected low confidence for a hedging, uncited, sourceless answer, got %v", conf)
	}
}

func TestComputeConfidence_NeverNegativeOrAboveOne(t *testing.T) {
	answer := "on the other hand, however, it also contradicts inconsistent i'm not sure it's unclear cannot determine"
	conf := computeConfidence(answer, nil, nil, DefaultConfidenceWeights())
	if conf < 0 || conf > 1 {
		t.Errorf("expected clamped confidence, got %v", conf)
	}
}

func TestAnswerLengthScore_RewardsSubstantiveAnswers(t *testing.T) {
	short := answerLengthScore("too short")
	mid := answerLengthScore(repeatWords("word", 50))
	if mid <= short {
		t.Errorf("expected a 50-word answer to score higher than a 2-word answer: %v vs %v", mid, short)
	}
}

func repeatWords(word string, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += " "
		}
		s += word
	}
	return s
}
