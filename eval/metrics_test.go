package eval

import "testing"

func TestPrecisionAtK_ChunkLevelWhenRelevantChunksDefined(t *testing.T) {
	retrievedChunks := []string{"c1", "c2", "c3", "c4", "c5"}
	relevantChunks := []string{"c2", "c5"}

	got := precisionAtK(retrievedChunks, nil, relevantChunks, nil, 5)
	want := 2.0 / 5.0
	if got != want {
		t.Errorf("precisionAtK = %v, want %v", got, want)
	}
}

func TestPrecisionAtK_FallsBackToDocumentLevelWhenNoRelevantChunks(t *testing.T) {
	retrievedDocs := []string{"d1", "d2", "d3"}
	got := precisionAtK(nil, retrievedDocs, nil, []string{"d2"}, 3)
	want := 1.0 / 3.0
	if got != want {
		t.Errorf("precisionAtK = %v, want %v", got, want)
	}
}

func TestRecallAtK_ReturnsOneWhenNothingIsRelevant(t *testing.T) {
	got := recallAtK([]string{"c1"}, nil, nil, nil, 5)
	if got != 1.0 {
		t.Errorf("recallAtK with no relevant ids = %v, want 1.0", got)
	}
}

func TestRecallAtK_CountsOverlapAgainstRelevantSetSize(t *testing.T) {
	retrieved := []string{"c1", "c2", "c3"}
	relevant := []string{"c2", "c9"}
	got := recallAtK(retrieved, nil, relevant, nil, 3)
	want := 1.0 / 2.0
	if got != want {
		t.Errorf("recallAtK = %v, want %v", got, want)
	}
}

func TestMRR_FirstRelevantIDSetsTheRank(t *testing.T) {
	retrieved := []string{"c1", "c2", "c3"}
	relevant := []string{"c3"}
	got := mrr(retrieved, nil, relevant, nil)
	want := 1.0 / 3.0
	if got != want {
		t.Errorf("mrr = %v, want %v", got, want)
	}
}

func TestMRR_ZeroWhenNoneRelevantRetrieved(t *testing.T) {
	got := mrr([]string{"c1", "c2"}, nil, []string{"c9"}, nil)
	if got != 0 {
		t.Errorf("mrr = %v, want 0", got)
	}
}

func TestKeyFactsCoverage_FractionFoundCaseInsensitively(t *testing.T) {
	answer := "The Remote Work Policy allows up to 3 days per week."
	facts := []string{"remote work policy", "3 days per week", "unlimited pto"}
	got := keyFactsCoverage(answer, facts)
	want := 2.0 / 3.0
	if got != want {
		t.Errorf("keyFactsCoverage = %v, want %v", got, want)
	}
}

func TestKeyFactsCoverage_NoFactsIsFullCoverage(t *testing.T) {
	if got := keyFactsCoverage("anything", nil); got != 1.0 {
		t.Errorf("keyFactsCoverage with no facts = %v, want 1.0", got)
	}
}

func TestHallucinationDetected_MatchesForbiddenContentCaseInsensitively(t *testing.T) {
	answer := "Your SALARY is confidential per company policy."
	if !hallucinationDetected(answer, []string{"salary"}) {
		t.Error("expected forbidden content to be detected")
	}
}

func TestHallucinationDetected_FalseWhenNothingForbiddenPresent(t *testing.T) {
	if hallucinationDetected("a clean answer", []string{"salary", "ssn"}) {
		t.Error("expected no hallucination flag")
	}
}

func TestAnswerRelevance_OverlapWithQueryWords(t *testing.T) {
	query := "What is the remote work policy?"
	answer := "The remote work policy allows flexible scheduling."
	got := answerRelevance(query, answer)
	if got <= 0 {
		t.Errorf("expected positive relevance, got %v", got)
	}
}
