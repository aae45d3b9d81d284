package guardrails

import "testing"

func TestExtractCitations_ResolvesIndexToSource(t *testing.T) {
	sources := []SourceContext{
		{Label: "policy.pdf", Text: "warranty terms"},
		{Label: "manual.pdf", Text: "installation steps"},
	}
	answer := "Install per the manual [Source 2]. Warranty details are in [Source 1: policy.pdf]."

	citations := ExtractCitations(answer, sources)
	if len(citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(citations))
	}
	for _, c := range citations {
		if !c.Verified {
			t.Errorf("expected citation %q to verify, index %d", c.Text, c.Index)
		}
	}
	if citations[0].SourceRef != "manual.pdf" {
		t.Errorf("expected first citation to resolve to manual.pdf, got %q", citations[0].SourceRef)
	}
}

func TestExtractCitations_OutOfRangeIndexUnverified(t *testing.T) {
	sources := []SourceContext{{Label: "doc1", Text: "content"}}
	citations := ExtractCitations("see [Source 5] for details", sources)
	if len(citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(citations))
	}
	if citations[0].Verified {
		t.Error("expected out-of-range index to be unverified")
	}
	if citations[0].SourceRef != "" {
		t.Errorf("expected empty source ref for unresolved citation, got %q", citations[0].SourceRef)
	}
}

func TestExtractCitations_DedupesRepeatedToken(t *testing.T) {
	sources := []SourceContext{{Label: "doc1", Text: "content"}}
	citations := ExtractCitations("[Source 1] confirms this. [Source 1] again.", sources)
	if len(citations) != 1 {
		t.Fatalf("expected deduped single citation, got %d", len(citations))
	}
}

func TestExtractCitations_NoMatchesReturnsEmpty(t *testing.T) {
	citations := ExtractCitations("an answer with no citation marker", nil)
	if len(citations) != 0 {
		t.Errorf("expected no citations, got %d", len(citations))
	}
}
