package guardrails

import "testing"

func TestExtractEvidenceSnippet_BasicOverlap(t *testing.T) {
	content := "The motor operates at 5kW rated power. The voltage supply is 230V AC. Safety requirements follow ISO 13849."
	answerWords := significantWords("The motor has a rated power of 5kW according to the specification.")

	snippet := extractEvidenceSnippet(content, answerWords)
	if snippet == "" {
		t.Fatal("expected non-empty snippet")
	}
	if !strings_Contains(snippet, "motor") {
		t.Errorf("expected snippet to mention motor, got: %q", snippet)
	}
}

func TestExtractEvidenceSnippet_NoOverlap(t *testing.T) {
	content := "The quick brown fox jumps over the lazy dog."
	answerWords := significantWords("quantum computing uses superconducting qubits")

	if s := extractEvidenceSnippet(content, answerWords); s != "" {
		t.Errorf("expected empty snippet when no overlap, got: %q", s)
	}
}

func TestExtractEvidenceSnippet_EmptyInputs(t *testing.T) {
	if s := extractEvidenceSnippet("", map[string]bool{"test": true}); s != "" {
		t.Errorf("expected empty for empty content, got: %q", s)
	}
	if s := extractEvidenceSnippet("some content here.", nil); s != "" {
		t.Errorf("expected empty for nil answerWords, got: %q", s)
	}
	if s := extractEvidenceSnippet("some content here.", map[string]bool{}); s != "" {
		t.Errorf("expected empty for empty answerWords, got: %q", s)
	}
}

func TestExtractEvidenceSnippet_RespectMaxLen(t *testing.T) {
	content := "First sentence about motors. Second sentence about voltage ratings. " +
		"Third sentence about safety compliance. Fourth sentence about wiring diagrams. " +
		"Fifth sentence about installation procedures. Sixth sentence about maintenance schedules."
	answerWords := significantWords("motors voltage safety wiring installation maintenance")

	if s := extractEvidenceSnippet(content, answerWords); len(s) > snippetMaxLen {
		t.Errorf("snippet exceeds max length: %d > %d", len(s), snippetMaxLen)
	}
}

func TestSignificantWords(t *testing.T) {
	words := significantWords("The motor operates at 5kW. This is very important for safety.")

	for _, want := range []string{"motor", "operates", "important", "safety"} {
		if !words[want] {
			t.Errorf("expected %q in significant words", want)
		}
	}
	for _, excluded := range []string{"this", "very", "the", "at"} {
		if words[excluded] {
			t.Errorf("%q should be excluded", excluded)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	text := "First sentence. Second sentence? Third sentence! Final text without period"
	sentences := splitSentences(text)

	if len(sentences) != 4 {
		t.Fatalf("expected 4 sentences, got %d: %v", len(sentences), sentences)
	}
	want := []string{"First sentence.", "Second sentence?", "Third sentence!", "Final text without period"}
	for i, w := range want {
		if sentences[i] != w {
			t.Errorf("sentence %d: got %q, want %q", i, sentences[i], w)
		}
	}
}

func TestExtractEvidenceSnippet_AdjacentSentences(t *testing.T) {
	content := "Setup is easy. The motor runs at 5kW. The voltage is 230V."
	answerWords := significantWords("motor 5kW voltage 230V")

	snippet := extractEvidenceSnippet(content, answerWords)
	if !strings_Contains(snippet, "motor") {
		t.Errorf("expected motor mention in snippet: %q", snippet)
	}
}

func strings_Contains(s, sub string) bool {
	if len(sub) == 0 {
		return true
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
