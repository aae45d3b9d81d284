package guardrails

import "testing"

func defaultOutputConfig() OutputConfig {
	return OutputConfig{GroundednessThreshold: 0.7, MaxResponseLength: 4000}
}

func TestValidateOutput_GroundedAnswerWithCitation(t *testing.T) {
	sources := []SourceContext{
		{Label: "doc1", Text: "The motor operates at a rated voltage of four hundred volts under normal load conditions."},
	}
	answer := "The motor operates at a rated voltage of four hundred volts under normal conditions. [Source doc1]"

	r := ValidateOutput(answer, sources, defaultOutputConfig())
	if !r.HasCitations {
		t.Error("expected citation to be detected")
	}
	if r.Groundedness < 0.7 {
		t.Errorf("expected high groundedness, got %v", r.Groundedness)
	}
}

func TestValidateOutput_UngroundedAnswerWarns(t *testing.T) {
	sources := []SourceContext{
		{Label: "doc1", Text: "The warranty policy covers manufacturing defects for twenty four months."},
	}
	answer := "Quantum entanglement allows instantaneous communication across galaxies without delay whatsoever."

	r := ValidateOutput(answer, sources, defaultOutputConfig())
	if r.Valid {
		t.Error("expected invalid for ungrounded answer")
	}
	found := false
	for _, w := range r.Warnings {
		if w == "answer groundedness below threshold" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected groundedness warning, got %v", r.Warnings)
	}
}

func TestValidateOutput_NoContextDefaultsToFullyGrounded(t *testing.T) {
	r := ValidateOutput("short", nil, defaultOutputConfig())
	if r.Groundedness != 1.0 {
		t.Errorf("expected groundedness 1.0 with nothing to score, got %v", r.Groundedness)
	}
}

func TestValidateOutput_MissingCitationWarnsWhenSourcesExist(t *testing.T) {
	sources := []SourceContext{{Label: "doc1", Text: "some context text about the topic at hand"}}
	cfg := defaultOutputConfig()
	cfg.RequireCitations = true
	r := ValidateOutput("an answer with no citation marker at all", sources, cfg)
	if r.HasCitations {
		t.Error("expected no citation detected")
	}
	found := false
	for _, w := range r.Warnings {
		if w == "answer contains no source citations" {
			found = true
		}
	}
	if !found {
		t.Error("expected missing-citation warning")
	}
}

func TestValidateOutput_RedactsSecretAssignment(t *testing.T) {
	r := ValidateOutput("here is the config: api_key=sk-abc123def456 and it works fine", nil, defaultOutputConfig())
	if r.FinalResponse == "here is the config: api_key=sk-abc123def456 and it works fine" {
		t.Error("expected api_key assignment to be redacted")
	}
}

func TestValidateOutput_TruncatesToLengthCap(t *testing.T) {
	cfg := defaultOutputConfig()
	cfg.MaxResponseLength = 10
	r := ValidateOutput("this response is much longer than the cap allows", nil, cfg)
	if len(r.FinalResponse) != 10 {
		t.Errorf("expected truncation to 10 chars, got %d", len(r.FinalResponse))
	}
}

func TestValidateOutput_ExternalKnowledgePhraseWarns(t *testing.T) {
	sources := []SourceContext{{Label: "doc1", Text: "the document discusses regulatory compliance requirements"}}
	r := ValidateOutput("Based on my knowledge, this is generally how such systems work in practice.", sources, defaultOutputConfig())
	found := false
	for _, w := range r.Warnings {
		if w == "answer may rely on knowledge outside the provided context" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected external-knowledge warning, got %v", r.Warnings)
	}
}
