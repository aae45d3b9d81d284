package guardrails

import (
	"regexp"
	"strings"
)

// OutputResult is the C7 validation outcome for one generated answer.
type OutputResult struct {
	Valid         bool
	Warnings      []string
	Groundedness  float64
	HasCitations  bool
	Citations     []Citation
	Confidence    float64
	FinalResponse string
}

// OutputConfig configures the C7 thresholds.
type OutputConfig struct {
	GroundednessThreshold float64
	MaxResponseLength     int
	RequireCitations      bool
}

// SourceContext is one retrieved chunk's text, used both as groundedness
// evidence and as the citation label the answer is expected to reference.
type SourceContext struct {
	Label string
	Text  string
}

var citationPattern = regexp.MustCompile(`\[Source\s+[^\]]+\]`)

// sensitivePatterns redact secret-shaped substrings before a response
// ever reaches a caller: key/password assignments and bare long
// hex/base64 tokens, plus SSN-shaped digit groups that
// reasoning/validator.go treats as a fabrication smell at the
// consistency level but which here warrant a hard redaction instead of
// a warning.
var sensitivePatterns = compileAll(
	`\b(api[_-]?key|secret|token|password)\s*[:=]\s*\S+`,
	`\b[A-Fa-f0-9]{32,}\b`,
	`\b[A-Za-z0-9+/]{32,}={0,2}\b`,
	`\b\d{3}-\d{2}-\d{4}\b`,
)

// externalKnowledgePhrases follow reasoning/validator.go's consistency
// check for answers that lean on the model's own training data instead
// of the retrieved context.
var externalKnowledgePhrases = []string{
	"based on my knowledge", "in general,", "it is commonly known",
	"as an ai", "i believe that",
}

// ValidateOutput scores groundedness per sentence against the supplied
// context chunks, checks for the citation pattern the prompt template
// requires, redacts sensitive-looking substrings, and hard-truncates to
// the configured length cap.
func ValidateOutput(answer string, sources []SourceContext, cfg OutputConfig) OutputResult {
	groundedness := computeGroundedness(answer, sources)
	hasCitations := citationPattern.MatchString(answer)
	citations := ExtractCitations(answer, sources)
	confidence := computeConfidence(answer, sources, citations, DefaultConfidenceWeights())

	var warnings []string
	threshold := cfg.GroundednessThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	if groundedness < threshold {
		warnings = append(warnings, "answer groundedness below threshold")
	}
	if cfg.RequireCitations && !hasCitations && len(sources) > 0 {
		warnings = append(warnings, "answer contains no source citations")
	}
	lower := strings.ToLower(answer)
	for _, phrase := range externalKnowledgePhrases {
		if strings.Contains(lower, phrase) {
			warnings = append(warnings, "answer may rely on knowledge outside the provided context")
			break
		}
	}

	redacted := redactSensitive(answer)

	maxLen := cfg.MaxResponseLength
	if maxLen <= 0 {
		maxLen = 4000
	}
	final := redacted
	if len(final) > maxLen {
		final = final[:maxLen]
		warnings = append(warnings, "response truncated to length cap")
	}

	return OutputResult{
		Valid:         len(warnings) == 0,
		Warnings:      warnings,
		Groundedness:  groundedness,
		HasCitations:  hasCitations,
		Citations:     citations,
		Confidence:    confidence,
		FinalResponse: final,
	}
}

// computeGroundedness implements a per-sentence groundedness formula: a
// sentence over 20 characters is "scored" and
// counts as grounded when its significant-word overlap against the
// combined context text is at least 50%. Groundedness is the fraction of
// scored sentences that are grounded, or 1.0 when no sentence qualifies
// for scoring.
func computeGroundedness(answer string, sources []SourceContext) float64 {
	contextWords := make(map[string]bool)
	for _, src := range sources {
		for w := range significantWords(src.Text) {
			contextWords[w] = true
		}
	}

	sentences := splitSentences(answer)
	scored := 0
	grounded := 0
	for _, s := range sentences {
		if len(s) <= 20 {
			continue
		}
		scored++
		words := significantWords(s)
		if len(words) == 0 {
			continue
		}
		overlap := 0
		for w := range words {
			if contextWords[w] {
				overlap++
			}
		}
		if float64(overlap)/float64(len(words)) >= 0.5 {
			grounded++
		}
	}

	if scored == 0 {
		return 1.0
	}
	return float64(grounded) / float64(scored)
}

// redactSensitive blanks substrings matching sensitivePatterns, used to
// scrub secret assignments, long tokens, and SSNs the model may have echoed back
// from a context chunk or hallucinated.
func redactSensitive(text string) string {
	out := text
	for _, re := range sensitivePatterns {
		out = re.ReplaceAllString(out, "[REDACTED]")
	}
	return out
}
