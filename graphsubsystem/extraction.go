package graphsubsystem

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PeterKuehne/vexora-sub003/adapters/llmadapter"
)

// patternConfidence is the confidence assigned to a pattern-matched
// entity, mirroring how preExtractIdentifiers hints are
// treated as a lower-confidence supplement to the LLM's own findings.
const patternConfidence = 0.6

// defaultConfidenceThreshold discards LLM-proposed entities and
// relationships below this confidence.
const defaultConfidenceThreshold = 0.5

// entityPatterns pairs each entity type with the German+English regex
// set that identifies a candidate mention, following the
// bilingual pattern pairing used in retrieval/translations.go. TOPIC has no
// reliable surface pattern and is left to the optional LLM extractor.
var entityPatterns = map[EntityType][]*regexp.Regexp{
	EntityPerson: compileAll(
		`\b(?:Herr|Frau|Dr\.|Prof\.)\s+([A-ZÄÖÜ][\wäöüß]+(?:\s+[A-ZÄÖÜ][\wäöüß]+)?)`,
		`\b(?:Mr|Ms|Mrs|Dr)\.\s+([A-Z][\w]+(?:\s+[A-Z][\w]+)?)`,
	),
	EntityOrganization: compileAll(
		`\b([A-ZÄÖÜ][\w&.\-]*(?:\s+[A-ZÄÖÜ][\w&.\-]*)*\s+(?:GmbH|AG|KG|Inc\.?|Corp\.?|Ltd\.?|LLC))\b`,
		`\b(?:Firma|Unternehmen|Company)\s+([A-ZÄÖÜ][\w&.\-]+)`,
	),
	EntityProject: compileAll(
		`\b(?:Projekt|Project)\s+"?([A-ZÄÖÜ0-9][\w\-]*(?:\s+[A-ZÄÖÜ0-9][\w\-]*)?)"?`,
	),
	EntityProduct: compileAll(
		`\b(?:Produkt|Product)\s+"?([A-ZÄÖÜ0-9][\w\-]*(?:\s+[A-ZÄÖÜ0-9][\w\-]*)?)"?`,
	),
	EntityDocument: compileAll(
		`\b(?:Dokument|Document|Richtlinie|Policy|Handbuch|Manual)\s+"?([A-ZÄÖÜ0-9][\w\-]*(?:\s+[A-ZÄÖÜ0-9][\w\-]*)?)"?`,
		`\b([\w\-]+\.(?:pdf|docx|xlsx|pptx))\b`,
	),
	EntityLocation: compileAll(
		`\b(?:in|at|bei|nach)\s+([A-ZÄÖÜ][\wäöüß\-]+(?:\s+[A-ZÄÖÜ][\wäöüß\-]+)?)\b`,
	),
	EntityDate: compileAll(
		`\b(\d{1,2}\.\d{1,2}\.\d{2,4})\b`,
		`\b(\d{4}-\d{2}-\d{2})\b`,
		`\b((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4})\b`,
	),
	EntityRegulation: compileAll(
		`\b(ISO\s?\d{3,5}(?:-\d+)?)\b`,
		`\b(DIN\s?(?:EN\s?)?\d{3,5})\b`,
		`\b(DSGVO|GDPR|HIPAA|SOX|BDSG)\b`,
		`\b(§\s?\d+[a-z]?)\b`,
	),
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// typePairRelation assigns a fixed relationship type to each ordered pair
// of co-occurring entity types. Pairs not listed here fall back to
// RelMentions.
var typePairRelation = map[[2]EntityType]RelationType{
	{EntityPerson, EntityOrganization}:     RelWorksFor,
	{EntityOrganization, EntityPerson}:     RelWorksFor,
	{EntityPerson, EntityProject}:          RelManages,
	{EntityProject, EntityPerson}:          RelManages,
	{EntityPerson, EntityPerson}:           RelCollaboratesWith,
	{EntityOrganization, EntityProject}:    RelPartOf,
	{EntityProject, EntityOrganization}:    RelPartOf,
	{EntityProject, EntityProduct}:         RelCreated,
	{EntityProduct, EntityProject}:         RelCreated,
	{EntityDocument, EntityTopic}:          RelAbout,
	{EntityTopic, EntityDocument}:          RelAbout,
	{EntityDocument, EntityRegulation}:     RelReferences,
	{EntityRegulation, EntityDocument}:     RelReferences,
	{EntityPerson, EntityDocument}:         RelCreated,
	{EntityDocument, EntityPerson}:         RelCreated,
	{EntityPerson, EntityRegulation}:       RelApprovedBy,
	{EntityRegulation, EntityPerson}:       RelApprovedBy,
	{EntityOrganization, EntityRegulation}: RelApprovedBy,
	{EntityRegulation, EntityOrganization}: RelApprovedBy,
}

func relationForPair(a, b EntityType) RelationType {
	if rel, ok := typePairRelation[[2]EntityType{a, b}]; ok {
		return rel
	}
	return RelMentions
}

// llmEntity and llmRelationship are the wire shapes an optional LLM
// extractor is asked to return, following the
// entityExtractionPrompt/relationshipExtractionPrompt JSON contract.
type llmEntity struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type llmRelationship struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Type     string `json:"type"`
	Evidence string `json:"evidence"`
}

type llmExtraction struct {
	Entities      []llmEntity       `json:"entities"`
	Relationships []llmRelationship `json:"relationships"`
}

// Extractor runs pattern-based extraction always, and optionally
// augments it with an LLM JSON extractor when one is configured.
type Extractor struct {
	Chat                llmadapter.ChatDriver // optional; nil disables LLM extraction
	Model               string
	ConfidenceThreshold float64
}

// NewExtractor builds an Extractor. chat may be nil to run pattern-only
// extraction.
func NewExtractor(chat llmadapter.ChatDriver, model string) *Extractor {
	return &Extractor{Chat: chat, Model: model, ConfidenceThreshold: defaultConfidenceThreshold}
}

// Extract produces entities and relationships for one chunk of text.
func (x *Extractor) Extract(ctx context.Context, chunkID, documentID, text string) (ExtractionResult, error) {
	entities := extractByPattern(text, chunkID, documentID)

	if x.Chat != nil {
		llmEntities, llmRels, err := x.extractWithLLM(ctx, text)
		if err == nil {
			threshold := x.ConfidenceThreshold
			if threshold <= 0 {
				threshold = defaultConfidenceThreshold
			}
			for _, e := range llmEntities {
				if e.Confidence < threshold {
					continue
				}
				t := EntityType(strings.ToUpper(strings.TrimSpace(e.Type)))
				if !validEntityType(t) {
					continue
				}
				entities = append(entities, ExtractedEntity{
					Name: strings.TrimSpace(e.Text), Type: t, Confidence: e.Confidence,
					ChunkID: chunkID, DocumentID: documentID,
				})
			}
			entities = dedupEntities(entities)

			var relationships []ExtractedRelationship
			for _, r := range llmRels {
				relType := RelationType(strings.ToUpper(strings.TrimSpace(r.Type)))
				if !validRelationType(relType) {
					relType = RelMentions
				}
				relationships = append(relationships, ExtractedRelationship{
					Source: strings.TrimSpace(r.Source), Target: strings.TrimSpace(r.Target),
					Type: relType, Evidence: r.Evidence, Confidence: 0.8,
					ChunkID: chunkID, DocumentID: documentID,
				})
			}
			relationships = append(relationships, coOccurrenceRelationships(entities, chunkID, documentID)...)
			return ExtractionResult{Entities: entities, Relationships: dedupRelationships(relationships)}, nil
		}
	}

	entities = dedupEntities(entities)
	relationships := coOccurrenceRelationships(entities, chunkID, documentID)
	return ExtractionResult{Entities: entities, Relationships: dedupRelationships(relationships)}, nil
}

func extractByPattern(text, chunkID, documentID string) []ExtractedEntity {
	var out []ExtractedEntity
	for entityType, patterns := range entityPatterns {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				name := m[0]
				if len(m) > 1 && m[1] != "" {
					name = m[1]
				}
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				out = append(out, ExtractedEntity{
					Name: name, Type: entityType, Confidence: patternConfidence,
					ChunkID: chunkID, DocumentID: documentID,
				})
			}
		}
	}
	return out
}

// coOccurrenceRelationships applies the fixed type-pair -> relationship
// lookup to every pair of distinct entities found in the same chunk.
func coOccurrenceRelationships(entities []ExtractedEntity, chunkID, documentID string) []ExtractedRelationship {
	var out []ExtractedRelationship
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			a, b := entities[i], entities[j]
			if strings.EqualFold(a.Name, b.Name) {
				continue
			}
			out = append(out, ExtractedRelationship{
				Source: a.Name, Target: b.Name, Type: relationForPair(a.Type, b.Type),
				Evidence: "co-occurrence", Confidence: 0.4,
				ChunkID: chunkID, DocumentID: documentID,
			})
		}
	}
	return out
}

func dedupEntities(entities []ExtractedEntity) []ExtractedEntity {
	seen := make(map[string]int)
	var out []ExtractedEntity
	for _, e := range entities {
		key := string(e.Type) + "|" + strings.ToLower(e.Name)
		if idx, ok := seen[key]; ok {
			if e.Confidence > out[idx].Confidence {
				out[idx].Confidence = e.Confidence
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, e)
	}
	return out
}

func dedupRelationships(rels []ExtractedRelationship) []ExtractedRelationship {
	seen := make(map[string]bool)
	var out []ExtractedRelationship
	for _, r := range rels {
		key := strings.ToLower(r.Source) + "|" + strings.ToLower(r.Target) + "|" + string(r.Type)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func validEntityType(t EntityType) bool {
	_, ok := entityPatterns[t]
	return ok || t == EntityTopic
}

func validRelationType(t RelationType) bool {
	switch t {
	case RelWorksFor, RelManages, RelCreated, RelMentions, RelReferences, RelAbout,
		RelPartOf, RelReportsTo, RelCollaboratesWith, RelApprovedBy:
		return true
	default:
		return false
	}
}

const extractionPrompt = `Extract entities and relationships from the following text. Return strict JSON only, no markdown fences, matching this shape:
{"entities": [{"type": "PERSON|ORGANIZATION|PROJECT|PRODUCT|DOCUMENT|TOPIC|LOCATION|DATE|REGULATION", "text": "...", "confidence": 0.0-1.0}], "relationships": [{"source": "...", "target": "...", "type": "WORKS_FOR|MANAGES|CREATED|MENTIONS|REFERENCES|ABOUT|PART_OF|REPORTS_TO|COLLABORATES_WITH|APPROVED_BY", "evidence": "short quote"}]}

Text:
%s`

func (x *Extractor) extractWithLLM(ctx context.Context, text string) ([]llmEntity, []llmRelationship, error) {
	prompt := fmt.Sprintf(extractionPrompt, text)
	resp, err := x.Chat.Chat(ctx, []llmadapter.Message{{Role: "user", Content: prompt}}, x.Model, llmadapter.ChatOptions{Temperature: 0.1})
	if err != nil {
		return nil, nil, fmt.Errorf("graphsubsystem: llm extraction: %w", err)
	}
	var parsed llmExtraction
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &parsed); err != nil {
		return nil, nil, fmt.Errorf("graphsubsystem: parse llm extraction: %w", err)
	}
	return parsed.Entities, parsed.Relationships, nil
}

// extractJSON strips markdown code fences and trims to the outermost
// JSON object, mirroring the graph/builder.go helper of the
// same name for coping with chat models that wrap JSON in prose.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
