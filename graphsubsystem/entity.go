// Package graphsubsystem implements the two offline graph operations --
// entity/relationship extraction and entity resolution -- that feed the
// knowledge graph the retrieval engine (C4) traverses online. Pattern
// sets, the concurrency shape, and the JSON-extraction-from-LLM-response
// idiom follow the same shape as graph/builder.go; the entity and
// relationship type constants widen graph/entity.go's 7
// document-engineering types to the broader set a general-purpose
// permission-aware assistant needs.
package graphsubsystem

// EntityType enumerates the kinds of node the graph subsystem recognizes.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityProject      EntityType = "PROJECT"
	EntityProduct      EntityType = "PRODUCT"
	EntityDocument     EntityType = "DOCUMENT"
	EntityTopic        EntityType = "TOPIC"
	EntityLocation     EntityType = "LOCATION"
	EntityDate         EntityType = "DATE"
	EntityRegulation   EntityType = "REGULATION"
)

// RelationType enumerates the kinds of edge the graph subsystem recognizes.
type RelationType string

const (
	RelWorksFor         RelationType = "WORKS_FOR"
	RelManages          RelationType = "MANAGES"
	RelCreated          RelationType = "CREATED"
	RelMentions         RelationType = "MENTIONS"
	RelReferences       RelationType = "REFERENCES"
	RelAbout            RelationType = "ABOUT"
	RelPartOf           RelationType = "PART_OF"
	RelReportsTo        RelationType = "REPORTS_TO"
	RelCollaboratesWith RelationType = "COLLABORATES_WITH"
	RelApprovedBy       RelationType = "APPROVED_BY"
)

// ExtractedEntity is one entity mention found in a chunk, before
// resolution has merged it with mentions of the same real-world entity
// elsewhere.
type ExtractedEntity struct {
	Name       string
	Type       EntityType
	Confidence float64
	ChunkID    string
	DocumentID string
}

// ExtractedRelationship is one relationship mention found in a chunk,
// referencing entities by name (resolution assigns stable IDs later).
type ExtractedRelationship struct {
	Source     string
	Target     string
	Type       RelationType
	Evidence   string
	Confidence float64
	ChunkID    string
	DocumentID string
}

// ExtractionResult is everything extract produced for one chunk.
type ExtractionResult struct {
	Entities      []ExtractedEntity
	Relationships []ExtractedRelationship
}
