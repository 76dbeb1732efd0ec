package qdrant

import "time"

// DocumentRecord is the bounded read view of one stored evidence document.
type DocumentRecord struct {
	ID          string
	Name        string
	ContentType string
	Collection  string
	Modified    time.Time

	// Columns holds "name:type" column descriptors for tabular sources.
	Columns []string
}

// EntityRecord is the read view of one entity-graph node.
type EntityRecord struct {
	ID            string
	Name          string
	Type          string
	Relationships []string
}

// EvidenceRecord is the read view of one evidence artifact.
type EvidenceRecord struct {
	ID           string
	EvidenceType string
}

// ScoredResult is one similarity-search hit.
type ScoredResult struct {
	ID         string
	Similarity float32
}

// Payload keys for evidence and entity collections.
const (
	keyName         = "name"
	keyContentType  = "content_type"
	keyCollection   = "collection"
	keyModifiedAt   = "modified_at"
	keyColumns      = "columns"
	keyEntityType   = "entity_type"
	keyRelTypes     = "relationships"
	keyEvidenceType = "evidence_type"
)
