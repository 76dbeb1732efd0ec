// Package schema builds read-only snapshots of the available evidence
// corpus for the decomposers to reason over.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sentinelsearch/sentinel-planner/internal/pkg/hash"
)

// ContentTypeTabular marks tabular sources; aggregation plans depend on it.
const ContentTypeTabular = "tabular"

// ColumnInfo describes one column of a tabular source.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Collection string `json:"collection"`
}

// CollectionSummary describes one collection of documents.
type CollectionSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	DocumentCount uint64 `json:"document_count"`
}

// Context is a read-only snapshot of what data currently exists. The
// planner never writes to it; a fresh one is built per planning call (or
// cached upstream by the caller).
type Context struct {
	ContentTypes      []string            `json:"content_types"`
	EvidenceTypes     []string            `json:"evidence_types"`
	EntityTypes       []string            `json:"entity_types"`
	RelationshipTypes []string            `json:"relationship_types"`
	Columns           []ColumnInfo        `json:"columns"`
	Collections       []CollectionSummary `json:"collections"`
	DocumentCount     uint64              `json:"document_count"`
	EarliestDocument  time.Time           `json:"earliest_document"`
	LatestDocument    time.Time           `json:"latest_document"`

	// SampleDocuments holds a small sample of document names used to ground
	// model prompts. It is never used for retrieval.
	SampleDocuments []string `json:"sample_documents"`
}

// HasContentType reports whether the corpus contains the content type.
func (c *Context) HasContentType(t string) bool {
	return containsFold(c.ContentTypes, t)
}

// HasEntityType reports whether the entity graph contains the entity type.
func (c *Context) HasEntityType(t string) bool {
	return containsFold(c.EntityTypes, t)
}

// HasRelationshipType reports whether the entity graph contains the
// relationship type.
func (c *Context) HasRelationshipType(t string) bool {
	return containsFold(c.RelationshipTypes, t)
}

// HasColumn reports whether any tabular source has the column.
func (c *Context) HasColumn(name string) bool {
	for _, col := range c.Columns {
		if strings.EqualFold(col.Name, name) {
			return true
		}
	}
	return false
}

// Fingerprint returns a stable content hash of the snapshot, used for plan
// cache keys. Equal snapshots produce equal fingerprints regardless of the
// order collaborators returned their sets in.
func (c *Context) Fingerprint() string {
	columns := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		columns[i] = col.Collection + "." + col.Name + ":" + col.Type
	}

	fp := hash.SetFingerprint(
		c.ContentTypes,
		c.EvidenceTypes,
		c.EntityTypes,
		c.RelationshipTypes,
		columns,
	)

	return hash.SHA256Short([]byte(fmt.Sprintf("%s|%d", fp, c.DocumentCount)), 32)
}

// Summary renders the snapshot as prompt-ready text.
func (c *Context) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Documents: %d", c.DocumentCount)
	if !c.EarliestDocument.IsZero() && !c.LatestDocument.IsZero() {
		fmt.Fprintf(&b, " (from %s to %s)",
			c.EarliestDocument.Format("2006-01-02"),
			c.LatestDocument.Format("2006-01-02"))
	}
	b.WriteByte('\n')

	writeSet := func(label string, set []string) {
		if len(set) == 0 {
			return
		}
		sorted := make([]string, len(set))
		copy(sorted, set)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "%s: %s\n", label, strings.Join(sorted, ", "))
	}

	writeSet("Content types", c.ContentTypes)
	writeSet("Evidence types", c.EvidenceTypes)
	writeSet("Entity types", c.EntityTypes)
	writeSet("Relationship types", c.RelationshipTypes)

	if len(c.Columns) > 0 {
		cols := make([]string, len(c.Columns))
		for i, col := range c.Columns {
			cols[i] = col.Name
		}
		sort.Strings(cols)
		fmt.Fprintf(&b, "Tabular columns: %s\n", strings.Join(cols, ", "))
	}

	if len(c.Collections) > 0 {
		names := make([]string, len(c.Collections))
		for i, col := range c.Collections {
			names[i] = col.Name
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "Collections: %s\n", strings.Join(names, ", "))
	}

	if len(c.SampleDocuments) > 0 {
		fmt.Fprintf(&b, "Sample documents: %s\n", strings.Join(c.SampleDocuments, "; "))
	}

	return b.String()
}

func containsFold(set []string, target string) bool {
	for _, s := range set {
		if strings.EqualFold(s, target) {
			return true
		}
	}
	return false
}
