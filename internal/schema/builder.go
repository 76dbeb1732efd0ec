package schema

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
)

// ScopeFilter narrows a context build to parts of the corpus.
type ScopeFilter struct {
	CollectionIDs []string
	ContentTypes  []string
}

// DocumentInfo is a bounded view of one stored document.
type DocumentInfo struct {
	Name        string
	ContentType string
	Collection  string
	Modified    time.Time
}

// DocumentReader reads recent documents, capped by limit.
type DocumentReader interface {
	RecentDocuments(ctx context.Context, scope ScopeFilter, limit int) ([]DocumentInfo, error)
}

// EntityReader reads distinct entity and relationship types from the graph.
type EntityReader interface {
	EntityTypes(ctx context.Context) ([]string, error)
	RelationshipTypes(ctx context.Context) ([]string, error)
}

// EvidenceReader reads distinct evidence-artifact types.
type EvidenceReader interface {
	EvidenceTypes(ctx context.Context) ([]string, error)
}

// CollectionReader reads collection summaries and tabular column metadata.
type CollectionReader interface {
	Collections(ctx context.Context) ([]CollectionSummary, error)
	Columns(ctx context.Context, scope ScopeFilter) ([]ColumnInfo, error)
}

const maxSampleNames = 10

// Builder aggregates collaborator reads into a Context. Any nil collaborator
// simply contributes nothing.
type Builder struct {
	docs        DocumentReader
	entities    EntityReader
	evidence    EvidenceReader
	collections CollectionReader
	sampleLimit int
	log         *logger.Logger
}

// NewBuilder creates a schema context builder. sampleLimit bounds the
// document scan that derives content types and date ranges.
func NewBuilder(docs DocumentReader, entities EntityReader, evidence EvidenceReader, collections CollectionReader, sampleLimit int, log *logger.Logger) *Builder {
	if sampleLimit <= 0 {
		sampleLimit = 200
	}
	return &Builder{
		docs:        docs,
		entities:    entities,
		evidence:    evidence,
		collections: collections,
		sampleLimit: sampleLimit,
		log:         log.WithComponent("schema"),
	}
}

// Build assembles a fresh snapshot. Sections are read concurrently; a failed
// section yields an empty set rather than aborting the whole build, so the
// only returned error is context cancellation.
func (b *Builder) Build(ctx context.Context, scope ScopeFilter) (*Context, error) {
	sc := &Context{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if b.docs == nil {
			return nil
		}
		docs, err := b.docs.RecentDocuments(gctx, scope, b.sampleLimit)
		if err != nil {
			b.log.Warn("document section failed, continuing with empty set", "error", err)
			return nil
		}
		b.fillFromDocuments(sc, docs)
		return nil
	})

	g.Go(func() error {
		if b.entities == nil {
			return nil
		}
		types, err := b.entities.EntityTypes(gctx)
		if err != nil {
			b.log.Warn("entity type section failed", "error", err)
		} else {
			sc.EntityTypes = dedupe(types)
		}

		rels, err := b.entities.RelationshipTypes(gctx)
		if err != nil {
			b.log.Warn("relationship type section failed", "error", err)
		} else {
			sc.RelationshipTypes = dedupe(rels)
		}
		return nil
	})

	g.Go(func() error {
		if b.evidence == nil {
			return nil
		}
		types, err := b.evidence.EvidenceTypes(gctx)
		if err != nil {
			b.log.Warn("evidence type section failed", "error", err)
			return nil
		}
		sc.EvidenceTypes = dedupe(types)
		return nil
	})

	g.Go(func() error {
		if b.collections == nil {
			return nil
		}
		cols, err := b.collections.Collections(gctx)
		if err != nil {
			b.log.Warn("collection section failed", "error", err)
		} else {
			sc.Collections = cols
		}

		columns, err := b.collections.Columns(gctx, scope)
		if err != nil {
			b.log.Warn("column metadata section failed", "error", err)
		} else {
			sc.Columns = columns
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return sc, nil
}

func (b *Builder) fillFromDocuments(sc *Context, docs []DocumentInfo) {
	types := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.ContentType != "" {
			types = append(types, d.ContentType)
		}

		if !d.Modified.IsZero() {
			if sc.EarliestDocument.IsZero() || d.Modified.Before(sc.EarliestDocument) {
				sc.EarliestDocument = d.Modified
			}
			if d.Modified.After(sc.LatestDocument) {
				sc.LatestDocument = d.Modified
			}
		}

		if len(sc.SampleDocuments) < maxSampleNames && d.Name != "" {
			sc.SampleDocuments = append(sc.SampleDocuments, d.Name)
		}
	}

	sc.ContentTypes = dedupe(types)
	sc.DocumentCount = uint64(len(docs))
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
