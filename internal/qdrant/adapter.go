package qdrant

import (
	"context"
	"sort"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"github.com/sentinelsearch/sentinel-planner/internal/planner"
	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

// Adapter exposes the evidence store through the narrow interfaces the
// schema builder and plan validator consume.
type Adapter struct {
	client             *Client
	evidenceCollection string
	entityCollection   string
}

// NewAdapter binds a client to the evidence and entity collections.
func NewAdapter(client *Client, evidenceCollection, entityCollection string) *Adapter {
	return &Adapter{
		client:             client,
		evidenceCollection: evidenceCollection,
		entityCollection:   entityCollection,
	}
}

// RecentDocuments reads a bounded document sample for schema derivation.
func (a *Adapter) RecentDocuments(ctx context.Context, scope schema.ScopeFilter, limit int) ([]schema.DocumentInfo, error) {
	records, err := a.client.ScrollDocuments(ctx, a.evidenceCollection, scopeToFilter(scope), limit)
	if err != nil {
		return nil, err
	}

	docs := make([]schema.DocumentInfo, 0, len(records))
	for _, r := range records {
		docs = append(docs, schema.DocumentInfo{
			Name:        r.Name,
			ContentType: r.ContentType,
			Collection:  r.Collection,
			Modified:    r.Modified,
		})
	}
	return docs, nil
}

// EntityTypes returns the distinct entity types seen in a bounded scroll of
// the graph collection.
func (a *Adapter) EntityTypes(ctx context.Context) ([]string, error) {
	records, err := a.client.ScrollEntities(ctx, a.entityCollection, nil, 0)
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(records))
	for _, r := range records {
		types = append(types, r.Type)
	}
	return distinct(types), nil
}

// RelationshipTypes returns distinct relationship types from the same scroll.
func (a *Adapter) RelationshipTypes(ctx context.Context) ([]string, error) {
	records, err := a.client.ScrollEntities(ctx, a.entityCollection, nil, 0)
	if err != nil {
		return nil, err
	}

	var types []string
	for _, r := range records {
		types = append(types, r.Relationships...)
	}
	return distinct(types), nil
}

// EvidenceTypes returns distinct evidence-artifact types from the evidence
// collection payloads.
func (a *Adapter) EvidenceTypes(ctx context.Context) ([]string, error) {
	records, err := a.client.ScrollEvidence(ctx, a.evidenceCollection, nil, 0)
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(records))
	for _, r := range records {
		types = append(types, r.EvidenceType)
	}
	return distinct(types), nil
}

// distinct drops empties and duplicates and returns the rest sorted.
func distinct(values []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Collections summarizes every collection by name and point count.
func (a *Adapter) Collections(ctx context.Context) ([]schema.CollectionSummary, error) {
	names, err := a.client.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	summaries := make([]schema.CollectionSummary, 0, len(names))
	for _, name := range names {
		count, err := a.client.CountPoints(ctx, name)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, schema.CollectionSummary{
			Name:          name,
			DocumentCount: count,
		})
	}
	return summaries, nil
}

// Columns derives tabular column metadata from the "name:type" descriptors
// stored on tabular document payloads.
func (a *Adapter) Columns(ctx context.Context, scope schema.ScopeFilter) ([]schema.ColumnInfo, error) {
	filter := mergeFilters(scopeToFilter(scope), keywordFilter(keyContentType, schema.ContentTypeTabular))
	records, err := a.client.ScrollDocuments(ctx, a.evidenceCollection, filter, 0)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var columns []schema.ColumnInfo
	for _, r := range records {
		for _, descriptor := range r.Columns {
			name, typ, _ := strings.Cut(descriptor, ":")
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			key := r.Collection + "." + strings.ToLower(name)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			columns = append(columns, schema.ColumnInfo{
				Name:       name,
				Type:       strings.TrimSpace(typ),
				Collection: r.Collection,
			})
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i].Collection != columns[j].Collection {
			return columns[i].Collection < columns[j].Collection
		}
		return columns[i].Name < columns[j].Name
	})
	return columns, nil
}

// Search runs dense search over the evidence collection for validation
// probes.
func (a *Adapter) Search(ctx context.Context, vector []float32, topK int) ([]planner.SearchResult, error) {
	hits, err := a.client.DenseSearch(ctx, a.evidenceCollection, vector, topK)
	if err != nil {
		return nil, err
	}

	results := make([]planner.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, planner.SearchResult{
			ID:         h.ID,
			Similarity: h.Similarity,
		})
	}
	return results, nil
}

// EntityExists reports whether any entity name contains the given text.
func (a *Adapter) EntityExists(ctx context.Context, nameContains string) (bool, error) {
	return a.client.FindEntityByName(ctx, a.entityCollection, nameContains)
}

// CountContentType counts evidence documents of one content type.
func (a *Adapter) CountContentType(ctx context.Context, contentType string) (uint64, error) {
	return a.client.CountContentType(ctx, a.evidenceCollection, contentType)
}

// scopeToFilter translates a scope restriction into a payload filter. Values
// within one field match any-of; fields combine as all-of. An empty scope
// means no filter at all.
func scopeToFilter(scope schema.ScopeFilter) *qdrant.Filter {
	var must []*qdrant.Condition
	if len(scope.CollectionIDs) > 0 {
		must = append(must, anyKeywordCondition(keyCollection, scope.CollectionIDs))
	}
	if len(scope.ContentTypes) > 0 {
		must = append(must, anyKeywordCondition(keyContentType, scope.ContentTypes))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

// anyKeywordCondition matches a payload key against any of the given values.
func anyKeywordCondition(key string, values []string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: key,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keywords{
						Keywords: &qdrant.RepeatedStrings{Strings: values},
					},
				},
			},
		},
	}
}

func mergeFilters(a, b *qdrant.Filter) *qdrant.Filter {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return &qdrant.Filter{Must: append(append([]*qdrant.Condition{}, a.Must...), b.Must...)}
	}
}
