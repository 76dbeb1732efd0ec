package schema

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
)

type fakeDocs struct {
	docs []DocumentInfo
	err  error
}

func (f *fakeDocs) RecentDocuments(ctx context.Context, scope ScopeFilter, limit int) ([]DocumentInfo, error) {
	return f.docs, f.err
}

type fakeEntities struct {
	entityTypes []string
	relTypes    []string
	err         error
}

func (f *fakeEntities) EntityTypes(ctx context.Context) ([]string, error) {
	return f.entityTypes, f.err
}

func (f *fakeEntities) RelationshipTypes(ctx context.Context) ([]string, error) {
	return f.relTypes, f.err
}

type fakeEvidence struct {
	types []string
	err   error
}

func (f *fakeEvidence) EvidenceTypes(ctx context.Context) ([]string, error) {
	return f.types, f.err
}

type fakeCollections struct {
	collections []CollectionSummary
	columns     []ColumnInfo
	err         error
}

func (f *fakeCollections) Collections(ctx context.Context) ([]CollectionSummary, error) {
	return f.collections, f.err
}

func (f *fakeCollections) Columns(ctx context.Context, scope ScopeFilter) ([]ColumnInfo, error) {
	return f.columns, f.err
}

func TestBuild(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	docs := &fakeDocs{docs: []DocumentInfo{
		{Name: "q1-report.pdf", ContentType: "pdf", Modified: now.AddDate(0, -2, 0)},
		{Name: "revenue.xlsx", ContentType: "tabular", Modified: now},
		{Name: "q2-report.pdf", ContentType: "pdf", Modified: now.AddDate(0, -1, 0)},
	}}
	entities := &fakeEntities{
		entityTypes: []string{"person", "organization"},
		relTypes:    []string{"works_for"},
	}
	evidence := &fakeEvidence{types: []string{"image", "audio"}}
	collections := &fakeCollections{
		collections: []CollectionSummary{{ID: "c1", Name: "reports", DocumentCount: 3}},
		columns:     []ColumnInfo{{Name: "revenue", Type: "number", Collection: "c1"}},
	}

	b := NewBuilder(docs, entities, evidence, collections, 200, logger.Default())
	sc, err := b.Build(context.Background(), ScopeFilter{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if sc.DocumentCount != 3 {
		t.Errorf("DocumentCount = %d, want 3", sc.DocumentCount)
	}
	if !sc.HasContentType("pdf") || !sc.HasContentType("TABULAR") {
		t.Errorf("expected pdf and tabular content types, got %v", sc.ContentTypes)
	}
	if !sc.HasRelationshipType("works_for") {
		t.Errorf("expected works_for relationship, got %v", sc.RelationshipTypes)
	}
	if !sc.HasColumn("Revenue") {
		t.Errorf("expected revenue column, got %v", sc.Columns)
	}
	if !sc.EarliestDocument.Equal(now.AddDate(0, -2, 0)) {
		t.Errorf("EarliestDocument = %v", sc.EarliestDocument)
	}
	if !sc.LatestDocument.Equal(now) {
		t.Errorf("LatestDocument = %v", sc.LatestDocument)
	}
	if len(sc.SampleDocuments) != 3 {
		t.Errorf("expected 3 sample names, got %v", sc.SampleDocuments)
	}
}

func TestBuildSectionFailureDegrades(t *testing.T) {
	docs := &fakeDocs{err: errors.New("qdrant unreachable")}
	entities := &fakeEntities{entityTypes: []string{"person"}, err: nil}

	b := NewBuilder(docs, entities, nil, nil, 200, logger.Default())
	sc, err := b.Build(context.Background(), ScopeFilter{})
	if err != nil {
		t.Fatalf("section failure must not abort the build: %v", err)
	}

	if len(sc.ContentTypes) != 0 {
		t.Errorf("failed document section should yield empty content types, got %v", sc.ContentTypes)
	}
	if !sc.HasEntityType("person") {
		t.Error("healthy section should still populate")
	}
}

func TestBuildNilCollaborators(t *testing.T) {
	b := NewBuilder(nil, nil, nil, nil, 0, logger.Default())
	sc, err := b.Build(context.Background(), ScopeFilter{})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if sc.DocumentCount != 0 || len(sc.ContentTypes) != 0 {
		t.Error("empty collaborators should build an empty context")
	}
}

func TestBuildCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(&fakeDocs{}, nil, nil, nil, 0, logger.Default())
	if _, err := b.Build(ctx, ScopeFilter{}); err == nil {
		t.Error("cancelled context should propagate")
	}
}

func TestFingerprintStable(t *testing.T) {
	a := &Context{
		ContentTypes: []string{"pdf", "tabular"},
		EntityTypes:  []string{"person", "organization"},
	}
	b := &Context{
		ContentTypes: []string{"tabular", "pdf"},
		EntityTypes:  []string{"organization", "person"},
	}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint must be independent of set ordering")
	}

	c := &Context{ContentTypes: []string{"pdf"}}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different contexts must produce different fingerprints")
	}

	d := &Context{
		ContentTypes:  []string{"pdf", "tabular"},
		EntityTypes:   []string{"person", "organization"},
		DocumentCount: 9,
	}
	if a.Fingerprint() == d.Fingerprint() {
		t.Error("document count must contribute to the fingerprint")
	}
}

func TestSummary(t *testing.T) {
	sc := &Context{
		ContentTypes:      []string{"pdf", "tabular"},
		EntityTypes:       []string{"person"},
		RelationshipTypes: []string{"works_for"},
		Columns:           []ColumnInfo{{Name: "revenue"}},
		DocumentCount:     12,
		SampleDocuments:   []string{"q1-report.pdf"},
	}

	summary := sc.Summary()
	for _, want := range []string{"12", "pdf", "tabular", "person", "works_for", "revenue", "q1-report.pdf"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}
