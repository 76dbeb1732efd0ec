package qdrant

import (
	"reflect"
	"testing"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()

	if cfg.Host != DefaultHost {
		t.Errorf("expected host %s, got %s", DefaultHost, cfg.Host)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("expected port %d, got %d", DefaultPort, cfg.Port)
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("expected timeout %v, got %v", DefaultTimeout, cfg.Timeout)
	}
}

func TestScopeToFilter(t *testing.T) {
	if f := scopeToFilter(schema.ScopeFilter{}); f != nil {
		t.Errorf("empty scope should produce no filter, got %+v", f)
	}

	f := scopeToFilter(schema.ScopeFilter{
		CollectionIDs: []string{"finance", "legal"},
		ContentTypes:  []string{"tabular"},
	})
	if f == nil {
		t.Fatal("expected a filter")
	}
	if len(f.Must) != 2 {
		t.Fatalf("expected one condition per scoped field, got %d", len(f.Must))
	}

	field := f.Must[0].GetField()
	if field == nil || field.Key != keyCollection {
		t.Errorf("first condition key = %v, want %s", field, keyCollection)
	}
	keywords := field.Match.GetKeywords()
	if keywords == nil || len(keywords.Strings) != 2 {
		t.Errorf("collection condition should match any of two values, got %v", keywords)
	}
}

func TestMergeFilters(t *testing.T) {
	a := keywordFilter(keyContentType, "tabular")
	b := textFilter(keyName, "report")

	if got := mergeFilters(nil, a); got != a {
		t.Error("merging with nil should return the other filter")
	}
	if got := mergeFilters(a, nil); got != a {
		t.Error("merging with nil should return the other filter")
	}

	merged := mergeFilters(a, b)
	if len(merged.Must) != 2 {
		t.Errorf("merged conditions = %d, want 2", len(merged.Must))
	}
	// The inputs are not mutated.
	if len(a.Must) != 1 || len(b.Must) != 1 {
		t.Error("merge mutated an input filter")
	}
}

func TestPayloadHelpers(t *testing.T) {
	modified := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	payload := map[string]*qdrant.Value{
		keyName:        {Kind: &qdrant.Value_StringValue{StringValue: "q1-report"}},
		keyContentType: {Kind: &qdrant.Value_StringValue{StringValue: "tabular"}},
		keyModifiedAt:  {Kind: &qdrant.Value_StringValue{StringValue: modified.Format(time.RFC3339)}},
		keyColumns: {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: []*qdrant.Value{
			{Kind: &qdrant.Value_StringValue{StringValue: "revenue:number"}},
			{Kind: &qdrant.Value_StringValue{StringValue: "region:string"}},
		}}}},
	}

	if got := getStringValue(payload, keyName); got != "q1-report" {
		t.Errorf("getStringValue(name) = %q", got)
	}
	if got := getStringValue(payload, "missing"); got != "" {
		t.Errorf("getStringValue(missing) = %q, want empty", got)
	}
	if got := getTimeValue(payload, keyModifiedAt); !got.Equal(modified) {
		t.Errorf("getTimeValue = %v, want %v", got, modified)
	}
	if got := getTimeValue(payload, keyName); !got.IsZero() {
		t.Errorf("non-time string should parse to zero, got %v", got)
	}
	cols := getStringSliceValue(payload, keyColumns)
	if len(cols) != 2 || cols[0] != "revenue:number" {
		t.Errorf("getStringSliceValue = %v", cols)
	}
}

func TestDistinct(t *testing.T) {
	got := distinct([]string{"email", "", "report", "email", "chat"})
	want := []string{"chat", "email", "report"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("distinct() = %v, want %v", got, want)
	}
	if distinct(nil) != nil {
		t.Error("distinct(nil) should stay nil")
	}
}
