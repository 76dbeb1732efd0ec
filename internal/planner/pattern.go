package planner

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

// PatternDecomposer builds plans from cue detection alone. It never fails and
// never calls out, so it is the floor every other decomposer degrades to.
type PatternDecomposer struct {
	cfg config.PlannerConfig

	// now anchors relative date windows; injectable for tests. Truncated to
	// day so plans stay identical within a day.
	now func() time.Time
}

// NewPatternDecomposer creates a pattern-based decomposer.
func NewPatternDecomposer(cfg config.PlannerConfig) *PatternDecomposer {
	return &PatternDecomposer{cfg: cfg, now: time.Now}
}

// Decompose produces a deterministic plan from the query text and schema
// context. Identical inputs always yield identical plans.
func (d *PatternDecomposer) Decompose(query string, sc *schema.Context, mode ExecutionMode) *QueryPlan {
	c := detectCues(query)
	queryType := ClassifyQueryType(query, d.cfg.KeywordMaxWords)

	plan := &QueryPlan{
		Query:      query,
		Confidence: d.cfg.BaseConfidence,
		Mode:       mode,
		QueryType:  queryType,
		Producer:   ProducerPattern,
	}

	plan.SubQueries = []SubQuery{{
		Query:     query,
		Purpose:   "primary retrieval for the original query",
		Priority:  1,
		TopK:      d.cfg.DefaultTopK,
		UseSparse: true,
	}}

	if c.comparison {
		d.applyComparison(plan, query)
	}
	if c.aggregation {
		d.applyAggregation(plan, query, sc)
	}
	if c.temporal {
		d.applyTemporal(plan, query)
	}
	if c.relationship {
		d.applyRelationship(plan, query, sc)
	}
	if c.list && !c.comparison && !c.aggregation {
		d.applyList(plan)
	}

	d.applySynthesis(plan)
	plan.Intent = d.intent(query, c, queryType)

	plan.Confidence = clamp01(plan.Confidence)
	return plan
}

// applyComparison adds a per-side sub-query for each detected comparison term
// and a compare operation over the sides.
func (d *PatternDecomposer) applyComparison(plan *QueryPlan, query string) {
	terms := comparisonTerms(query, d.cfg.MaxComparisonTerms)

	for i, term := range terms {
		plan.SubQueries = append(plan.SubQueries, SubQuery{
			Query:     term,
			Purpose:   fmt.Sprintf("retrieve evidence about %q for comparison", term),
			Priority:  2 + i,
			TopK:      d.cfg.DefaultTopK,
			UseSparse: true,
		})
		plan.Assumptions = append(plan.Assumptions, Assumption{
			Description: fmt.Sprintf("an entity or document matching %q exists", term),
			Validation: AssumptionValidation{
				Kind:     CheckEntityExists,
				Query:    term,
				Expected: term,
			},
			Confidence: 0.6,
		})
	}

	plan.Operations = append(plan.Operations, ResultOperation{
		Type:   OpCompare,
		Fields: terms,
	})
	plan.Confidence *= 0.9
}

// applyAggregation marks the plan as tabular-dependent. Aggregating without
// tabular content in the corpus is still attempted, at reduced confidence.
func (d *PatternDecomposer) applyAggregation(plan *QueryPlan, query string, sc *schema.Context) {
	plan.Operations = append(plan.Operations, ResultOperation{Type: OpAggregate})

	if sc != nil && len(sc.ContentTypes) > 0 {
		plan.Filters.ContentTypes = []string{schema.ContentTypeTabular}
	}

	plan.Assumptions = append(plan.Assumptions, Assumption{
		Description: "tabular content exists to aggregate over",
		Validation: AssumptionValidation{
			Kind:     CheckContentTypeExists,
			Expected: schema.ContentTypeTabular,
		},
		Confidence: 0.8,
	})

	plan.Confidence *= 0.9
	if sc == nil || !sc.HasContentType(schema.ContentTypeTabular) {
		plan.Confidence *= 0.8
	}

	if fields := aggregationFields(query, sc); len(fields) > 0 {
		plan.Operations[len(plan.Operations)-1].Fields = fields
	}
}

// applyTemporal sorts recency into the plan: a trend operation, a
// modified-date window when the query names one, and a date assumption.
func (d *PatternDecomposer) applyTemporal(plan *QueryPlan, query string) {
	plan.Operations = append(plan.Operations, ResultOperation{
		Type:       OpTrend,
		Parameters: map[string]string{"order": "modified_desc"},
	})

	plan.SubQueries = append(plan.SubQueries, SubQuery{
		Query:    strings.TrimSpace(query) + " most recent changes",
		Purpose:  "chronologically framed retrieval",
		Priority: len(plan.SubQueries) + 1,
		TopK:     d.cfg.DefaultTopK,
	})

	if days := temporalWindowDays(query); days > 0 {
		after := d.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -days)
		plan.Filters.ModifiedAfter = &after
	}

	plan.Assumptions = append(plan.Assumptions, Assumption{
		Description: "documents carry usable modification dates",
		Validation:  AssumptionValidation{Kind: CheckDateRangeValid},
		Confidence:  0.7,
	})
}

var temporalWindowRe = regexp.MustCompile(`\b(?:last|this|past)\s+(week|month|quarter|year)\b`)

// temporalWindowDays maps a named window onto a day count, 0 when the query
// names none.
func temporalWindowDays(query string) int {
	m := temporalWindowRe.FindStringSubmatch(strings.ToLower(query))
	if m == nil {
		return 0
	}
	switch m[1] {
	case "week":
		return 7
	case "month":
		return 30
	case "quarter":
		return 90
	default:
		return 365
	}
}

// applyRelationship adds graph traversals from each detected term.
func (d *PatternDecomposer) applyRelationship(plan *QueryPlan, query string, sc *schema.Context) {
	terms := extractSpecificTerms(query)
	if len(terms) == 0 {
		// No anchor entity; the traversal intent still shapes the mode.
		plan.Mode = ModeGraphTraversal
		return
	}

	hasEdges := sc != nil && len(sc.RelationshipTypes) > 0

	for _, term := range terms {
		plan.Traversals = append(plan.Traversals, GraphTraversal{
			StartEntity: term,
			MaxDepth:    DefaultTraversalDepth,
		})
		plan.Assumptions = append(plan.Assumptions, Assumption{
			Description: fmt.Sprintf("entity %q exists in the graph", term),
			Validation: AssumptionValidation{
				Kind:     CheckEntityExists,
				Query:    term,
				Expected: term,
			},
			Confidence: 0.6,
		})

		// Per-term retrievals feed the traversal; low priority so direct
		// evidence hits come first.
		if hasEdges {
			plan.SubQueries = append(plan.SubQueries, SubQuery{
				Query:    term,
				Purpose:  fmt.Sprintf("seed graph traversal from %q", term),
				Priority: len(plan.SubQueries) + 2,
				TopK:     d.cfg.DefaultTopK,
			})
		}
	}
	if hasEdges {
		plan.Assumptions = append(plan.Assumptions, Assumption{
			Description: "the graph carries relationship edges to traverse",
			Validation:  AssumptionValidation{Kind: CheckRelationshipExists},
			Confidence:  0.7,
		})
	}
	plan.Mode = ModeGraphTraversal
}

// applyList widens the primary retrieval and sorts results.
func (d *PatternDecomposer) applyList(plan *QueryPlan) {
	plan.SubQueries[0].TopK = d.cfg.ListTopK
	plan.Operations = append(plan.Operations, ResultOperation{Type: OpRank})
}

// applySynthesis appends a synthesize step when any structured operation or
// multiple sub-queries need their results merged into one answer.
func (d *PatternDecomposer) applySynthesis(plan *QueryPlan) {
	if len(plan.Operations) == 0 && len(plan.SubQueries) <= 1 {
		return
	}
	if plan.QueryType == TypeKeyword {
		return
	}
	plan.Operations = append(plan.Operations, ResultOperation{Type: OpSynthesize})
}

// intent synthesizes a one-line statement of what the plan tries to do.
func (d *PatternDecomposer) intent(query string, c cues, qt QueryType) string {
	var verb string
	switch {
	case c.comparison:
		verb = "compare"
	case c.aggregation:
		verb = "aggregate"
	case c.relationship:
		verb = "trace relationships for"
	case c.list:
		verb = "enumerate results for"
	case qt == TypeKeyword:
		verb = "look up"
	default:
		verb = "answer"
	}
	return fmt.Sprintf("%s: %s", verb, strings.TrimSpace(query))
}

// aggregationFields guesses which known columns the aggregation targets by
// scanning the query for column names from the schema context.
func aggregationFields(query string, sc *schema.Context) []string {
	if sc == nil {
		return nil
	}
	lower := strings.ToLower(query)
	var fields []string
	seen := map[string]struct{}{}
	for _, col := range sc.Columns {
		name := strings.ToLower(col.Name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		if strings.Contains(lower, name) {
			seen[name] = struct{}{}
			fields = append(fields, col.Name)
		}
	}
	return fields
}
