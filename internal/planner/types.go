// Package planner decomposes natural-language queries into executable
// retrieval plans with graceful degradation from model-backed to
// pattern-based decomposition.
package planner

import (
	"strings"
	"time"
)

// ProducerPattern identifies plans produced without any model call.
const ProducerPattern = "pattern-based"

// ExecutionMode selects how a plan should be executed downstream.
type ExecutionMode string

const (
	ModeEmbeddingOnly  ExecutionMode = "embedding_only"
	ModeTraditional    ExecutionMode = "traditional"
	ModeHybrid         ExecutionMode = "hybrid"
	ModeGraphTraversal ExecutionMode = "graph_traversal"
	ModeAgentic        ExecutionMode = "agentic"
)

// ParseExecutionMode maps a string onto an ExecutionMode, defaulting to
// ModeEmbeddingOnly for unrecognized values.
func ParseExecutionMode(s string) ExecutionMode {
	switch ExecutionMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTraditional:
		return ModeTraditional
	case ModeHybrid:
		return ModeHybrid
	case ModeGraphTraversal:
		return ModeGraphTraversal
	case ModeAgentic:
		return ModeAgentic
	default:
		return ModeEmbeddingOnly
	}
}

// QueryType classifies the query; it determines whether downstream synthesis
// is needed at all.
type QueryType string

const (
	TypeKeyword     QueryType = "keyword"
	TypeSemantic    QueryType = "semantic"
	TypeComparison  QueryType = "comparison"
	TypeAggregation QueryType = "aggregation"
	TypeNavigation  QueryType = "navigation"
)

// OperationType tags a post-retrieval result operation.
type OperationType string

const (
	OpRetrieve   OperationType = "retrieve"
	OpCompare    OperationType = "compare"
	OpAggregate  OperationType = "aggregate"
	OpTrend      OperationType = "trend"
	OpGroupBy    OperationType = "group_by"
	OpRank       OperationType = "rank"
	OpDiff       OperationType = "diff"
	OpSynthesize OperationType = "synthesize"
)

// ParseOperationType maps a model-emitted string onto an OperationType,
// defaulting to OpRetrieve for unrecognized values rather than failing.
func ParseOperationType(s string) OperationType {
	switch OperationType(strings.ToLower(strings.TrimSpace(s))) {
	case OpCompare:
		return OpCompare
	case OpAggregate:
		return OpAggregate
	case OpTrend:
		return OpTrend
	case OpGroupBy, "groupby":
		return OpGroupBy
	case OpRank:
		return OpRank
	case OpDiff:
		return OpDiff
	case OpSynthesize:
		return OpSynthesize
	default:
		return OpRetrieve
	}
}

// SubQuery is one unit of retrieval work derived from the original query.
type SubQuery struct {
	// Query is the text to embed and search.
	Query string `json:"query"`

	// Purpose is a human-readable reason this sub-query exists.
	Purpose string `json:"purpose"`

	// Priority orders execution; 1 is highest.
	Priority int `json:"priority"`

	// TopK is the result count, clamped to [3, 20].
	TopK int `json:"topK"`

	// UseSparse enables lexical matching alongside semantic search.
	UseSparse bool `json:"useSparse"`

	// ContentTypes optionally restricts the sub-query to content types.
	ContentTypes []string `json:"contentTypes,omitempty"`

	// Fields optionally restricts the sub-query to payload fields.
	Fields []string `json:"fields,omitempty"`
}

// Filters constrains the whole plan. Absent fields mean "no restriction",
// never "exclude everything".
type Filters struct {
	ContentTypes   []string          `json:"contentTypes,omitempty"`
	CollectionIDs  []string          `json:"collectionIds,omitempty"`
	DocumentIDs    []string          `json:"documentIds,omitempty"`
	ModifiedAfter  *time.Time        `json:"modifiedAfter,omitempty"`
	ModifiedBefore *time.Time        `json:"modifiedBefore,omitempty"`
	MinConfidence  float64           `json:"minConfidence,omitempty"`
	EntityTypes    []string          `json:"entityTypes,omitempty"`
	ColumnFilters  map[string]string `json:"columnFilters,omitempty"`
}

// GraphTraversal describes one walk over the entity graph.
type GraphTraversal struct {
	StartEntity       string   `json:"startEntity"`
	StartEntityType   string   `json:"startEntityType,omitempty"`
	RelationshipTypes []string `json:"relationshipTypes,omitempty"`
	MaxDepth          int      `json:"maxDepth"`
	TargetEntityType  string   `json:"targetEntityType,omitempty"`
}

// DefaultTraversalDepth bounds graph walks when the plan does not say
// otherwise.
const DefaultTraversalDepth = 2

// ResultOperation is one post-retrieval operation.
type ResultOperation struct {
	Type       OperationType     `json:"type"`
	Fields     []string          `json:"fields,omitempty"`
	Parameters map[string]string `json:"parameters,omitempty"`
}

// ValidationKind selects how an assumption is checked against live data.
type ValidationKind string

const (
	CheckContentTypeExists  ValidationKind = "content_type_exists"
	CheckResultsExist       ValidationKind = "results_exist"
	CheckEntityExists       ValidationKind = "entity_exists"
	CheckFieldExists        ValidationKind = "field_exists"
	CheckRelationshipExists ValidationKind = "relationship_exists"
	CheckDateRangeValid     ValidationKind = "date_range_valid"
)

// ValidationState is the tri-state outcome of an assumption check.
type ValidationState int

const (
	// ValidationUnknown means the assumption has not been checked, or the
	// check itself failed.
	ValidationUnknown ValidationState = iota

	// ValidationPassed means live data confirmed the assumption.
	ValidationPassed

	// ValidationFailed means live data contradicted the assumption.
	ValidationFailed
)

func (s ValidationState) String() string {
	switch s {
	case ValidationPassed:
		return "passed"
	case ValidationFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// AssumptionValidation describes how to check one assumption.
type AssumptionValidation struct {
	Kind     ValidationKind `json:"kind"`
	Query    string         `json:"query,omitempty"`
	Field    string         `json:"field,omitempty"`
	Expected string         `json:"expected,omitempty"`
}

// Assumption is a claim about the data that the plan depends on. Decomposers
// create assumptions; only the validator writes the Validated state and
// result afterwards.
type Assumption struct {
	Description      string               `json:"description"`
	Validation       AssumptionValidation `json:"validation"`
	Confidence       float64              `json:"confidence"`
	Validated        ValidationState      `json:"validated"`
	ValidationResult string               `json:"validationResult,omitempty"`
}

// QueryPlan is the decomposition's full output. A plan is constructed once,
// optionally replaced exactly once by validation, then immutable; the cache
// hands out shared pointers, so nothing may mutate a returned plan.
type QueryPlan struct {
	Query                 string            `json:"query"`
	Intent                string            `json:"intent"`
	Confidence            float64           `json:"confidence"`
	SubQueries            []SubQuery        `json:"subQueries"`
	Filters               Filters           `json:"filters"`
	Traversals            []GraphTraversal  `json:"traversals,omitempty"`
	Operations            []ResultOperation `json:"operations,omitempty"`
	NeedsClarification    bool              `json:"needsClarification"`
	ClarificationQuestion string            `json:"clarificationQuestion,omitempty"`
	Assumptions           []Assumption      `json:"assumptions,omitempty"`
	Mode                  ExecutionMode     `json:"mode"`
	QueryType             QueryType         `json:"queryType"`
	Producer              string            `json:"producer"`
	PlanningTime          time.Duration     `json:"planningTimeNs"`
}

// clone deep-copies a plan so functional updates never alias cached values.
func (p *QueryPlan) clone() *QueryPlan {
	out := *p

	out.SubQueries = append([]SubQuery(nil), p.SubQueries...)
	out.Traversals = append([]GraphTraversal(nil), p.Traversals...)
	out.Operations = append([]ResultOperation(nil), p.Operations...)
	out.Assumptions = append([]Assumption(nil), p.Assumptions...)

	return &out
}

// withLatency returns a copy with the planning latency recorded.
func (p *QueryPlan) withLatency(d time.Duration) *QueryPlan {
	out := p.clone()
	out.PlanningTime = d
	return out
}

// withAssumptions returns a copy carrying validated assumptions.
func (p *QueryPlan) withAssumptions(assumptions []Assumption) *QueryPlan {
	out := p.clone()
	out.Assumptions = append([]Assumption(nil), assumptions...)
	return out
}

// withClarification returns a copy with a recomputed confidence and
// clarification state.
func (p *QueryPlan) withClarification(confidence float64, needs bool, question string) *QueryPlan {
	out := p.clone()
	out.Confidence = clamp01(confidence)
	out.NeedsClarification = needs
	out.ClarificationQuestion = question
	return out
}

// FailedAssumptions returns assumptions whose checks failed.
func (p *QueryPlan) FailedAssumptions() []Assumption {
	var failed []Assumption
	for _, a := range p.Assumptions {
		if a.Validated == ValidationFailed {
			failed = append(failed, a)
		}
	}
	return failed
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TopK clamp bounds for sub-queries.
const (
	MinTopK = 3
	MaxTopK = 20
)
