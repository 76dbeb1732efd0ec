package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/llm"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/errors"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

// modelPlan is the JSON shape the model is asked to emit.
type modelPlan struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	SubQueries []struct {
		Query     string `json:"query"`
		Purpose   string `json:"purpose"`
		Priority  int    `json:"priority"`
		TopK      int    `json:"topK"`
		UseSparse bool   `json:"useSparse"`
	} `json:"subQueries"`
	Operations []struct {
		Type   string   `json:"type"`
		Fields []string `json:"fields"`
	} `json:"operations"`
	Assumptions []struct {
		Description string  `json:"description"`
		Confidence  float64 `json:"confidence"`
	} `json:"assumptions"`
	NeedsClarification    bool   `json:"needsClarification"`
	ClarificationQuestion string `json:"clarificationQuestion"`
}

// ModelDecomposer refines pattern-based plans with a small language model,
// escalating to a larger model on failure and falling back to the pattern
// plan when both fail. Model trouble is logged, never surfaced to callers.
type ModelDecomposer struct {
	cfg       config.PlannerConfig
	llmCfg    config.LLMConfig
	generator llm.Generator
	pattern   *PatternDecomposer
	log       *logger.Logger
}

// NewModelDecomposer creates a model-backed decomposer over the given
// generator. The pattern decomposer is the mandatory fallback.
func NewModelDecomposer(cfg config.PlannerConfig, llmCfg config.LLMConfig, gen llm.Generator, pattern *PatternDecomposer, log *logger.Logger) *ModelDecomposer {
	return &ModelDecomposer{
		cfg:       cfg,
		llmCfg:    llmCfg,
		generator: gen,
		pattern:   pattern,
		log:       log.WithComponent("model-decomposer"),
	}
}

// Decompose asks the primary model for a plan, escalates once, and degrades
// to the pattern plan on any model or parse failure. The only error it
// returns is the caller's own cancellation.
func (d *ModelDecomposer) Decompose(ctx context.Context, query string, sc *schema.Context, mode ExecutionMode) (*QueryPlan, error) {
	fallback := d.pattern.Decompose(query, sc, mode)
	if d.generator == nil {
		return fallback, nil
	}

	prompt := d.buildPrompt(query, sc)

	for _, model := range []string{d.llmCfg.PrimaryModel, d.llmCfg.EscalationModel} {
		if model == "" {
			continue
		}
		plan, err := d.tryModel(ctx, model, prompt, query, sc, mode)
		if err == nil {
			return plan, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.log.Warn("model decomposition failed, degrading",
			"model", model, "error", err)
	}

	return fallback, nil
}

func (d *ModelDecomposer) tryModel(ctx context.Context, model, prompt, query string, sc *schema.Context, mode ExecutionMode) (*QueryPlan, error) {
	raw, err := d.generator.Generate(ctx, llm.GenerateRequest{
		Model:       model,
		Prompt:      prompt,
		Temperature: d.llmCfg.Temperature,
		MaxTokens:   d.llmCfg.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	var mp modelPlan
	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &mp); err != nil {
		return nil, errors.ParseError("model emitted invalid plan JSON", err)
	}
	if len(mp.SubQueries) == 0 {
		return nil, errors.ParseError("model plan has no sub-queries", nil)
	}

	return d.assemble(mp, model, query, sc, mode), nil
}

// assemble converts the model's JSON into a QueryPlan, clamping numeric
// fields into trusted ranges and recomputing the query type and validation
// strategy deterministically rather than trusting the model for them.
func (d *ModelDecomposer) assemble(mp modelPlan, model, query string, sc *schema.Context, mode ExecutionMode) *QueryPlan {
	plan := &QueryPlan{
		Query:                 query,
		Intent:                strings.TrimSpace(mp.Intent),
		Confidence:            clampConfidence(mp.Confidence),
		Mode:                  mode,
		QueryType:             ClassifyQueryType(query, d.cfg.KeywordMaxWords),
		Producer:              model,
		NeedsClarification:    mp.NeedsClarification,
		ClarificationQuestion: strings.TrimSpace(mp.ClarificationQuestion),
	}
	if plan.Intent == "" {
		plan.Intent = "answer: " + strings.TrimSpace(query)
	}

	for i, sq := range mp.SubQueries {
		q := strings.TrimSpace(sq.Query)
		if q == "" {
			continue
		}
		topK := sq.TopK
		if topK == 0 {
			topK = d.cfg.DefaultTopK
		}
		priority := sq.Priority
		if priority <= 0 {
			priority = i + 1
		}
		plan.SubQueries = append(plan.SubQueries, SubQuery{
			Query:     q,
			Purpose:   strings.TrimSpace(sq.Purpose),
			Priority:  priority,
			TopK:      clampInt(topK, MinTopK, MaxTopK),
			UseSparse: sq.UseSparse,
		})
	}
	if len(plan.SubQueries) == 0 {
		plan.SubQueries = []SubQuery{{
			Query:     query,
			Purpose:   "primary retrieval for the original query",
			Priority:  1,
			TopK:      d.cfg.DefaultTopK,
			UseSparse: true,
		}}
	}

	for _, op := range mp.Operations {
		plan.Operations = append(plan.Operations, ResultOperation{
			Type:   ParseOperationType(op.Type),
			Fields: op.Fields,
		})
	}

	for _, a := range mp.Assumptions {
		desc := strings.TrimSpace(a.Description)
		if desc == "" {
			continue
		}
		plan.Assumptions = append(plan.Assumptions, Assumption{
			Description: desc,
			Validation:  inferValidation(desc, sc),
			Confidence:  clampConfidence(a.Confidence),
		})
	}

	return plan
}

// inferValidation picks a check strategy from the assumption text. Anything
// unrecognized gets a live-results probe so it is at least testable.
func inferValidation(description string, sc *schema.Context) AssumptionValidation {
	lower := strings.ToLower(description)
	switch {
	case strings.Contains(lower, "tabular") || strings.Contains(lower, "table") || strings.Contains(lower, "spreadsheet"):
		return AssumptionValidation{Kind: CheckContentTypeExists, Expected: schema.ContentTypeTabular}
	case strings.Contains(lower, "column") || strings.Contains(lower, "field"):
		return AssumptionValidation{Kind: CheckFieldExists, Field: lastQuotedOrWord(description)}
	case strings.Contains(lower, "relationship") || strings.Contains(lower, "linked") || strings.Contains(lower, "connected"):
		return AssumptionValidation{Kind: CheckRelationshipExists}
	case strings.Contains(lower, "date") || strings.Contains(lower, "recent") || strings.Contains(lower, "time range"):
		return AssumptionValidation{Kind: CheckDateRangeValid}
	case strings.Contains(lower, "entity") || strings.Contains(lower, "exists"):
		if term := lastQuotedOrWord(description); term != "" {
			return AssumptionValidation{Kind: CheckEntityExists, Query: term, Expected: term}
		}
		fallthrough
	default:
		return AssumptionValidation{Kind: CheckResultsExist, Query: description}
	}
}

// lastQuotedOrWord pulls the most specific term out of an assumption
// description: a quoted phrase if present, otherwise the last capitalized run.
func lastQuotedOrWord(s string) string {
	if m := quotedRe.FindAllStringSubmatch(s, -1); len(m) > 0 {
		last := m[len(m)-1]
		if last[1] != "" {
			return last[1]
		}
		return last[2]
	}
	if terms := extractSpecificTerms(s); len(terms) > 0 {
		return terms[len(terms)-1]
	}
	return ""
}

// extractJSON recovers the JSON object from model output that may wrap it in
// prose or markdown fences: everything from the first '{' through the last
// '}' inclusive.
func extractJSON(raw string) (string, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", errors.ParseError("no JSON object in model output", nil)
	}
	return raw[start : end+1], nil
}

// clampConfidence keeps model confidences inside (0, 1]: zero or negative
// values are treated as a minimal-but-nonzero signal rather than certainty of
// failure.
func clampConfidence(v float64) float64 {
	if v < 0.1 {
		return 0.1
	}
	if v > 1 {
		return 1
	}
	return v
}

func (d *ModelDecomposer) buildPrompt(query string, sc *schema.Context) string {
	var b strings.Builder
	b.WriteString("You are a query planner for an evidence retrieval system.\n")
	b.WriteString("Decompose the user query into retrieval sub-queries and result operations.\n\n")
	if sc != nil {
		b.WriteString("Corpus context:\n")
		b.WriteString(sc.Summary())
		b.WriteString("\n")
	}
	b.WriteString("User query: ")
	b.WriteString(query)
	b.WriteString("\n\n")
	b.WriteString("Respond with ONLY a JSON object, no prose, shaped exactly like:\n")
	b.WriteString(`{
  "intent": "one sentence describing what the user wants",
  "confidence": 0.9,
  "subQueries": [
    {"query": "text to search", "purpose": "why", "priority": 1, "topK": 10, "useSparse": false}
  ],
  "operations": [
    {"type": "retrieve|compare|aggregate|trend|group_by|rank|diff|synthesize", "fields": []}
  ],
  "assumptions": [
    {"description": "claim about the data this plan depends on", "confidence": 0.8}
  ],
  "needsClarification": false,
  "clarificationQuestion": ""
}`)
	b.WriteString(fmt.Sprintf("\nUse between 1 and %d sub-queries. topK must be between %d and %d.\n", 6, MinTopK, MaxTopK))
	return b.String()
}
