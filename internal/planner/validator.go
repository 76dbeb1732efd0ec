package planner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/llm"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

// SearchResult is one scored hit from the evidence store.
type SearchResult struct {
	ID         string
	Similarity float32
}

// Searcher runs dense vector search against the evidence store.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
}

// EntityReader answers existence probes against the entity store.
type EntityReader interface {
	EntityExists(ctx context.Context, nameContains string) (bool, error)
}

// ContentCounter counts evidence of a given content type.
type ContentCounter interface {
	CountContentType(ctx context.Context, contentType string) (uint64, error)
}

// Validator checks a plan's assumptions against live data. Checks run in
// parallel; a check that cannot run leaves its assumption unknown rather
// than failing the plan.
type Validator struct {
	cfg      config.PlannerConfig
	embedder llm.Embedder
	searcher Searcher
	entities EntityReader
	counter  ContentCounter
	log      *logger.Logger
}

// NewValidator creates an assumption validator. Any collaborator may be nil;
// checks that depend on it report unknown.
func NewValidator(cfg config.PlannerConfig, embedder llm.Embedder, searcher Searcher, entities EntityReader, counter ContentCounter, log *logger.Logger) *Validator {
	return &Validator{
		cfg:      cfg,
		embedder: embedder,
		searcher: searcher,
		entities: entities,
		counter:  counter,
		log:      log.WithComponent("validator"),
	}
}

// Validate checks every assumption concurrently and returns a copy of the
// plan with validation states filled in. Only the Validated and
// ValidationResult fields change; the validator never rewrites the plan's
// structure. The returned error is non-nil only on caller cancellation.
func (v *Validator) Validate(ctx context.Context, plan *QueryPlan, sc *schema.Context) (*QueryPlan, error) {
	if len(plan.Assumptions) == 0 {
		return plan, nil
	}

	validated := append([]Assumption(nil), plan.Assumptions...)

	g, gctx := errgroup.WithContext(ctx)
	for i := range validated {
		g.Go(func() error {
			state, result := v.check(gctx, validated[i].Validation, sc)
			validated[i].Validated = state
			validated[i].ValidationResult = result
			return nil
		})
	}
	// Goroutines only write disjoint slice slots and never return errors.
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return plan.withAssumptions(validated), nil
}

// check runs one validation. A collaborator error means we could not tell,
// which is unknown, not failed.
func (v *Validator) check(ctx context.Context, val AssumptionValidation, sc *schema.Context) (ValidationState, string) {
	switch val.Kind {
	case CheckContentTypeExists:
		return v.checkContentType(ctx, val.Expected)
	case CheckResultsExist:
		return v.checkResultsExist(ctx, val.Query)
	case CheckEntityExists:
		return v.checkEntityExists(ctx, val.Query)
	case CheckFieldExists:
		return checkSchemaField(sc, val.Field)
	case CheckRelationshipExists:
		return checkSchemaRelationships(sc)
	case CheckDateRangeValid:
		return checkSchemaDates(sc)
	default:
		return ValidationUnknown, "no check registered for this assumption"
	}
}

func (v *Validator) checkContentType(ctx context.Context, contentType string) (ValidationState, string) {
	if v.counter == nil {
		return ValidationUnknown, "content counting unavailable"
	}
	n, err := v.counter.CountContentType(ctx, contentType)
	if err != nil {
		v.log.Warn("content type check failed", "contentType", contentType, "error", err)
		return ValidationUnknown, "content type check failed"
	}
	if n == 0 {
		return ValidationFailed, fmt.Sprintf("no %s content in the corpus", contentType)
	}
	return ValidationPassed, fmt.Sprintf("%d %s documents", n, contentType)
}

// checkResultsExist embeds the probe text and requires the top hit to clear
// the similarity floor. One result is enough to answer "does anything match".
func (v *Validator) checkResultsExist(ctx context.Context, query string) (ValidationState, string) {
	if v.embedder == nil || v.searcher == nil {
		return ValidationUnknown, "search probing unavailable"
	}
	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		v.log.Warn("probe embedding failed", "error", err)
		return ValidationUnknown, "probe embedding failed"
	}
	hits, err := v.searcher.Search(ctx, vec, 1)
	if err != nil {
		v.log.Warn("probe search failed", "error", err)
		return ValidationUnknown, "probe search failed"
	}
	for _, h := range hits {
		if float64(h.Similarity) >= v.cfg.SimilarityFloor {
			return ValidationPassed, fmt.Sprintf("best match %.2f", h.Similarity)
		}
	}
	return ValidationFailed, fmt.Sprintf("no results above similarity %.2f", v.cfg.SimilarityFloor)
}

func (v *Validator) checkEntityExists(ctx context.Context, name string) (ValidationState, string) {
	if v.entities == nil {
		return ValidationUnknown, "entity store unavailable"
	}
	ok, err := v.entities.EntityExists(ctx, name)
	if err != nil {
		v.log.Warn("entity check failed", "entity", name, "error", err)
		return ValidationUnknown, "entity check failed"
	}
	if !ok {
		return ValidationFailed, fmt.Sprintf("no entity matching %q", name)
	}
	return ValidationPassed, fmt.Sprintf("entity %q found", name)
}

func checkSchemaField(sc *schema.Context, field string) (ValidationState, string) {
	if sc == nil {
		return ValidationUnknown, "schema context unavailable"
	}
	if field == "" {
		return ValidationUnknown, "no field named in assumption"
	}
	if sc.HasColumn(field) {
		return ValidationPassed, fmt.Sprintf("column %q known", field)
	}
	return ValidationFailed, fmt.Sprintf("no column named %q", field)
}

func checkSchemaRelationships(sc *schema.Context) (ValidationState, string) {
	if sc == nil {
		return ValidationUnknown, "schema context unavailable"
	}
	if len(sc.RelationshipTypes) == 0 {
		return ValidationFailed, "no relationship types in the graph"
	}
	return ValidationPassed, fmt.Sprintf("%d relationship types", len(sc.RelationshipTypes))
}

func checkSchemaDates(sc *schema.Context) (ValidationState, string) {
	if sc == nil {
		return ValidationUnknown, "schema context unavailable"
	}
	if sc.EarliestDocument.IsZero() || sc.LatestDocument.IsZero() {
		return ValidationFailed, "documents carry no modification dates"
	}
	return ValidationPassed, fmt.Sprintf("documents span %s to %s",
		sc.EarliestDocument.Format("2006-01-02"), sc.LatestDocument.Format("2006-01-02"))
}
