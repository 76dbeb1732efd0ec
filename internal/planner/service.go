package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sentinelsearch/sentinel-planner/internal/bus"
	"github.com/sentinelsearch/sentinel-planner/internal/config"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/hash"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

// Decomposer turns a query plus schema context into a plan. The pattern and
// model decomposers both satisfy this.
type Decomposer interface {
	Decompose(ctx context.Context, query string, sc *schema.Context, mode ExecutionMode) (*QueryPlan, error)
}

// patternAdapter lifts the synchronous pattern decomposer to the Decomposer
// interface.
type patternAdapter struct {
	pattern *PatternDecomposer
}

func (a patternAdapter) Decompose(_ context.Context, query string, sc *schema.Context, mode ExecutionMode) (*QueryPlan, error) {
	return a.pattern.Decompose(query, sc, mode), nil
}

// SchemaProvider supplies the schema context a decomposition runs against.
type SchemaProvider interface {
	Build(ctx context.Context, scope schema.ScopeFilter) (*schema.Context, error)
}

// Service orchestrates the full planning flow: cache lookup, schema context,
// decomposition, assumption validation, confidence reaction, cache fill, and
// lifecycle events.
type Service struct {
	cfg        config.PlannerConfig
	decomposer Decomposer
	pattern    *PatternDecomposer
	validator  *Validator
	schemas    SchemaProvider
	cache      Cache
	events     bus.Bus
	log        *logger.Logger
}

// Options are the optional collaborators of a Service. A nil Cache disables
// caching, a nil Bus disables eventing, a nil Validator skips validation.
type Options struct {
	Validator *Validator
	Cache     Cache
	Bus       bus.Bus
}

// NewService wires a planning service. The decomposer is required; when the
// model path is disabled, pass NewPatternService instead.
func NewService(cfg config.PlannerConfig, decomposer Decomposer, schemas SchemaProvider, opts Options, log *logger.Logger) *Service {
	events := opts.Bus
	if events == nil {
		events = bus.Bus(noBus{})
	}
	return &Service{
		cfg:        cfg,
		decomposer: decomposer,
		pattern:    NewPatternDecomposer(cfg),
		validator:  opts.Validator,
		schemas:    schemas,
		cache:      opts.Cache,
		events:     events,
		log:        log.WithComponent("planner"),
	}
}

// NewPatternService builds a service that never touches a model.
func NewPatternService(cfg config.PlannerConfig, schemas SchemaProvider, opts Options, log *logger.Logger) *Service {
	return NewService(cfg, patternAdapter{NewPatternDecomposer(cfg)}, schemas, opts, log)
}

type noBus struct{}

func (noBus) Publish(context.Context, string, bus.Event) error     { return nil }
func (noBus) Subscribe(context.Context, string, bus.Handler) error { return nil }
func (noBus) Close() error                                         { return nil }

// Request carries one planning call.
type Request struct {
	Query string

	// Mode overrides the configured default execution mode when non-empty.
	Mode string

	// Scope restricts the schema context to a corpus subset.
	Scope schema.ScopeFilter

	// SkipValidation produces the plan without live-data checks.
	SkipValidation bool
}

// Plan produces a validated query plan. The only errors it returns are an
// empty query and the caller's own cancellation; every degradation inside is
// absorbed into the plan itself.
func (s *Service) Plan(ctx context.Context, req Request) (*QueryPlan, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, errEmptyQuery
	}

	start := time.Now()
	mode := s.mode(req.Mode)
	log := s.log.WithQuery(query)

	sc := s.buildSchema(ctx, req.Scope, log)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	key := s.planKey(query, sc, mode)
	if plan := s.cacheGet(ctx, key, log); plan != nil {
		s.publish(ctx, bus.TopicPlanCacheHit, plan)
		return plan, nil
	}

	plan, err := s.decompose(ctx, query, sc, mode)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, bus.TopicPlanCreated, plan)

	if s.validator != nil && !req.SkipValidation {
		plan, err = s.validate(ctx, plan, sc)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, bus.TopicPlanValidated, plan)
	}

	plan = plan.withLatency(time.Since(start))

	s.cacheSet(ctx, key, plan, log)

	log.Info("plan ready",
		"producer", plan.Producer,
		"queryType", plan.QueryType,
		"confidence", plan.Confidence,
		"subQueries", len(plan.SubQueries),
		"needsClarification", plan.NeedsClarification,
		"latency", plan.PlanningTime)
	return plan, nil
}

var errEmptyQuery = fmt.Errorf("query cannot be empty")

func (s *Service) mode(override string) ExecutionMode {
	if override != "" {
		return ParseExecutionMode(override)
	}
	return ParseExecutionMode(s.cfg.DefaultMode)
}

// buildSchema fetches the schema context; a failure degrades to planning
// without one.
func (s *Service) buildSchema(ctx context.Context, scope schema.ScopeFilter, log *logger.Logger) *schema.Context {
	if s.schemas == nil {
		return nil
	}
	sc, err := s.schemas.Build(ctx, scope)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("schema context unavailable, planning without it", "error", err)
		}
		return nil
	}
	return sc
}

func (s *Service) planKey(query string, sc *schema.Context, mode ExecutionMode) string {
	fp := ""
	if sc != nil {
		fp = sc.Fingerprint()
	}
	return hash.PlanKey(query, fp, string(mode))
}

func (s *Service) cacheGet(ctx context.Context, key string, log *logger.Logger) *QueryPlan {
	if s.cache == nil {
		return nil
	}
	plan, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Warn("plan cache read failed", "error", err)
		return nil
	}
	return plan
}

func (s *Service) cacheSet(ctx context.Context, key string, plan *QueryPlan, log *logger.Logger) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, plan); err != nil {
		log.Warn("plan cache write failed", "error", err)
	}
}

// decompose runs the decomposer inside the planning deadline. Traditional
// mode is served by the pattern path alone. A deadline hit is an internal
// degradation handled by the decomposer's fallback, not an error, so only
// the parent context's cancellation propagates.
func (s *Service) decompose(ctx context.Context, query string, sc *schema.Context, mode ExecutionMode) (*QueryPlan, error) {
	if mode == ModeTraditional {
		return s.pattern.Decompose(query, sc, mode), nil
	}

	budget := time.Duration(s.cfg.MaxPlanningTimeSeconds) * time.Second
	planCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	plan, err := s.decomposer.Decompose(planCtx, query, sc, mode)
	if err == nil {
		return plan, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	// The budget expired mid-model-call; the decomposer could not fall back
	// in time, so fall back here.
	s.log.WithQuery(query).Warn("planning budget exhausted, using pattern plan", "error", err)
	return s.pattern.Decompose(query, sc, mode), nil
}

// validate checks assumptions and reacts to failures: a failed assumption the
// plan leaned on hard halves the confidence, and dipping under the
// clarification threshold turns the plan into a clarification request.
func (s *Service) validate(ctx context.Context, plan *QueryPlan, sc *schema.Context) (*QueryPlan, error) {
	validated, err := s.validator.Validate(ctx, plan, sc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return plan, nil
	}

	// One failed high-prior assumption is as bad as several: the penalty
	// applies once.
	confidence := validated.Confidence
	for _, a := range validated.FailedAssumptions() {
		if a.Confidence > s.cfg.HighConfidencePrior {
			confidence = validated.Confidence * s.cfg.FailedAssumptionPenalty
			break
		}
	}

	// Clarification is a reaction to the penalty, not to low confidence in
	// general: a plan that honestly reports low confidence with every
	// assumption holding is returned as-is.
	needs := validated.NeedsClarification
	question := validated.ClarificationQuestion
	if confidence != validated.Confidence && confidence < s.cfg.ClarificationThreshold && !needs {
		needs = true
		question = clarificationQuestion(validated)
	}

	if confidence == validated.Confidence && needs == validated.NeedsClarification {
		return validated, nil
	}
	return validated.withClarification(confidence, needs, question), nil
}

// clarificationQuestion names the failed checks so the caller can ask the
// user something concrete.
func clarificationQuestion(plan *QueryPlan) string {
	failed := plan.FailedAssumptions()
	if len(failed) == 0 {
		return "The query is ambiguous. Can you rephrase it more specifically?"
	}
	reasons := make([]string, 0, len(failed))
	for _, a := range failed {
		if a.ValidationResult != "" {
			reasons = append(reasons, a.ValidationResult)
		} else {
			reasons = append(reasons, a.Description)
		}
	}
	return fmt.Sprintf("The plan relied on assumptions the data does not support (%s). Can you clarify what you are looking for?",
		strings.Join(reasons, "; "))
}

// publish emits a lifecycle event and never lets bus trouble affect planning.
func (s *Service) publish(ctx context.Context, topic string, plan *QueryPlan) {
	payload, err := json.Marshal(planEvent{
		Query:      plan.Query,
		QueryType:  string(plan.QueryType),
		Producer:   plan.Producer,
		Confidence: plan.Confidence,
	})
	if err != nil {
		return
	}
	event := bus.Event{
		ID:        hash.SHA256Short([]byte(plan.Query+topic+time.Now().Format(time.RFC3339Nano)), 16),
		Type:      topic,
		Source:    "sentinel-planner",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if err := s.events.Publish(ctx, topic, event); err != nil {
		s.log.Warn("event publish failed", "topic", topic, "error", err)
	}
}

type planEvent struct {
	Query      string  `json:"query"`
	QueryType  string  `json:"queryType"`
	Producer   string  `json:"producer"`
	Confidence float64 `json:"confidence"`
}
