package planner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sentinelsearch/sentinel-planner/internal/bus"
	"github.com/sentinelsearch/sentinel-planner/internal/pkg/logger"
	"github.com/sentinelsearch/sentinel-planner/internal/schema"
)

type fakeSchemas struct {
	sc    *schema.Context
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeSchemas) Build(_ context.Context, _ schema.ScopeFilter) (*schema.Context, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.sc, f.err
}

func newTestService(t *testing.T, gen *fakeGenerator, opts Options) *Service {
	t.Helper()
	cfg := testPlannerConfig()
	log := logger.Default()
	schemas := &fakeSchemas{sc: tabularContext()}

	if gen == nil {
		return NewPatternService(cfg, schemas, opts, log)
	}
	pattern := NewPatternDecomposer(cfg)
	decomposer := NewModelDecomposer(cfg, testLLMConfig(), gen, pattern, log)
	return NewService(cfg, decomposer, schemas, opts, log)
}

func TestPlanEmptyQuery(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	if _, err := svc.Plan(context.Background(), Request{Query: "   "}); err == nil {
		t.Error("expected an error for an empty query")
	}
}

func TestPlanPatternOnly(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	plan, err := svc.Plan(context.Background(), Request{Query: "compare Alpha and Beta"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Producer != ProducerPattern {
		t.Errorf("Producer = %q, want %q", plan.Producer, ProducerPattern)
	}
	if plan.PlanningTime <= 0 {
		t.Error("planning latency not recorded")
	}
	if plan.Mode != ModeHybrid {
		t.Errorf("Mode = %v, want configured default hybrid", plan.Mode)
	}
}

func TestPlanModeOverride(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	plan, err := svc.Plan(context.Background(), Request{Query: "error", Mode: "traditional"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.Mode != ModeTraditional {
		t.Errorf("Mode = %v, want %v", plan.Mode, ModeTraditional)
	}
}

func TestPlanTraditionalModeSkipsModel(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{"tiny": validModelJSON}}
	svc := newTestService(t, gen, Options{})

	plan, err := svc.Plan(context.Background(), Request{Query: "total revenue", Mode: "traditional"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if gen.callCount() != 0 {
		t.Errorf("traditional mode made %d model calls, want 0", gen.callCount())
	}
	if plan.Producer != ProducerPattern {
		t.Errorf("Producer = %q, want %q", plan.Producer, ProducerPattern)
	}
}

func TestPlanModelFailureDegrades(t *testing.T) {
	gen := &fakeGenerator{errs: map[string]error{
		"tiny": fmt.Errorf("down"),
		"big":  fmt.Errorf("down"),
	}}
	svc := newTestService(t, gen, Options{})

	plan, err := svc.Plan(context.Background(), Request{Query: "total revenue"})
	if err != nil {
		t.Fatalf("model failure must not surface: %v", err)
	}
	if plan.Producer != ProducerPattern {
		t.Errorf("Producer = %q, want %q", plan.Producer, ProducerPattern)
	}
}

func TestPlanCacheHitSkipsModel(t *testing.T) {
	gen := &fakeGenerator{responses: map[string]string{"tiny": validModelJSON}}
	cache := newMemoryCache(time.Minute)
	svc := newTestService(t, gen, Options{Cache: cache})

	first, err := svc.Plan(context.Background(), Request{Query: "total revenue this quarter"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	callsAfterFirst := gen.callCount()
	if callsAfterFirst == 0 {
		t.Fatal("first plan should have called the model")
	}

	second, err := svc.Plan(context.Background(), Request{Query: "total revenue this quarter"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if gen.callCount() != callsAfterFirst {
		t.Errorf("cache hit made %d extra model calls", gen.callCount()-callsAfterFirst)
	}
	if second.Intent != first.Intent || second.Producer != first.Producer {
		t.Error("cached plan differs from the original")
	}
}

func TestPlanCacheKeyedByMode(t *testing.T) {
	cache := newMemoryCache(time.Minute)
	svc := newTestService(t, nil, Options{Cache: cache})

	hybrid, err := svc.Plan(context.Background(), Request{Query: "error", Mode: "hybrid"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	traditional, err := svc.Plan(context.Background(), Request{Query: "error", Mode: "traditional"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if hybrid.Mode == traditional.Mode {
		t.Error("mode change must not hit the other mode's cache entry")
	}
}

func TestPlanFailedHighPriorAssumptionHalvesConfidence(t *testing.T) {
	// Tabular assumption (prior 0.8 > 0.7) fails: no tabular content.
	counter := &fakeCounter{counts: map[string]uint64{}}
	validator := newTestValidator(nil, nil, nil, counter)
	svc := newTestService(t, nil, Options{Validator: validator})

	unvalidated, err := svc.Plan(context.Background(), Request{Query: "total revenue", SkipValidation: true})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	validated, err := svc.Plan(context.Background(), Request{Query: "total revenue"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	want := unvalidated.Confidence * 0.5
	if math.Abs(validated.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want exactly half of %v", validated.Confidence, unvalidated.Confidence)
	}
}

func TestPlanFailedLowPriorAssumptionKeepsConfidence(t *testing.T) {
	// Entity assumptions carry prior 0.6, under the 0.7 bar: failing them
	// must not touch confidence.
	entities := &fakeEntities{known: map[string]bool{}}
	validator := newTestValidator(nil, nil, entities, nil)
	svc := newTestService(t, nil, Options{Validator: validator})

	plan, err := svc.Plan(context.Background(), Request{Query: `compare "Alpha" and "Beta"`})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	want := testPlannerConfig().BaseConfidence * 0.9
	if math.Abs(plan.Confidence-want) > 1e-9 {
		t.Errorf("Confidence = %v, want %v", plan.Confidence, want)
	}
	if len(plan.FailedAssumptions()) != 2 {
		t.Errorf("failed assumptions = %d, want 2", len(plan.FailedAssumptions()))
	}
}

func TestPlanClarificationBelowThreshold(t *testing.T) {
	// Aggregation at 0.7*0.9 = 0.63; the failed high-prior tabular
	// assumption halves it to 0.315, under the 0.5 threshold.
	counter := &fakeCounter{counts: map[string]uint64{}}
	validator := newTestValidator(nil, nil, nil, counter)
	svc := newTestService(t, nil, Options{Validator: validator})

	plan, err := svc.Plan(context.Background(), Request{Query: "total revenue"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if !plan.NeedsClarification {
		t.Fatal("expected clarification below the threshold")
	}
	if !strings.Contains(plan.ClarificationQuestion, "tabular") {
		t.Errorf("clarification question should name the failed check, got %q", plan.ClarificationQuestion)
	}
}

func TestPlanLowConfidenceWithoutFailureSkipsClarification(t *testing.T) {
	// A model that honestly reports low confidence while every assumption
	// holds gets no penalty and no clarification, however low the number.
	lowConfidenceJSON := `{
		"intent": "aggregate revenue",
		"confidence": 0.3,
		"subQueries": [
			{"query": "total revenue", "purpose": "primary", "priority": 1, "topK": 10, "useSparse": true}
		],
		"operations": [{"type": "aggregate", "fields": ["revenue"]}],
		"assumptions": [{"description": "tabular revenue data exists", "confidence": 0.9}]
	}`
	gen := &fakeGenerator{responses: map[string]string{"tiny": lowConfidenceJSON}}
	counter := &fakeCounter{counts: map[string]uint64{"tabular": 5}}
	validator := newTestValidator(nil, nil, nil, counter)
	svc := newTestService(t, gen, Options{Validator: validator})

	plan, err := svc.Plan(context.Background(), Request{Query: "total revenue"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if math.Abs(plan.Confidence-0.3) > 1e-9 {
		t.Fatalf("Confidence = %v, want the model's 0.3 untouched", plan.Confidence)
	}
	if plan.NeedsClarification {
		t.Errorf("low confidence with all assumptions passing must not request clarification (confidence %v)", plan.Confidence)
	}
}

func TestPlanNoClarificationAboveThreshold(t *testing.T) {
	counter := &fakeCounter{counts: map[string]uint64{"tabular": 10}}
	validator := newTestValidator(nil, nil, nil, counter)
	svc := newTestService(t, nil, Options{Validator: validator})

	plan, err := svc.Plan(context.Background(), Request{Query: "total revenue"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.NeedsClarification {
		t.Errorf("unexpected clarification at confidence %v", plan.Confidence)
	}
}

func TestPlanCancellationPropagates(t *testing.T) {
	svc := newTestService(t, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Plan(ctx, Request{Query: "error"}); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPlanSchemaFailureDegrades(t *testing.T) {
	cfg := testPlannerConfig()
	schemas := &fakeSchemas{err: fmt.Errorf("store down")}
	svc := NewPatternService(cfg, schemas, Options{}, logger.Default())

	plan, err := svc.Plan(context.Background(), Request{Query: "error"})
	if err != nil {
		t.Fatalf("schema failure must not surface: %v", err)
	}
	if plan.Producer != ProducerPattern {
		t.Errorf("Producer = %q", plan.Producer)
	}
}

func TestPlanPublishesLifecycleEvents(t *testing.T) {
	events := bus.NewMemoryBus()
	var mu sync.Mutex
	seen := map[string]int{}
	for _, topic := range []string{bus.TopicPlanCreated, bus.TopicPlanValidated, bus.TopicPlanCacheHit} {
		if err := events.Subscribe(context.Background(), topic, func(_ context.Context, e bus.Event) error {
			mu.Lock()
			seen[e.Type]++
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}

	counter := &fakeCounter{counts: map[string]uint64{"tabular": 1}}
	validator := newTestValidator(nil, nil, nil, counter)
	cache := newMemoryCache(time.Minute)
	svc := newTestService(t, nil, Options{Validator: validator, Cache: cache, Bus: events})

	ctx := context.Background()
	if _, err := svc.Plan(ctx, Request{Query: "total revenue"}); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if _, err := svc.Plan(ctx, Request{Query: "total revenue"}); err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[bus.TopicPlanCreated] != 1 {
		t.Errorf("plan.created events = %d, want 1", seen[bus.TopicPlanCreated])
	}
	if seen[bus.TopicPlanValidated] != 1 {
		t.Errorf("plan.validated events = %d, want 1", seen[bus.TopicPlanValidated])
	}
	if seen[bus.TopicPlanCacheHit] != 1 {
		t.Errorf("plan.cache.hit events = %d, want 1", seen[bus.TopicPlanCacheHit])
	}
}

func TestPlanValidatorErrorAbsorbed(t *testing.T) {
	// A validator whose collaborators all error leaves every assumption
	// unknown; the plan still comes back.
	counter := &fakeCounter{err: fmt.Errorf("store down")}
	validator := newTestValidator(nil, nil, nil, counter)
	svc := newTestService(t, nil, Options{Validator: validator})

	plan, err := svc.Plan(context.Background(), Request{Query: "total revenue"})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	for _, a := range plan.Assumptions {
		if a.Validated != ValidationUnknown {
			t.Errorf("assumption %q Validated = %v, want unknown", a.Description, a.Validated)
		}
	}
	if plan.NeedsClarification {
		t.Error("unknown validations must not trigger clarification")
	}
}
