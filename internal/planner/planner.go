// Package planner turns a classified requirement into a validated execution
// plan by invoking the REACT_PLANNER strategy and treating its JSON output as
// untrusted external input.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/popspot/ragengine"
)

// Planner implements ragengine.Planner on top of the model-call capability
// and the strategy registry.
type Planner struct {
	caller   ragengine.ModelCaller
	registry *ragengine.Registry
	cache    ragengine.Cache
}

// Option represents an option for configuring the Planner.
type Option func(*Planner)

// WithCache enables caching of validated plans, keyed by the requirement and
// the registered strategy set.
func WithCache(cache ragengine.Cache) Option {
	return func(p *Planner) {
		p.cache = cache
	}
}

// New creates a planner. The registry must contain the REACT_PLANNER
// strategy.
func New(caller ragengine.ModelCaller, registry *ragengine.Registry, options ...Option) (*Planner, error) {
	if caller == nil {
		return nil, ragengine.NewConfigurationError("model caller is required", nil)
	}
	if registry == nil {
		return nil, ragengine.NewConfigurationError("strategy registry is required", nil)
	}
	if _, ok := registry.FindByID(ragengine.StrategyReactPlanner); !ok {
		return nil, ragengine.NewConfigurationError("registry is missing required strategy '"+ragengine.StrategyReactPlanner+"'", nil)
	}

	p := &Planner{caller: caller, registry: registry}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// plannerAction mirrors one entry of the model's action list.
type plannerAction struct {
	Step           int    `json:"step"`
	Strategy       string `json:"strategy"`
	Purpose        string `json:"purpose"`
	Reasoning      string `json:"reasoning"`
	ExpectedOutput string `json:"expected_output"`
}

// plannerResponse mirrors the model's full planning output.
type plannerResponse struct {
	Thought     string          `json:"thought"`
	Actions     []plannerAction `json:"actions"`
	Observation string          `json:"observation"`
}

// BuildPlan invokes the planner strategy and maps its output into a
// validated ExecutionPlan. Validation happens entirely before any step
// executes: a plan referencing an unknown strategy or violating the shape
// invariant is rejected here.
func (p *Planner) BuildPlan(ctx context.Context, req ragengine.Requirement) (*ragengine.ExecutionPlan, error) {
	cacheKey := p.cacheKey(req)
	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, cacheKey); err == nil {
			if resp, ok := cached.(*plannerResponse); ok {
				// Rebuild fresh pending steps and re-validate: the cached
				// response may predate the current registry.
				plan := toPlan(resp)
				if err := Validate(p.registry, plan); err == nil {
					log.Printf("Execution plan served from cache (steps: %d)", len(plan.Steps))
					return plan, nil
				}
			}
		}
	}

	desc, _ := p.registry.FindByID(ragengine.StrategyReactPlanner)

	system, user := desc.BuildPrompt(ragengine.PromptInput{
		Requirement: req,
		Strategies:  p.renderCatalog(),
	})

	// The planner is allowed to see every retrieval capability, even though
	// it only emits a plan referencing strategy ids.
	policy := desc.Tools
	policy.Tools = p.registry.RetrievalToolNames()

	text, err := p.caller.Invoke(ctx, ragengine.ModelRequest{
		System: system,
		Prompt: user,
		Policy: policy,
	})
	if err != nil {
		return nil, ragengine.NewPlanGenerationError(err)
	}

	raw := ragengine.ExtractJSONObject(text)
	if raw == "" {
		return nil, ragengine.NewPlanGenerationError(fmt.Errorf("no JSON object in response"))
	}

	var resp plannerResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, ragengine.NewPlanGenerationError(err)
	}

	plan := toPlan(&resp)
	if err := Validate(p.registry, plan); err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, cacheKey, &resp); err != nil {
			log.Printf("Plan cache store failed: %v", err)
		}
	}

	log.Printf("Execution plan generated (steps: %d, complexity: %s)", len(plan.Steps), req.ComplexityLevel)
	return plan, nil
}

// toPlan maps a planner response into an ExecutionPlan with fresh pending
// steps, ordered by the model's step field and renumbered 1-based without
// gaps.
func toPlan(resp *plannerResponse) *ragengine.ExecutionPlan {
	actions := make([]plannerAction, len(resp.Actions))
	copy(actions, resp.Actions)
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Step < actions[j].Step })

	steps := make([]*ragengine.ExecutionStep, 0, len(actions))
	for i, action := range actions {
		steps = append(steps, &ragengine.ExecutionStep{
			StepNumber:     i + 1,
			StrategyID:     action.Strategy,
			Purpose:        action.Purpose,
			Rationale:      action.Reasoning,
			ExpectedOutput: action.ExpectedOutput,
		})
	}

	return &ragengine.ExecutionPlan{
		Thought:     resp.Thought,
		Steps:       steps,
		Observation: resp.Observation,
	}
}

// Validate enforces the plan invariants against a registry: a non-empty step
// list, every strategy id resolving, and exactly one GENERATION step sitting
// last. It is exported so fallback paths and tests can check synthesized
// plans the same way.
func Validate(registry *ragengine.Registry, plan *ragengine.ExecutionPlan) error {
	if plan == nil || len(plan.Steps) == 0 {
		return ragengine.NewPlanShapeError("plan has no steps")
	}

	generationCount := 0
	for i, step := range plan.Steps {
		desc, ok := registry.FindByID(step.StrategyID)
		if !ok {
			return ragengine.NewUnknownStrategyError(step.StrategyID)
		}
		if desc.Category == ragengine.CategoryGeneration {
			generationCount++
			if i != len(plan.Steps)-1 {
				return ragengine.NewPlanShapeError(fmt.Sprintf("GENERATION step '%s' is not last", step.StrategyID))
			}
		}
	}

	switch {
	case generationCount == 0:
		return ragengine.NewPlanShapeError("plan has no GENERATION step")
	case generationCount > 1:
		return ragengine.NewPlanShapeError(fmt.Sprintf("plan has %d GENERATION steps, want exactly one", generationCount))
	}
	return nil
}

// renderCatalog enumerates the RETRIEVAL, AUGMENTATION and GENERATION
// strategies programmatically so the emitted plan can only reference real
// ids.
func (p *Planner) renderCatalog() string {
	var b strings.Builder
	for _, category := range []ragengine.StrategyCategory{
		ragengine.CategoryRetrieval,
		ragengine.CategoryAugmentation,
		ragengine.CategoryGeneration,
	} {
		descriptors := p.registry.ByCategory(category)
		if len(descriptors) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s strategies:\n", category)
		for _, desc := range descriptors {
			fmt.Fprintf(&b, "- %s: %s\n", desc.ID, desc.Description)
		}
	}
	return b.String()
}
