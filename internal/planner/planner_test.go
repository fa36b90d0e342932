package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/popspot/ragengine"
)

type stubCaller struct {
	response string
	err      error
	requests []ragengine.ModelRequest
}

func (s *stubCaller) Invoke(ctx context.Context, req ragengine.ModelRequest) (string, error) {
	s.requests = append(s.requests, req)
	return s.response, s.err
}

func promptStub(in ragengine.PromptInput) (string, string) { return "system", "user" }

func testRegistry(t *testing.T) *ragengine.Registry {
	t.Helper()
	registry, err := ragengine.NewRegistry([]ragengine.StrategyDescriptor{
		{ID: ragengine.StrategyReactPlanner, Category: ragengine.CategoryPreRetrieval, BuildPrompt: promptStub},
		{ID: "AREA_SEARCH", Category: ragengine.CategoryRetrieval, BuildPrompt: promptStub,
			Tools: ragengine.ToolPolicy{Tools: []string{"search_areas"}, ToolCalling: true}},
		{ID: "BUILDING_SEARCH", Category: ragengine.CategoryRetrieval, BuildPrompt: promptStub,
			Tools: ragengine.ToolPolicy{Tools: []string{"search_buildings"}, ToolCalling: true}},
		{ID: "CONTEXT_AUGMENTATION", Category: ragengine.CategoryAugmentation, BuildPrompt: promptStub},
		{ID: ragengine.StrategyGeneralResponse, Category: ragengine.CategoryGeneration, BuildPrompt: promptStub},
		{ID: "REPORT_GENERATION", Category: ragengine.CategoryGeneration, BuildPrompt: promptStub},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return registry
}

func moderateRequirement() ragengine.Requirement {
	return ragengine.Requirement{
		UserIntent:      "compare areas",
		ProcessedQuery:  "compare Seongsu and Hongdae for a pop-up",
		ComplexityLevel: ragengine.ComplexityModerate,
	}
}

const validPlanResponse = "```json\n" + `{
  "thought": "needs area data then an answer",
  "actions": [
    {"step": 2, "strategy": "GENERAL_RESPONSE", "purpose": "answer using ${step_1}", "reasoning": "final", "expected_output": "answer"},
    {"step": 1, "strategy": "AREA_SEARCH", "purpose": "look up areas", "reasoning": "need data", "expected_output": "area facts"}
  ],
  "observation": "two steps suffice"
}` + "\n```"

func TestBuildPlanOrdersAndRenumbersSteps(t *testing.T) {
	p, err := New(&stubCaller{response: validPlanResponse}, testRegistry(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	plan, err := p.BuildPlan(context.Background(), moderateRequirement())
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(plan.Steps))
	}
	if plan.Steps[0].StrategyID != "AREA_SEARCH" || plan.Steps[1].StrategyID != "GENERAL_RESPONSE" {
		t.Errorf("step order = %s, %s", plan.Steps[0].StrategyID, plan.Steps[1].StrategyID)
	}
	for i, step := range plan.Steps {
		if step.StepNumber != i+1 {
			t.Errorf("Steps[%d].StepNumber = %d, want %d", i, step.StepNumber, i+1)
		}
		if step.GetStatus() != ragengine.StepStatusPending {
			t.Errorf("Steps[%d] status = %s, want pending", i, step.GetStatus())
		}
	}
}

func TestBuildPlanExposesRetrievalTools(t *testing.T) {
	caller := &stubCaller{response: validPlanResponse}
	p, _ := New(caller, testRegistry(t))

	if _, err := p.BuildPlan(context.Background(), moderateRequirement()); err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if len(caller.requests) != 1 {
		t.Fatalf("caller invoked %d times, want 1", len(caller.requests))
	}
	tools := caller.requests[0].Policy.Tools
	if len(tools) != 2 {
		t.Errorf("planner saw tools %v, want the two retrieval tools", tools)
	}
}

func TestBuildPlanRejectsUnknownStrategy(t *testing.T) {
	response := `{"thought": "t", "actions": [
		{"step": 1, "strategy": "TAROT_READING", "purpose": "p", "reasoning": "r", "expected_output": "o"},
		{"step": 2, "strategy": "GENERAL_RESPONSE", "purpose": "p", "reasoning": "r", "expected_output": "o"}
	], "observation": "o"}`
	p, _ := New(&stubCaller{response: response}, testRegistry(t))

	_, err := p.BuildPlan(context.Background(), moderateRequirement())
	if !ragengine.HasCode(err, ragengine.ErrCodeUnknownStrategy) {
		t.Errorf("error = %v, want %s", err, ragengine.ErrCodeUnknownStrategy)
	}
}

func TestBuildPlanRejectsMalformedOutput(t *testing.T) {
	p, _ := New(&stubCaller{response: "no plan here"}, testRegistry(t))

	_, err := p.BuildPlan(context.Background(), moderateRequirement())
	if !ragengine.HasCode(err, ragengine.ErrCodePlanGeneration) {
		t.Errorf("error = %v, want %s", err, ragengine.ErrCodePlanGeneration)
	}
}

func TestValidateShapeInvariant(t *testing.T) {
	registry := testRegistry(t)
	step := func(n int, id string) *ragengine.ExecutionStep {
		return &ragengine.ExecutionStep{StepNumber: n, StrategyID: id}
	}

	cases := []struct {
		name  string
		steps []*ragengine.ExecutionStep
		code  string
	}{
		{"empty plan", nil, ragengine.ErrCodePlanShape},
		{"no generation", []*ragengine.ExecutionStep{step(1, "AREA_SEARCH")}, ragengine.ErrCodePlanShape},
		{"generation not last", []*ragengine.ExecutionStep{
			step(1, "GENERAL_RESPONSE"), step(2, "AREA_SEARCH")}, ragengine.ErrCodePlanShape},
		{"two generations", []*ragengine.ExecutionStep{
			step(1, "AREA_SEARCH"), step(2, "REPORT_GENERATION"), step(3, "GENERAL_RESPONSE")},
			ragengine.ErrCodePlanShape},
		{"unknown strategy", []*ragengine.ExecutionStep{
			step(1, "NOPE"), step(2, "GENERAL_RESPONSE")}, ragengine.ErrCodeUnknownStrategy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(registry, &ragengine.ExecutionPlan{Steps: tc.steps})
			if !ragengine.HasCode(err, tc.code) {
				t.Errorf("Validate = %v, want code %s", err, tc.code)
			}
		})
	}

	valid := &ragengine.ExecutionPlan{Steps: []*ragengine.ExecutionStep{
		step(1, "AREA_SEARCH"), step(2, "CONTEXT_AUGMENTATION"), step(3, "REPORT_GENERATION"),
	}}
	if err := Validate(registry, valid); err != nil {
		t.Errorf("Validate rejected a well-shaped plan: %v", err)
	}
}

type mapCache struct {
	entries map[string]interface{}
}

func (c *mapCache) Get(ctx context.Context, key string) (interface{}, error) {
	if v, ok := c.entries[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}) error {
	c.entries[key] = value
	return nil
}

func TestBuildPlanServesFromCache(t *testing.T) {
	caller := &stubCaller{response: validPlanResponse}
	cache := &mapCache{entries: make(map[string]interface{})}
	p, _ := New(caller, testRegistry(t), WithCache(cache))

	req := moderateRequirement()
	if _, err := p.BuildPlan(context.Background(), req); err != nil {
		t.Fatalf("first BuildPlan failed: %v", err)
	}
	plan, err := p.BuildPlan(context.Background(), req)
	if err != nil {
		t.Fatalf("second BuildPlan failed: %v", err)
	}

	if len(caller.requests) != 1 {
		t.Errorf("caller invoked %d times, want 1 (second plan should come from cache)", len(caller.requests))
	}
	for i, step := range plan.Steps {
		if step.GetStatus() != ragengine.StepStatusPending {
			t.Errorf("cached plan Steps[%d] status = %s, want fresh pending step", i, step.GetStatus())
		}
	}
}
