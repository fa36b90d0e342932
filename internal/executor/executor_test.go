package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/popspot/ragengine"
	"github.com/popspot/ragengine/internal/statushub"
)

type scriptedResponse struct {
	text string
	err  error
}

// scriptedCaller replays a fixed sequence of responses, one per Invoke.
type scriptedCaller struct {
	mu       sync.Mutex
	script   []scriptedResponse
	requests []ragengine.ModelRequest
}

func (s *scriptedCaller) Invoke(ctx context.Context, req ragengine.ModelRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.script) == 0 {
		return "", errors.New("unexpected model call")
	}
	next := s.script[0]
	s.script = s.script[1:]
	return next.text, next.err
}

func (s *scriptedCaller) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func promptStub(in ragengine.PromptInput) (string, string) {
	return "system", in.Purpose + "\n" + in.Context
}

func testRegistry(t *testing.T) *ragengine.Registry {
	t.Helper()
	registry, err := ragengine.NewRegistry([]ragengine.StrategyDescriptor{
		{ID: "AREA_SEARCH", Category: ragengine.CategoryRetrieval, BuildPrompt: promptStub,
			Display: ragengine.DisplayInfo{InProgress: "Looking into candidate areas.", Completed: "Area information gathered."},
			Tools:   ragengine.ToolPolicy{Tools: []string{"search_areas"}, ToolCalling: true}},
		{ID: "CONTEXT_AUGMENTATION", Category: ragengine.CategoryAugmentation, BuildPrompt: promptStub,
			Display: ragengine.DisplayInfo{InProgress: "Consolidating.", Completed: "Consolidated."}},
		{ID: ragengine.StrategyGeneralResponse, Category: ragengine.CategoryGeneration, BuildPrompt: promptStub,
			Display: ragengine.DisplayInfo{InProgress: "Writing your answer.", Completed: "Answer ready."}},
		{ID: ragengine.StrategyTitleGeneration, Category: ragengine.CategoryGeneration, BuildPrompt: promptStub},
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return registry
}

func twoStepPlan() *ragengine.ExecutionPlan {
	return &ragengine.ExecutionPlan{
		Thought: "search then answer",
		Steps: []*ragengine.ExecutionStep{
			{StepNumber: 1, StrategyID: "AREA_SEARCH", Purpose: "find areas"},
			{StepNumber: 2, StrategyID: ragengine.StrategyGeneralResponse, Purpose: "answer using ${step_1}"},
		},
	}
}

func requirement() ragengine.Requirement {
	return ragengine.Requirement{
		UserIntent:      "find a pop-up area",
		ProcessedQuery:  "good areas for a beauty pop-up",
		ComplexityLevel: ragengine.ComplexityModerate,
	}
}

func drainEvents(events <-chan statushub.Event) []statushub.Event {
	var out []statushub.Event
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, event)
		case <-time.After(100 * time.Millisecond):
			return out
		}
	}
}

func phases(events []statushub.Event) []statushub.Phase {
	out := make([]statushub.Phase, len(events))
	for i, event := range events {
		out[i] = event.Phase
	}
	return out
}

func TestExecutePlanRunsStepsInOrder(t *testing.T) {
	caller := &scriptedCaller{script: []scriptedResponse{
		{text: "Seongsu looks strong"},
		{text: "Go with Seongsu."},
	}}
	hub := statushub.NewHub()
	defer hub.Close()
	events, cancel, _ := hub.Subscribe("exec-1")
	defer cancel()

	e, err := New(caller, testRegistry(t), WithHub(hub))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	answer, trace, err := e.ExecutePlan(context.Background(), "exec-1", requirement(), twoStepPlan())
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if answer != "Go with Seongsu." {
		t.Errorf("answer = %q", answer)
	}
	if trace.FallbackUsed {
		t.Error("FallbackUsed = true on a clean run")
	}
	for i, status := range []string{"done", "done"} {
		if trace.Steps[i].Status != status {
			t.Errorf("trace step %d status = %s, want %s", i+1, trace.Steps[i].Status, status)
		}
	}

	// The second step's prompt must carry the first step's result.
	second := caller.requests[1]
	if !strings.Contains(second.Prompt, "Seongsu looks strong") {
		t.Errorf("second step prompt missing accumulated context: %q", second.Prompt)
	}

	want := []statushub.Phase{
		statushub.PhaseStepExecuting, statushub.PhaseStepCompleted,
		statushub.PhaseStepExecuting, statushub.PhaseStepCompleted,
	}
	got := phases(drainEvents(events))
	if len(got) != len(want) {
		t.Fatalf("event phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event phases = %v, want %v", got, want)
		}
	}
}

func TestRetrievalFailureDegradesGracefully(t *testing.T) {
	caller := &scriptedCaller{script: []scriptedResponse{
		{err: errors.New("connection refused")},
		{text: "Answer without area data."},
	}}
	hub := statushub.NewHub()
	defer hub.Close()
	events, cancel, _ := hub.Subscribe("exec-1")
	defer cancel()

	e, _ := New(caller, testRegistry(t), WithHub(hub))
	answer, trace, err := e.ExecutePlan(context.Background(), "exec-1", requirement(), twoStepPlan())
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if answer != "Answer without area data." {
		t.Errorf("answer = %q", answer)
	}
	if trace.Steps[0].Status != "failed" || trace.Steps[1].Status != "done" {
		t.Errorf("trace statuses = %s, %s", trace.Steps[0].Status, trace.Steps[1].Status)
	}
	if trace.FallbackUsed {
		t.Error("FallbackUsed = true, degradation is not the fallback path")
	}

	all := drainEvents(events)
	var failed *statushub.Event
	for i := range all {
		if all[i].Phase == statushub.PhaseStepFailed {
			failed = &all[i]
		}
	}
	if failed == nil {
		t.Fatal("no STEP_FAILED event published")
	}
	if failed.Message != noticeConnectivity {
		t.Errorf("STEP_FAILED message = %q, want sanitized connectivity notice", failed.Message)
	}
	if strings.Contains(failed.Message, "connection refused") {
		t.Error("raw error text leaked into the status stream")
	}
}

func TestGenerationFailureTakesFallback(t *testing.T) {
	caller := &scriptedCaller{script: []scriptedResponse{
		{text: "Seongsu facts"},
		{err: errors.New("model overloaded")},
		{text: "Fallback answer built from Seongsu facts."},
	}}
	e, _ := New(caller, testRegistry(t))

	answer, trace, err := e.ExecutePlan(context.Background(), "exec-1", requirement(), twoStepPlan())
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if answer != "Fallback answer built from Seongsu facts." {
		t.Errorf("answer = %q", answer)
	}
	if !trace.FallbackUsed {
		t.Error("FallbackUsed = false after the fallback produced the answer")
	}
	if caller.callCount() != 3 {
		t.Errorf("caller invoked %d times, want 3 (two steps plus one fallback)", caller.callCount())
	}
	// The fallback prompt still sees the accumulated retrieval results.
	fallbackReq := caller.requests[2]
	if !strings.Contains(fallbackReq.Prompt, "Seongsu facts") {
		t.Errorf("fallback prompt missing accumulated context: %q", fallbackReq.Prompt)
	}
}

func TestFallbackExhaustion(t *testing.T) {
	caller := &scriptedCaller{script: []scriptedResponse{
		{text: "Seongsu facts"},
		{err: errors.New("model overloaded")},
		{err: errors.New("still overloaded")},
	}}
	e, _ := New(caller, testRegistry(t))

	_, trace, err := e.ExecutePlan(context.Background(), "exec-1", requirement(), twoStepPlan())
	if !ragengine.HasCode(err, ragengine.ErrCodeFallbackExhausted) {
		t.Fatalf("error = %v, want %s", err, ragengine.ErrCodeFallbackExhausted)
	}
	if caller.callCount() != 3 {
		t.Errorf("caller invoked %d times, want exactly one fallback attempt", caller.callCount())
	}
	if trace == nil || !trace.FallbackUsed {
		t.Error("trace should record that the fallback path was attempted")
	}
}

func TestEmptyResponseIsStepFailure(t *testing.T) {
	caller := &scriptedCaller{script: []scriptedResponse{
		{text: "   "},
		{text: "Answer anyway."},
	}}
	e, _ := New(caller, testRegistry(t))

	answer, trace, err := e.ExecutePlan(context.Background(), "exec-1", requirement(), twoStepPlan())
	if err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}
	if answer != "Answer anyway." {
		t.Errorf("answer = %q", answer)
	}
	if trace.Steps[0].Status != "failed" {
		t.Errorf("blank-response step status = %s, want failed", trace.Steps[0].Status)
	}
}

func TestAugmentationStepPublishesAggregating(t *testing.T) {
	plan := &ragengine.ExecutionPlan{Steps: []*ragengine.ExecutionStep{
		{StepNumber: 1, StrategyID: "AREA_SEARCH", Purpose: "find areas"},
		{StepNumber: 2, StrategyID: "CONTEXT_AUGMENTATION", Purpose: "merge findings"},
		{StepNumber: 3, StrategyID: ragengine.StrategyGeneralResponse, Purpose: "answer"},
	}}
	caller := &scriptedCaller{script: []scriptedResponse{
		{text: "areas"}, {text: "merged"}, {text: "answer"},
	}}
	hub := statushub.NewHub()
	defer hub.Close()
	events, cancel, _ := hub.Subscribe("exec-1")
	defer cancel()

	e, _ := New(caller, testRegistry(t), WithHub(hub))
	if _, _, err := e.ExecutePlan(context.Background(), "exec-1", requirement(), plan); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}

	sawAggregating := false
	for _, event := range drainEvents(events) {
		if event.Phase == statushub.PhaseAggregating {
			sawAggregating = true
			if event.StepNumber != 2 {
				t.Errorf("AGGREGATING step = %d, want 2", event.StepNumber)
			}
		}
	}
	if !sawAggregating {
		t.Error("no AGGREGATING event for the augmentation step")
	}
}

func TestMetricsCountStepsAndFallbacks(t *testing.T) {
	caller := &scriptedCaller{script: []scriptedResponse{
		{text: "facts"},
		{err: errors.New("boom")},
		{text: "fallback answer"},
	}}
	e, _ := New(caller, testRegistry(t))

	if _, _, err := e.ExecutePlan(context.Background(), "exec-1", requirement(), twoStepPlan()); err != nil {
		t.Fatalf("ExecutePlan failed: %v", err)
	}

	m := e.GetMetrics()
	if m.StepsExecuted != 2 || m.StepsSuccessful != 1 || m.StepsFailed != 1 {
		t.Errorf("step counters = %+v", &m)
	}
	if m.FallbacksTaken != 1 || m.PlansCompleted != 1 {
		t.Errorf("plan counters = %+v", &m)
	}
}

func TestSanitizeFailure(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.New("context deadline exceeded"), noticeTimeout},
		{errors.New("request timed out after 60s"), noticeTimeout},
		{errors.New("dial tcp: connection refused"), noticeConnectivity},
		{errors.New("host unreachable"), noticeConnectivity},
		{errors.New("document not found in index"), noticeNotFound},
		{errors.New("something inexplicable"), noticeGeneric},
		{fmt.Errorf("step failed: %w", errors.New("TIMEOUT while waiting")), noticeTimeout},
		{nil, noticeGeneric},
	}
	for _, tc := range cases {
		if got := SanitizeFailure(tc.err); got != tc.want {
			t.Errorf("SanitizeFailure(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
