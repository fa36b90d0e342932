// Package executor runs validated execution plans step by step: it builds
// each step's prompt from the requirement and everything accumulated so far,
// invokes the model under the strategy's tool policy, tolerates non-final
// step failures, and guarantees a final answer whenever the fallback path
// succeeds.
package executor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/popspot/ragengine"
	"github.com/popspot/ragengine/internal/statushub"
)

// PlanExecutor is the sequential plan executor. Steps within a plan never
// run concurrently: every step's prompt depends on all prior accumulated
// context, so ordering is part of the contract, not an optimization target.
type PlanExecutor struct {
	caller   ragengine.ModelCaller
	registry *ragengine.Registry
	hub      *statushub.Hub

	stepTimeout         time.Duration
	titleFallbackLength int

	metrics Metrics
}

// Option represents an option for configuring the PlanExecutor.
type Option func(*PlanExecutor)

// WithHub sets the status hub step events are published to. A nil hub
// disables events.
func WithHub(hub *statushub.Hub) Option {
	return func(e *PlanExecutor) {
		e.hub = hub
	}
}

// WithStepTimeout sets the per-step model/tool call timeout.
func WithStepTimeout(timeout time.Duration) Option {
	return func(e *PlanExecutor) {
		if timeout > 0 {
			e.stepTimeout = timeout
		}
	}
}

// WithTitleFallbackLength sets how many leading characters of the user
// message become the title when title generation yields no usable tag.
func WithTitleFallbackLength(length int) Option {
	return func(e *PlanExecutor) {
		if length > 0 {
			e.titleFallbackLength = length
		}
	}
}

// New creates a plan executor. The registry must contain the
// GENERAL_RESPONSE and TITLE_GENERATION strategies the executor's fallback
// paths depend on.
func New(caller ragengine.ModelCaller, registry *ragengine.Registry, options ...Option) (*PlanExecutor, error) {
	if caller == nil {
		return nil, ragengine.NewConfigurationError("model caller is required", nil)
	}
	if registry == nil {
		return nil, ragengine.NewConfigurationError("strategy registry is required", nil)
	}
	for _, id := range []string{ragengine.StrategyGeneralResponse, ragengine.StrategyTitleGeneration} {
		if _, ok := registry.FindByID(id); !ok {
			return nil, ragengine.NewConfigurationError("registry is missing required strategy '"+id+"'", nil)
		}
	}

	e := &PlanExecutor{
		caller:              caller,
		registry:            registry,
		stepTimeout:         time.Second * 60,
		titleFallbackLength: 30,
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// ExecutePlan implements ragengine.PlanExecutor. It runs the plan in order,
// applying the degradation policy: a failed RETRIEVAL or AUGMENTATION step
// does not abort the plan, while a failed final GENERATION step triggers one
// GENERAL_RESPONSE fallback invocation. Only FALLBACK_EXHAUSTED surfaces as
// an error.
func (e *PlanExecutor) ExecutePlan(ctx context.Context, executionID string, req ragengine.Requirement, plan *ragengine.ExecutionPlan) (string, *ragengine.TurnTrace, error) {
	startTime := time.Now()
	log.Printf("Plan execution starting (execution_id: %s, steps: %d)", executionID, len(plan.Steps))

	acc := ragengine.NewAccumulatedContext()
	answer := ""
	fallbackUsed := false

	for i, step := range plan.Steps {
		final := i == len(plan.Steps)-1

		desc, ok := e.registry.FindByID(step.StrategyID)
		if !ok {
			// Plans are validated before execution, so this is a registry
			// drift bug rather than planner output; degrade like any other
			// step failure.
			err := ragengine.NewUnknownStrategyError(step.StrategyID)
			answer, fallbackUsed = e.handleStepFailure(ctx, executionID, req, plan, step, acc, err, final)
			if final && !fallbackUsed {
				return "", e.buildTrace(executionID, plan, fallbackUsed), ragengine.NewFallbackExhaustedError(err)
			}
			continue
		}

		step.MarkRunning()
		e.publish(ctx, executionID, statushub.NewEvent(statushub.PhaseStepExecuting, desc.Display.InProgress).
			WithStep(step.StepNumber, step.StrategyID))
		if desc.Category == ragengine.CategoryAugmentation {
			e.publish(ctx, executionID, statushub.NewEvent(statushub.PhaseAggregating, "Combining everything gathered so far.").
				WithStep(step.StepNumber, step.StrategyID))
		}

		result, err := e.invokeStep(ctx, req, step, desc, acc)
		e.metrics.recordStep(err == nil)
		if err != nil {
			step.MarkFailed(err)
			log.Printf("Step failed (execution_id: %s, step: %d, strategy: %s, error: %v)",
				executionID, step.StepNumber, step.StrategyID, err)
			e.publish(ctx, executionID, statushub.NewEvent(statushub.PhaseStepFailed, SanitizeFailure(err)).
				WithStep(step.StepNumber, step.StrategyID))

			if !final {
				// Degradation policy: continue with whatever context exists.
				continue
			}

			fallbackAnswer, ferr := e.runFallback(ctx, req, acc)
			if ferr != nil {
				e.metrics.recordPlan(false)
				return "", e.buildTrace(executionID, plan, true), ragengine.NewFallbackExhaustedError(ferr)
			}
			fallbackUsed = true
			answer = fallbackAnswer
			continue
		}

		step.MarkDone(result)
		acc.Append(step.StepNumber, result)
		e.publish(ctx, executionID, statushub.NewEvent(statushub.PhaseStepCompleted, desc.Display.Completed).
			WithStep(step.StepNumber, step.StrategyID))

		if final {
			answer = result
		}
	}

	e.metrics.recordPlan(true)
	if fallbackUsed {
		e.metrics.recordFallback()
	}
	log.Printf("Plan execution finished (execution_id: %s, duration: %v, fallback: %t)",
		executionID, time.Since(startTime), fallbackUsed)

	return answer, e.buildTrace(executionID, plan, fallbackUsed), nil
}

// handleStepFailure records and publishes a failure for a step whose
// descriptor could not even be resolved, running the fallback when the step
// was final. It returns the (possibly fallback-produced) answer.
func (e *PlanExecutor) handleStepFailure(ctx context.Context, executionID string, req ragengine.Requirement, plan *ragengine.ExecutionPlan, step *ragengine.ExecutionStep, acc *ragengine.AccumulatedContext, err error, final bool) (string, bool) {
	step.MarkFailed(err)
	e.metrics.recordStep(false)
	log.Printf("Step failed (execution_id: %s, step: %d, strategy: %s, error: %v)",
		executionID, step.StepNumber, step.StrategyID, err)
	e.publish(ctx, executionID, statushub.NewEvent(statushub.PhaseStepFailed, SanitizeFailure(err)).
		WithStep(step.StepNumber, step.StrategyID))

	if !final {
		return "", false
	}
	fallbackAnswer, ferr := e.runFallback(ctx, req, acc)
	if ferr != nil {
		return "", false
	}
	return fallbackAnswer, true
}

// invokeStep builds the step's prompt from the requirement, the resolved
// purpose, and the full accumulated context, then invokes the model under
// the strategy's tool policy and a finite timeout.
func (e *PlanExecutor) invokeStep(ctx context.Context, req ragengine.Requirement, step *ragengine.ExecutionStep, desc *ragengine.StrategyDescriptor, acc *ragengine.AccumulatedContext) (string, error) {
	system, user := desc.BuildPrompt(ragengine.PromptInput{
		Requirement:    req,
		Purpose:        ResolveReferences(step.Purpose, acc),
		ExpectedOutput: step.ExpectedOutput,
		Context:        renderContext(acc),
	})

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	text, err := e.caller.Invoke(stepCtx, ragengine.ModelRequest{
		System: system,
		Prompt: user,
		Policy: desc.Tools,
	})
	if err != nil {
		return "", ragengine.NewStepInvocationError(desc.ID, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ragengine.NewStepInvocationError(desc.ID, ragengine.NewNullResponseError("execution"))
	}
	return text, nil
}

// runFallback performs the single extra GENERAL_RESPONSE invocation used
// when the plan's terminal generation step failed, so the user still
// receives some answer.
func (e *PlanExecutor) runFallback(ctx context.Context, req ragengine.Requirement, acc *ragengine.AccumulatedContext) (string, error) {
	log.Printf("Generation failed, taking fallback path (context_entries: %d)", acc.Len())

	desc, _ := e.registry.FindByID(ragengine.StrategyGeneralResponse)
	system, user := desc.BuildPrompt(ragengine.PromptInput{
		Requirement: req,
		Purpose:     "Provide the best possible answer with the information available",
		Context:     renderContext(acc),
	})

	fallbackCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	text, err := e.caller.Invoke(fallbackCtx, ragengine.ModelRequest{
		System: system,
		Prompt: user,
		Policy: desc.Tools,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ragengine.NewNullResponseError("fallback")
	}
	return text, nil
}

// publish sends a status event, tolerating a disabled hub and an already
// cancelled context (the subscriber may be long gone; execution continues
// regardless).
func (e *PlanExecutor) publish(ctx context.Context, executionID string, event statushub.Event) {
	if e.hub == nil {
		return
	}
	if err := e.hub.Publish(context.WithoutCancel(ctx), executionID, event); err != nil {
		log.Printf("Status publish failed (execution_id: %s, phase: %s): %v", executionID, event.Phase, err)
	}
}

// buildTrace serializes the plan's per-step outcomes for audit, attached to
// the persisted assistant message.
func (e *PlanExecutor) buildTrace(executionID string, plan *ragengine.ExecutionPlan, fallbackUsed bool) *ragengine.TurnTrace {
	trace := &ragengine.TurnTrace{
		ExecutionID:  executionID,
		Thought:      plan.Thought,
		Steps:        make([]ragengine.StepTrace, 0, len(plan.Steps)),
		FallbackUsed: fallbackUsed,
	}
	for _, step := range plan.Steps {
		entry := ragengine.StepTrace{
			StepNumber: step.StepNumber,
			StrategyID: step.StrategyID,
			Purpose:    step.Purpose,
			Status:     string(step.GetStatus()),
			Result:     step.Result(),
			DurationMs: step.Duration().Milliseconds(),
		}
		if err := step.Err(); err != nil {
			entry.Error = err.Error()
		}
		trace.Steps = append(trace.Steps, entry)
	}
	return trace
}

// renderContext formats the accumulated context for prompt construction.
// Each step sees everything produced by prior steps, not just the
// immediately preceding one.
func renderContext(acc *ragengine.AccumulatedContext) string {
	if acc.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for _, n := range acc.StepNumbers() {
		result, _ := acc.Get(n)
		fmt.Fprintf(&b, "[Step %d result]\n%s\n\n", n, result)
	}
	return strings.TrimRight(b.String(), "\n")
}
