package ragengine

import (
	"context"
	"log"

	"github.com/popspot/ragengine/internal/statushub"
)

// EngineComponents holds references to the core components needed for phase
// transitions.
type EngineComponents struct {
	Classifier Classifier
	Planner    Planner
	Executor   PlanExecutor
	Registry   *Registry
	Config     Config
}

// CreateTurnStateMachine builds a complete state machine for one turn.
func CreateTurnStateMachine(components EngineComponents, hub *statushub.Hub) *StateMachine {
	sm := NewStateMachine(hub)

	sm.RegisterTransition(PhaseInit, createInitTransition(components))
	sm.RegisterTransition(PhaseClassification, createClassificationTransition(components))
	sm.RegisterTransition(PhasePlanning, createPlanningTransition(components))
	sm.RegisterTransition(PhaseExecution, createExecutionTransition(components))

	return sm
}

// createInitTransition handles the initialization phase.
func createInitTransition(_ EngineComponents) PhaseTransition {
	return func(ctx context.Context, hub *statushub.Hub, tc *TurnContext) (TurnPhase, error) {
		log.Printf("Turn started (execution_id: %s, chat_id: %s)", tc.ExecutionID, tc.ChatID)
		return PhaseClassification, nil
	}
}

// createClassificationTransition handles the requirement-classification phase.
// A classifier failure never aborts the turn: the requirement degrades to the
// MODERATE middle default with the raw message as the processed query.
func createClassificationTransition(components EngineComponents) PhaseTransition {
	return func(ctx context.Context, hub *statushub.Hub, tc *TurnContext) (TurnPhase, error) {
		req, err := components.Classifier.Classify(ctx, tc.Message, tc.Summary)
		if err != nil {
			if HasCode(err, ErrCodeClassificationParse) {
				log.Printf("Classifier output unparseable, defaulting to MODERATE (execution_id: %s)", tc.ExecutionID)
			} else {
				log.Printf("Classification failed, defaulting to MODERATE (execution_id: %s, error: %v)", tc.ExecutionID, err)
			}
			req = Requirement{
				UserIntent:      "answer the user's question",
				ProcessedQuery:  tc.Message,
				ComplexityLevel: ComplexityModerate,
			}
		}
		tc.Requirement = req
		return PhasePlanning, nil
	}
}

// createPlanningTransition handles the plan-generation phase. SIMPLE
// requirements skip the planner entirely; a rejected plan (unknown strategy
// or bad shape) degrades to a GENERAL_RESPONSE-only plan so the turn still
// produces an answer.
func createPlanningTransition(components EngineComponents) PhaseTransition {
	return func(ctx context.Context, hub *statushub.Hub, tc *TurnContext) (TurnPhase, error) {
		if hub != nil {
			hub.Publish(ctx, tc.ExecutionID, statushub.NewEvent(statushub.PhasePlanning, "Working out how to answer your question."))
		}

		if tc.Requirement.ComplexityLevel == ComplexitySimple {
			tc.Plan = DirectResponsePlan(tc.Requirement)
			return PhaseExecution, nil
		}

		plan, err := components.Planner.BuildPlan(ctx, tc.Requirement)
		if err != nil {
			log.Printf("Planner rejected or failed, falling back to direct response (execution_id: %s, error: %v)", tc.ExecutionID, err)
			plan = DirectResponsePlan(tc.Requirement)
		}
		tc.Plan = plan
		return PhaseExecution, nil
	}
}

// createExecutionTransition runs the plan. Step-level events are published by
// the executor itself; only a FALLBACK_EXHAUSTED error surfaces here.
func createExecutionTransition(components EngineComponents) PhaseTransition {
	return func(ctx context.Context, hub *statushub.Hub, tc *TurnContext) (TurnPhase, error) {
		answer, trace, err := components.Executor.ExecutePlan(ctx, tc.ExecutionID, tc.Requirement, tc.Plan)
		tc.Trace = trace
		if err != nil {
			return PhaseError, err
		}
		tc.Answer = answer
		return PhaseComplete, nil
	}
}

// DirectResponsePlan builds the single-step GENERAL_RESPONSE plan used for
// SIMPLE requirements and for turns whose generated plan was rejected.
func DirectResponsePlan(req Requirement) *ExecutionPlan {
	return &ExecutionPlan{
		Thought: "The request can be answered directly without retrieval.",
		Steps: []*ExecutionStep{
			{
				StepNumber:     1,
				StrategyID:     StrategyGeneralResponse,
				Purpose:        "Answer the user directly",
				ExpectedOutput: "A concise conversational answer",
			},
		},
	}
}
