package ragengine

import "context"

// ModelRequest is one invocation of the model-call capability: a system and
// user prompt pair plus the owning strategy's tool policy.
type ModelRequest struct {
	System string
	Prompt string
	Policy ToolPolicy
}

// ModelCaller invokes the underlying language model. Implementations return
// the generated text; a provider that yields no content must return an
// EngineError with code NULL_RESPONSE.
type ModelCaller interface {
	Invoke(ctx context.Context, req ModelRequest) (string, error)
}

// Tool is a named callable with a text-in/text-out contract, bound to
// RETRIEVAL strategies and invoked transparently during tool-enabled model
// calls.
type Tool interface {
	// Name returns the tool's name as referenced by tool policies.
	Name() string

	// Description returns what the tool does, surfaced to the planner.
	Description() string

	// Call performs the lookup for a free-text query.
	Call(ctx context.Context, input string) (string, error)
}

// Classifier turns a raw user message into a structured requirement.
type Classifier interface {
	Classify(ctx context.Context, message, summary string) (Requirement, error)
}

// Planner turns a non-SIMPLE requirement into a validated execution plan.
type Planner interface {
	BuildPlan(ctx context.Context, req Requirement) (*ExecutionPlan, error)
}

// PlanExecutor runs a validated plan step by step and guarantees a final
// answer whenever the fallback path succeeds.
type PlanExecutor interface {
	// ExecutePlan runs the plan sequentially, returning the final answer and
	// the serialized step trace. Only a FALLBACK_EXHAUSTED failure surfaces
	// as an error.
	ExecutePlan(ctx context.Context, executionID string, req Requirement, plan *ExecutionPlan) (string, *TurnTrace, error)

	// ExecuteTitle runs the one-shot title generation special case. It never
	// fails the turn: a malformed response falls back to a truncated copy of
	// the user's message.
	ExecuteTitle(ctx context.Context, userMessage string) (string, error)
}

// ChatStore persists assistant messages and exposes recent conversation
// summaries. Persistence is owned by the surrounding application, not by
// this engine.
type ChatStore interface {
	SaveAssistantMessage(ctx context.Context, msg ChatMessage) error
	ConversationSummary(ctx context.Context, chatID string) (string, error)
}

// Cache provides storage for frequently accessed data, like validated plans.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}) error
}
