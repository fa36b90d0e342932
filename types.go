package ragengine

import (
	"encoding/json"
	"sync"
	"time"
)

// ComplexityLevel is the coarse classification of how much planning a user
// turn requires.
type ComplexityLevel string

const (
	// ComplexitySimple covers greetings and "what is this product" questions
	// that need no domain lookup.
	ComplexitySimple ComplexityLevel = "SIMPLE"
	// ComplexityModerate covers single-topic business questions.
	ComplexityModerate ComplexityLevel = "MODERATE"
	// ComplexityComplex covers multi-criteria or multi-source comparative
	// analysis.
	ComplexityComplex ComplexityLevel = "COMPLEX"
)

// IsValid reports whether the level is one of the known tiers.
func (c ComplexityLevel) IsValid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}

// Requirement is the structured interpretation of a raw user message,
// produced once per turn by the classifier and consumed by the planner.
// Immutable after creation.
type Requirement struct {
	UserIntent      string          `json:"user_intent"`
	ProcessedQuery  string          `json:"processed_query"`
	ComplexityLevel ComplexityLevel `json:"complexity_level"`
	ContextSummary  string          `json:"context_summary"`
	Reasoning       string          `json:"reasoning"`
}

// StepStatus represents the possible states of an execution step.
type StepStatus string

const (
	// StepStatusPending indicates the step has not started yet.
	StepStatusPending StepStatus = "pending"
	// StepStatusRunning indicates the step is currently executing.
	StepStatusRunning StepStatus = "running"
	// StepStatusDone indicates the step completed successfully.
	StepStatusDone StepStatus = "done"
	// StepStatusFailed indicates the step failed.
	StepStatusFailed StepStatus = "failed"
)

// ExecutionStep is a single unit of work in an execution plan, bound to one
// registry strategy. Status transitions are one-directional:
// pending -> running -> done|failed.
type ExecutionStep struct {
	StepNumber     int    `json:"step"`
	StrategyID     string `json:"strategy"`
	Purpose        string `json:"purpose"`
	Rationale      string `json:"reasoning"`
	ExpectedOutput string `json:"expected_output"`

	// Internal execution state, owned by the plan executor.
	status StepStatus
	result string
	err    error
	mutex  sync.Mutex

	StartTime time.Time `json:"-"`
	EndTime   time.Time `json:"-"`
}

// GetStatus safely retrieves the step's current status.
func (s *ExecutionStep) GetStatus() StepStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.status == "" {
		return StepStatusPending
	}
	return s.status
}

// MarkRunning transitions the step from pending to running. Transitions out
// of a terminal status are ignored.
func (s *ExecutionStep) MarkRunning() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.status != "" && s.status != StepStatusPending {
		return
	}
	s.status = StepStatusRunning
	s.StartTime = time.Now()
}

// MarkDone records the step's textual result and transitions it to done.
func (s *ExecutionStep) MarkDone(result string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.status == StepStatusDone || s.status == StepStatusFailed {
		return
	}
	s.status = StepStatusDone
	s.result = result
	s.EndTime = time.Now()
}

// MarkFailed records the step's error and transitions it to failed.
func (s *ExecutionStep) MarkFailed(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.status == StepStatusDone || s.status == StepStatusFailed {
		return
	}
	s.status = StepStatusFailed
	s.err = err
	s.EndTime = time.Now()
}

// Result returns the step's textual result, if any.
func (s *ExecutionStep) Result() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.result
}

// Err returns the step's failure, if any.
func (s *ExecutionStep) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

// Duration returns the execution duration of the step.
func (s *ExecutionStep) Duration() time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// ExecutionPlan is the ordered sequence of steps produced by the planner for
// one turn. Plans are never mutated; re-planning produces a new plan.
type ExecutionPlan struct {
	Thought     string           `json:"thought"`
	Steps       []*ExecutionStep `json:"actions"`
	Observation string           `json:"observation"`
}

// FinalStep returns the last step of the plan, or nil for an empty plan.
func (p *ExecutionPlan) FinalStep() *ExecutionStep {
	if len(p.Steps) == 0 {
		return nil
	}
	return p.Steps[len(p.Steps)-1]
}

// AccumulatedContext is the append-only ordered mapping from step number to
// that step's textual result. Every step's prompt sees everything produced by
// prior steps. It is owned by a single plan execution and is not safe for
// concurrent use.
type AccumulatedContext struct {
	order   []int
	results map[int]string
}

// NewAccumulatedContext creates an empty accumulated context.
func NewAccumulatedContext() *AccumulatedContext {
	return &AccumulatedContext{results: make(map[int]string)}
}

// Append records the result of a completed step. Results are never
// overwritten; appending the same step twice is ignored.
func (a *AccumulatedContext) Append(stepNumber int, result string) {
	if _, exists := a.results[stepNumber]; exists {
		return
	}
	a.order = append(a.order, stepNumber)
	a.results[stepNumber] = result
}

// Get returns the result recorded for a step number.
func (a *AccumulatedContext) Get(stepNumber int) (string, bool) {
	result, ok := a.results[stepNumber]
	return result, ok
}

// Len returns the number of recorded results.
func (a *AccumulatedContext) Len() int {
	return len(a.order)
}

// StepNumbers returns the recorded step numbers in append order.
func (a *AccumulatedContext) StepNumbers() []int {
	numbers := make([]int, len(a.order))
	copy(numbers, a.order)
	return numbers
}

// StepTrace is the serializable audit record of one executed step.
type StepTrace struct {
	StepNumber int    `json:"step"`
	StrategyID string `json:"strategy"`
	Purpose    string `json:"purpose"`
	Status     string `json:"status"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// TurnTrace is the full serializable audit record of one turn's plan
// execution, attached to the persisted assistant message.
type TurnTrace struct {
	ExecutionID  string      `json:"execution_id"`
	Thought      string      `json:"thought,omitempty"`
	Steps        []StepTrace `json:"steps"`
	FallbackUsed bool        `json:"fallback_used,omitempty"`
}

// Marshal renders the trace as JSON for persistence alongside the assistant
// message.
func (t *TurnTrace) Marshal() (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ChatMessage is the assistant message handed to the external chat store.
type ChatMessage struct {
	ChatID    string `json:"chat_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	StepTrace string `json:"step_trace,omitempty"`
}

// TurnResult is what a completed turn hands back to the caller.
type TurnResult struct {
	ExecutionID string
	Answer      string
	Trace       *TurnTrace
}
