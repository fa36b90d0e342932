package ragengine

import (
	"context"
	"fmt"
	"time"

	"github.com/popspot/ragengine/internal/statushub"
)

// TurnPhase represents the current phase of a turn execution.
type TurnPhase string

const (
	// PhaseInit is the initial phase of a turn
	PhaseInit TurnPhase = "init"
	// PhaseClassification represents the requirement-classification phase
	PhaseClassification TurnPhase = "classification"
	// PhasePlanning represents the plan-generation phase
	PhasePlanning TurnPhase = "planning"
	// PhaseExecution represents the step-execution phase
	PhaseExecution TurnPhase = "execution"
	// PhaseError represents an error phase
	PhaseError TurnPhase = "error"
	// PhaseComplete represents the completed phase
	PhaseComplete TurnPhase = "complete"
	// PhaseCancelled represents the cancelled phase
	PhaseCancelled TurnPhase = "cancelled"
	// PhaseUnknown is used when the phase of an async turn cannot be determined.
	PhaseUnknown TurnPhase = "unknown"
)

// TurnContext carries the data one turn accumulates as it moves through the
// phases. It acts as the "tape" of the pushdown automaton driving the turn.
type TurnContext struct {
	// Input parameters
	ChatID      string
	ExecutionID string
	Message     string
	Summary     string

	// Intermediate results
	Requirement Requirement
	Plan        *ExecutionPlan
	Answer      string
	Trace       *TurnTrace

	// Error handling
	LastError  error
	ErrorStage string

	// Phase management
	CurrentPhase    TurnPhase
	PhaseStack      []TurnPhase
	PhaseData       map[string]interface{}
	PhaseStartTimes map[TurnPhase]time.Time

	// Timestamp tracking
	StartTime time.Time
	EndTime   time.Time
}

// NewTurnContext creates a turn context for one user message.
func NewTurnContext(chatID, executionID, message, summary string) *TurnContext {
	return &TurnContext{
		ChatID:          chatID,
		ExecutionID:     executionID,
		Message:         message,
		Summary:         summary,
		CurrentPhase:    PhaseInit,
		PhaseStack:      []TurnPhase{},
		PhaseData:       make(map[string]interface{}),
		StartTime:       time.Now(),
		PhaseStartTimes: make(map[TurnPhase]time.Time),
	}
}

// PushPhase pushes the current phase onto the stack and sets a new current phase.
func (tc *TurnContext) PushPhase(phase TurnPhase) {
	tc.PhaseStack = append(tc.PhaseStack, tc.CurrentPhase)
	tc.CurrentPhase = phase
	tc.PhaseStartTimes[phase] = time.Now()
}

// PopPhase pops the top phase from the stack and sets it as the current phase.
// Returns false if the stack is empty.
func (tc *TurnContext) PopPhase() bool {
	if len(tc.PhaseStack) == 0 {
		return false
	}
	lastIdx := len(tc.PhaseStack) - 1
	tc.CurrentPhase = tc.PhaseStack[lastIdx]
	tc.PhaseStack = tc.PhaseStack[:lastIdx]
	tc.PhaseStartTimes[tc.CurrentPhase] = time.Now()
	return true
}

// IsTerminal checks if the current phase is terminal (Complete, Error, Cancelled).
func (tc *TurnContext) IsTerminal() bool {
	return tc.CurrentPhase == PhaseComplete || tc.CurrentPhase == PhaseError || tc.CurrentPhase == PhaseCancelled
}

// SetError sets the last error and error stage, transitioning to PhaseError.
func (tc *TurnContext) SetError(err error, stage string) {
	tc.LastError = err
	tc.ErrorStage = stage
	tc.CurrentPhase = PhaseError
	tc.PhaseStartTimes[PhaseError] = time.Now()
}

// SetCancelled sets the phase to Cancelled and records the cancellation error.
func (tc *TurnContext) SetCancelled(err error, stage string) {
	tc.LastError = err
	tc.ErrorStage = stage
	tc.CurrentPhase = PhaseCancelled
	tc.PhaseStartTimes[PhaseCancelled] = time.Now()
}

// Complete marks the turn as complete and sets the end time.
func (tc *TurnContext) Complete() {
	tc.CurrentPhase = PhaseComplete
	tc.EndTime = time.Now()
	tc.PhaseStartTimes[PhaseComplete] = tc.EndTime
}

// GetPhaseDuration returns the duration spent in the given phase so far.
func (tc *TurnContext) GetPhaseDuration(phase TurnPhase) time.Duration {
	startTime, ok := tc.PhaseStartTimes[phase]
	if !ok {
		return 0
	}
	if phase == tc.CurrentPhase {
		return time.Since(startTime)
	}
	return 0
}

// GetTotalDuration returns the total duration of the turn so far.
func (tc *TurnContext) GetTotalDuration() time.Duration {
	if tc.CurrentPhase == PhaseComplete {
		return tc.EndTime.Sub(tc.StartTime)
	}
	return time.Since(tc.StartTime)
}

// PhaseTransition defines a transition function for the turn state machine.
type PhaseTransition func(ctx context.Context, hub *statushub.Hub, tc *TurnContext) (TurnPhase, error)

// StateMachine drives one turn through its phases.
type StateMachine struct {
	transitions map[TurnPhase]PhaseTransition
	hub         *statushub.Hub
}

// NewStateMachine creates a state machine publishing to the given hub. A nil
// hub disables status events.
func NewStateMachine(hub *statushub.Hub) *StateMachine {
	return &StateMachine{
		transitions: make(map[TurnPhase]PhaseTransition),
		hub:         hub,
	}
}

// RegisterTransition registers a phase transition function.
func (sm *StateMachine) RegisterTransition(phase TurnPhase, transition PhaseTransition) {
	sm.transitions[phase] = transition
}

// Execute runs the state machine until a terminal phase is reached. It
// returns the final answer and any error encountered, including cancellation.
func (sm *StateMachine) Execute(ctx context.Context, tc *TurnContext) (string, error) {
	for !tc.IsTerminal() {
		// Check for context cancellation before executing the next phase
		select {
		case <-ctx.Done():
			err := ctx.Err()
			tc.SetCancelled(err, string(tc.CurrentPhase))
			return "", err
		default:
		}

		transition, exists := sm.transitions[tc.CurrentPhase]
		if !exists {
			err := fmt.Errorf("no transition defined for phase: %s", tc.CurrentPhase)
			tc.SetError(err, string(tc.CurrentPhase))
			return "", err
		}

		nextPhase, err := transition(ctx, sm.hub, tc)
		if err != nil {
			currentStage := string(tc.CurrentPhase)
			if err == context.Canceled || err == context.DeadlineExceeded {
				tc.SetCancelled(err, currentStage)
			} else if !tc.IsTerminal() {
				tc.SetError(err, currentStage)
			}
			continue
		}

		if !tc.IsTerminal() {
			tc.CurrentPhase = nextPhase
			tc.PhaseStartTimes[nextPhase] = time.Now()
		}
	}

	if tc.CurrentPhase == PhaseComplete && tc.EndTime.IsZero() {
		tc.EndTime = time.Now()
	}
	return tc.Answer, tc.LastError
}
