// Package statushub provides the live execution-status stream: a broadcast
// hub that fans orchestrator phase transitions out to any number of
// subscribers per execution id.
package statushub

import "time"

// Phase identifies the orchestrator phase an event reports.
type Phase string

// Standard phases, in the order a turn moves through them.
const (
	PhasePlanning      Phase = "PLANNING"
	PhaseStepExecuting Phase = "STEP_EXECUTING"
	PhaseStepCompleted Phase = "STEP_COMPLETED"
	PhaseStepFailed    Phase = "STEP_FAILED"
	PhaseAggregating   Phase = "AGGREGATING"
	PhaseCompleted     Phase = "COMPLETED"
	PhaseFailed        Phase = "FAILED"
	PhaseClosed        Phase = "CLOSED"
)

// Event is one entry in an execution's status stream. Events are ephemeral;
// nothing in this package persists them.
type Event struct {
	Phase      Phase     `json:"phase"`
	StepNumber int       `json:"step,omitempty"`
	StrategyID string    `json:"strategy,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent creates an event for a phase with a human-readable message.
func NewEvent(phase Phase, message string) Event {
	return Event{
		Phase:     phase,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithStep attaches step metadata and returns the updated event, allowing
// fluent chaining.
func (e Event) WithStep(stepNumber int, strategyID string) Event {
	e.StepNumber = stepNumber
	e.StrategyID = strategyID
	return e
}
