package ragengine

import (
	"fmt"
	"time"
)

// TurnStatus represents the status information for a turn started with
// ProcessAsync.
type TurnStatus struct {
	ExecutionID  string        `json:"execution_id"`
	ChatID       string        `json:"chat_id"`
	CurrentPhase TurnPhase     `json:"current_phase"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	IsComplete   bool          `json:"is_complete"`
	HasError     bool          `json:"has_error"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
}

// GetTurnStatus retrieves the current status of a turn.
func (e *Engine) GetTurnStatus(executionID string) (*TurnStatus, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	tc, exists := e.turns[executionID]
	if !exists {
		return nil, fmt.Errorf("execution with ID '%s' not found", executionID)
	}

	status := &TurnStatus{
		ExecutionID:  executionID,
		ChatID:       tc.ChatID,
		CurrentPhase: tc.CurrentPhase,
		StartTime:    tc.StartTime,
		Duration:     tc.GetTotalDuration(),
		IsComplete:   tc.CurrentPhase == PhaseComplete,
		HasError:     tc.CurrentPhase == PhaseError,
	}

	if tc.LastError != nil {
		status.ErrorMessage = tc.LastError.Error()
		status.ErrorStage = tc.ErrorStage
	}

	return status, nil
}

// GetTurnResult retrieves the result of a completed turn. It returns an
// error while the turn is still in progress or when the turn failed.
func (e *Engine) GetTurnResult(executionID string) (*TurnResult, error) {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	tc, exists := e.turns[executionID]
	if !exists {
		return nil, fmt.Errorf("execution with ID '%s' not found", executionID)
	}

	if tc.CurrentPhase != PhaseComplete {
		if tc.CurrentPhase == PhaseError {
			return nil, fmt.Errorf("turn failed during stage '%s': %w", tc.ErrorStage, tc.LastError)
		}
		return nil, fmt.Errorf("turn is still in progress (current phase: %s)", tc.CurrentPhase)
	}

	return &TurnResult{
		ExecutionID: executionID,
		Answer:      tc.Answer,
		Trace:       tc.Trace,
	}, nil
}

// CancelTurn cancels an in-flight turn. It returns true if the turn was
// cancelled, false if it had already reached a terminal phase.
func (e *Engine) CancelTurn(executionID string) (bool, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	tc, exists := e.turns[executionID]
	if !exists {
		return false, fmt.Errorf("execution with ID '%s' not found", executionID)
	}

	if tc.IsTerminal() {
		return false, nil
	}

	cancel, exists := e.cancels[executionID]
	if !exists {
		return false, fmt.Errorf("cannot cancel execution: cancel function not found")
	}
	cancel()
	return true, nil
}

// ListTurns returns every tracked execution id mapped to its current phase.
func (e *Engine) ListTurns() map[string]string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	result := make(map[string]string, len(e.turns))
	for id, tc := range e.turns {
		result[id] = string(tc.CurrentPhase)
	}
	return result
}

// CleanupTurns removes terminal turns older than the given age, together
// with their closed-stream markers in the status hub. It returns the number
// of turns evicted.
func (e *Engine) CleanupTurns(olderThan time.Duration) int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	now := time.Now()
	count := 0
	for id, tc := range e.turns {
		if !tc.IsTerminal() {
			continue
		}
		if now.Sub(tc.PhaseStartTimes[tc.CurrentPhase]) > olderThan {
			delete(e.turns, id)
			if e.hub != nil {
				e.hub.Forget(id)
			}
			count++
		}
	}
	return count
}
