package executor

import "sync"

// Metrics tracks statistics about plan execution.
type Metrics struct {
	StepsExecuted   int
	StepsSuccessful int
	StepsFailed     int
	PlansCompleted  int
	PlansFailed     int
	FallbacksTaken  int

	mu sync.Mutex // Protects metrics updates
}

func (m *Metrics) recordStep(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StepsExecuted++
	if success {
		m.StepsSuccessful++
	} else {
		m.StepsFailed++
	}
}

func (m *Metrics) recordPlan(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.PlansCompleted++
	} else {
		m.PlansFailed++
	}
}

func (m *Metrics) recordFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FallbacksTaken++
}

// Copy returns a snapshot without the mutex.
func (m *Metrics) Copy() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Metrics{
		StepsExecuted:   m.StepsExecuted,
		StepsSuccessful: m.StepsSuccessful,
		StepsFailed:     m.StepsFailed,
		PlansCompleted:  m.PlansCompleted,
		PlansFailed:     m.PlansFailed,
		FallbacksTaken:  m.FallbacksTaken,
	}
}

// GetMetrics returns a snapshot of the executor's counters.
func (e *PlanExecutor) GetMetrics() Metrics {
	return e.metrics.Copy()
}
