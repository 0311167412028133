package workflow

import (
	"sync"
	"sync/atomic"
	"time"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
// Transitions: pending -> running -> {completed | failed | cancelled}.
// Terminal states never transition further.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusCancelled ExecutionStatus = "cancelled"
)

// StepStatus is the lifecycle state of a single step within an execution.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepRunning    StepStatus = "running"
	StepSucceeded  StepStatus = "succeeded"
	StepFailed     StepStatus = "failed"
	StepRolledBack StepStatus = "rolled_back"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	StepID      string          `json:"step_id"`
	Status      StepStatus      `json:"status"`
	Output      any             `json:"output,omitempty"`
	Err         error           `json:"-"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	CompletedAt time.Time       `json:"completed_at,omitempty"`
}

// WorkflowExecution is an immutable snapshot of one workflow run. The
// registry returns terminal snapshots from Execute and History; callers can
// inspect StepResults even when the execution failed.
type WorkflowExecution struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      ExecutionStatus        `json:"status"`
	StepResults map[string]StepResult  `json:"step_results"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt time.Time              `json:"completed_at,omitempty"`
	Err         error                  `json:"-"`
}

// execution is the registry-owned mutable state of one run. Only the
// scheduler and rollback coordinator mutate it; external callers see
// snapshots.
type execution struct {
	id         string
	workflowID string

	mu              sync.RWMutex
	status          ExecutionStatus
	results         map[string]*StepResult
	startedAt       time.Time
	completedAt     time.Time
	err             error
	completionOrder []string // succeeded step IDs in completion order

	cancelRequested atomic.Bool
}

func newExecution(id, workflowID string, def *WorkflowDefinition) *execution {
	results := make(map[string]*StepResult, len(def.Steps))
	for i := range def.Steps {
		stepID := def.Steps[i].ID
		results[stepID] = &StepResult{StepID: stepID, Status: StepPending}
	}
	return &execution{
		id:         id,
		workflowID: workflowID,
		status:     StatusPending,
		results:    results,
		startedAt:  time.Now(),
	}
}

func (e *execution) setRunning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = StatusRunning
}

func (e *execution) isPending(stepID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.results[stepID].Status == StepPending
}

// depsSucceeded reports whether every declared dependency of the step has a
// recorded succeeded result.
func (e *execution) depsSucceeded(step *WorkflowStep) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, dep := range step.Dependencies {
		if e.results[dep].Status != StepSucceeded {
			return false
		}
	}
	return true
}

func (e *execution) markRunning(stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.results[stepID]
	res.Status = StepRunning
	res.StartedAt = time.Now()
}

func (e *execution) markSucceeded(stepID string, output any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.results[stepID]
	res.Status = StepSucceeded
	res.Output = output
	res.CompletedAt = time.Now()
	e.completionOrder = append(e.completionOrder, stepID)
}

func (e *execution) markFailed(stepID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.results[stepID]
	res.Status = StepFailed
	res.Err = err
	res.CompletedAt = time.Now()
}

func (e *execution) markRolledBack(stepID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results[stepID].Status = StepRolledBack
}

// succeededOutputs returns a copy of the outputs of all succeeded steps,
// keyed by step ID. The copy keeps handlers from observing later mutations.
func (e *execution) succeededOutputs() Outputs {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(Outputs, len(e.completionOrder))
	for _, stepID := range e.completionOrder {
		out[stepID] = e.results[stepID].Output
	}
	return out
}

func (e *execution) completionOrderSnapshot() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	order := make([]string, len(e.completionOrder))
	copy(order, e.completionOrder)
	return order
}

func (e *execution) result(stepID string) StepResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return *e.results[stepID]
}

func (e *execution) isTerminal() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (e *execution) finish(status ExecutionStatus, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
	e.err = err
	e.completedAt = time.Now()
}

// snapshot returns an immutable copy of the execution state.
func (e *execution) snapshot() WorkflowExecution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	results := make(map[string]StepResult, len(e.results))
	for id, res := range e.results {
		results[id] = *res
	}
	return WorkflowExecution{
		ID:          e.id,
		WorkflowID:  e.workflowID,
		Status:      e.status,
		StepResults: results,
		StartedAt:   e.startedAt,
		CompletedAt: e.completedAt,
		Err:         e.err,
	}
}
