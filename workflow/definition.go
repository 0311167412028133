package workflow

import (
	"context"
	"time"
)

// Outputs is a read-only view of the outputs of previously succeeded steps,
// keyed by step ID. Handlers receive only fully committed results; a step
// never observes partial state of a dependency.
type Outputs map[string]any

// Get returns the recorded output of a succeeded step.
func (o Outputs) Get(stepID string) (any, bool) {
	out, ok := o[stepID]
	return out, ok
}

// StepHandler is the unit of work of a single step. It receives the workflow
// input and the outputs of its succeeded dependencies. Handlers should observe
// ctx: on timeout or cancellation the scheduler abandons the handler and
// discards its eventual result, it does not forcibly terminate it.
type StepHandler func(ctx context.Context, input any, upstream Outputs) (any, error)

// RollbackFunc compensates a previously succeeded step when a later step in
// the same execution fails. It receives the output the step produced.
type RollbackFunc func(ctx context.Context, output any) error

// WorkflowStep is a named step in a workflow definition.
type WorkflowStep struct {
	// ID is unique within the workflow.
	ID string
	// Dependencies lists step IDs that must succeed before this step runs.
	// They must reference other steps in the same workflow; cycles are
	// rejected at registration time.
	Dependencies []string
	// Handler performs the step's work.
	Handler StepHandler
	// Timeout bounds the handler. Zero means the registry default.
	Timeout time.Duration
	// Rollback optionally compensates the step on a later failure.
	Rollback RollbackFunc
}

// WorkflowDefinition is an immutable, validated set of steps. Registering a
// definition copies it; mutating the original afterwards has no effect.
type WorkflowDefinition struct {
	ID      string
	Name    string
	Version string
	Steps   []WorkflowStep
}

// step returns the step with the given ID, or nil.
func (d *WorkflowDefinition) step(id string) *WorkflowStep {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i]
		}
	}
	return nil
}

// clone returns a deep copy of the definition's structure. Handler and
// rollback functions are shared.
func (d *WorkflowDefinition) clone() *WorkflowDefinition {
	c := &WorkflowDefinition{
		ID:      d.ID,
		Name:    d.Name,
		Version: d.Version,
		Steps:   make([]WorkflowStep, len(d.Steps)),
	}
	for i, s := range d.Steps {
		deps := make([]string, len(s.Dependencies))
		copy(deps, s.Dependencies)
		s.Dependencies = deps
		c.Steps[i] = s
	}
	return c
}
