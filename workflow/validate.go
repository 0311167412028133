package workflow

import (
	"strings"

	"github.com/loomworks/loom/types"
)

// validateDefinition checks a workflow definition for structural errors:
// empty or duplicate step IDs, missing handlers, dependencies on nonexistent
// steps, and dependency cycles. It runs at registration time only; a
// registered definition never fails these checks during execution.
func validateDefinition(def *WorkflowDefinition) error {
	if def == nil {
		return types.NewError(types.ErrValidation, "workflow definition is nil")
	}
	if def.ID == "" {
		return types.NewError(types.ErrValidation, "workflow ID is empty")
	}
	if len(def.Steps) == 0 {
		return types.Errorf(types.ErrValidation, "workflow %q has no steps", def.ID)
	}

	ids := make(map[string]bool, len(def.Steps))
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.ID == "" {
			return types.Errorf(types.ErrValidation, "workflow %q: step %d has empty ID", def.ID, i)
		}
		if ids[step.ID] {
			return types.Errorf(types.ErrValidation, "workflow %q: duplicate step ID %q", def.ID, step.ID)
		}
		ids[step.ID] = true
		if step.Handler == nil {
			return types.Errorf(types.ErrValidation, "workflow %q: step %q has no handler", def.ID, step.ID)
		}
	}

	for i := range def.Steps {
		step := &def.Steps[i]
		for _, dep := range step.Dependencies {
			if !ids[dep] {
				return types.Errorf(types.ErrValidation,
					"workflow %q: step %q depends on unknown step %q", def.ID, step.ID, dep)
			}
		}
	}

	if cycle := findCycle(def); cycle != nil {
		return types.Errorf(types.ErrValidation,
			"workflow %q: dependency cycle: %s", def.ID, strings.Join(cycle, " -> "))
	}

	return nil
}

// DFS colors
const (
	colorWhite = iota // unvisited
	colorGrey         // on the recursion stack
	colorBlack        // fully explored
)

// findCycle runs a depth-first search over the dependency edges with
// recursion-stack marking. It returns the first cycle found as the list of
// step IDs along the cycle (first ID repeated at the end), or nil for a DAG.
// Steps are visited in definition order so the reported cycle is stable.
func findCycle(def *WorkflowDefinition) []string {
	deps := make(map[string][]string, len(def.Steps))
	for i := range def.Steps {
		deps[def.Steps[i].ID] = def.Steps[i].Dependencies
	}

	color := make(map[string]int, len(def.Steps))
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		color[id] = colorGrey
		stack = append(stack, id)

		for _, dep := range deps[id] {
			switch color[dep] {
			case colorGrey:
				// dep is on the stack: the cycle runs from its stack
				// position back to the current node.
				for i, onStack := range stack {
					if onStack == dep {
						cycle := make([]string, 0, len(stack)-i+1)
						cycle = append(cycle, stack[i:]...)
						return append(cycle, dep)
					}
				}
			case colorWhite:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		color[id] = colorBlack
		stack = stack[:len(stack)-1]
		return nil
	}

	for i := range def.Steps {
		id := def.Steps[i].ID
		if color[id] == colorWhite {
			if cycle := visit(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
