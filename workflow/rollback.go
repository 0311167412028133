package workflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/loomworks/loom/types"
)

// rollbackSucceeded compensates every succeeded step that declares a Rollback
// function, in reverse completion order. A failing or panicking rollback is
// logged and skipped; the sweep always visits every candidate so partial
// compensation never blocks the rest.
func (r *Registry) rollbackSucceeded(ctx context.Context, def *WorkflowDefinition, exec *execution, logger *zap.Logger) {
	order := exec.completionOrderSnapshot()
	for i := len(order) - 1; i >= 0; i-- {
		stepID := order[i]
		step := def.step(stepID)
		if step == nil || step.Rollback == nil {
			continue
		}
		res := exec.result(stepID)
		if res.Status != StepSucceeded {
			continue
		}

		if err := safeRollback(ctx, step, res.Output); err != nil {
			r.metrics.Load().RecordRollback(def.ID, "failed")
			logger.Warn("step rollback failed",
				zap.String("step_id", stepID),
				zap.Error(err),
			)
			continue
		}
		exec.markRolledBack(stepID)
		r.metrics.Load().RecordRollback(def.ID, "ok")
		logger.Info("step rolled back", zap.String("step_id", stepID))
	}
}

// safeRollback invokes one rollback function, converting panics into errors.
func safeRollback(ctx context.Context, step *WorkflowStep, output any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = types.Errorf(types.ErrStepExecution,
				"rollback of step %q panicked: %v", step.ID, rec)
		}
	}()
	return step.Rollback(ctx, output)
}
