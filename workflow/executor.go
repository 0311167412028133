package workflow

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/loomworks/loom/types"
)

// stepExecutor runs a single step's handler under a bounded timeout. A
// handler that does not settle before the deadline is abandoned: the step is
// recorded as failed with a timeout error and the handler's eventual result,
// if any, is discarded. The underlying goroutine is never forcibly killed;
// handlers are expected to observe ctx and stop on their own.
type stepExecutor struct {
	defaultTimeout time.Duration
	logger         *zap.Logger
}

func newStepExecutor(defaultTimeout time.Duration, logger *zap.Logger) *stepExecutor {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultStepTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &stepExecutor{
		defaultTimeout: defaultTimeout,
		logger:         logger.With(zap.String("component", "step_executor")),
	}
}

type stepOutcome struct {
	output any
	err    error
}

// run executes the step handler and races it against the step deadline.
// defaultTimeout is the per-execution default for steps with no Timeout of
// their own; non-positive falls back to the executor default.
func (e *stepExecutor) run(ctx context.Context, step *WorkflowStep, input any, upstream Outputs, defaultTimeout time.Duration) (any, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned handler can still send without leaking.
	done := make(chan stepOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stepOutcome{err: types.Errorf(types.ErrStepExecution,
					"step %q panicked: %v", step.ID, r)}
			}
		}()
		output, err := step.Handler(stepCtx, input, upstream)
		done <- stepOutcome{output: output, err: err}
	}()

	select {
	case oc := <-done:
		if oc.err != nil {
			return nil, types.Errorf(types.ErrStepExecution, "step %q failed", step.ID).WithCause(oc.err)
		}
		return oc.output, nil
	case <-stepCtx.Done():
		if errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			e.logger.Warn("step timed out, abandoning handler",
				zap.String("step_id", step.ID),
				zap.Duration("timeout", timeout),
			)
			return nil, types.Errorf(types.ErrStepTimeout,
				"step %q timed out after %s", step.ID, timeout)
		}
		return nil, types.Errorf(types.ErrCancelled, "step %q cancelled", step.ID).WithCause(ctx.Err())
	}
}
