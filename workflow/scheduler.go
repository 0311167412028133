package workflow

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const tracerName = "github.com/loomworks/loom/workflow"

// scheduledOutcome is the scheduler-side record of one finished step.
type scheduledOutcome struct {
	stepID string
	output any
	err    error
}

// runExecution drives one execution to a terminal state. Steps become
// runnable once every dependency has a recorded succeeded result; runnable
// steps are launched concurrently. The loop never blocks while steps are in
// flight: it parks on the outcome channel and reconsiders the runnable set
// after every completion, which also services cancellation promptly.
func (r *Registry) runExecution(ctx context.Context, def *WorkflowDefinition, exec *execution, input any, options executeOptions) WorkflowExecution {
	ctx, span := r.tracer.Start(ctx, "workflow.execute")
	span.SetAttributes(
		attribute.String("workflow.id", def.ID),
		attribute.String("execution.id", exec.id),
		attribute.Int("workflow.steps", len(def.Steps)),
	)
	defer span.End()

	logger := r.logger.With(
		zap.String("workflow_id", def.ID),
		zap.String("execution_id", exec.id),
	)

	exec.setRunning()
	r.emit(options.sink, Event{
		Type:        EventWorkflowStarted,
		ExecutionID: exec.id,
		WorkflowID:  def.ID,
		Timestamp:   time.Now(),
	})
	logger.Info("workflow execution started", zap.Int("steps", len(def.Steps)))

	// stepCtx is the cooperative cancellation signal for in-flight handlers.
	// It fires on the first step failure; explicit Cancel only stops new
	// steps from being scheduled.
	stepCtx, cancelSteps := context.WithCancel(ctx)
	defer cancelSteps()

	var sem *semaphore.Weighted
	if options.maxConcurrentSteps > 0 {
		sem = semaphore.NewWeighted(int64(options.maxConcurrentSteps))
	}

	outcomes := make(chan scheduledOutcome, len(def.Steps))
	running := 0
	var failure error

	for {
		if failure == nil && !exec.cancelRequested.Load() {
			for i := range def.Steps {
				step := &def.Steps[i]
				if !exec.isPending(step.ID) || !exec.depsSucceeded(step) {
					continue
				}
				exec.markRunning(step.ID)
				r.emit(options.sink, Event{
					Type:        EventStepStarted,
					ExecutionID: exec.id,
					WorkflowID:  def.ID,
					StepID:      step.ID,
					Timestamp:   time.Now(),
				})
				upstream := exec.succeededOutputs()
				running++
				go r.launchStep(stepCtx, step, input, upstream, sem, options.stepTimeout, outcomes)
			}
		}
		if running == 0 {
			break
		}

		oc := <-outcomes
		running--
		res := exec.result(oc.stepID)
		duration := time.Since(res.StartedAt)

		if oc.err != nil {
			exec.markFailed(oc.stepID, oc.err)
			r.emit(options.sink, Event{
				Type:        EventStepFailed,
				ExecutionID: exec.id,
				WorkflowID:  def.ID,
				StepID:      oc.stepID,
				Timestamp:   time.Now(),
				Err:         oc.err,
			})
			r.metrics.Load().RecordStep(def.ID, string(StepFailed), duration)
			logger.Warn("step failed",
				zap.String("step_id", oc.stepID),
				zap.Duration("duration", duration),
				zap.Error(oc.err),
			)
			if failure == nil {
				failure = oc.err
				// Signal in-flight handlers; their settled results are
				// still drained and recorded.
				cancelSteps()
			}
			continue
		}

		exec.markSucceeded(oc.stepID, oc.output)
		r.emit(options.sink, Event{
			Type:        EventStepCompleted,
			ExecutionID: exec.id,
			WorkflowID:  def.ID,
			StepID:      oc.stepID,
			Timestamp:   time.Now(),
		})
		r.metrics.Load().RecordStep(def.ID, string(StepSucceeded), duration)
		logger.Debug("step completed",
			zap.String("step_id", oc.stepID),
			zap.Duration("duration", duration),
		)
	}

	return r.finishExecution(ctx, def, exec, failure, options, logger, span)
}

// launchStep runs one step through the executor and reports its outcome.
// The semaphore, when set, bounds handler concurrency; acquisition respects
// cooperative cancellation.
func (r *Registry) launchStep(ctx context.Context, step *WorkflowStep, input any, upstream Outputs, sem *semaphore.Weighted, defaultTimeout time.Duration, outcomes chan<- scheduledOutcome) {
	if sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes <- scheduledOutcome{stepID: step.ID, err: err}
			return
		}
		defer sem.Release(1)
	}

	ctx, span := r.tracer.Start(ctx, "workflow.step")
	span.SetAttributes(attribute.String("step.id", step.ID))
	defer span.End()

	output, err := r.executor.run(ctx, step, input, upstream, defaultTimeout)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	outcomes <- scheduledOutcome{stepID: step.ID, output: output, err: err}
}

// finishExecution settles the terminal state, runs the rollback sweep on
// failure, records the outcome, and emits the terminal event.
func (r *Registry) finishExecution(ctx context.Context, def *WorkflowDefinition, exec *execution, failure error, options executeOptions, logger *zap.Logger, span trace.Span) WorkflowExecution {
	var status ExecutionStatus
	var terminal EventType

	switch {
	case failure != nil:
		// Rollback must run even though the execution context may already
		// be cancelled.
		r.rollbackSucceeded(context.WithoutCancel(ctx), def, exec, logger)
		status, terminal = StatusFailed, EventWorkflowFailed
		exec.finish(StatusFailed, failure)
		span.RecordError(failure)
		span.SetStatus(codes.Error, failure.Error())
	case exec.cancelRequested.Load() && len(exec.completionOrderSnapshot()) < len(def.Steps):
		status, terminal = StatusCancelled, EventWorkflowCancelled
		exec.finish(StatusCancelled, nil)
	default:
		status, terminal = StatusCompleted, EventWorkflowCompleted
		exec.finish(StatusCompleted, nil)
	}

	snapshot := exec.snapshot()
	duration := snapshot.CompletedAt.Sub(snapshot.StartedAt)
	r.metrics.Load().RecordExecution(def.ID, string(status), duration)
	r.emit(options.sink, Event{
		Type:        terminal,
		ExecutionID: exec.id,
		WorkflowID:  def.ID,
		Timestamp:   time.Now(),
		Err:         failure,
	})
	logger.Info("workflow execution finished",
		zap.String("status", string(status)),
		zap.Duration("duration", duration),
	)
	return snapshot
}

// emit forwards an event to the sink, shielding the scheduler from sink
// panics.
func (r *Registry) emit(sink EventSink, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event sink panicked", zap.Any("recover", rec))
		}
	}()
	sink.Emit(event)
}
