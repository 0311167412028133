package workflow

import (
	"time"

	"go.uber.org/zap"
)

// EventType is a closed enum of workflow lifecycle event kinds.
type EventType string

const (
	EventWorkflowStarted   EventType = "workflow:started"
	EventStepStarted       EventType = "step:started"
	EventStepCompleted     EventType = "step:completed"
	EventStepFailed        EventType = "step:failed"
	EventWorkflowCompleted EventType = "workflow:completed"
	EventWorkflowFailed    EventType = "workflow:failed"
	EventWorkflowCancelled EventType = "workflow:cancelled"
)

// Event carries the payload of one lifecycle notification.
type Event struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id"`
	// StepID is set for step-level events only.
	StepID    string    `json:"step_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

// EventSink receives lifecycle events from the scheduler. Implementations
// must be safe for concurrent use and must not block: slow sinks should
// buffer or drop.
type EventSink interface {
	Emit(event Event)
}

// NopSink discards all events.
type NopSink struct{}

// Emit implements EventSink.
func (NopSink) Emit(Event) {}

// LogSink writes every event to a zap logger. Useful as a default sink in
// tests and examples.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a LogSink. A nil logger falls back to a no-op logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "event_sink"))}
}

// Emit implements EventSink.
func (s *LogSink) Emit(event Event) {
	fields := []zap.Field{
		zap.String("type", string(event.Type)),
		zap.String("execution_id", event.ExecutionID),
		zap.String("workflow_id", event.WorkflowID),
	}
	if event.StepID != "" {
		fields = append(fields, zap.String("step_id", event.StepID))
	}
	if event.Err != nil {
		fields = append(fields, zap.Error(event.Err))
		s.logger.Warn("workflow event", fields...)
		return
	}
	s.logger.Info("workflow event", fields...)
}
