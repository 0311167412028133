package workflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/loomworks/loom/internal/metrics"
	"github.com/loomworks/loom/types"
)

// DefaultStepTimeout bounds step handlers that declare no timeout.
const DefaultStepTimeout = 30 * time.Second

// RegistryConfig tunes a Registry.
type RegistryConfig struct {
	// DefaultStepTimeout applies to steps with no Timeout of their own.
	DefaultStepTimeout time.Duration `json:"default_step_timeout"`
	// MaxHistoryEntries bounds the execution history store.
	MaxHistoryEntries int `json:"max_history_entries"`
	// MaxConcurrentSteps bounds steps in flight per execution; 0 = unbounded.
	MaxConcurrentSteps int `json:"max_concurrent_steps"`
}

// DefaultRegistryConfig returns the default registry configuration.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		DefaultStepTimeout: DefaultStepTimeout,
		MaxHistoryEntries:  DefaultMaxHistoryEntries,
		MaxConcurrentSteps: 0,
	}
}

// Registry validates, stores, and executes workflow definitions. It owns all
// WorkflowDefinition and WorkflowExecution state; lifecycle notifications go
// to the configured EventSink. A Registry has no global state: independent
// instances do not interfere.
type Registry struct {
	config   RegistryConfig
	sink     EventSink
	logger   *zap.Logger
	executor *stepExecutor
	history  *HistoryStore
	metrics  atomic.Pointer[metrics.Collector]
	tracer   trace.Tracer

	mu          sync.RWMutex
	definitions map[string]*WorkflowDefinition
	executions  map[string]*execution // live (non-terminal) executions
}

// NewRegistry creates a workflow registry. A nil sink discards events; a nil
// logger falls back to a no-op logger.
func NewRegistry(config RegistryConfig, sink EventSink, logger *zap.Logger) *Registry {
	if sink == nil {
		sink = NopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultStepTimeout <= 0 {
		config.DefaultStepTimeout = DefaultStepTimeout
	}
	logger = logger.With(zap.String("component", "workflow_registry"))
	return &Registry{
		config:      config,
		sink:        sink,
		logger:      logger,
		executor:    newStepExecutor(config.DefaultStepTimeout, logger),
		history:     NewHistoryStore(config.MaxHistoryEntries, nil),
		tracer:      otel.Tracer(tracerName),
		definitions: make(map[string]*WorkflowDefinition),
		executions:  make(map[string]*execution),
	}
}

// SetMetrics attaches a metrics collector. Safe to call while executions are
// in flight; a nil collector disables recording.
func (r *Registry) SetMetrics(collector *metrics.Collector) {
	r.metrics.Store(collector)
	r.history.SetMetrics(collector)
}

// Register validates and stores a workflow definition. It fails with a
// VALIDATION error on duplicate step IDs, dangling dependencies, dependency
// cycles, or an already-registered workflow ID; nothing is stored on failure.
func (r *Registry) Register(def *WorkflowDefinition) error {
	if err := validateDefinition(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[def.ID]; exists {
		return types.Errorf(types.ErrValidation,
			"workflow %q already registered; unregister it first", def.ID)
	}
	r.definitions[def.ID] = def.clone()

	r.logger.Info("workflow registered",
		zap.String("workflow_id", def.ID),
		zap.String("version", def.Version),
		zap.Int("steps", len(def.Steps)),
	)
	return nil
}

// Unregister removes a workflow definition and reports whether one existed.
// Executions already running are unaffected.
func (r *Registry) Unregister(workflowID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.definitions[workflowID]; !exists {
		return false
	}
	delete(r.definitions, workflowID)
	r.logger.Info("workflow unregistered", zap.String("workflow_id", workflowID))
	return true
}

// Definition returns a copy of a registered definition.
func (r *Registry) Definition(workflowID string) (*WorkflowDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.definitions[workflowID]
	if !ok {
		return nil, false
	}
	return def.clone(), true
}

// Execute runs a registered workflow to a terminal state and returns the
// execution snapshot. The returned error is non-nil only when the workflow is
// not registered; step failures are reported through the snapshot's Status,
// Err, and StepResults so callers can always inspect per-step outcomes.
func (r *Registry) Execute(ctx context.Context, workflowID string, input any, opts ...ExecuteOption) (WorkflowExecution, error) {
	r.mu.RLock()
	def := r.definitions[workflowID]
	r.mu.RUnlock()
	if def == nil {
		return WorkflowExecution{}, types.Errorf(types.ErrNotFound, "workflow %q not registered", workflowID)
	}

	options := r.buildOptions(opts)
	exec := newExecution(uuid.NewString(), workflowID, def)

	r.mu.Lock()
	r.executions[exec.id] = exec
	r.mu.Unlock()

	result := r.runExecution(ctx, def, exec, input, options)

	// Record in history before dropping the live entry so a concurrent
	// GetExecution never observes a gap around termination.
	r.history.Append(result)
	r.mu.Lock()
	delete(r.executions, exec.id)
	r.mu.Unlock()

	return result, nil
}

// Cancel marks a running execution for cancellation. Steps already in flight
// are allowed to finish; no new steps are scheduled. Returns false when the
// execution is unknown or already terminal.
func (r *Registry) Cancel(executionID string) bool {
	r.mu.RLock()
	exec, ok := r.executions[executionID]
	r.mu.RUnlock()
	if !ok || exec.isTerminal() {
		return false
	}
	exec.cancelRequested.Store(true)
	r.logger.Info("execution cancellation requested",
		zap.String("execution_id", executionID),
		zap.String("workflow_id", exec.workflowID),
	)
	return true
}

// GetExecution returns a snapshot of a live or historical execution.
func (r *Registry) GetExecution(executionID string) (WorkflowExecution, bool) {
	r.mu.RLock()
	exec, ok := r.executions[executionID]
	r.mu.RUnlock()
	if ok {
		return exec.snapshot(), true
	}
	return r.history.Get(executionID)
}

// History returns terminal executions matching the filter, most recent first.
func (r *Registry) History(filter HistoryFilter) []WorkflowExecution {
	return r.history.List(filter)
}

// executeOptions are per-call overrides of the registry defaults.
type executeOptions struct {
	stepTimeout        time.Duration
	maxConcurrentSteps int
	sink               EventSink
}

// ExecuteOption overrides a registry default for a single Execute call.
type ExecuteOption func(*executeOptions)

// WithStepTimeout overrides the default per-step timeout for this execution.
// Steps declaring their own Timeout are unaffected.
func WithStepTimeout(d time.Duration) ExecuteOption {
	return func(o *executeOptions) { o.stepTimeout = d }
}

// WithMaxConcurrentSteps bounds the number of steps in flight for this
// execution.
func WithMaxConcurrentSteps(n int) ExecuteOption {
	return func(o *executeOptions) { o.maxConcurrentSteps = n }
}

// WithEventSink routes this execution's lifecycle events to a different sink.
func WithEventSink(sink EventSink) ExecuteOption {
	return func(o *executeOptions) { o.sink = sink }
}

func (r *Registry) buildOptions(opts []ExecuteOption) executeOptions {
	options := executeOptions{
		stepTimeout:        r.config.DefaultStepTimeout,
		maxConcurrentSteps: r.config.MaxConcurrentSteps,
		sink:               r.sink,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}
